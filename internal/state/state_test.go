package state

import (
	"errors"
	"math"
	"testing"
)

func newTestState() *State {
	return New(1, 2, 3, 3, 0)
}

func realizeThrough(t *testing.T, s *State, st Stage) {
	t.Helper()
	for cur := s.Stage() + 1; cur <= st; cur++ {
		if err := s.MarkRealized(cur); err != nil {
			t.Fatalf("mark %v: %v", cur, err)
		}
	}
}

func TestReadBeforeRealizeFails(t *testing.T) {
	s := newTestState()

	if _, err := s.BodyTransforms(); err == nil {
		t.Fatal("expected StageError reading transforms at topology stage")
	}

	// One rung below is still not enough, for every gated getter.
	realizeThrough(t, s, StageTime)
	checks := []struct {
		name string
		call func() error
	}{
		{"body transforms", func() error { _, err := s.BodyTransforms(); return err }},
		{"body velocities", func() error { _, err := s.BodyVelocities(); return err }},
		{"udot", func() error { _, err := s.UDot(); return err }},
		{"multipliers", func() error { _, err := s.Multipliers(); return err }},
	}
	for _, c := range checks {
		err := c.call()
		if err == nil {
			t.Errorf("%s: expected StageError, got nil", c.name)
			continue
		}
		var se *StageError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected StageError, got %v", c.name, err)
		}
	}
}

func TestEachStageGatesItsCache(t *testing.T) {
	reads := map[Stage]func(s *State) error{
		StagePosition:     func(s *State) error { _, err := s.PositionCache(); return err },
		StageVelocity:     func(s *State) error { _, err := s.VelocityCache(); return err },
		StageDynamics:     func(s *State) error { _, err := s.DynamicsCache(); return err },
		StageAcceleration: func(s *State) error { _, err := s.AccelerationCache(); return err },
	}
	for st, read := range reads {
		s := newTestState()
		realizeThrough(t, s, st-1)
		if err := read(s); err == nil {
			t.Errorf("stage %v readable with only %v realized", st, st-1)
		}
		realizeThrough(t, s, st)
		if err := read(s); err != nil {
			t.Errorf("stage %v unreadable after realize: %v", st, err)
		}
	}
}

func TestMarkRealizedInOrder(t *testing.T) {
	s := newTestState()
	if err := s.MarkRealized(StagePosition); err == nil {
		t.Fatal("expected error skipping ladder rungs")
	}
	if err := s.MarkRealized(StageModel); err != nil {
		t.Fatalf("mark model: %v", err)
	}
	if s.Stage() != StageModel {
		t.Fatalf("stage = %v, want model", s.Stage())
	}
}

func TestSetQInvalidatesPositionNotTime(t *testing.T) {
	s := newTestState()
	realizeThrough(t, s, StageAcceleration)

	s.SetOneQ(0, 0.5)
	if s.Stage() != StageTime {
		t.Fatalf("after SetOneQ stage = %v, want time", s.Stage())
	}
	if _, err := s.BodyTransforms(); err == nil {
		t.Fatal("position cache should be invalid after SetOneQ")
	}
}

func TestSetUInvalidatesVelocityNotPosition(t *testing.T) {
	s := newTestState()
	realizeThrough(t, s, StageAcceleration)

	s.SetOneU(1, -2.0)
	if s.Stage() != StagePosition {
		t.Fatalf("after SetOneU stage = %v, want position", s.Stage())
	}
	if _, err := s.BodyTransforms(); err != nil {
		t.Fatalf("position cache should survive SetOneU: %v", err)
	}
	if _, err := s.BodyVelocities(); err == nil {
		t.Fatal("velocity cache should be invalid after SetOneU")
	}
}

func TestSetTimeInvalidatesFromTime(t *testing.T) {
	s := newTestState()
	realizeThrough(t, s, StagePosition)

	s.SetTime(1.25)
	if s.Stage() != StageInstance {
		t.Fatalf("after SetTime stage = %v, want instance", s.Stage())
	}
	if s.Time() != 1.25 {
		t.Fatalf("time = %v, want 1.25", s.Time())
	}
}

func TestUpdRequiresExactRung(t *testing.T) {
	s := newTestState()
	if _, err := s.UpdPositionCache(); err == nil {
		t.Fatal("position cache writable at topology stage")
	}
	realizeThrough(t, s, StageTime)
	if _, err := s.UpdPositionCache(); err != nil {
		t.Fatalf("position cache not writable at time stage: %v", err)
	}
	realizeThrough(t, s, StagePosition)
	if _, err := s.UpdPositionCache(); err == nil {
		t.Fatal("position cache writable after Position already realized")
	}
}

func TestIsValid(t *testing.T) {
	s := newTestState()
	if !s.IsValid() {
		t.Fatal("fresh state should be valid")
	}
	s.SetOneQ(0, math.NaN())
	if s.IsValid() {
		t.Fatal("NaN coordinate should invalidate state")
	}
}
