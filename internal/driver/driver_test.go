package driver

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/linkage-sim/linkage/internal/dynamics"
	"github.com/linkage-sim/linkage/internal/forces"
	"github.com/linkage-sim/linkage/internal/integrators"
	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

const (
	mass    = 1.2
	length  = 0.8
	gravity = 9.81
	comI    = 0.02 // sphere-like inertia about the COM
)

func pinPendulum(t *testing.T, theta0 float64) (*dynamics.System, *state.State) {
	t.Helper()
	sys := dynamics.NewSystem()
	props := spatial.MassProperties{
		Mass: mass,
		COM:  r3.Vector{Y: -length},
		Inertia: spatial.NewPrincipalInertia(
			comI+mass*length*length, comI, comI+mass*length*length),
	}
	if _, err := sys.Matter().AddBody(matter.Ground, spatial.Transform{}, props, spatial.Transform{}, matter.Pin); err != nil {
		t.Fatalf("AddBody: %v", err)
	}
	sys.Forces().Add(forces.NewUniformGravity(r3.Vector{Y: -gravity}))
	st, err := sys.RealizeTopology()
	if err != nil {
		t.Fatalf("RealizeTopology: %v", err)
	}
	if err := sys.Matter().SetOneQ(st, 1, 0, theta0); err != nil {
		t.Fatalf("SetOneQ: %v", err)
	}
	return sys, st
}

// constrainedPendulum builds the same pendulum out of a free body, a ball
// constraint at the pivot, and two constant-angle constraints that leave
// only rotation about z.
func constrainedPendulum(t *testing.T, theta0 float64) (*dynamics.System, *state.State, matter.BodyIndex) {
	t.Helper()
	sys := dynamics.NewSystem()
	props := spatial.MassProperties{
		Mass:    mass,
		Inertia: spatial.NewPrincipalInertia(comI, comI, comI),
	}
	b, err := sys.Matter().AddBody(matter.Ground, spatial.Transform{}, props, spatial.Transform{}, matter.Free)
	if err != nil {
		t.Fatalf("AddBody: %v", err)
	}
	if _, err := sys.Constraints().AddBall(matter.Ground, r3.Vector{}, b, r3.Vector{Y: length}); err != nil {
		t.Fatalf("AddBall: %v", err)
	}
	if _, err := sys.Constraints().AddConstantAngle(matter.Ground, r3.Vector{X: 1}, b, r3.Vector{Z: 1}); err != nil {
		t.Fatalf("AddConstantAngle: %v", err)
	}
	if _, err := sys.Constraints().AddConstantAngle(matter.Ground, r3.Vector{Y: 1}, b, r3.Vector{Z: 1}); err != nil {
		t.Fatalf("AddConstantAngle: %v", err)
	}
	sys.Forces().Add(forces.NewUniformGravity(r3.Vector{Y: -gravity}))
	st, err := sys.RealizeTopology()
	if err != nil {
		t.Fatalf("RealizeTopology: %v", err)
	}
	rot := spatial.NewRotationAboutAxis(r3.Vector{Z: 1}, theta0)
	if err := sys.Matter().SetQToFitRotation(st, b, rot); err != nil {
		t.Fatalf("SetQToFitRotation: %v", err)
	}
	if err := sys.Matter().SetQToFitTranslation(st, b, rot.Apply(r3.Vector{Y: length}).Mul(-1)); err != nil {
		t.Fatalf("SetQToFitTranslation: %v", err)
	}
	return sys, st, b
}

func TestRunRecordsTrajectory(t *testing.T) {
	sys, st := pinPendulum(t, 0.3)
	d := New(sys, integrators.NewRK4())
	res, err := d.Run(context.Background(), st, Config{Duration: 0.1, Dt: 0.01})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StepsTaken != 10 {
		t.Errorf("StepsTaken = %d, want 10", res.StepsTaken)
	}
	if len(res.Frames) != 11 {
		t.Errorf("frames = %d, want 11", len(res.Frames))
	}
	last := res.Frames[len(res.Frames)-1]
	if math.Abs(last.Time-0.1) > 1e-12 {
		t.Errorf("final frame time = %v, want 0.1", last.Time)
	}
}

func TestEnergyConservation(t *testing.T) {
	sys, st := pinPendulum(t, 0.5)
	d := New(sys, integrators.NewRK4())
	d.AddMetric(NewEnergyDrift(sys))
	res, err := d.Run(context.Background(), st, Config{Duration: 2.0, Dt: 1e-3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("run errors: %v", res.Errors)
	}
	if res.EnergyDrift > 1e-7 {
		t.Errorf("energy drift = %v, want < 1e-7", res.EnergyDrift)
	}
	if drift := res.Metrics["energy_drift"]; drift > 1e-7 {
		t.Errorf("max energy drift = %v, want < 1e-7", drift)
	}
}

func TestConstrainedPendulumTracksPin(t *testing.T) {
	const theta0 = 0.4
	const duration = 0.5
	cfg := Config{Duration: duration, Dt: 1e-3}

	pinSys, pinSt := pinPendulum(t, theta0)
	if _, err := New(pinSys, integrators.NewRK4()).Run(context.Background(), pinSt, cfg); err != nil {
		t.Fatalf("pin Run: %v", err)
	}
	wantTheta := pinSt.Q()[0]

	freeSys, freeSt, b := constrainedPendulum(t, theta0)
	d := New(freeSys, integrators.NewRK4())
	d.AddMetric(NewConstraintDrift(freeSys))
	res, err := d.Run(context.Background(), freeSt, cfg)
	if err != nil {
		t.Fatalf("constrained Run: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("run errors: %v", res.Errors)
	}

	if err := freeSys.Realize(freeSt, state.StagePosition); err != nil {
		t.Fatalf("Realize: %v", err)
	}
	transforms, err := freeSt.BodyTransforms()
	if err != nil {
		t.Fatalf("BodyTransforms: %v", err)
	}
	com := transforms[b].P
	gotTheta := math.Atan2(com.X, -com.Y)
	if math.Abs(gotTheta-wantTheta) > 1e-4 {
		t.Errorf("constrained pendulum angle = %v, pin angle = %v", gotTheta, wantTheta)
	}
	if drift := res.Metrics["constraint_drift"]; drift > 1e-6 {
		t.Errorf("constraint drift = %v, want < 1e-6", drift)
	}
}

func TestAdaptiveRun(t *testing.T) {
	sys, st := pinPendulum(t, 0.3)
	d := New(sys, integrators.NewRK45())
	res, err := d.Run(context.Background(), st, Config{Duration: 0.2, Dt: 0.01, Adaptive: true, Tolerance: 1e-8})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.StepsTaken == 0 {
		t.Fatal("adaptive run took no steps")
	}
}

func TestRunHonorsContext(t *testing.T) {
	sys, st := pinPendulum(t, 0.3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(sys, integrators.NewRK4()).Run(ctx, st, Config{Duration: 1, Dt: 0.01})
	if err != context.Canceled {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}

func TestRunValidatesConfig(t *testing.T) {
	sys, st := pinPendulum(t, 0.3)
	d := New(sys, integrators.NewRK4())
	if _, err := d.Run(context.Background(), st, Config{Duration: 1, Dt: 0}); err == nil {
		t.Error("Run accepted zero dt")
	}
	if _, err := d.Run(context.Background(), st, Config{Duration: 0, Dt: 0.01}); err == nil {
		t.Error("Run accepted zero duration")
	}
	if _, err := d.Run(context.Background(), st, Config{Duration: 1, Dt: 0.01, Adaptive: true}); err == nil {
		t.Error("Run accepted adaptive stepping without tolerance")
	}
}

func TestObserverSeesEveryStep(t *testing.T) {
	sys, st := pinPendulum(t, 0.3)
	d := New(sys, integrators.NewRK4())
	var calls int
	d.AddObserver(ObserverFunc(func(_ float64, _ *state.State) { calls++ }))
	if _, err := d.Run(context.Background(), st, Config{Duration: 0.05, Dt: 0.01}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Initial sample plus one per step.
	if calls != 6 {
		t.Errorf("observer calls = %d, want 6", calls)
	}
}
