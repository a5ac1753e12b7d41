package constraint

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// freeBodyFixture is a single free body whose M frame sits 1 above the body
// origin, with a ball constraint pinning that point to the ground origin.
type fixture struct {
	tree *matter.Tree
	set  *Set
	body matter.BodyIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tree := matter.NewTree()
	props := spatial.MassProperties{Mass: 1, Inertia: spatial.NewPrincipalInertia(1, 1, 1)}
	b, err := tree.AddBody(matter.Ground,
		spatial.Transform{},
		props,
		spatial.NewTranslation(r3.Vector{Y: 1}),
		matter.Free)
	if err != nil {
		t.Fatalf("add body: %v", err)
	}
	return &fixture{tree: tree, set: NewSet(tree), body: b}
}

func (f *fixture) finalize(t *testing.T) *state.State {
	t.Helper()
	if err := f.tree.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	f.set.Finalize()
	st := state.New(f.tree.Generation(), f.tree.NumBodies(), f.tree.NQ(), f.tree.NU(), f.set.NumEquations())
	f.tree.DefaultQ(st.Q())
	for _, stage := range []state.Stage{state.StageModel, state.StageInstance, state.StageTime} {
		if err := st.MarkRealized(stage); err != nil {
			t.Fatalf("mark %v: %v", stage, err)
		}
	}
	return st
}

func (f *fixture) realize(t *testing.T, st *state.State) {
	t.Helper()
	if err := f.tree.RealizePosition(st); err != nil {
		t.Fatalf("realize position: %v", err)
	}
	if err := f.set.RealizePosition(st); err != nil {
		t.Fatalf("constraint position: %v", err)
	}
	if err := st.MarkRealized(state.StagePosition); err != nil {
		t.Fatalf("mark position: %v", err)
	}
	if err := f.tree.RealizeVelocity(st); err != nil {
		t.Fatalf("realize velocity: %v", err)
	}
	if err := f.set.RealizeVelocity(st); err != nil {
		t.Fatalf("constraint velocity: %v", err)
	}
	if err := st.MarkRealized(state.StageVelocity); err != nil {
		t.Fatalf("mark velocity: %v", err)
	}
}

func TestAddConstraintBadBody(t *testing.T) {
	f := newFixture(t)
	_, err := f.set.AddBall(matter.Ground, r3.Vector{}, 7, r3.Vector{})
	var te *matter.TopologyError
	if !errors.As(err, &te) {
		t.Fatalf("expected TopologyError, got %v", err)
	}
}

func TestAddConstraintAfterFinalizeFails(t *testing.T) {
	f := newFixture(t)
	f.finalize(t)
	_, err := f.set.AddBall(matter.Ground, r3.Vector{}, f.body, r3.Vector{})
	var te *matter.TopologyError
	if !errors.As(err, &te) {
		t.Fatalf("expected TopologyError after finalize, got %v", err)
	}
}

func TestBallPositionError(t *testing.T) {
	f := newFixture(t)
	if _, err := f.set.AddBall(matter.Ground, r3.Vector{}, f.body, r3.Vector{Y: 1}); err != nil {
		t.Fatalf("add ball: %v", err)
	}
	st := f.finalize(t)

	if _, err := f.set.CalcPositionError(st); err == nil {
		t.Fatal("expected StageError before Position realization")
	}

	// The constrained station rides the M frame origin, so sliding the
	// mobilizer slides the station with it.
	if err := f.tree.SetQToFitTranslation(st, f.body, r3.Vector{X: 0.5, Y: -0.25}); err != nil {
		t.Fatalf("fit translation: %v", err)
	}
	f.realize(t, st)

	errs, err := f.set.CalcPositionError(st)
	if err != nil {
		t.Fatalf("position error: %v", err)
	}
	want := []float64{0.5, -0.25, 0}
	for i, w := range want {
		if math.Abs(errs[i]-w) > 1e-12 {
			t.Errorf("err[%d] = %v, want %v", i, errs[i], w)
		}
	}
}

func TestConstantAngleDefaultPerpendicular(t *testing.T) {
	f := newFixture(t)
	if _, err := f.set.AddConstantAngle(matter.Ground, r3.Vector{X: 1}, f.body, r3.Vector{Z: 1}); err != nil {
		t.Fatalf("add constant angle: %v", err)
	}
	st := f.finalize(t)
	f.realize(t, st)

	// Identity pose keeps the axes perpendicular: residual zero.
	errs, _ := f.set.CalcPositionError(st)
	if math.Abs(errs[0]) > 1e-12 {
		t.Errorf("perpendicular residual: got %v, want 0", errs[0])
	}

	// Tilt the body z toward ground x by 30 degrees about y.
	if err := f.tree.SetQToFitRotation(st, f.body, spatial.NewRotationAboutAxis(r3.Vector{Y: 1}, math.Pi/3)); err != nil {
		t.Fatalf("fit rotation: %v", err)
	}
	st.Invalidate(state.StagePosition)
	f.realize(t, st)
	errs, _ = f.set.CalcPositionError(st)
	// axisB maps to (sin60, 0, cos60); dot with ex = sin60.
	if math.Abs(errs[0]-math.Sin(math.Pi/3)) > 1e-12 {
		t.Errorf("tilted residual: got %v, want %v", errs[0], math.Sin(math.Pi/3))
	}
}

// The Jacobian must reproduce the velocity-level residual: verr = J u.
func TestJacobianMatchesVelocityError(t *testing.T) {
	f := newFixture(t)
	if _, err := f.set.AddBall(matter.Ground, r3.Vector{}, f.body, r3.Vector{Y: 1}); err != nil {
		t.Fatalf("add ball: %v", err)
	}
	if _, err := f.set.AddConstantAngle(matter.Ground, r3.Vector{X: 1}, f.body, r3.Vector{Z: 1}); err != nil {
		t.Fatalf("add constant angle: %v", err)
	}
	st := f.finalize(t)

	if err := f.tree.SetQToFitRotation(st, f.body, spatial.NewRotationAboutAxis(r3.Vector{X: 1, Z: 0.5}, 0.4)); err != nil {
		t.Fatalf("fit rotation: %v", err)
	}
	u := []float64{0.3, -0.2, 0.7, 1.1, 0.5, -0.4}
	st.SetU(u)
	f.realize(t, st)

	j, err := f.set.Jacobian(st)
	if err != nil {
		t.Fatalf("jacobian: %v", err)
	}
	verr, err := f.set.CalcVelocityError(st)
	if err != nil {
		t.Fatalf("velocity error: %v", err)
	}
	for k := 0; k < f.set.NumEquations(); k++ {
		dot := 0.0
		for c := 0; c < f.tree.NU(); c++ {
			dot += j.At(k, c) * u[c]
		}
		if math.Abs(dot-verr[k]) > 1e-10 {
			t.Errorf("row %d: J u = %v, verr = %v", k, dot, verr[k])
		}
	}
}

// The multiplier map must agree with -J^T lambda in generalized terms.
func TestMultiplierToAppliedForceMatchesJacobianTranspose(t *testing.T) {
	f := newFixture(t)
	if _, err := f.set.AddBall(matter.Ground, r3.Vector{}, f.body, r3.Vector{Y: 1}); err != nil {
		t.Fatalf("add ball: %v", err)
	}
	if _, err := f.set.AddConstantAngle(matter.Ground, r3.Vector{X: 1}, f.body, r3.Vector{Z: 1}); err != nil {
		t.Fatalf("add constant angle: %v", err)
	}
	st := f.finalize(t)
	if err := f.tree.SetQToFitRotation(st, f.body, spatial.NewRotationAboutAxis(r3.Vector{Y: 1}, 0.6)); err != nil {
		t.Fatalf("fit rotation: %v", err)
	}
	f.realize(t, st)

	lambda := []float64{1.5, -0.5, 2.0, 0.75}
	bodyForces, mobForces, err := f.set.MultiplierToAppliedForce(st, lambda)
	if err != nil {
		t.Fatalf("multiplier map: %v", err)
	}

	// Project the body forces through the body Jacobian.
	nu := f.tree.NU()
	got := make([]float64, nu)
	copy(got, mobForces)
	for b := 0; b < f.tree.NumBodies(); b++ {
		fb := bodyForces[b]
		if err := f.tree.VisitBodyJacobian(st, matter.BodyIndex(b), func(u int, col spatial.Vec) {
			got[u] += spatial.Dot(col, fb)
		}); err != nil {
			t.Fatalf("visit: %v", err)
		}
	}

	j, _ := f.set.Jacobian(st)
	for c := 0; c < nu; c++ {
		want := 0.0
		for k := range lambda {
			want -= j.At(k, c) * lambda[k]
		}
		if math.Abs(got[c]-want) > 1e-10 {
			t.Errorf("mobility %d: got %v, want %v", c, got[c], want)
		}
	}
}

func TestMultiplierLengthChecked(t *testing.T) {
	f := newFixture(t)
	if _, err := f.set.AddBall(matter.Ground, r3.Vector{}, f.body, r3.Vector{Y: 1}); err != nil {
		t.Fatalf("add ball: %v", err)
	}
	st := f.finalize(t)
	f.realize(t, st)
	if _, _, err := f.set.MultiplierToAppliedForce(st, []float64{1}); err == nil {
		t.Fatal("expected error for wrong multiplier length")
	}
}
