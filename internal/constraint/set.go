package constraint

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

type entry struct {
	elem   element
	offset int // first row in the stacked system
}

// Set is the assembled constraint system over one kinematic tree.
// Constraints contribute scalar equations in registration order; the total
// equation count is the length of the multiplier vector.
type Set struct {
	tree      *matter.Tree
	entries   []entry
	total     int
	finalized bool
}

// NewSet creates an empty constraint set over tree.
func NewSet(tree *matter.Tree) *Set {
	return &Set{tree: tree}
}

// NumEquations is the total scalar constraint equation count, equal to the
// multiplier vector length.
func (s *Set) NumEquations() int { return s.total }

// NumConstraints counts registered constraint instances.
func (s *Set) NumConstraints() int { return len(s.entries) }

// Finalize freezes the set alongside the tree topology.
func (s *Set) Finalize() {
	s.finalized = true
}

func (s *Set) add(op string, e element, bodies ...matter.BodyIndex) (Index, error) {
	if s.finalized {
		return 0, &matter.TopologyError{Op: op, Detail: "topology is finalized"}
	}
	for _, b := range bodies {
		if err := checkBody(s.tree, op, b); err != nil {
			return 0, err
		}
	}
	s.entries = append(s.entries, entry{elem: e, offset: s.total})
	s.total += e.numEquations()
	return Index(len(s.entries) - 1), nil
}

// AddBall pins the station pointA (in bodyA's frame) to pointB (in bodyB's
// frame), contributing 3 equations.
func (s *Set) AddBall(bodyA matter.BodyIndex, pointA r3.Vector, bodyB matter.BodyIndex, pointB r3.Vector) (Index, error) {
	return s.add("add ball constraint",
		&ball{bodyA: bodyA, bodyB: bodyB, pointA: pointA, pointB: pointB},
		bodyA, bodyB)
}

// AddConstantAngle holds the body-fixed axes perpendicular (the default
// angle, as in a pin built from a free body), contributing 1 equation.
func (s *Set) AddConstantAngle(bodyA matter.BodyIndex, axisA r3.Vector, bodyB matter.BodyIndex, axisB r3.Vector) (Index, error) {
	return s.AddConstantAngleAt(bodyA, axisA, bodyB, axisB, math.Pi/2)
}

// AddConstantAngleAt holds the angle between the body-fixed axes at a fixed
// value, contributing 1 equation.
func (s *Set) AddConstantAngleAt(bodyA matter.BodyIndex, axisA r3.Vector, bodyB matter.BodyIndex, axisB r3.Vector, angle float64) (Index, error) {
	na, nb := axisA.Norm(), axisB.Norm()
	if na == 0 || nb == 0 {
		return 0, &matter.TopologyError{Op: "add constant angle constraint", Detail: "zero axis"}
	}
	return s.add("add constant angle constraint",
		&constantAngle{
			bodyA: bodyA, bodyB: bodyB,
			axisA: axisA.Mul(1 / na), axisB: axisB.Mul(1 / nb),
			angle: angle,
		},
		bodyA, bodyB)
}

// ConstraintRange returns the offset and width of constraint i's slice of
// the stacked equations.
func (s *Set) ConstraintRange(i Index) (int, int) {
	e := s.entries[i]
	return e.offset, e.elem.numEquations()
}

func (s *Set) positionContext(st *state.State) (*evalContext, error) {
	pc, err := st.PositionCache()
	if err != nil {
		return nil, err
	}
	return &evalContext{tree: s.tree, st: st, pos: pc}, nil
}

func (s *Set) velocityContext(st *state.State) (*evalContext, error) {
	ctx, err := s.positionContext(st)
	if err != nil {
		return nil, err
	}
	vc, err := st.VelocityCache()
	if err != nil {
		return nil, err
	}
	ctx.vel = vc
	return ctx, nil
}

// RealizePosition fills the stacked position residual during Position
// realization.
func (s *Set) RealizePosition(st *state.State) error {
	pc, err := st.UpdPositionCache()
	if err != nil {
		return err
	}
	ctx := &evalContext{tree: s.tree, st: st, pos: pc}
	for _, e := range s.entries {
		e.elem.positionError(ctx, pc.ConstraintErr[e.offset:e.offset+e.elem.numEquations()])
	}
	return nil
}

// RealizeVelocity fills the stacked velocity residual during Velocity
// realization.
func (s *Set) RealizeVelocity(st *state.State) error {
	vc, err := st.UpdVelocityCache()
	if err != nil {
		return err
	}
	pc, err := st.PositionCache()
	if err != nil {
		return err
	}
	ctx := &evalContext{tree: s.tree, st: st, pos: pc, vel: vc}
	for _, e := range s.entries {
		e.elem.velocityError(ctx, vc.ConstraintVerr[e.offset:e.offset+e.elem.numEquations()])
	}
	return nil
}

// CalcPositionError returns the stacked position-level residual, zero when
// every constraint is satisfied exactly. Requires Position.
func (s *Set) CalcPositionError(st *state.State) ([]float64, error) {
	errs, err := st.ConstraintPositionError()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(errs))
	copy(out, errs)
	return out, nil
}

// CalcVelocityError returns the stacked velocity-level residual J*u, zero
// when the motion is consistent with every constraint. Requires Velocity.
func (s *Set) CalcVelocityError(st *state.State) ([]float64, error) {
	vc, err := st.VelocityCache()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(vc.ConstraintVerr))
	copy(out, vc.ConstraintVerr)
	return out, nil
}

// Jacobian assembles the stacked constraint Jacobian with respect to the
// generalized speeds into a dense total x NU matrix. Requires Position.
func (s *Set) Jacobian(st *state.State) (*mat.Dense, error) {
	ctx, err := s.positionContext(st)
	if err != nil {
		return nil, err
	}
	nu := s.tree.NU()
	j := mat.NewDense(max(s.total, 1), max(nu, 1), nil)
	if s.total == 0 || nu == 0 {
		return j, nil
	}
	rows := make([][]float64, s.total)
	for k := 0; k < s.total; k++ {
		rows[k] = j.RawRowView(k)
	}
	for _, e := range s.entries {
		e.elem.jacobian(ctx, rows[e.offset:e.offset+e.elem.numEquations()])
	}
	return j, nil
}

// AccelerationRHS fills the value the acceleration-level constraint
// equations require of J*udot. Requires Velocity.
func (s *Set) AccelerationRHS(st *state.State, out []float64) error {
	ctx, err := s.velocityContext(st)
	if err != nil {
		return err
	}
	for _, e := range s.entries {
		e.elem.accelRHS(ctx, out[e.offset:e.offset+e.elem.numEquations()])
	}
	return nil
}

// MultiplierToAppliedForce maps a multiplier vector to the physical loads
// the constraints apply to the bodies. Sign convention: the returned spatial
// force on each body is the force the constraint exerts on that body
// (equivalently -J^T lambda in generalized terms); negate to obtain the
// complementary reaction. Forces are in ground Plucker coordinates about the
// ground origin. Requires Position.
func (s *Set) MultiplierToAppliedForce(st *state.State, lambda []float64) ([]spatial.Vec, []float64, error) {
	if len(lambda) != s.total {
		return nil, nil, fmt.Errorf("constraint: multiplier length %d, want %d", len(lambda), s.total)
	}
	ctx, err := s.positionContext(st)
	if err != nil {
		return nil, nil, err
	}
	bodyForces := make([]spatial.Vec, s.tree.NumBodies())
	for _, e := range s.entries {
		e.elem.appliedForces(ctx, lambda[e.offset:e.offset+e.elem.numEquations()], func(b matter.BodyIndex, f spatial.Vec) {
			bodyForces[b] = bodyForces[b].Add(f)
		})
	}
	// The constraints here act only through body forces; the mobility
	// share is identically zero but kept for interface symmetry.
	mobilityForces := make([]float64, s.tree.NU())
	return bodyForces, mobilityForces, nil
}
