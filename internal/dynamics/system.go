package dynamics

import (
	"fmt"

	"github.com/linkage-sim/linkage/internal/constraint"
	"github.com/linkage-sim/linkage/internal/forces"
	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// System ties a kinematic tree, its constraint set, and its force elements
// into one multibody system with a shared realization ladder. Build the
// topology through Matter() and Constraints(), add force elements through
// Forces(), then call RealizeTopology once to freeze everything and obtain a
// working State.
type System struct {
	tree        *matter.Tree
	constraints *constraint.Set
	forces      *forces.Set
}

// NewSystem creates an empty system containing only Ground.
func NewSystem() *System {
	tree := matter.NewTree()
	return &System{
		tree:        tree,
		constraints: constraint.NewSet(tree),
		forces:      forces.NewSet(),
	}
}

// Matter returns the kinematic tree for topology construction and kinematic
// queries.
func (sys *System) Matter() *matter.Tree { return sys.tree }

// Constraints returns the constraint set for registration and residual
// queries.
func (sys *System) Constraints() *constraint.Set { return sys.constraints }

// Forces returns the force element set.
func (sys *System) Forces() *forces.Set { return sys.forces }

// RealizeTopology freezes the topology and allocates a state realized through
// Model, with every mobilizer at its identity pose and all speeds zero.
func (sys *System) RealizeTopology() (*state.State, error) {
	if err := sys.tree.Finalize(); err != nil {
		return nil, err
	}
	sys.constraints.Finalize()
	st := state.New(sys.tree.Generation(), sys.tree.NumBodies(),
		sys.tree.NQ(), sys.tree.NU(), sys.constraints.NumEquations())
	sys.tree.DefaultQ(st.Q())
	if err := st.MarkRealized(state.StageModel); err != nil {
		return nil, err
	}
	return st, nil
}

// Realize brings st up to the target stage, computing each missing rung of
// the ladder in order. Already-realized stages are left untouched, so
// realizing twice is free and changes nothing.
func (sys *System) Realize(st *state.State, target state.Stage) error {
	if err := sys.tree.CheckState(st); err != nil {
		return err
	}
	if target > state.StageReport {
		return fmt.Errorf("dynamics: cannot realize unknown stage %d", int(target))
	}
	for st.Stage() < target {
		next := st.Stage() + 1
		var err error
		switch next {
		case state.StageInstance:
			err = sys.realizeInstance(st)
		case state.StageTime, state.StageReport:
			// Nothing cached at these rungs yet.
		case state.StagePosition:
			err = sys.realizePosition(st)
		case state.StageVelocity:
			err = sys.realizeVelocity(st)
		case state.StageDynamics:
			err = sys.realizeDynamics(st)
		case state.StageAcceleration:
			err = sys.realizeAcceleration(st)
		default:
			return fmt.Errorf("dynamics: cannot realize stage %s", next)
		}
		if err != nil {
			return err
		}
		if err := st.MarkRealized(next); err != nil {
			return err
		}
	}
	return nil
}

func (sys *System) realizeInstance(st *state.State) error {
	// Mass properties were validated at AddBody; nothing varies per
	// instance yet.
	return nil
}

func (sys *System) realizePosition(st *state.State) error {
	if err := sys.tree.RealizePosition(st); err != nil {
		return err
	}
	return sys.constraints.RealizePosition(st)
}

func (sys *System) realizeVelocity(st *state.State) error {
	if err := sys.tree.RealizeVelocity(st); err != nil {
		return err
	}
	return sys.constraints.RealizeVelocity(st)
}

func (sys *System) realizeDynamics(st *state.State) error {
	dc, err := st.UpdDynamicsCache()
	if err != nil {
		return err
	}
	for i := range dc.BodyForce {
		dc.BodyForce[i] = spatial.Vec{}
	}
	for i := range dc.MobilityForce {
		dc.MobilityForce[i] = 0
	}
	if err := sys.forces.Accumulate(sys.tree, st, dc.BodyForce, dc.MobilityForce); err != nil {
		return err
	}
	if err := sys.calcMassMatrix(st, dc); err != nil {
		return err
	}
	return sys.calcBiasForce(st, dc)
}

func (sys *System) realizeAcceleration(st *state.State) error {
	jac, err := sys.constraints.Jacobian(st)
	if err != nil {
		return err
	}
	rhsC := make([]float64, sys.constraints.NumEquations())
	if err := sys.constraints.AccelerationRHS(st, rhsC); err != nil {
		return err
	}
	dc, err := st.DynamicsCache()
	if err != nil {
		return err
	}
	rhsF := make([]float64, sys.tree.NU())
	for i := range rhsF {
		rhsF[i] = dc.MobilityForce[i] - dc.BiasForce[i]
	}

	udot, lambda, err := solveConstrained(dc.MassMatrix, jac, sys.constraints.NumEquations(), rhsF, rhsC)
	if err != nil {
		return err
	}

	constraintBody, _, err := sys.constraints.MultiplierToAppliedForce(st, lambda)
	if err != nil {
		return err
	}

	ac, err := st.UpdAccelerationCache()
	if err != nil {
		return err
	}
	copy(ac.UDot, udot)
	copy(ac.Multipliers, lambda)
	copy(ac.ConstraintBodyForce, constraintBody)
	sys.tree.MapQDot(st.Q(), st.U(), ac.QDot)
	return sys.propagateAccelerations(st, ac)
}

// CalcMobilizerReactionForces realizes st through Acceleration and returns
// the load transmitted through every mobilizer, pivoted at the M frame
// origin and expressed in ground.
func (sys *System) CalcMobilizerReactionForces(st *state.State) ([]spatial.Vec, error) {
	if err := sys.Realize(st, state.StageAcceleration); err != nil {
		return nil, err
	}
	return sys.tree.CalcMobilizerReactionForces(st)
}

// EvaluateDerivatives realizes st through Acceleration and returns the time
// derivatives of the coordinates and speeds. The slices alias the state's
// acceleration cache and are valid until the next invalidation.
func (sys *System) EvaluateDerivatives(st *state.State) (qdot, udot []float64, err error) {
	if err := sys.Realize(st, state.StageAcceleration); err != nil {
		return nil, nil, err
	}
	ac, err := st.AccelerationCache()
	if err != nil {
		return nil, nil, err
	}
	return ac.QDot, ac.UDot, nil
}
