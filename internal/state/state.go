package state

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/linkage-sim/linkage/internal/spatial"
)

// PositionCache holds everything derivable from q and topology alone. All
// body-indexed slices include Ground at slot 0. Spatial quantities are kept
// in ground-frame Plucker coordinates about the ground origin.
type PositionCache struct {
	// BodyTransform is X_GB, the absolute pose of each body frame.
	BodyTransform []spatial.Transform
	// MobilizerTransform is X_FM, the across-mobilizer transform.
	MobilizerTransform []spatial.Transform
	// BodyCOM is each body's center of mass in ground coordinates.
	BodyCOM []r3.Vector
	// BodyInertia is each body's COM inertia re-expressed in ground.
	BodyInertia []spatial.Inertia
	// Subspace holds the joint motion subspace columns per body.
	Subspace [][]spatial.Vec
	// ConstraintErr is the stacked position-level constraint residual.
	ConstraintErr []float64
}

// VelocityCache holds everything derivable from (q, u) beyond position.
type VelocityCache struct {
	// BodyVelocity is each body's spatial velocity.
	BodyVelocity []spatial.Vec
	// MobilizerVelocity is V_FM, the across-mobilizer spatial velocity
	// expressed in the inboard frame about the outboard frame origin.
	MobilizerVelocity []spatial.Vec
	// BodyBiasAccel is each body's spatial acceleration with udot = 0,
	// the velocity-dependent remainder used by the dynamics assembly.
	BodyBiasAccel []spatial.Vec
	// ConstraintVerr is the stacked velocity-level constraint residual.
	ConstraintVerr []float64
}

// DynamicsCache holds applied loads and the assembled equations of motion.
type DynamicsCache struct {
	// BodyForce accumulates applied spatial forces per body.
	BodyForce []spatial.Vec
	// MobilityForce accumulates applied generalized forces per mobility.
	MobilityForce []float64
	// MassMatrix is the generalized mass matrix M(q).
	MassMatrix *mat.SymDense
	// BiasForce is the generalized force needed to hold udot = 0 given
	// the applied loads; the equations of motion right hand side is
	// MobilityForce - BiasForce.
	BiasForce []float64
}

// AccelerationCache holds the solved accelerations and multipliers.
type AccelerationCache struct {
	UDot        []float64
	QDot        []float64
	Multipliers []float64
	// BodyAcceleration is each body's spatial acceleration.
	BodyAcceleration []spatial.Vec
	// ConstraintBodyForce is the total constraint force applied to each
	// body by the active constraints at the solved multipliers.
	ConstraintBodyForce []spatial.Vec
}

// State is the complete simulation state for one system: the generalized
// coordinates and speeds, plus a staged cache of everything derived from
// them. A State belongs to the topology generation that created it and must
// not be shared across goroutines.
type State struct {
	generation uint64
	nbodies    int

	time  float64
	q     []float64
	u     []float64
	stage Stage

	pos PositionCache
	vel VelocityCache
	dyn DynamicsCache
	acc AccelerationCache
}

// New allocates a state for a finalized topology. The returned state is
// realized through Topology; coordinates are zeroed and must be given
// mobilizer defaults before Model realization.
func New(generation uint64, nbodies, nq, nu, nlambda int) *State {
	s := &State{
		generation: generation,
		nbodies:    nbodies,
		q:          make([]float64, nq),
		u:          make([]float64, nu),
		stage:      StageTopology,
	}
	s.pos = PositionCache{
		BodyTransform:      make([]spatial.Transform, nbodies),
		MobilizerTransform: make([]spatial.Transform, nbodies),
		BodyCOM:            make([]r3.Vector, nbodies),
		BodyInertia:        make([]spatial.Inertia, nbodies),
		Subspace:           make([][]spatial.Vec, nbodies),
		ConstraintErr:      make([]float64, nlambda),
	}
	s.vel = VelocityCache{
		BodyVelocity:      make([]spatial.Vec, nbodies),
		MobilizerVelocity: make([]spatial.Vec, nbodies),
		BodyBiasAccel:     make([]spatial.Vec, nbodies),
		ConstraintVerr:    make([]float64, nlambda),
	}
	s.dyn = DynamicsCache{
		BodyForce:     make([]spatial.Vec, nbodies),
		MobilityForce: make([]float64, nu),
		MassMatrix:    mat.NewSymDense(max(nu, 1), nil),
		BiasForce:     make([]float64, nu),
	}
	s.acc = AccelerationCache{
		UDot:                make([]float64, nu),
		QDot:                make([]float64, nq),
		Multipliers:         make([]float64, nlambda),
		BodyAcceleration:    make([]spatial.Vec, nbodies),
		ConstraintBodyForce: make([]spatial.Vec, nbodies),
	}
	return s
}

// Generation identifies the topology this state was allocated for.
func (s *State) Generation() uint64 { return s.generation }

func (s *State) NumBodies() int      { return s.nbodies }
func (s *State) NQ() int             { return len(s.q) }
func (s *State) NU() int             { return len(s.u) }
func (s *State) NumMultipliers() int { return len(s.acc.Multipliers) }

// Stage reports the highest realized stage.
func (s *State) Stage() Stage { return s.stage }

// RealizedThrough reports whether the state is realized at least to st.
func (s *State) RealizedThrough(st Stage) bool { return s.stage >= st }

// Time returns the simulation time.
func (s *State) Time() float64 { return s.time }

// SetTime sets the simulation time and invalidates Time stage and above.
func (s *State) SetTime(t float64) {
	s.time = t
	s.Invalidate(StageTime)
}

// Q returns the generalized coordinate vector. Callers must treat it as
// read-only; use SetQ or SetOneQ to mutate.
func (s *State) Q() []float64 { return s.q }

// U returns the generalized speed vector. Callers must treat it as
// read-only; use SetU or SetOneU to mutate.
func (s *State) U() []float64 { return s.u }

// SetQ replaces the coordinate vector, invalidating Position and above.
func (s *State) SetQ(q []float64) {
	copy(s.q, q)
	s.Invalidate(StagePosition)
}

// SetU replaces the speed vector, invalidating Velocity and above.
func (s *State) SetU(u []float64) {
	copy(s.u, u)
	s.Invalidate(StageVelocity)
}

// SetOneQ sets a single coordinate, invalidating Position and above.
func (s *State) SetOneQ(i int, v float64) {
	s.q[i] = v
	s.Invalidate(StagePosition)
}

// SetOneU sets a single speed, invalidating Velocity and above.
func (s *State) SetOneU(i int, v float64) {
	s.u[i] = v
	s.Invalidate(StageVelocity)
}

// IsValid reports whether q and u are free of NaN and Inf.
func (s *State) IsValid() bool {
	for _, v := range s.q {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range s.u {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Invalidate drops the realization level below st, discarding every cache
// entry at st and above. Invalidating an unrealized stage is a no-op.
func (s *State) Invalidate(st Stage) {
	if s.stage >= st {
		s.stage = st - 1
	}
}

// MarkRealized advances the realization level to st. Stages must be realized
// strictly in ladder order; skipping a rung is a StageError.
func (s *State) MarkRealized(st Stage) error {
	if s.stage != st-1 {
		return &StageError{Op: "mark " + st.String(), Need: st - 1, Have: s.stage}
	}
	s.stage = st
	return nil
}

func (s *State) require(st Stage, op string) error {
	if s.stage < st {
		return &StageError{Op: op, Need: st, Have: s.stage}
	}
	return nil
}

// upd returns write access to a stage's cache; the state must be realized
// exactly one rung below, i.e. in the middle of computing st.
func (s *State) upd(st Stage, op string) error {
	if s.stage != st-1 {
		return &StageError{Op: op, Need: st - 1, Have: s.stage}
	}
	return nil
}

// UpdPositionCache returns the position cache for filling during Position
// realization.
func (s *State) UpdPositionCache() (*PositionCache, error) {
	if err := s.upd(StagePosition, "write position cache"); err != nil {
		return nil, err
	}
	return &s.pos, nil
}

// UpdVelocityCache returns the velocity cache for filling during Velocity
// realization.
func (s *State) UpdVelocityCache() (*VelocityCache, error) {
	if err := s.upd(StageVelocity, "write velocity cache"); err != nil {
		return nil, err
	}
	return &s.vel, nil
}

// UpdDynamicsCache returns the dynamics cache for filling during Dynamics
// realization.
func (s *State) UpdDynamicsCache() (*DynamicsCache, error) {
	if err := s.upd(StageDynamics, "write dynamics cache"); err != nil {
		return nil, err
	}
	return &s.dyn, nil
}

// UpdAccelerationCache returns the acceleration cache for filling during
// Acceleration realization.
func (s *State) UpdAccelerationCache() (*AccelerationCache, error) {
	if err := s.upd(StageAcceleration, "write acceleration cache"); err != nil {
		return nil, err
	}
	return &s.acc, nil
}

// PositionCache returns read access to position-stage results.
func (s *State) PositionCache() (*PositionCache, error) {
	if err := s.require(StagePosition, "read position cache"); err != nil {
		return nil, err
	}
	return &s.pos, nil
}

// VelocityCache returns read access to velocity-stage results.
func (s *State) VelocityCache() (*VelocityCache, error) {
	if err := s.require(StageVelocity, "read velocity cache"); err != nil {
		return nil, err
	}
	return &s.vel, nil
}

// DynamicsCache returns read access to dynamics-stage results.
func (s *State) DynamicsCache() (*DynamicsCache, error) {
	if err := s.require(StageDynamics, "read dynamics cache"); err != nil {
		return nil, err
	}
	return &s.dyn, nil
}

// AccelerationCache returns read access to acceleration-stage results.
func (s *State) AccelerationCache() (*AccelerationCache, error) {
	if err := s.require(StageAcceleration, "read acceleration cache"); err != nil {
		return nil, err
	}
	return &s.acc, nil
}

// BodyTransforms returns the absolute body poses, requiring Position.
func (s *State) BodyTransforms() ([]spatial.Transform, error) {
	if err := s.require(StagePosition, "read body transforms"); err != nil {
		return nil, err
	}
	return s.pos.BodyTransform, nil
}

// BodyVelocities returns the absolute body spatial velocities, requiring
// Velocity.
func (s *State) BodyVelocities() ([]spatial.Vec, error) {
	if err := s.require(StageVelocity, "read body velocities"); err != nil {
		return nil, err
	}
	return s.vel.BodyVelocity, nil
}

// ConstraintPositionError returns the stacked constraint residual, requiring
// Position.
func (s *State) ConstraintPositionError() ([]float64, error) {
	if err := s.require(StagePosition, "read constraint position error"); err != nil {
		return nil, err
	}
	return s.pos.ConstraintErr, nil
}

// UDot returns the solved generalized accelerations, requiring Acceleration.
func (s *State) UDot() ([]float64, error) {
	if err := s.require(StageAcceleration, "read udot"); err != nil {
		return nil, err
	}
	return s.acc.UDot, nil
}

// QDot returns the coordinate derivatives, requiring Acceleration.
func (s *State) QDot() ([]float64, error) {
	if err := s.require(StageAcceleration, "read qdot"); err != nil {
		return nil, err
	}
	return s.acc.QDot, nil
}

// Multipliers returns the solved Lagrange multipliers, requiring
// Acceleration.
func (s *State) Multipliers() ([]float64, error) {
	if err := s.require(StageAcceleration, "read multipliers"); err != nil {
		return nil, err
	}
	return s.acc.Multipliers, nil
}
