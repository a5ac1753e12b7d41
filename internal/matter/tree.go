package matter

import (
	"fmt"
	"sync/atomic"

	"github.com/golang/geo/r3"

	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// BodyIndex identifies a mobilized body within one tree. Indices are stable
// for the lifetime of the topology.
type BodyIndex int

// Ground is the unique root body. It has no mobilizer and never moves.
const Ground BodyIndex = 0

var generationCounter atomic.Uint64

type body struct {
	parent   BodyIndex
	kind     MobilizerKind
	mob      mobilizer
	inboard  spatial.Transform // X_PF, fixed in the parent
	outboard spatial.Transform // X_BM, fixed in this body
	props    spatial.MassProperties
	// comInertia is props.Inertia shifted to the COM, precomputed at
	// finalization.
	comInertia spatial.Inertia

	qStart, nq int
	uStart, nu int
}

// Tree is the kinematic tree: an indexed set of rigid bodies, each attached
// to one parent by one mobilizer, with Ground at index 0. Children always
// have larger indices than their parents, so index order is a valid
// pre-order traversal; the reverse is the post-order used for force
// accumulation.
type Tree struct {
	bodies     []body
	finalized  bool
	generation uint64
	nq, nu     int
	order      []BodyIndex
	reverse    []BodyIndex
}

// NewTree returns a tree containing only Ground.
func NewTree() *Tree {
	return &Tree{bodies: []body{{parent: -1, mob: weldMobilizer{}}}}
}

// AddBody appends a new body connected to parent through a mobilizer of the
// given kind. inboard is the mobilizer's F frame fixed in the parent,
// outboard its M frame fixed in the new body. Fails with TopologyError once
// the topology has been finalized or if parent is not a body already in the
// tree.
func (t *Tree) AddBody(parent BodyIndex, inboard spatial.Transform, props spatial.MassProperties, outboard spatial.Transform, kind MobilizerKind) (BodyIndex, error) {
	if t.finalized {
		return 0, &TopologyError{Op: "add body", Detail: "topology is finalized"}
	}
	if parent < 0 || int(parent) >= len(t.bodies) {
		return 0, &TopologyError{Op: "add body", Detail: fmt.Sprintf("parent index %d out of range", parent)}
	}
	if props.Mass < 0 {
		return 0, &TopologyError{Op: "add body", Detail: fmt.Sprintf("negative mass %v", props.Mass)}
	}
	t.bodies = append(t.bodies, body{
		parent:   parent,
		kind:     kind,
		mob:      newMobilizer(kind),
		inboard:  inboard,
		outboard: outboard,
		props:    props,
	})
	return BodyIndex(len(t.bodies) - 1), nil
}

// Finalize freezes the topology: assigns coordinate offsets, precomputes
// traversal orders and per-body constants, and stamps a fresh generation.
// Finalizing twice is a TopologyError.
func (t *Tree) Finalize() error {
	if t.finalized {
		return &TopologyError{Op: "finalize", Detail: "already finalized"}
	}
	t.nq, t.nu = 0, 0
	t.order = make([]BodyIndex, 0, len(t.bodies)-1)
	t.reverse = make([]BodyIndex, 0, len(t.bodies)-1)
	for i := 1; i < len(t.bodies); i++ {
		b := &t.bodies[i]
		b.qStart, b.nq = t.nq, b.mob.nq()
		b.uStart, b.nu = t.nu, b.mob.nu()
		t.nq += b.nq
		t.nu += b.nu
		b.comInertia = b.props.Inertia.ShiftToCOM(b.props.Mass, b.props.COM)
		t.order = append(t.order, BodyIndex(i))
	}
	for i := len(t.bodies) - 1; i >= 1; i-- {
		t.reverse = append(t.reverse, BodyIndex(i))
	}
	t.finalized = true
	t.generation = generationCounter.Add(1)
	return nil
}

// Finalized reports whether the topology has been frozen.
func (t *Tree) Finalized() bool { return t.finalized }

// Generation identifies this finalized topology; states carry the same
// number.
func (t *Tree) Generation() uint64 { return t.generation }

// NumBodies counts bodies including Ground.
func (t *Tree) NumBodies() int { return len(t.bodies) }

// NQ is the total generalized coordinate count.
func (t *Tree) NQ() int { return t.nq }

// NU is the total generalized speed (mobility) count.
func (t *Tree) NU() int { return t.nu }

// Parent returns the parent of b; Ground reports -1.
func (t *Tree) Parent(b BodyIndex) BodyIndex { return t.bodies[b].parent }

// Kind returns b's mobilizer kind.
func (t *Tree) Kind(b BodyIndex) MobilizerKind { return t.bodies[b].kind }

// QRange returns the offset and width of b's slice of q.
func (t *Tree) QRange(b BodyIndex) (int, int) { return t.bodies[b].qStart, t.bodies[b].nq }

// URange returns the offset and width of b's slice of u.
func (t *Tree) URange(b BodyIndex) (int, int) { return t.bodies[b].uStart, t.bodies[b].nu }

// MassProperties returns b's mass properties as given at construction.
func (t *Tree) MassProperties(b BodyIndex) spatial.MassProperties { return t.bodies[b].props }

// InboardFrame returns X_PF, the mobilizer frame fixed in b's parent.
func (t *Tree) InboardFrame(b BodyIndex) spatial.Transform { return t.bodies[b].inboard }

// OutboardFrame returns X_BM, the mobilizer frame fixed in b.
func (t *Tree) OutboardFrame(b BodyIndex) spatial.Transform { return t.bodies[b].outboard }

// Order returns the precomputed pre-order traversal (Ground excluded).
func (t *Tree) Order() []BodyIndex { return t.order }

// ReverseOrder returns the precomputed post-order traversal (Ground
// excluded).
func (t *Tree) ReverseOrder() []BodyIndex { return t.reverse }

// CheckState verifies that st was allocated for this topology generation.
func (t *Tree) CheckState(st *state.State) error {
	if !t.finalized {
		return &TopologyError{Op: "check state", Detail: "topology not finalized"}
	}
	if st.Generation() != t.generation {
		return &TopologyError{Op: "check state", Detail: fmt.Sprintf("state generation %d does not match topology generation %d", st.Generation(), t.generation)}
	}
	return nil
}

// DefaultQ writes every mobilizer's identity pose into q.
func (t *Tree) DefaultQ(q []float64) {
	for _, i := range t.order {
		b := &t.bodies[i]
		b.mob.defaultQ(q[b.qStart : b.qStart+b.nq])
	}
}

// NormalizeQ renormalizes any quaternion-parametrized coordinates in place.
// Callers hand it raw coordinate storage (e.g. an integrator's packed y)
// before writing into a State.
func (t *Tree) NormalizeQ(q []float64) {
	for _, i := range t.order {
		b := &t.bodies[i]
		b.mob.normalizeQ(q[b.qStart : b.qStart+b.nq])
	}
}

// MapQDot converts generalized speeds to coordinate derivatives.
func (t *Tree) MapQDot(q, u, qdot []float64) {
	for _, i := range t.order {
		b := &t.bodies[i]
		b.mob.mapQDot(q[b.qStart:b.qStart+b.nq], u[b.uStart:b.uStart+b.nu], qdot[b.qStart:b.qStart+b.nq])
	}
}

// SetOneQ sets the which'th coordinate of body b, invalidating Position.
func (t *Tree) SetOneQ(st *state.State, b BodyIndex, which int, v float64) error {
	if err := t.CheckState(st); err != nil {
		return err
	}
	bd := &t.bodies[b]
	if which < 0 || which >= bd.nq {
		return &ConfigurationError{Body: b, Detail: fmt.Sprintf("coordinate %d out of range (%s mobilizer has %d)", which, bd.kind, bd.nq)}
	}
	st.SetOneQ(bd.qStart+which, v)
	return nil
}

// SetOneU sets the which'th speed of body b, invalidating Velocity.
func (t *Tree) SetOneU(st *state.State, b BodyIndex, which int, v float64) error {
	if err := t.CheckState(st); err != nil {
		return err
	}
	bd := &t.bodies[b]
	if which < 0 || which >= bd.nu {
		return &ConfigurationError{Body: b, Detail: fmt.Sprintf("speed %d out of range (%s mobilizer has %d)", which, bd.kind, bd.nu)}
	}
	st.SetOneU(bd.uStart+which, v)
	return nil
}

// SetQToFitRotation sets b's coordinates so the across-mobilizer rotation
// equals r exactly, failing with ConfigurationError when the mobilizer's
// parametrization cannot represent r.
func (t *Tree) SetQToFitRotation(st *state.State, b BodyIndex, r spatial.Rotation) error {
	if err := t.CheckState(st); err != nil {
		return err
	}
	bd := &t.bodies[b]
	if err := bd.mob.setQFromRotation(b, st.Q()[bd.qStart:bd.qStart+bd.nq], r); err != nil {
		return err
	}
	st.Invalidate(state.StagePosition)
	return nil
}

// SetQToFitTranslation sets b's coordinates so the across-mobilizer
// translation equals p exactly, failing with ConfigurationError when the
// mobilizer cannot represent p.
func (t *Tree) SetQToFitTranslation(st *state.State, b BodyIndex, p r3.Vector) error {
	if err := t.CheckState(st); err != nil {
		return err
	}
	bd := &t.bodies[b]
	if err := bd.mob.setQFromTranslation(b, st.Q()[bd.qStart:bd.qStart+bd.nq], p); err != nil {
		return err
	}
	st.Invalidate(state.StagePosition)
	return nil
}

// VisitBodyJacobian calls fn once for every mobility that influences body
// b's motion, passing the mobility's global index and its motion-subspace
// column. Requires Position realization.
func (t *Tree) VisitBodyJacobian(st *state.State, b BodyIndex, fn func(u int, col spatial.Vec)) error {
	pc, err := st.PositionCache()
	if err != nil {
		return err
	}
	for a := b; a != Ground; a = t.bodies[a].parent {
		bd := &t.bodies[a]
		for j, col := range pc.Subspace[a] {
			fn(bd.uStart+j, col)
		}
	}
	return nil
}
