package matter

import (
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// CalcMobilizerReactionForces recovers the load transmitted through every
// mobilizer from the realized accelerations and the applied and constraint
// forces, by a post-order sweep summing each body's net spatial force
// requirement with its children's already-known reactions. The returned
// force for body i is what the mobilizer applies to body i, re-pivoted to
// the M frame origin and expressed in ground. Slot 0 reports the force
// needed to hold the whole assembly fixed. Requires Acceleration.
func (t *Tree) CalcMobilizerReactionForces(st *state.State) ([]spatial.Vec, error) {
	if err := t.CheckState(st); err != nil {
		return nil, err
	}
	pc, err := st.PositionCache()
	if err != nil {
		return nil, err
	}
	vc, err := st.VelocityCache()
	if err != nil {
		return nil, err
	}
	dc, err := st.DynamicsCache()
	if err != nil {
		return nil, err
	}
	ac, err := st.AccelerationCache()
	if err != nil {
		return nil, err
	}

	// transmitted[i] is the spatial force (ground Plucker coordinates,
	// about the origin) that body i's mobilizer applies to body i.
	transmitted := make([]spatial.Vec, len(t.bodies))
	childSum := make([]spatial.Vec, len(t.bodies))

	for _, i := range t.reverse {
		b := &t.bodies[i]
		inertia := spatial.SpatialInertia{
			Mass:   b.props.Mass,
			COM:    pc.BodyCOM[i],
			Moment: pc.BodyInertia[i],
		}
		v := vc.BodyVelocity[i]
		need := inertia.Apply(ac.BodyAcceleration[i]).
			Add(spatial.CrossForce(v, inertia.Apply(v))).
			Sub(dc.BodyForce[i]).
			Sub(ac.ConstraintBodyForce[i])
		transmitted[i] = need.Add(childSum[i])
		childSum[b.parent] = childSum[b.parent].Add(transmitted[i])
	}

	out := make([]spatial.Vec, len(t.bodies))
	// Ground's slot is the negative of the total force transmitted into
	// Ground by its children, i.e. what an external agent must supply to
	// keep the assembly in place.
	out[Ground] = childSum[Ground]
	for _, i := range t.order {
		b := &t.bodies[i]
		pM := pc.BodyTransform[i].Compose(b.outboard).P
		out[i] = spatial.ShiftForce(transmitted[i], pM)
	}
	return out, nil
}
