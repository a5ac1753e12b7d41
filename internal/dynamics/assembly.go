package dynamics

import (
	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// bodySpatialInertia builds body i's spatial inertia about the ground origin
// from the position cache's world-frame mass geometry.
func bodySpatialInertia(t *matter.Tree, pc *state.PositionCache, i matter.BodyIndex) spatial.SpatialInertia {
	return spatial.SpatialInertia{
		Mass:   t.MassProperties(i).Mass,
		COM:    pc.BodyCOM[i],
		Moment: pc.BodyInertia[i],
	}
}

// calcMassMatrix fills dc.MassMatrix with the generalized mass matrix by the
// composite rigid body algorithm: a post-order sweep folds each subtree's
// spatial inertia into its root, and every (body, ancestor) mobility pair
// contributes H_i^T IC_i H_a.
func (sys *System) calcMassMatrix(st *state.State, dc *state.DynamicsCache) error {
	pc, err := st.PositionCache()
	if err != nil {
		return err
	}
	t := sys.tree
	nb := t.NumBodies()

	ic := make([]spatial.SpatialInertia, nb)
	for i := 1; i < nb; i++ {
		ic[i] = bodySpatialInertia(t, pc, matter.BodyIndex(i))
	}

	m := dc.MassMatrix
	n, _ := m.Dims()
	for r := 0; r < n; r++ {
		for c := r; c < n; c++ {
			m.SetSym(r, c, 0)
		}
	}

	// Post-order: by the time body i is visited its ic already includes
	// every descendant.
	for _, i := range t.ReverseOrder() {
		uStart, nu := t.URange(i)
		for j := 0; j < nu; j++ {
			f := ic[i].Apply(pc.Subspace[i][j])
			for a := i; a != matter.Ground; a = t.Parent(a) {
				aStart, anu := t.URange(a)
				for k := 0; k < anu; k++ {
					m.SetSym(uStart+j, aStart+k, spatial.Dot(pc.Subspace[a][k], f))
				}
			}
		}
		if p := t.Parent(i); p != matter.Ground {
			ic[p] = ic[p].Add(ic[i])
		}
	}
	return nil
}

// calcBiasForce fills dc.BiasForce with the generalized force that would hold
// udot = 0 under the applied body forces: an inverse-dynamics (Newton-Euler)
// post-order sweep over the cached bias accelerations.
func (sys *System) calcBiasForce(st *state.State, dc *state.DynamicsCache) error {
	pc, err := st.PositionCache()
	if err != nil {
		return err
	}
	vc, err := st.VelocityCache()
	if err != nil {
		return err
	}
	t := sys.tree
	nb := t.NumBodies()

	f := make([]spatial.Vec, nb)
	for _, i := range t.ReverseOrder() {
		ib := bodySpatialInertia(t, pc, i)
		v := vc.BodyVelocity[i]
		own := ib.Apply(vc.BodyBiasAccel[i]).
			Add(spatial.CrossForce(v, ib.Apply(v))).
			Sub(dc.BodyForce[i])
		f[i] = f[i].Add(own)
		f[t.Parent(i)] = f[t.Parent(i)].Add(f[i])

		uStart, nu := t.URange(i)
		for j := 0; j < nu; j++ {
			dc.BiasForce[uStart+j] = spatial.Dot(pc.Subspace[i][j], f[i])
		}
	}
	return nil
}

// propagateAccelerations fills the body spatial accelerations from the solved
// udot by a pre-order sweep: each body picks up its parent's acceleration,
// its own mobilizer contribution, and the velocity-dependent bias increment.
func (sys *System) propagateAccelerations(st *state.State, ac *state.AccelerationCache) error {
	pc, err := st.PositionCache()
	if err != nil {
		return err
	}
	vc, err := st.VelocityCache()
	if err != nil {
		return err
	}
	t := sys.tree

	ac.BodyAcceleration[matter.Ground] = spatial.Vec{}
	for _, i := range t.Order() {
		p := t.Parent(i)
		a := ac.BodyAcceleration[p].
			Add(vc.BodyBiasAccel[i]).
			Sub(vc.BodyBiasAccel[p])
		uStart, nu := t.URange(i)
		for j := 0; j < nu; j++ {
			a = a.Add(pc.Subspace[i][j].Scale(ac.UDot[uStart+j]))
		}
		ac.BodyAcceleration[i] = a
	}
	return nil
}
