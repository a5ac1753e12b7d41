package dynamics

import (
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// CalcKineticEnergy sums 1/2 v^T M v over the bodies. Requires Velocity.
func (sys *System) CalcKineticEnergy(st *state.State) (float64, error) {
	pc, err := st.PositionCache()
	if err != nil {
		return 0, err
	}
	vc, err := st.VelocityCache()
	if err != nil {
		return 0, err
	}
	ke := 0.0
	for _, i := range sys.tree.Order() {
		ib := bodySpatialInertia(sys.tree, pc, i)
		v := vc.BodyVelocity[i]
		ke += 0.5 * spatial.Dot(v, ib.Apply(v))
	}
	return ke, nil
}

// CalcPotentialEnergy sums the potential energy of every conservative force
// element. Requires Position.
func (sys *System) CalcPotentialEnergy(st *state.State) (float64, error) {
	return sys.forces.TotalPotentialEnergy(sys.tree, st)
}

// CalcEnergy is the total mechanical energy, kinetic plus potential.
func (sys *System) CalcEnergy(st *state.State) (float64, error) {
	ke, err := sys.CalcKineticEnergy(st)
	if err != nil {
		return 0, err
	}
	pe, err := sys.CalcPotentialEnergy(st)
	if err != nil {
		return 0, err
	}
	return ke + pe, nil
}
