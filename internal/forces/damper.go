package forces

import (
	"fmt"

	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// MobilityDamper applies -C * u on a single mobility, the usual viscous
// joint damping.
type MobilityDamper struct {
	Mobility int
	C        float64
}

// NewMobilityDamper builds a damper on the given global mobility index.
func NewMobilityDamper(mobility int, c float64) *MobilityDamper {
	return &MobilityDamper{Mobility: mobility, C: c}
}

// Contribute requires only that u is set; it reads no cached kinematics.
func (d *MobilityDamper) Contribute(_ *matter.Tree, st *state.State, _ []spatial.Vec, mobilityForces []float64) error {
	if d.Mobility < 0 || d.Mobility >= st.NU() {
		return fmt.Errorf("forces: damper mobility %d out of range [0,%d)", d.Mobility, st.NU())
	}
	mobilityForces[d.Mobility] -= d.C * st.U()[d.Mobility]
	return nil
}
