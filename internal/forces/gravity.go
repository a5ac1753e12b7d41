package forces

import (
	"github.com/golang/geo/r3"

	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// UniformGravity applies mass * G at every body's center of mass. Ground is
// skipped.
type UniformGravity struct {
	G r3.Vector
}

// NewUniformGravity builds a gravity element with the given acceleration
// vector, e.g. (0, -9.81, 0).
func NewUniformGravity(g r3.Vector) *UniformGravity {
	return &UniformGravity{G: g}
}

// Contribute requires Position realization.
func (g *UniformGravity) Contribute(t *matter.Tree, st *state.State, bodyForces []spatial.Vec, _ []float64) error {
	pc, err := st.PositionCache()
	if err != nil {
		return err
	}
	for _, b := range t.Order() {
		m := t.MassProperties(b).Mass
		if m == 0 {
			continue
		}
		f := g.G.Mul(m)
		com := pc.BodyCOM[b]
		bodyForces[b] = bodyForces[b].Add(spatial.Vec{Ang: com.Cross(f), Lin: f})
	}
	return nil
}

// PotentialEnergy is -sum(m g . com), zero at the ground origin.
func (g *UniformGravity) PotentialEnergy(t *matter.Tree, st *state.State) (float64, error) {
	pc, err := st.PositionCache()
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, b := range t.Order() {
		m := t.MassProperties(b).Mass
		total -= m * g.G.Dot(pc.BodyCOM[b])
	}
	return total, nil
}
