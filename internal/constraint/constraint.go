// Package constraint maintains the algebraic constraint system attached to
// a kinematic tree: position-level residuals, the constraint Jacobian in
// generalized speeds, and the conversion of Lagrange multipliers into
// physical loads.
package constraint

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// Index identifies one constraint within a Set.
type Index int

// element is one constraint instance contributing a fixed number of scalar
// equations. Jacobian rows follow the convention M udot + J^T lambda = f,
// so the force a constraint applies to the bodies is -J^T lambda.
type element interface {
	numEquations() int
	// positionError writes the position-level residual.
	positionError(ctx *evalContext, out []float64)
	// velocityError writes the velocity-level residual d(err)/dt.
	velocityError(ctx *evalContext, out []float64)
	// jacobian adds this element's rows; rows[k] has one entry per
	// generalized speed.
	jacobian(ctx *evalContext, rows [][]float64)
	// accelRHS writes the acceleration-level right hand side, the value
	// J udot must take for the equations to hold at this state.
	accelRHS(ctx *evalContext, out []float64)
	// appliedForces accumulates the spatial force this element applies
	// to each body it touches, for its slice of lambda.
	appliedForces(ctx *evalContext, lambda []float64, add func(b matter.BodyIndex, f spatial.Vec))
}

// evalContext bundles the realized kinematics an element evaluates against.
type evalContext struct {
	tree *matter.Tree
	st   *state.State
	pos  *state.PositionCache
	vel  *state.VelocityCache // nil below Velocity stage
}

// station resolves a body-fixed point to ground coordinates.
func (c *evalContext) station(b matter.BodyIndex, p r3.Vector) r3.Vector {
	return c.pos.BodyTransform[b].ApplyToPoint(p)
}

// direction resolves a body-fixed unit vector to ground coordinates.
func (c *evalContext) direction(b matter.BodyIndex, v r3.Vector) r3.Vector {
	return c.pos.BodyTransform[b].R.Apply(v)
}

// pointVelocity is the ground-frame velocity of the body-fixed material
// point currently at world position p.
func (c *evalContext) pointVelocity(b matter.BodyIndex, p r3.Vector) r3.Vector {
	v := c.vel.BodyVelocity[b]
	return v.Lin.Add(v.Ang.Cross(p))
}

// pointBiasAccel is the classical acceleration of the material point at
// world position p when all generalized accelerations are zero.
func (c *evalContext) pointBiasAccel(b matter.BodyIndex, p r3.Vector) r3.Vector {
	v := c.vel.BodyVelocity[b]
	a := c.vel.BodyBiasAccel[b]
	vp := v.Lin.Add(v.Ang.Cross(p))
	return a.Lin.Add(a.Ang.Cross(p)).Add(v.Ang.Cross(vp))
}

// addPointJacobian adds scale * (row of the material-point velocity
// Jacobian) projected on dir into row.
func (c *evalContext) addPointJacobian(b matter.BodyIndex, p, dir r3.Vector, scale float64, row []float64) {
	// Subspace columns are valid here by construction; ignore the error.
	_ = c.tree.VisitBodyJacobian(c.st, b, func(u int, col spatial.Vec) {
		row[u] += scale * dir.Dot(col.Lin.Add(col.Ang.Cross(p)))
	})
}

// addAngularJacobian adds scale * (row of the angular velocity Jacobian)
// projected on dir into row.
func (c *evalContext) addAngularJacobian(b matter.BodyIndex, dir r3.Vector, scale float64, row []float64) {
	_ = c.tree.VisitBodyJacobian(c.st, b, func(u int, col spatial.Vec) {
		row[u] += scale * dir.Dot(col.Ang)
	})
}

func checkBody(t *matter.Tree, op string, b matter.BodyIndex) error {
	if b < 0 || int(b) >= t.NumBodies() {
		return &matter.TopologyError{Op: op, Detail: fmt.Sprintf("body index %d out of range", b)}
	}
	return nil
}
