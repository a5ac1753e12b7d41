package constraint

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
)

// constantAngle fixes the angle between a body-fixed axis on A and one on
// B: a single position equation err = axisA . axisB - cos(angle).
type constantAngle struct {
	bodyA, bodyB matter.BodyIndex
	// unit axes in the respective body frames
	axisA, axisB r3.Vector
	angle        float64
}

func (constantAngle) numEquations() int { return 1 }

func (c *constantAngle) axes(ctx *evalContext) (r3.Vector, r3.Vector) {
	return ctx.direction(c.bodyA, c.axisA), ctx.direction(c.bodyB, c.axisB)
}

func (c *constantAngle) positionError(ctx *evalContext, out []float64) {
	a, b := c.axes(ctx)
	out[0] = a.Dot(b) - math.Cos(c.angle)
}

func (c *constantAngle) velocityError(ctx *evalContext, out []float64) {
	a, b := c.axes(ctx)
	n := a.Cross(b)
	wA := ctx.vel.BodyVelocity[c.bodyA].Ang
	wB := ctx.vel.BodyVelocity[c.bodyB].Ang
	out[0] = n.Dot(wA.Sub(wB))
}

func (c *constantAngle) jacobian(ctx *evalContext, rows [][]float64) {
	a, b := c.axes(ctx)
	n := a.Cross(b)
	ctx.addAngularJacobian(c.bodyA, n, 1, rows[0])
	ctx.addAngularJacobian(c.bodyB, n, -1, rows[0])
}

func (c *constantAngle) accelRHS(ctx *evalContext, out []float64) {
	a, b := c.axes(ctx)
	n := a.Cross(b)
	wA := ctx.vel.BodyVelocity[c.bodyA].Ang
	wB := ctx.vel.BodyVelocity[c.bodyB].Ang
	aA := ctx.vel.BodyBiasAccel[c.bodyA].Ang
	aB := ctx.vel.BodyBiasAccel[c.bodyB].Ang
	// d/dt of n = (wA x a) x b + a x (wB x b).
	ndot := wA.Cross(a).Cross(b).Add(a.Cross(wB.Cross(b)))
	out[0] = -(ndot.Dot(wA.Sub(wB)) + n.Dot(aA.Sub(aB)))
}

func (c *constantAngle) appliedForces(ctx *evalContext, lambda []float64, add func(matter.BodyIndex, spatial.Vec)) {
	a, b := c.axes(ctx)
	n := a.Cross(b)
	// -J^T lambda: a pure torque pair about the common normal.
	add(c.bodyA, spatial.Vec{Ang: n.Mul(-lambda[0])})
	add(c.bodyB, spatial.Vec{Ang: n.Mul(lambda[0])})
}
