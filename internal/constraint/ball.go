package constraint

import (
	"github.com/golang/geo/r3"

	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
)

// ball pins a station on body A to a station on body B: three position
// equations err = pB - pA in ground coordinates.
type ball struct {
	bodyA, bodyB matter.BodyIndex
	// stations in the respective body frames
	pointA, pointB r3.Vector
}

func (ball) numEquations() int { return 3 }

func (c *ball) positionError(ctx *evalContext, out []float64) {
	e := ctx.station(c.bodyB, c.pointB).Sub(ctx.station(c.bodyA, c.pointA))
	out[0], out[1], out[2] = e.X, e.Y, e.Z
}

func (c *ball) velocityError(ctx *evalContext, out []float64) {
	pA := ctx.station(c.bodyA, c.pointA)
	pB := ctx.station(c.bodyB, c.pointB)
	e := ctx.pointVelocity(c.bodyB, pB).Sub(ctx.pointVelocity(c.bodyA, pA))
	out[0], out[1], out[2] = e.X, e.Y, e.Z
}

func (c *ball) jacobian(ctx *evalContext, rows [][]float64) {
	pA := ctx.station(c.bodyA, c.pointA)
	pB := ctx.station(c.bodyB, c.pointB)
	axes := [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}
	for k, axis := range axes {
		ctx.addPointJacobian(c.bodyB, pB, axis, 1, rows[k])
		ctx.addPointJacobian(c.bodyA, pA, axis, -1, rows[k])
	}
}

func (c *ball) accelRHS(ctx *evalContext, out []float64) {
	pA := ctx.station(c.bodyA, c.pointA)
	pB := ctx.station(c.bodyB, c.pointB)
	bias := ctx.pointBiasAccel(c.bodyB, pB).Sub(ctx.pointBiasAccel(c.bodyA, pA))
	out[0], out[1], out[2] = -bias.X, -bias.Y, -bias.Z
}

func (c *ball) appliedForces(ctx *evalContext, lambda []float64, add func(matter.BodyIndex, spatial.Vec)) {
	f := r3.Vector{X: lambda[0], Y: lambda[1], Z: lambda[2]}
	pA := ctx.station(c.bodyA, c.pointA)
	pB := ctx.station(c.bodyB, c.pointB)
	// -J^T lambda: body B feels -f at its station, body A feels +f.
	add(c.bodyB, spatial.Vec{Ang: pB.Cross(f.Mul(-1)), Lin: f.Mul(-1)})
	add(c.bodyA, spatial.Vec{Ang: pA.Cross(f), Lin: f})
}
