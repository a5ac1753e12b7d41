package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vec is a spatial 6-vector: a rotational 3-vector paired with a
// translational 3-vector. For a velocity, Ang is the angular velocity and
// Lin the linear velocity of the body-fixed point at the pivot. For a force,
// Lin is the force and Ang the moment about the pivot. Both parts are
// expressed in the same reference frame.
type Vec struct {
	Ang r3.Vector
	Lin r3.Vector
}

func (v Vec) Add(o Vec) Vec {
	return Vec{Ang: v.Ang.Add(o.Ang), Lin: v.Lin.Add(o.Lin)}
}

func (v Vec) Sub(o Vec) Vec {
	return Vec{Ang: v.Ang.Sub(o.Ang), Lin: v.Lin.Sub(o.Lin)}
}

func (v Vec) Scale(f float64) Vec {
	return Vec{Ang: v.Ang.Mul(f), Lin: v.Lin.Mul(f)}
}

func (v Vec) Neg() Vec {
	return v.Scale(-1)
}

func (v Vec) Norm() float64 {
	return math.Sqrt(v.Ang.Norm2() + v.Lin.Norm2())
}

// IsValid reports whether all components are finite.
func (v Vec) IsValid() bool {
	for _, f := range [6]float64{v.Ang.X, v.Ang.Y, v.Ang.Z, v.Lin.X, v.Lin.Y, v.Lin.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Dot pairs a motion with a force: the result is the power (or virtual work
// rate) w·n + v·f.
func Dot(motion, force Vec) float64 {
	return motion.Ang.Dot(force.Ang) + motion.Lin.Dot(force.Lin)
}

// ShiftVelocity re-pivots a spatial velocity from point P to point P+r on
// the same rigid body. The angular part is unchanged; the linear part picks
// up the w x r term. Shifting by r and then by -r is an identity.
func ShiftVelocity(v Vec, r r3.Vector) Vec {
	return Vec{Ang: v.Ang, Lin: v.Lin.Add(v.Ang.Cross(r))}
}

// ShiftForce re-pivots a spatial force from point P to point P+r on the same
// rigid body. The force is unchanged; the moment loses the r x f term.
// Shifting by r and then by -r is an identity.
func ShiftForce(f Vec, r r3.Vector) Vec {
	return Vec{Ang: f.Ang.Sub(r.Cross(f.Lin)), Lin: f.Lin}
}

// ReExpress rotates both components of v into a new reference frame without
// moving the pivot.
func ReExpress(r Rotation, v Vec) Vec {
	return Vec{Ang: r.Apply(v.Ang), Lin: r.Apply(v.Lin)}
}

// CrossMotion is the spatial cross product of two motion vectors sharing a
// pivot: v x m = (w_v x w_m, w_v x lin_m + lin_v x w_m).
func CrossMotion(v, m Vec) Vec {
	return Vec{
		Ang: v.Ang.Cross(m.Ang),
		Lin: v.Ang.Cross(m.Lin).Add(v.Lin.Cross(m.Ang)),
	}
}

// CrossForce is the dual spatial cross product of a motion with a force
// sharing a pivot: v x* f = (w x n + lin x f, w x f).
func CrossForce(v, f Vec) Vec {
	return Vec{
		Ang: v.Ang.Cross(f.Ang).Add(v.Lin.Cross(f.Lin)),
		Lin: v.Ang.Cross(f.Lin),
	}
}
