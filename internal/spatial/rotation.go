package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Rotation is a proper orthonormal rotation between two frames, stored as a
// unit quaternion. The zero value is the identity rotation.
type Rotation struct {
	q quat.Number
}

// NewRotation returns the identity rotation.
func NewRotation() Rotation {
	return Rotation{q: quat.Number{Real: 1}}
}

// NewRotationFromQuat normalizes q and wraps it as a Rotation.
func NewRotationFromQuat(q quat.Number) Rotation {
	n := quat.Abs(q)
	if n == 0 {
		return NewRotation()
	}
	return Rotation{q: quat.Scale(1/n, q)}
}

// NewRotationAboutAxis returns the rotation of angle radians about the given
// axis. The axis need not be unit length; a zero axis yields the identity.
func NewRotationAboutAxis(axis r3.Vector, angle float64) Rotation {
	n := axis.Norm()
	if n == 0 {
		return NewRotation()
	}
	s := math.Sin(angle/2) / n
	return Rotation{q: quat.Number{
		Real: math.Cos(angle / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}}
}

func (r Rotation) unit() quat.Number {
	if r.q == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return r.q
}

// Quat returns the underlying unit quaternion.
func (r Rotation) Quat() quat.Number {
	return r.unit()
}

// Apply rotates v.
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	q := r.unit()
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// Mul composes rotations: if r maps frame B to A and o maps C to B, r.Mul(o)
// maps C to A.
func (r Rotation) Mul(o Rotation) Rotation {
	return Rotation{q: quat.Mul(r.unit(), o.unit())}
}

// Inverse returns the reverse rotation.
func (r Rotation) Inverse() Rotation {
	return Rotation{q: quat.Conj(r.unit())}
}

// AxisAngle decomposes the rotation into a unit axis and an angle in
// [0, pi]. The identity rotation reports the z axis and zero angle.
func (r Rotation) AxisAngle() (r3.Vector, float64) {
	q := r.unit()
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	im := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	s := im.Norm()
	if s < 1e-15 {
		return r3.Vector{Z: 1}, 0
	}
	return im.Mul(1 / s), 2 * math.Atan2(s, q.Real)
}

// X returns the rotated frame's x axis expressed in the base frame.
func (r Rotation) X() r3.Vector { return r.Apply(r3.Vector{X: 1}) }

// Y returns the rotated frame's y axis expressed in the base frame.
func (r Rotation) Y() r3.Vector { return r.Apply(r3.Vector{Y: 1}) }

// Z returns the rotated frame's z axis expressed in the base frame.
func (r Rotation) Z() r3.Vector { return r.Apply(r3.Vector{Z: 1}) }
