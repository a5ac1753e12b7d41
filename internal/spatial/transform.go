package spatial

import "github.com/golang/geo/r3"

// Transform is a rigid transform between two frames: a rotation followed by a
// translation. A Transform X_AB maps points measured in frame B to frame A.
// The zero value is the identity transform.
type Transform struct {
	R Rotation
	P r3.Vector
}

// NewTransform builds a transform from a rotation and a translation.
func NewTransform(r Rotation, p r3.Vector) Transform {
	return Transform{R: r, P: p}
}

// NewTranslation builds a pure translation transform.
func NewTranslation(p r3.Vector) Transform {
	return Transform{P: p}
}

// Compose chains transforms: X_AB.Compose(X_BC) is X_AC.
func (x Transform) Compose(o Transform) Transform {
	return Transform{
		R: x.R.Mul(o.R),
		P: x.P.Add(x.R.Apply(o.P)),
	}
}

// Inverse returns X_BA for a transform X_AB.
func (x Transform) Inverse() Transform {
	ri := x.R.Inverse()
	return Transform{R: ri, P: ri.Apply(x.P).Mul(-1)}
}

// ApplyToPoint maps a point measured in the child frame into the base frame.
func (x Transform) ApplyToPoint(p r3.Vector) r3.Vector {
	return x.P.Add(x.R.Apply(p))
}
