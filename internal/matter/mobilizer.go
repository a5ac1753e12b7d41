package matter

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/linkage-sim/linkage/internal/spatial"
)

// MobilizerKind selects the joint type connecting a body to its parent.
type MobilizerKind int

const (
	// Weld allows no relative motion (0 dof).
	Weld MobilizerKind = iota
	// Pin allows rotation about the shared z axis of the inboard and
	// outboard frames (1 dof).
	Pin
	// Free allows full rigid relative motion, parametrized by a unit
	// quaternion plus a translation (7 q, 6 u).
	Free
)

var mobilizerNames = map[MobilizerKind]string{Weld: "weld", Pin: "pin", Free: "free"}

func (k MobilizerKind) String() string {
	if n, ok := mobilizerNames[k]; ok {
		return n
	}
	return "unknown"
}

const fitTol = 1e-10

// mobilizer defines the q/u parametrization of one joint. The across-joint
// transform X_FM maps the outboard (M) frame into the inboard (F) frame;
// velocities and subspace columns are expressed in F about the M origin.
type mobilizer interface {
	nq() int
	nu() int
	defaultQ(q []float64)
	acrossTransform(q []float64) spatial.Transform
	acrossVelocity(q, u []float64) spatial.Vec
	subspaceColumn(q []float64, i int) spatial.Vec
	mapQDot(q, u, qdot []float64)
	normalizeQ(q []float64)
	setQFromRotation(b BodyIndex, q []float64, r spatial.Rotation) error
	setQFromTranslation(b BodyIndex, q []float64, p r3.Vector) error
}

func newMobilizer(kind MobilizerKind) mobilizer {
	switch kind {
	case Pin:
		return pinMobilizer{}
	case Free:
		return freeMobilizer{}
	default:
		return weldMobilizer{}
	}
}

type weldMobilizer struct{}

func (weldMobilizer) nq() int                                 { return 0 }
func (weldMobilizer) nu() int                                 { return 0 }
func (weldMobilizer) defaultQ([]float64)                      {}
func (weldMobilizer) acrossTransform([]float64) spatial.Transform {
	return spatial.Transform{}
}
func (weldMobilizer) acrossVelocity(_, _ []float64) spatial.Vec { return spatial.Vec{} }
func (weldMobilizer) subspaceColumn([]float64, int) spatial.Vec { return spatial.Vec{} }
func (weldMobilizer) mapQDot(_, _, _ []float64)                 {}
func (weldMobilizer) normalizeQ([]float64)                      {}

func (weldMobilizer) setQFromRotation(b BodyIndex, _ []float64, r spatial.Rotation) error {
	if _, angle := r.AxisAngle(); math.Abs(angle) > fitTol {
		return &ConfigurationError{Body: b, Detail: "weld mobilizer cannot represent a rotation"}
	}
	return nil
}

func (weldMobilizer) setQFromTranslation(b BodyIndex, _ []float64, p r3.Vector) error {
	if p.Norm() > fitTol {
		return &ConfigurationError{Body: b, Detail: "weld mobilizer cannot represent a translation"}
	}
	return nil
}

type pinMobilizer struct{}

func (pinMobilizer) nq() int            { return 1 }
func (pinMobilizer) nu() int            { return 1 }
func (pinMobilizer) defaultQ(q []float64) { q[0] = 0 }

func (pinMobilizer) acrossTransform(q []float64) spatial.Transform {
	return spatial.Transform{R: spatial.NewRotationAboutAxis(r3.Vector{Z: 1}, q[0])}
}

func (pinMobilizer) acrossVelocity(_, u []float64) spatial.Vec {
	return spatial.Vec{Ang: r3.Vector{Z: u[0]}}
}

func (pinMobilizer) subspaceColumn([]float64, int) spatial.Vec {
	return spatial.Vec{Ang: r3.Vector{Z: 1}}
}

func (pinMobilizer) mapQDot(_, u, qdot []float64) { qdot[0] = u[0] }
func (pinMobilizer) normalizeQ([]float64)         {}

func (pinMobilizer) setQFromRotation(b BodyIndex, q []float64, r spatial.Rotation) error {
	axis, angle := r.AxisAngle()
	if math.Abs(angle) <= fitTol {
		q[0] = 0
		return nil
	}
	if math.Hypot(axis.X, axis.Y) > fitTol {
		return &ConfigurationError{Body: b, Detail: "pin mobilizer can only represent rotation about its z axis"}
	}
	if axis.Z < 0 {
		angle = -angle
	}
	q[0] = angle
	return nil
}

func (pinMobilizer) setQFromTranslation(b BodyIndex, _ []float64, p r3.Vector) error {
	if p.Norm() > fitTol {
		return &ConfigurationError{Body: b, Detail: "pin mobilizer cannot represent a translation"}
	}
	return nil
}

// freeMobilizer stores q as (qw qx qy qz px py pz) and u as the angular
// velocity of M in F followed by the velocity of the M origin, both
// expressed in F.
type freeMobilizer struct{}

func (freeMobilizer) nq() int { return 7 }
func (freeMobilizer) nu() int { return 6 }

func (freeMobilizer) defaultQ(q []float64) {
	q[0], q[1], q[2], q[3] = 1, 0, 0, 0
	q[4], q[5], q[6] = 0, 0, 0
}

func (freeMobilizer) acrossTransform(q []float64) spatial.Transform {
	return spatial.Transform{
		R: spatial.NewRotationFromQuat(quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}),
		P: r3.Vector{X: q[4], Y: q[5], Z: q[6]},
	}
}

func (freeMobilizer) acrossVelocity(_, u []float64) spatial.Vec {
	return spatial.Vec{
		Ang: r3.Vector{X: u[0], Y: u[1], Z: u[2]},
		Lin: r3.Vector{X: u[3], Y: u[4], Z: u[5]},
	}
}

func (freeMobilizer) subspaceColumn(_ []float64, i int) spatial.Vec {
	var axis r3.Vector
	switch i % 3 {
	case 0:
		axis = r3.Vector{X: 1}
	case 1:
		axis = r3.Vector{Y: 1}
	default:
		axis = r3.Vector{Z: 1}
	}
	if i < 3 {
		return spatial.Vec{Ang: axis}
	}
	return spatial.Vec{Lin: axis}
}

func (freeMobilizer) mapQDot(q, u, qdot []float64) {
	// Quaternion kinematics with the angular velocity expressed in the
	// inboard frame: qdot = 0.5 * w ⊗ q.
	w := quat.Number{Imag: u[0], Jmag: u[1], Kmag: u[2]}
	qn := quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
	d := quat.Scale(0.5, quat.Mul(w, qn))
	qdot[0], qdot[1], qdot[2], qdot[3] = d.Real, d.Imag, d.Jmag, d.Kmag
	qdot[4], qdot[5], qdot[6] = u[3], u[4], u[5]
}

func (freeMobilizer) normalizeQ(q []float64) {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n == 0 {
		q[0] = 1
		return
	}
	for i := 0; i < 4; i++ {
		q[i] /= n
	}
}

func (freeMobilizer) setQFromRotation(_ BodyIndex, q []float64, r spatial.Rotation) error {
	qn := r.Quat()
	q[0], q[1], q[2], q[3] = qn.Real, qn.Imag, qn.Jmag, qn.Kmag
	return nil
}

func (freeMobilizer) setQFromTranslation(_ BodyIndex, q []float64, p r3.Vector) error {
	q[4], q[5], q[6] = p.X, p.Y, p.Z
	return nil
}
