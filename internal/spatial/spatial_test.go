package spatial

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func vecsClose(t *testing.T, name string, got, want r3.Vector, tol float64) {
	t.Helper()
	if got.Sub(want).Norm() > tol {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func TestRotationApply(t *testing.T) {
	r := NewRotationAboutAxis(r3.Vector{Z: 1}, math.Pi/2)
	got := r.Apply(r3.Vector{X: 1})
	vecsClose(t, "z90 * ex", got, r3.Vector{Y: 1}, 1e-12)
}

func TestRotationComposeInverse(t *testing.T) {
	a := NewRotationAboutAxis(r3.Vector{X: 1}, 0.3)
	b := NewRotationAboutAxis(r3.Vector{Y: 1}, -1.1)
	v := r3.Vector{X: 0.2, Y: -0.7, Z: 1.5}

	ab := a.Mul(b)
	vecsClose(t, "compose", ab.Apply(v), a.Apply(b.Apply(v)), 1e-12)

	round := ab.Inverse().Apply(ab.Apply(v))
	vecsClose(t, "inverse round trip", round, v, 1e-12)
}

func TestRotationAxisAngle(t *testing.T) {
	axis := r3.Vector{X: 1, Y: 2, Z: -0.5}.Normalize()
	r := NewRotationAboutAxis(axis, 0.8)
	gotAxis, gotAngle := r.AxisAngle()
	vecsClose(t, "axis", gotAxis, axis, 1e-12)
	if math.Abs(gotAngle-0.8) > 1e-12 {
		t.Errorf("angle: got %v, want 0.8", gotAngle)
	}
}

func TestRotationZeroValueIsIdentity(t *testing.T) {
	var r Rotation
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	vecsClose(t, "zero rotation", r.Apply(v), v, 0)
}

func TestTransformComposeInverse(t *testing.T) {
	a := NewTransform(NewRotationAboutAxis(r3.Vector{Z: 1}, 0.4), r3.Vector{X: 1, Y: -2})
	b := NewTransform(NewRotationAboutAxis(r3.Vector{X: 1}, -0.9), r3.Vector{Z: 3})
	p := r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}

	vecsClose(t, "compose", a.Compose(b).ApplyToPoint(p), a.ApplyToPoint(b.ApplyToPoint(p)), 1e-12)

	id := a.Compose(a.Inverse())
	vecsClose(t, "inverse translation", id.P, r3.Vector{}, 1e-12)
	vecsClose(t, "inverse rotation", id.R.Apply(p), p, 1e-12)
}

func TestShiftForceIdentity(t *testing.T) {
	f := Vec{Ang: r3.Vector{X: 1, Y: -2, Z: 0.5}, Lin: r3.Vector{X: 3, Y: 0.25, Z: -1}}
	r := r3.Vector{X: 0.7, Y: 1.3, Z: -2.2}

	back := ShiftForce(ShiftForce(f, r), r.Mul(-1))
	if back.Sub(f).Norm() > 1e-12 {
		t.Errorf("shift/unshift force: got %v, want %v", back, f)
	}
}

func TestShiftVelocityIdentity(t *testing.T) {
	v := Vec{Ang: r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}, Lin: r3.Vector{X: -1, Y: 4, Z: 2}}
	r := r3.Vector{X: 2, Y: -1, Z: 0.5}

	back := ShiftVelocity(ShiftVelocity(v, r), r.Mul(-1))
	if back.Sub(v).Norm() > 1e-12 {
		t.Errorf("shift/unshift velocity: got %v, want %v", back, v)
	}
}

func TestReExpressPreservesPower(t *testing.T) {
	// Power is frame independent; re-expressing both vectors must not
	// change it.
	r := NewRotationAboutAxis(r3.Vector{X: 1, Y: 1}, 1.2)
	motion := Vec{Ang: r3.Vector{X: 0.3, Z: -0.4}, Lin: r3.Vector{Y: 2}}
	force := Vec{Ang: r3.Vector{Y: -1}, Lin: r3.Vector{X: 0.5, Z: 3}}

	before := Dot(motion, force)
	after := Dot(ReExpress(r, motion), ReExpress(r, force))
	if math.Abs(before-after) > 1e-12 {
		t.Errorf("power changed under re-expression: %v vs %v", before, after)
	}
}

func TestInertiaShiftRoundTrip(t *testing.T) {
	i := Inertia{XX: 2, YY: 3, ZZ: 4, XY: 0.1, XZ: -0.2, YZ: 0.3}
	p := r3.Vector{X: 0.5, Y: -1, Z: 2}
	mass := 2.5

	back := i.ShiftFromCOM(mass, p).ShiftToCOM(mass, p)
	diff := back.Add(Inertia{
		XX: -i.XX, YY: -i.YY, ZZ: -i.ZZ,
		XY: -i.XY, XZ: -i.XZ, YZ: -i.YZ,
	})
	for _, d := range []float64{diff.XX, diff.YY, diff.ZZ, diff.XY, diff.XZ, diff.YZ} {
		if math.Abs(d) > 1e-12 {
			t.Fatalf("shift round trip: got %+v, want %+v", back, i)
		}
	}
}

func TestSpatialInertiaApply(t *testing.T) {
	// Point mass at the pivot: momentum is just m*v.
	si := SpatialInertia{Mass: 2}
	h := si.Apply(Vec{Lin: r3.Vector{X: 3}})
	vecsClose(t, "point mass momentum", h.Lin, r3.Vector{X: 6}, 1e-12)
	vecsClose(t, "point mass moment", h.Ang, r3.Vector{}, 1e-12)

	// Offset mass spinning about the pivot picks up m*c x v terms.
	si = SpatialInertia{Mass: 1, COM: r3.Vector{X: 1}, Moment: NewPrincipalInertia(1, 1, 1)}
	h = si.Apply(Vec{Ang: r3.Vector{Z: 1}})
	// v_com = w x c = ey, h_ang = I w + c x m v = ez + ex x ey = 2 ez.
	vecsClose(t, "offset momentum", h.Lin, r3.Vector{Y: 1}, 1e-12)
	vecsClose(t, "offset moment", h.Ang, r3.Vector{Z: 2}, 1e-12)
}

func TestSpatialInertiaAdd(t *testing.T) {
	a := SpatialInertia{Mass: 1, COM: r3.Vector{X: 1}}
	b := SpatialInertia{Mass: 1, COM: r3.Vector{X: -1}}
	sum := a.Add(b)

	if math.Abs(sum.Mass-2) > 1e-12 {
		t.Errorf("mass: got %v, want 2", sum.Mass)
	}
	vecsClose(t, "combined COM", sum.COM, r3.Vector{}, 1e-12)
	// Two unit point masses at x = +-1: Iyy = Izz = 2 about the midpoint.
	if math.Abs(sum.Moment.YY-2) > 1e-12 || math.Abs(sum.Moment.ZZ-2) > 1e-12 {
		t.Errorf("combined moment: got %+v", sum.Moment)
	}
}
