package spatial

import "github.com/golang/geo/r3"

// Inertia is a symmetric rotational inertia matrix, expressed in some frame
// about some point.
type Inertia struct {
	XX, YY, ZZ float64
	XY, XZ, YZ float64
}

// NewPrincipalInertia builds a diagonal inertia with the given principal
// moments.
func NewPrincipalInertia(xx, yy, zz float64) Inertia {
	return Inertia{XX: xx, YY: yy, ZZ: zz}
}

func (i Inertia) Add(o Inertia) Inertia {
	return Inertia{
		XX: i.XX + o.XX, YY: i.YY + o.YY, ZZ: i.ZZ + o.ZZ,
		XY: i.XY + o.XY, XZ: i.XZ + o.XZ, YZ: i.YZ + o.YZ,
	}
}

// Mul applies the inertia matrix to a vector.
func (i Inertia) Mul(w r3.Vector) r3.Vector {
	return r3.Vector{
		X: i.XX*w.X + i.XY*w.Y + i.XZ*w.Z,
		Y: i.XY*w.X + i.YY*w.Y + i.YZ*w.Z,
		Z: i.XZ*w.X + i.YZ*w.Y + i.ZZ*w.Z,
	}
}

// ReExpress rotates the inertia into a new frame: R I R^T.
func (i Inertia) ReExpress(r Rotation) Inertia {
	// Columns of R I: apply I to the rows of R^T, i.e. rotate the image of
	// each base axis.
	ex := r.Apply(i.Mul(r.Inverse().Apply(r3.Vector{X: 1})))
	ey := r.Apply(i.Mul(r.Inverse().Apply(r3.Vector{Y: 1})))
	ez := r.Apply(i.Mul(r.Inverse().Apply(r3.Vector{Z: 1})))
	return Inertia{
		XX: ex.X, YY: ey.Y, ZZ: ez.Z,
		XY: ex.Y, XZ: ex.Z, YZ: ey.Z,
	}
}

// ShiftFromCOM translates a COM-centered inertia to the point at offset p
// from the COM (parallel axis theorem).
func (i Inertia) ShiftFromCOM(mass float64, p r3.Vector) Inertia {
	n2 := p.Norm2()
	return Inertia{
		XX: i.XX + mass*(n2-p.X*p.X),
		YY: i.YY + mass*(n2-p.Y*p.Y),
		ZZ: i.ZZ + mass*(n2-p.Z*p.Z),
		XY: i.XY - mass*p.X*p.Y,
		XZ: i.XZ - mass*p.X*p.Z,
		YZ: i.YZ - mass*p.Y*p.Z,
	}
}

// ShiftToCOM translates an inertia taken about a point at offset p from the
// COM back to the COM.
func (i Inertia) ShiftToCOM(mass float64, p r3.Vector) Inertia {
	n2 := p.Norm2()
	return Inertia{
		XX: i.XX - mass*(n2-p.X*p.X),
		YY: i.YY - mass*(n2-p.Y*p.Y),
		ZZ: i.ZZ - mass*(n2-p.Z*p.Z),
		XY: i.XY + mass*p.X*p.Y,
		XZ: i.XZ + mass*p.X*p.Z,
		YZ: i.YZ + mass*p.Y*p.Z,
	}
}

// MassProperties is the mass, center of mass, and rotational inertia of a
// rigid body. COM is measured from the body frame origin in body
// coordinates; Inertia is taken about the body frame origin.
type MassProperties struct {
	Mass    float64
	COM     r3.Vector
	Inertia Inertia
}

// SpatialInertia is a rigid body's 6x6 spatial inertia about a pivot point.
// COM is the center of mass relative to the pivot, Moment the inertia about
// the COM; both expressed in the reference frame of the motions it is
// applied to.
type SpatialInertia struct {
	Mass   float64
	COM    r3.Vector
	Moment Inertia
}

// Apply maps a motion (velocity or acceleration) about the pivot to the
// corresponding momentum or momentum rate about the pivot.
func (si SpatialInertia) Apply(m Vec) Vec {
	lin := m.Lin.Add(m.Ang.Cross(si.COM)).Mul(si.Mass)
	ang := si.Moment.Mul(m.Ang).Add(si.COM.Cross(lin))
	return Vec{Ang: ang, Lin: lin}
}

// Add combines two spatial inertias about the same pivot.
func (si SpatialInertia) Add(o SpatialInertia) SpatialInertia {
	m := si.Mass + o.Mass
	var com r3.Vector
	if m > 0 {
		com = si.COM.Mul(si.Mass).Add(o.COM.Mul(o.Mass)).Mul(1 / m)
	}
	// Re-center each moment on the combined COM.
	ma := si.Moment.ShiftFromCOM(si.Mass, si.COM.Sub(com))
	mb := o.Moment.ShiftFromCOM(o.Mass, o.COM.Sub(com))
	return SpatialInertia{Mass: m, COM: com, Moment: ma.Add(mb)}
}
