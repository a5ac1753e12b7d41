package matter

import (
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// RealizePosition runs forward position kinematics: a pre-order sweep
// composing each body's parent pose with its across-mobilizer transform.
// Fills body poses, world-frame mass geometry, and the joint motion
// subspace columns. The caller (the system realize ladder) marks the stage.
func (t *Tree) RealizePosition(st *state.State) error {
	if err := t.CheckState(st); err != nil {
		return err
	}
	pc, err := st.UpdPositionCache()
	if err != nil {
		return err
	}
	q := st.Q()

	pc.BodyTransform[Ground] = spatial.Transform{}
	pc.MobilizerTransform[Ground] = spatial.Transform{}
	pc.Subspace[Ground] = nil

	for _, i := range t.order {
		b := &t.bodies[i]
		qi := q[b.qStart : b.qStart+b.nq]

		xGF := pc.BodyTransform[b.parent].Compose(b.inboard)
		xFM := b.mob.acrossTransform(qi)
		xGM := xGF.Compose(xFM)
		xGB := xGM.Compose(b.outboard.Inverse())

		pc.MobilizerTransform[i] = xFM
		pc.BodyTransform[i] = xGB
		pc.BodyCOM[i] = xGB.ApplyToPoint(b.props.COM)
		pc.BodyInertia[i] = b.comInertia.ReExpress(xGB.R)

		// Convert the local subspace columns (inboard frame, about the
		// M origin) into ground Plucker coordinates about the origin.
		if pc.Subspace[i] == nil {
			pc.Subspace[i] = make([]spatial.Vec, b.nu)
		}
		pM := xGM.P
		for j := 0; j < b.nu; j++ {
			local := b.mob.subspaceColumn(qi, j)
			w := xGF.R.Apply(local.Ang)
			v := xGF.R.Apply(local.Lin)
			pc.Subspace[i][j] = spatial.Vec{Ang: w, Lin: v.Sub(w.Cross(pM))}
		}
	}
	return nil
}

// RealizeVelocity runs forward velocity kinematics: each body's spatial
// velocity is its parent's plus the across-mobilizer contribution, and the
// zero-udot bias acceleration picks up the moving-frame cross term.
// Requires Position.
func (t *Tree) RealizeVelocity(st *state.State) error {
	if err := t.CheckState(st); err != nil {
		return err
	}
	vc, err := st.UpdVelocityCache()
	if err != nil {
		return err
	}
	pc, err := st.PositionCache()
	if err != nil {
		return err
	}
	q, u := st.Q(), st.U()

	vc.BodyVelocity[Ground] = spatial.Vec{}
	vc.MobilizerVelocity[Ground] = spatial.Vec{}
	vc.BodyBiasAccel[Ground] = spatial.Vec{}

	for _, i := range t.order {
		b := &t.bodies[i]
		ui := u[b.uStart : b.uStart+b.nu]

		var vJ spatial.Vec
		for j := 0; j < b.nu; j++ {
			vJ = vJ.Add(pc.Subspace[i][j].Scale(ui[j]))
		}

		vParent := vc.BodyVelocity[b.parent]
		vc.BodyVelocity[i] = vParent.Add(vJ)
		mobV := b.mob.acrossVelocity(q[b.qStart:b.qStart+b.nq], ui)
		vc.MobilizerVelocity[i] = mobV

		// Translation coordinates ride the inboard frame, so the column
		// pivot moves with the joint: the zero-udot bias gains a
		// joint-level v_M x w_J term beyond the moving-parent cross term.
		xGF := pc.BodyTransform[b.parent].Compose(b.inboard)
		wJ := xGF.R.Apply(mobV.Ang)
		vM := xGF.R.Apply(mobV.Lin)
		vc.BodyBiasAccel[i] = vc.BodyBiasAccel[b.parent].
			Add(spatial.CrossMotion(vParent, vJ)).
			Add(spatial.Vec{Lin: vM.Cross(wJ)})
	}
	return nil
}
