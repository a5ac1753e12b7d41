package dynamics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/linkage-sim/linkage/internal/state"
)

const (
	assembleTol     = 1e-10
	assembleMaxIter = 50
)

// Assemble adjusts the coordinates in place until every position-level
// constraint is satisfied to tolerance, using damped Newton iterations on the
// minimum-norm correction du = J^T (J J^T)^-1 (-err). Velocities are left
// alone. Fails with ErrAssemblyDiverged when the residual stops shrinking and
// with SingularSystemError when the constraint Jacobian loses rank.
func (sys *System) Assemble(st *state.State) error {
	if err := sys.tree.CheckState(st); err != nil {
		return err
	}
	nEq := sys.constraints.NumEquations()
	if nEq == 0 {
		return sys.Realize(st, state.StagePosition)
	}
	nq, nu := sys.tree.NQ(), sys.tree.NU()

	prev := math.Inf(1)
	for iter := 0; iter < assembleMaxIter; iter++ {
		if err := sys.Realize(st, state.StagePosition); err != nil {
			return err
		}
		errs, err := sys.constraints.CalcPositionError(st)
		if err != nil {
			return err
		}
		norm := 0.0
		for _, e := range errs {
			norm = math.Max(norm, math.Abs(e))
		}
		if norm <= assembleTol {
			return nil
		}
		if norm >= prev {
			return ErrAssemblyDiverged
		}
		prev = norm

		jac, err := sys.constraints.Jacobian(st)
		if err != nil {
			return err
		}
		var g mat.Dense
		g.Mul(jac, jac.T())
		gs := mat.NewSymDense(nEq, nil)
		for r := 0; r < nEq; r++ {
			for c := r; c < nEq; c++ {
				gs.SetSym(r, c, 0.5*(g.At(r, c)+g.At(c, r)))
			}
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(gs); !ok || chol.Cond() > condLimit {
			return &SingularSystemError{What: "assembly Jacobian is rank deficient"}
		}
		w := mat.NewVecDense(nEq, nil)
		negErr := make([]float64, nEq)
		for i, e := range errs {
			negErr[i] = -e
		}
		if err := chol.SolveVecTo(w, mat.NewVecDense(nEq, negErr)); err != nil {
			return &SingularSystemError{What: "assembly solve failed: " + err.Error()}
		}
		du := mat.NewVecDense(nu, nil)
		du.MulVec(jac.T(), w)

		// Map the speed-space correction through the coordinate
		// derivative map at the current configuration.
		dq := make([]float64, nq)
		sys.tree.MapQDot(st.Q(), du.RawVector().Data, dq)
		qNew := make([]float64, nq)
		copy(qNew, st.Q())
		for i := range qNew {
			qNew[i] += dq[i]
		}
		sys.tree.NormalizeQ(qNew)
		st.SetQ(qNew)
	}
	return ErrAssemblyDiverged
}
