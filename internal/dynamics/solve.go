package dynamics

import (
	"gonum.org/v1/gonum/mat"
)

// condLimit is the condition number beyond which a factorization is treated
// as numerically singular.
const condLimit = 1e12

// solveConstrained solves the constrained equations of motion
//
//	M udot + J^T lambda = rhsF
//	J udot              = rhsC
//
// by a Schur complement on the multipliers: factor M once, form
// G = J M^-1 J^T, solve for lambda, then back out udot. A non
// positive-definite M or rank-deficient G is a SingularSystemError.
func solveConstrained(m *mat.SymDense, jac *mat.Dense, nEq int, rhsF, rhsC []float64) (udot, lambda []float64, err error) {
	n := len(rhsF)
	udot = make([]float64, n)
	lambda = make([]float64, nEq)
	if n == 0 {
		return udot, lambda, nil
	}

	var cholM mat.Cholesky
	if ok := cholM.Factorize(m); !ok || cholM.Cond() > condLimit {
		return nil, nil, &SingularSystemError{What: "mass matrix is not positive definite"}
	}

	free := mat.NewVecDense(n, nil)
	if err := cholM.SolveVecTo(free, mat.NewVecDense(n, rhsF)); err != nil {
		return nil, nil, &SingularSystemError{What: "mass matrix solve failed: " + err.Error()}
	}
	if nEq == 0 {
		copy(udot, free.RawVector().Data)
		return udot, lambda, nil
	}

	// X = M^-1 J^T, one column per constraint equation.
	x := mat.NewDense(n, nEq, nil)
	if err := cholM.SolveTo(x, jac.T()); err != nil {
		return nil, nil, &SingularSystemError{What: "mass matrix solve failed: " + err.Error()}
	}

	var g mat.Dense
	g.Mul(jac, x)
	gs := mat.NewSymDense(nEq, nil)
	for r := 0; r < nEq; r++ {
		for c := r; c < nEq; c++ {
			gs.SetSym(r, c, 0.5*(g.At(r, c)+g.At(c, r)))
		}
	}
	var cholG mat.Cholesky
	if ok := cholG.Factorize(gs); !ok || cholG.Cond() > condLimit {
		return nil, nil, &SingularSystemError{What: "constraint Jacobian is rank deficient"}
	}

	// b = J udotFree - rhsC
	b := mat.NewVecDense(nEq, nil)
	b.MulVec(jac, free)
	for i := 0; i < nEq; i++ {
		b.SetVec(i, b.AtVec(i)-rhsC[i])
	}
	lam := mat.NewVecDense(nEq, nil)
	if err := cholG.SolveVecTo(lam, b); err != nil {
		return nil, nil, &SingularSystemError{What: "multiplier solve failed: " + err.Error()}
	}

	// udot = udotFree - X lambda
	corr := mat.NewVecDense(n, nil)
	corr.MulVec(x, lam)
	for i := 0; i < n; i++ {
		udot[i] = free.AtVec(i) - corr.AtVec(i)
	}
	copy(lambda, lam.RawVector().Data)
	return udot, lambda, nil
}
