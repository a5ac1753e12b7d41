package dynamics

import "errors"

// SingularSystemError reports an unsolvable linear system: a non
// positive-definite mass matrix or a rank-deficient (redundant or
// inconsistent) constraint Jacobian. The engine never retries; removing the
// redundancy is the caller's job.
type SingularSystemError struct {
	What string
}

func (e *SingularSystemError) Error() string {
	return "dynamics: singular system: " + e.What
}

// ErrAssemblyDiverged indicates the assembly iteration stopped making
// progress before reaching tolerance.
var ErrAssemblyDiverged = errors.New("dynamics: assembly iteration failed to converge")
