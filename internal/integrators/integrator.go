package integrators

// Func evaluates the time derivative of a packed state vector y into ydot.
// The two slices never alias; implementations must not retain either.
type Func func(t float64, y []float64, ydot []float64) error

// Integrator advances a packed state vector by one fixed step.
type Integrator interface {
	// Step returns the state at t+dt. The input slice is not modified.
	Step(f Func, t float64, y []float64, dt float64) ([]float64, error)
	Name() string
}

// AdaptiveIntegrator additionally estimates local error and proposes the
// next step size.
type AdaptiveIntegrator interface {
	Integrator
	// StepAdaptive returns the state at t+dt together with the suggested
	// next step size for the given relative tolerance.
	StepAdaptive(f Func, t float64, y []float64, dt, tol float64) ([]float64, float64, error)
}
