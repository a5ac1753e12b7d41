package integrators

type Euler struct {
	dy []float64
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(f Func, t float64, y []float64, dt float64) ([]float64, error) {
	n := len(y)
	if len(e.dy) != n {
		e.dy = make([]float64, n)
	}
	if err := f(t, y, e.dy); err != nil {
		return nil, err
	}
	result := make([]float64, n)
	for i := range y {
		result[i] = y[i] + dt*e.dy[i]
	}
	return result, nil
}
