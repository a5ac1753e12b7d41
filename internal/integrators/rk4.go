package integrators

type RK4 struct {
	k1, k2, k3, k4 []float64
	scratch        []float64
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make([]float64, n)
		r.k2 = make([]float64, n)
		r.k3 = make([]float64, n)
		r.k4 = make([]float64, n)
		r.scratch = make([]float64, n)
	}
}

func (r *RK4) Step(f Func, t float64, y []float64, dt float64) ([]float64, error) {
	n := len(y)
	r.ensureScratch(n)

	if err := f(t, y, r.k1); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*0.5*r.k1[i]
	}
	if err := f(t+dt*0.5, r.scratch, r.k2); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*0.5*r.k2[i]
	}
	if err := f(t+dt*0.5, r.scratch, r.k3); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*r.k3[i]
	}
	if err := f(t+dt, r.scratch, r.k4); err != nil {
		return nil, err
	}

	result := make([]float64, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = y[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return result, nil
}
