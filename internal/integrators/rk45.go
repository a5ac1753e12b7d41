package integrators

import "math"

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64

	k1, k2, k3, k4, k5, k6, k7 []float64
	scratch                    []float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Name() string { return "rk45" }

func (r *RK45) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make([]float64, n)
		r.k2 = make([]float64, n)
		r.k3 = make([]float64, n)
		r.k4 = make([]float64, n)
		r.k5 = make([]float64, n)
		r.k6 = make([]float64, n)
		r.k7 = make([]float64, n)
		r.scratch = make([]float64, n)
	}
}

func (r *RK45) Step(f Func, t float64, y []float64, dt float64) ([]float64, error) {
	yNew, _, err := r.StepAdaptive(f, t, y, dt, 1e-6)
	return yNew, err
}

func (r *RK45) StepAdaptive(f Func, t float64, y []float64, dt, tol float64) ([]float64, float64, error) {
	n := len(y)
	r.ensureScratch(n)

	if err := f(t, y, r.k1); err != nil {
		return nil, 0, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*b21*r.k1[i]
	}
	if err := f(t+a2*dt, r.scratch, r.k2); err != nil {
		return nil, 0, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*(b31*r.k1[i]+b32*r.k2[i])
	}
	if err := f(t+a3*dt, r.scratch, r.k3); err != nil {
		return nil, 0, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*(b41*r.k1[i]+b42*r.k2[i]+b43*r.k3[i])
	}
	if err := f(t+a4*dt, r.scratch, r.k4); err != nil {
		return nil, 0, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*(b51*r.k1[i]+b52*r.k2[i]+b53*r.k3[i]+b54*r.k4[i])
	}
	if err := f(t+a5*dt, r.scratch, r.k5); err != nil {
		return nil, 0, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = y[i] + dt*(b61*r.k1[i]+b62*r.k2[i]+b63*r.k3[i]+b64*r.k4[i]+b65*r.k5[i])
	}
	if err := f(t+dt, r.scratch, r.k6); err != nil {
		return nil, 0, err
	}

	yNew := make([]float64, n)
	for i := 0; i < n; i++ {
		yNew[i] = y[i] + dt*(c1*r.k1[i]+c3*r.k3[i]+c4*r.k4[i]+c5*r.k5[i]+c6*r.k6[i])
	}

	if err := f(t+dt, yNew, r.k7); err != nil {
		return nil, 0, err
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*r.k1[i] + dc3*r.k3[i] + dc4*r.k4[i] + dc5*r.k5[i] + dc6*r.k6[i] + dc7*r.k7[i])
		scale := math.Abs(y[i]) + math.Abs(dt*r.k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	errRatio := errMax / tol

	var dtNew float64
	if errRatio > 1 {
		scale := math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
		dtNew = dt * scale
	} else {
		if errRatio > 0 {
			scale := math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
			dtNew = dt * scale
		} else {
			dtNew = dt * r.maxScale
		}
	}

	return yNew, dtNew, nil
}
