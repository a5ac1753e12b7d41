package driver

import (
	"context"
	"fmt"
	"math"

	"github.com/linkage-sim/linkage/internal/dynamics"
	"github.com/linkage-sim/linkage/internal/integrators"
	"github.com/linkage-sim/linkage/internal/state"
)

// Config controls one simulation run.
type Config struct {
	Duration      float64
	Dt            float64
	Adaptive      bool
	Tolerance     float64
	ValidateState bool
}

// Frame is one recorded trajectory sample.
type Frame struct {
	Time float64
	Q    []float64
	U    []float64
}

// Result is the recorded trajectory plus run bookkeeping.
type Result struct {
	Frames      []Frame
	Metrics     map[string]float64
	StepsTaken  int
	EnergyDrift float64
	Errors      []error
}

// StepError marks a step the driver had to abandon.
type StepError struct {
	Time    float64
	Step    int
	Message string
}

func (e StepError) Error() string {
	return fmt.Sprintf("driver: step %d at t=%.6f: %s", e.Step, e.Time, e.Message)
}

// Driver advances a multibody system through time, feeding the packed
// [q, u] vector to an integrator and keeping the state's coordinates
// normalized between steps.
type Driver struct {
	sys        *dynamics.System
	integrator integrators.Integrator
	metrics    []Metric
	observers  []Observer
}

func New(sys *dynamics.System, integrator integrators.Integrator) *Driver {
	return &Driver{
		sys:        sys,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (d *Driver) AddMetric(m Metric)     { d.metrics = append(d.metrics, m) }
func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

func (d *Driver) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("driver: dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("driver: duration must be positive, got %f", cfg.Duration)
	}
	if cfg.Adaptive && cfg.Tolerance <= 0 {
		return fmt.Errorf("driver: tolerance must be positive for adaptive stepping")
	}
	return nil
}

// Run simulates from the state's current coordinates for cfg.Duration,
// assembling onto the constraint manifold first. The state is left at the
// final time. Cancelling the context returns the partial result with the
// context's error.
func (d *Driver) Run(ctx context.Context, st *state.State, cfg Config) (*Result, error) {
	if err := d.validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := d.sys.Assemble(st); err != nil {
		return nil, err
	}

	tree := d.sys.Matter()
	nq, nu := tree.NQ(), tree.NU()

	y := make([]float64, nq+nu)
	copy(y[:nq], st.Q())
	copy(y[nq:], st.U())

	f := func(t float64, y []float64, ydot []float64) error {
		st.SetTime(t)
		st.SetQ(y[:nq])
		st.SetU(y[nq:])
		qdot, udot, err := d.sys.EvaluateDerivatives(st)
		if err != nil {
			return err
		}
		copy(ydot[:nq], qdot)
		copy(ydot[nq:], udot)
		return nil
	}

	steps := int(cfg.Duration / cfg.Dt)
	result := &Result{
		Frames:  make([]Frame, 0, steps+1),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}
	for _, m := range d.metrics {
		m.Reset()
	}

	t := 0.0
	dt := cfg.Dt

	if err := d.syncState(st, t, y, nq); err != nil {
		return nil, err
	}
	initialEnergy, err := d.sys.CalcEnergy(st)
	if err != nil {
		return nil, err
	}
	result.Frames = append(result.Frames, newFrame(t, y, nq))
	d.notify(t, st)

	for i := 0; ; i++ {
		if cfg.Adaptive {
			if t >= cfg.Duration-1e-12 {
				break
			}
			if t+dt > cfg.Duration {
				dt = cfg.Duration - t
			}
		} else if i >= steps {
			break
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var yNew []float64
		var stepErr error
		taken := dt
		if cfg.Adaptive {
			yNew, dt, stepErr = d.adaptiveStep(f, t, y, taken, cfg)
		} else {
			yNew, stepErr = d.integrator.Step(f, t, y, taken)
		}
		if stepErr != nil {
			result.Errors = append(result.Errors, stepErr)
			break
		}

		tree.NormalizeQ(yNew[:nq])

		t += taken
		y = yNew
		result.StepsTaken++

		if err := d.syncState(st, t, y, nq); err != nil {
			return result, err
		}
		if cfg.ValidateState && !st.IsValid() {
			result.Errors = append(result.Errors, StepError{Time: t, Step: i, Message: "invalid state (NaN/Inf)"})
			break
		}

		for _, m := range d.metrics {
			m.Observe(t, st)
		}
		d.notify(t, st)
		result.Frames = append(result.Frames, newFrame(t, y, nq))
	}

	finalEnergy, err := d.sys.CalcEnergy(st)
	if err != nil {
		return result, err
	}
	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(finalEnergy-initialEnergy) / math.Abs(initialEnergy)
	}
	for _, m := range d.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

// syncState writes the packed vector into the state and realizes through
// Velocity so metrics and observers see consistent kinematics.
func (d *Driver) syncState(st *state.State, t float64, y []float64, nq int) error {
	st.SetTime(t)
	st.SetQ(y[:nq])
	st.SetU(y[nq:])
	return d.sys.Realize(st, state.StageVelocity)
}

func (d *Driver) notify(t float64, st *state.State) {
	for _, o := range d.observers {
		o.OnStep(t, st)
	}
}

func newFrame(t float64, y []float64, nq int) Frame {
	q := make([]float64, nq)
	u := make([]float64, len(y)-nq)
	copy(q, y[:nq])
	copy(u, y[nq:])
	return Frame{Time: t, Q: q, U: u}
}

// adaptiveStep uses the integrator's own error estimate when available and
// falls back to step doubling otherwise.
func (d *Driver) adaptiveStep(f integrators.Func, t float64, y []float64, dt float64, cfg Config) ([]float64, float64, error) {
	if adaptive, ok := d.integrator.(integrators.AdaptiveIntegrator); ok {
		return adaptive.StepAdaptive(f, t, y, dt, cfg.Tolerance)
	}

	full, err := d.integrator.Step(f, t, y, dt)
	if err != nil {
		return nil, 0, err
	}
	half, err := d.integrator.Step(f, t, y, dt/2)
	if err != nil {
		return nil, 0, err
	}
	two, err := d.integrator.Step(f, t+dt/2, half, dt/2)
	if err != nil {
		return nil, 0, err
	}
	errMax := 0.0
	for i := range full {
		errMax = math.Max(errMax, math.Abs(two[i]-full[i]))
	}
	dtNew := dt
	if errMax > cfg.Tolerance {
		dtNew = dt * 0.5
	} else if errMax < cfg.Tolerance/10 {
		dtNew = dt * 2
	}
	return two, dtNew, nil
}
