package driver

import (
	"math"

	"github.com/linkage-sim/linkage/internal/dynamics"
	"github.com/linkage-sim/linkage/internal/state"
)

// Metric aggregates a scalar over a run. Observe is called after every
// accepted step with the state realized through Velocity.
type Metric interface {
	Name() string
	Observe(t float64, st *state.State)
	Value() float64
	Reset()
}

// EnergyDrift tracks the worst relative deviation of total mechanical energy
// from its value at the first observation.
type EnergyDrift struct {
	sys      *dynamics.System
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(sys *dynamics.System) *EnergyDrift {
	return &EnergyDrift{sys: sys}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(t float64, st *state.State) {
	energy, err := e.sys.CalcEnergy(st)
	if err != nil {
		return
	}
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++
	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}

// ConstraintDrift tracks the worst position-level constraint violation seen
// during a run.
type ConstraintDrift struct {
	sys *dynamics.System
	max float64
}

func NewConstraintDrift(sys *dynamics.System) *ConstraintDrift {
	return &ConstraintDrift{sys: sys}
}

func (c *ConstraintDrift) Name() string { return "constraint_drift" }

func (c *ConstraintDrift) Observe(t float64, st *state.State) {
	errs, err := c.sys.Constraints().CalcPositionError(st)
	if err != nil {
		return
	}
	for _, e := range errs {
		c.max = math.Max(c.max, math.Abs(e))
	}
}

func (c *ConstraintDrift) Value() float64 { return c.max }

func (c *ConstraintDrift) Reset() { c.max = 0 }
