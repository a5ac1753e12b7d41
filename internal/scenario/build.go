package scenario

import (
	"fmt"

	"github.com/linkage-sim/linkage/internal/driver"
	"github.com/linkage-sim/linkage/internal/dynamics"
	"github.com/linkage-sim/linkage/internal/forces"
	"github.com/linkage-sim/linkage/internal/integrators"
	"github.com/linkage-sim/linkage/internal/matter"
	"github.com/linkage-sim/linkage/internal/spatial"
	"github.com/linkage-sim/linkage/internal/state"
)

// GroundName is the reserved parent name for the fixed frame.
const GroundName = "ground"

// Scenario is a built, ready-to-run system with its initial state.
type Scenario struct {
	Config     *Config
	System     *dynamics.System
	State      *state.State
	Integrator integrators.Integrator
	Run        driver.Config

	bodies map[string]matter.BodyIndex
}

// BodyByName resolves a configured body name to its tree index.
func (s *Scenario) BodyByName(name string) (matter.BodyIndex, error) {
	if name == GroundName {
		return matter.Ground, nil
	}
	b, ok := s.bodies[name]
	if !ok {
		return 0, fmt.Errorf("scenario: unknown body %q", name)
	}
	return b, nil
}

// NewIntegrator resolves an integrator name.
func NewIntegrator(name string) (integrators.Integrator, error) {
	switch name {
	case "euler":
		return integrators.NewEuler(), nil
	case "rk4", "":
		return integrators.NewRK4(), nil
	case "rk45":
		return integrators.NewRK45(), nil
	default:
		return nil, fmt.Errorf("scenario: unknown integrator %q", name)
	}
}

// Integrators lists the registered integrator names.
func Integrators() []string {
	return []string{"euler", "rk4", "rk45"}
}

func mobilizerKind(name string) (matter.MobilizerKind, error) {
	switch name {
	case "weld":
		return matter.Weld, nil
	case "pin":
		return matter.Pin, nil
	case "free":
		return matter.Free, nil
	default:
		return 0, fmt.Errorf("scenario: unknown mobilizer %q", name)
	}
}

// Build assembles the configured system, freezes its topology, and seeds the
// initial coordinates and speeds.
func Build(cfg *Config) (*Scenario, error) {
	if len(cfg.Bodies) == 0 {
		return nil, fmt.Errorf("scenario: no bodies configured")
	}
	sys := dynamics.NewSystem()
	bodies := make(map[string]matter.BodyIndex, len(cfg.Bodies))
	resolve := func(name string) (matter.BodyIndex, error) {
		if name == GroundName || name == "" {
			return matter.Ground, nil
		}
		b, ok := bodies[name]
		if !ok {
			return 0, fmt.Errorf("scenario: unknown body %q", name)
		}
		return b, nil
	}

	for _, bc := range cfg.Bodies {
		if bc.Name == "" || bc.Name == GroundName {
			return nil, fmt.Errorf("scenario: body needs a name other than %q", GroundName)
		}
		if _, dup := bodies[bc.Name]; dup {
			return nil, fmt.Errorf("scenario: duplicate body %q", bc.Name)
		}
		parent, err := resolve(bc.Parent)
		if err != nil {
			return nil, fmt.Errorf("scenario: body %q: %w", bc.Name, err)
		}
		kind, err := mobilizerKind(bc.Mobilizer)
		if err != nil {
			return nil, fmt.Errorf("scenario: body %q: %w", bc.Name, err)
		}
		inboard, err := bc.Inboard.transform()
		if err != nil {
			return nil, fmt.Errorf("scenario: body %q inboard: %w", bc.Name, err)
		}
		outboard, err := bc.Outboard.transform()
		if err != nil {
			return nil, fmt.Errorf("scenario: body %q outboard: %w", bc.Name, err)
		}
		props := spatial.MassProperties{
			Mass:    bc.Mass,
			COM:     bc.COM.R3(),
			Inertia: spatial.NewPrincipalInertia(bc.Inertia[0], bc.Inertia[1], bc.Inertia[2]),
		}
		idx, err := sys.Matter().AddBody(parent, inboard, props, outboard, kind)
		if err != nil {
			return nil, fmt.Errorf("scenario: body %q: %w", bc.Name, err)
		}
		bodies[bc.Name] = idx
	}

	for i, cc := range cfg.Constraints {
		bodyA, err := resolve(cc.BodyA)
		if err != nil {
			return nil, fmt.Errorf("scenario: constraint %d: %w", i, err)
		}
		bodyB, err := resolve(cc.BodyB)
		if err != nil {
			return nil, fmt.Errorf("scenario: constraint %d: %w", i, err)
		}
		switch cc.Type {
		case "ball":
			_, err = sys.Constraints().AddBall(bodyA, cc.PointA.R3(), bodyB, cc.PointB.R3())
		case "constant_angle":
			if cc.Angle != nil {
				_, err = sys.Constraints().AddConstantAngleAt(bodyA, cc.AxisA.R3(), bodyB, cc.AxisB.R3(), *cc.Angle)
			} else {
				_, err = sys.Constraints().AddConstantAngle(bodyA, cc.AxisA.R3(), bodyB, cc.AxisB.R3())
			}
		default:
			return nil, fmt.Errorf("scenario: constraint %d: unknown type %q", i, cc.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("scenario: constraint %d: %w", i, err)
		}
	}

	if g := cfg.Gravity.R3(); g.Norm() > 0 {
		sys.Forces().Add(forces.NewUniformGravity(g))
	}
	for _, dc := range cfg.Dampers {
		sys.Forces().Add(forces.NewMobilityDamper(dc.Mobility, dc.C))
	}

	st, err := sys.RealizeTopology()
	if err != nil {
		return nil, err
	}

	for _, bc := range cfg.Bodies {
		idx := bodies[bc.Name]
		if len(bc.Q) > 0 {
			start, n := sys.Matter().QRange(idx)
			if len(bc.Q) != n {
				return nil, fmt.Errorf("scenario: body %q: %d coordinates, mobilizer wants %d", bc.Name, len(bc.Q), n)
			}
			for j, v := range bc.Q {
				st.SetOneQ(start+j, v)
			}
		}
		if len(bc.U) > 0 {
			start, n := sys.Matter().URange(idx)
			if len(bc.U) != n {
				return nil, fmt.Errorf("scenario: body %q: %d speeds, mobilizer wants %d", bc.Name, len(bc.U), n)
			}
			for j, v := range bc.U {
				st.SetOneU(start+j, v)
			}
		}
	}
	sys.Matter().NormalizeQ(st.Q())

	ig, err := NewIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	return &Scenario{
		Config:     cfg,
		System:     sys,
		State:      st,
		Integrator: ig,
		Run: driver.Config{
			Duration:      cfg.Run.Duration,
			Dt:            cfg.Run.Dt,
			Adaptive:      cfg.Run.Adaptive,
			Tolerance:     cfg.Run.Tolerance,
			ValidateState: cfg.Run.ValidateState,
		},
		bodies: bodies,
	}, nil
}
