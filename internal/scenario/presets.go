package scenario

import (
	"fmt"
	"sort"
)

// presets are ready-made scenarios, keyed by name.
var presets = map[string]func() *Config{
	"pendulum":        pendulumPreset,
	"double-pendulum": doublePendulumPreset,
	"ball-pendulum":   ballPendulumPreset,
}

// Preset returns a named built-in scenario.
func Preset(name string) (*Config, error) {
	fn, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("scenario: unknown preset %q", name)
	}
	return fn(), nil
}

// Presets lists the built-in scenario names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// pendulumPreset is a 1 m, 1 kg rod-end mass swinging on a pin from the
// ground origin, released at 0.5 rad.
func pendulumPreset() *Config {
	cfg := DefaultConfig()
	cfg.Name = "pendulum"
	cfg.Bodies = []BodyConfig{{
		Name:      "link1",
		Parent:    GroundName,
		Mobilizer: "pin",
		Mass:      1,
		COM:       Vec3{0, -1, 0},
		Inertia:   Vec3{1, 0, 1},
		Q:         []float64{0.5},
	}}
	return cfg
}

func doublePendulumPreset() *Config {
	cfg := pendulumPreset()
	cfg.Name = "double-pendulum"
	cfg.Bodies[0].Q = []float64{0.8}
	cfg.Bodies = append(cfg.Bodies, BodyConfig{
		Name:      "link2",
		Parent:    "link1",
		Mobilizer: "pin",
		Mass:      1,
		COM:       Vec3{0, -1, 0},
		Inertia:   Vec3{1, 0, 1},
		Inboard:   FrameConfig{Translation: Vec3{0, -1, 0}},
		Q:         []float64{0.3},
	})
	return cfg
}

// ballPendulumPreset is the pendulum rebuilt from a free body held by a ball
// constraint and two constant-angle constraints, leaving one rotational dof.
func ballPendulumPreset() *Config {
	cfg := DefaultConfig()
	cfg.Name = "ball-pendulum"
	cfg.Bodies = []BodyConfig{{
		Name:      "bob",
		Parent:    GroundName,
		Mobilizer: "free",
		Mass:      1,
		COM:       Vec3{},
		Inertia:   Vec3{0.05, 0.05, 0.05},
		Q:         []float64{1, 0, 0, 0, 0, -1, 0},
	}}
	cfg.Constraints = []ConstraintConfig{
		{Type: "ball", BodyA: GroundName, BodyB: "bob", PointB: Vec3{0, 1, 0}},
		{Type: "constant_angle", BodyA: GroundName, AxisA: Vec3{1, 0, 0}, BodyB: "bob", AxisB: Vec3{0, 0, 1}},
		{Type: "constant_angle", BodyA: GroundName, AxisA: Vec3{0, 1, 0}, BodyB: "bob", AxisB: Vec3{0, 0, 1}},
	}
	return cfg
}
