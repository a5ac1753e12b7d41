package scenario

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/linkage-sim/linkage/internal/spatial"
)

const (
	DefaultDt       = 0.001
	DefaultDuration = 5.0
	DefaultGravityY = -9.81
)

// Vec3 is a 3-vector in YAML flow form, e.g. [0, -9.81, 0].
type Vec3 [3]float64

func (v Vec3) R3() r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// FrameConfig places a mobilizer frame by a translation and an optional
// axis-angle rotation.
type FrameConfig struct {
	Translation Vec3    `yaml:"translation"`
	Axis        Vec3    `yaml:"axis"`
	Angle       float64 `yaml:"angle"`
}

func (f FrameConfig) transform() (spatial.Transform, error) {
	x := spatial.Transform{P: f.Translation.R3()}
	if f.Angle != 0 {
		axis := f.Axis.R3()
		if axis.Norm() == 0 {
			return spatial.Transform{}, fmt.Errorf("scenario: rotated frame needs a non-zero axis")
		}
		x.R = spatial.NewRotationAboutAxis(axis, f.Angle)
	}
	return x, nil
}

// BodyConfig describes one mobilized body. Parent is a previously declared
// body name or "ground". Inertia holds the principal moments about the body
// origin.
type BodyConfig struct {
	Name      string      `yaml:"name"`
	Parent    string      `yaml:"parent"`
	Mobilizer string      `yaml:"mobilizer"`
	Mass      float64     `yaml:"mass"`
	COM       Vec3        `yaml:"com"`
	Inertia   Vec3        `yaml:"inertia"`
	Inboard   FrameConfig `yaml:"inboard"`
	Outboard  FrameConfig `yaml:"outboard"`
	Q         []float64   `yaml:"q,omitempty"`
	U         []float64   `yaml:"u,omitempty"`
}

// ConstraintConfig describes one constraint between two named bodies.
type ConstraintConfig struct {
	Type   string   `yaml:"type"` // ball | constant_angle
	BodyA  string   `yaml:"body_a"`
	PointA Vec3     `yaml:"point_a"`
	AxisA  Vec3     `yaml:"axis_a"`
	BodyB  string   `yaml:"body_b"`
	PointB Vec3     `yaml:"point_b"`
	AxisB  Vec3     `yaml:"axis_b"`
	Angle  *float64 `yaml:"angle"`
}

// DamperConfig attaches viscous damping to a global mobility index.
type DamperConfig struct {
	Mobility int     `yaml:"mobility"`
	C        float64 `yaml:"c"`
}

// RunConfig mirrors the driver run parameters.
type RunConfig struct {
	Dt            float64 `yaml:"dt"`
	Duration      float64 `yaml:"duration"`
	Adaptive      bool    `yaml:"adaptive"`
	Tolerance     float64 `yaml:"tolerance"`
	ValidateState bool    `yaml:"validate_state"`
}

// Config is a complete simulation scenario.
type Config struct {
	Name        string             `yaml:"name"`
	Gravity     Vec3               `yaml:"gravity"`
	Integrator  string             `yaml:"integrator"`
	Run         RunConfig          `yaml:"run"`
	Bodies      []BodyConfig       `yaml:"bodies"`
	Constraints []ConstraintConfig `yaml:"constraints"`
	Dampers     []DamperConfig     `yaml:"dampers"`
}

func DefaultConfig() *Config {
	return &Config{
		Gravity:    Vec3{0, DefaultGravityY, 0},
		Integrator: "rk4",
		Run: RunConfig{
			Dt:            DefaultDt,
			Duration:      DefaultDuration,
			Tolerance:     1e-8,
			ValidateState: true,
		},
	}
}

// Load reads a scenario file, layering it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
