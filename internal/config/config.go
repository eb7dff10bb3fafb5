package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 2.0
	DefaultGravityY = -9.81
)

// Config describes one simulation scenario: the point masses, the
// forces on them, rods between them, and witness planes, plus the run
// parameters.
type Config struct {
	Scenario     string  `yaml:"scenario"`
	Integrator   string  `yaml:"integrator"`
	Dt           float64 `yaml:"dt"`
	Duration     float64 `yaml:"duration"`
	CaptureEvery int     `yaml:"capture_every"`
	Runs         int     `yaml:"runs"`

	Gravity   Vec             `yaml:"gravity"`
	Wind      Vec             `yaml:"wind"`
	Points    []PointConfig   `yaml:"points"`
	Rods      []RodConfig     `yaml:"rods"`
	Witnesses []WitnessConfig `yaml:"witnesses"`
}

type Vec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type PointConfig struct {
	Mass float64 `yaml:"mass"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	VX   float64 `yaml:"vx"`
	VY   float64 `yaml:"vy"`
}

type RodConfig struct {
	A      int     `yaml:"a"`
	B      int     `yaml:"b"`
	Length float64 `yaml:"length"`
}

type WitnessConfig struct {
	Point  int     `yaml:"point"`
	Height float64 `yaml:"height"`
}

func DefaultConfig() *Config {
	return &Config{
		Scenario:   "falling-point",
		Integrator: "rk4",
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Runs:       1,
		Gravity:    Vec{Y: DefaultGravityY},
		Points:     []PointConfig{{Mass: 1, Y: 1}},
		Witnesses:  []WitnessConfig{{Point: 0, Height: 0.5}},
	}
}

// Load reads path over the defaults, so partial files work.
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

// Validate checks cross-references before a system is built from the
// config.
func (c *Config) Validate() error {
	if len(c.Points) == 0 {
		return fmt.Errorf("config: at least one point required")
	}
	if c.Dt <= 0 || c.Duration <= 0 {
		return fmt.Errorf("config: dt and duration must be positive")
	}
	n := len(c.Points)
	for _, rod := range c.Rods {
		if rod.A < 0 || rod.A >= n || rod.B < 0 || rod.B >= n || rod.A == rod.B {
			return fmt.Errorf("config: rod connects invalid points %d-%d", rod.A, rod.B)
		}
		if rod.Length <= 0 {
			return fmt.Errorf("config: rod %d-%d needs positive length", rod.A, rod.B)
		}
	}
	for _, w := range c.Witnesses {
		if w.Point < 0 || w.Point >= n {
			return fmt.Errorf("config: witness on invalid point %d", w.Point)
		}
	}
	return nil
}
