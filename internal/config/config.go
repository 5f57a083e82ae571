package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/integrators"
	"github.com/san-kum/dpend/internal/physics"
	"github.com/san-kum/dpend/internal/sim"
)

const (
	DefaultDt       = 0.04
	DefaultTrail    = 200
	DefaultStrength = 4.0
	DefaultAddr     = ":8080"
)

// DefaultTheta is the starting angle of both links: high up, so the first
// swing already carries plenty of energy.
var DefaultTheta = math.Pi / 1.1

type Config struct {
	Physics         PhysicsConfig   `yaml:"physics"`
	Initial         InitStateConfig `yaml:"initial"`
	Dt              float64         `yaml:"dt"`
	Trail           int             `yaml:"trail"`
	PerturbStrength float64         `yaml:"perturb_strength"`
	Integrator      string          `yaml:"integrator"`
	Tolerance       float64         `yaml:"tolerance"`
	Seed            int64           `yaml:"seed"`
	LogLevel        string          `yaml:"log_level"`
	Addr            string          `yaml:"addr"`
}

type PhysicsConfig struct {
	L1      float64 `yaml:"l1"`
	L2      float64 `yaml:"l2"`
	M1      float64 `yaml:"m1"`
	M2      float64 `yaml:"m2"`
	Gravity float64 `yaml:"gravity"`
}

type InitStateConfig struct {
	Theta1 float64 `yaml:"theta1"`
	Omega1 float64 `yaml:"omega1"`
	Theta2 float64 `yaml:"theta2"`
	Omega2 float64 `yaml:"omega2"`
}

func DefaultConfig() *Config {
	return &Config{
		Physics: PhysicsConfig{
			L1: physics.DefaultLength, L2: physics.DefaultLength,
			M1: physics.DefaultMass, M2: physics.DefaultMass,
			Gravity: physics.DefaultGravity,
		},
		Initial: InitStateConfig{
			Theta1: DefaultTheta,
			Theta2: DefaultTheta,
		},
		Dt:              DefaultDt,
		Trail:           DefaultTrail,
		PerturbStrength: DefaultStrength,
		Integrator:      "rk45",
		Tolerance:       integrators.DefaultTolerance,
		LogLevel:        "info",
		Addr:            DefaultAddr,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
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

// LoadEnv reads .env style files into the process environment. Missing
// files are not an error.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from DPEND_* environment variables.
func (c *Config) ApplyEnv() error {
	var err error
	if c.Dt, err = envFloat("DPEND_DT", c.Dt); err != nil {
		return err
	}
	if c.Trail, err = envInt("DPEND_TRAIL", c.Trail); err != nil {
		return err
	}
	if c.PerturbStrength, err = envFloat("DPEND_STRENGTH", c.PerturbStrength); err != nil {
		return err
	}
	seed, err := envInt("DPEND_SEED", int(c.Seed))
	if err != nil {
		return err
	}
	c.Seed = int64(seed)
	c.LogLevel = getEnv("DPEND_LOG_LEVEL", c.LogLevel)
	c.Addr = getEnv("DPEND_ADDR", c.Addr)
	return nil
}

func (c *Config) Validate() error {
	if err := c.Pendulum().Validate(); err != nil {
		return fmt.Errorf("%w: %w", dynamo.ErrInvalidConfig, err)
	}
	if !c.GetInitState().IsValid() {
		return fmt.Errorf("%w: initial state must be finite, got %v", dynamo.ErrInvalidConfig, c.GetInitState())
	}
	if !(c.Dt > 0) {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrInvalidConfig, c.Dt)
	}
	if c.Trail < 1 {
		return fmt.Errorf("%w: trail must be at least 1, got %d", dynamo.ErrInvalidConfig, c.Trail)
	}
	if c.PerturbStrength < 0 || math.IsNaN(c.PerturbStrength) {
		return fmt.Errorf("%w: perturb_strength must be non-negative, got %f", dynamo.ErrInvalidConfig, c.PerturbStrength)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive, got %g", dynamo.ErrInvalidConfig, c.Tolerance)
	}
	if _, err := integrators.New(c.Integrator); err != nil {
		return fmt.Errorf("%w: %w", dynamo.ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) Pendulum() *physics.DoublePendulum {
	return &physics.DoublePendulum{
		M1: c.Physics.M1, M2: c.Physics.M2,
		L1: c.Physics.L1, L2: c.Physics.L2,
		Gravity: c.Physics.Gravity,
	}
}

func (c *Config) GetInitState() dynamo.State {
	return dynamo.State{c.Initial.Theta1, c.Initial.Omega1, c.Initial.Theta2, c.Initial.Omega2}
}

// EffectiveSeed returns the configured seed, or a time-based one when unset.
func (c *Config) EffectiveSeed() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return time.Now().UnixNano()
}

// Build validates the config and constructs a simulator from it.
func (c *Config) Build(logger *slog.Logger, extra ...sim.Option) (*sim.Simulator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	integ, err := integrators.New(c.Integrator)
	if err != nil {
		return nil, err
	}

	opts := []sim.Option{
		sim.WithIntegrator(integ),
		sim.WithTrail(c.Trail),
		sim.WithPerturbStrength(c.PerturbStrength),
		sim.WithTolerance(c.Tolerance),
		sim.WithSeed(c.EffectiveSeed()),
	}
	if logger != nil {
		opts = append(opts, sim.WithLogger(logger))
	}
	opts = append(opts, extra...)

	return sim.New(c.Pendulum(), c.GetInitState(), opts...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
