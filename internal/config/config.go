package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/robart/internal/hw"
	"github.com/san-kum/robart/internal/pid"
	"github.com/san-kum/robart/internal/plant"
)

const (
	DefaultPollPeriod       = 20 * time.Millisecond
	DefaultBaud             = 115200
	DefaultThreshold        = 4
	DefaultLiftRate         = 2.0
	DefaultMGLRate          = 3.0
	DefaultRoutine          = "forward_backward"
	DefaultMaxIntegralError = 40.0
)

var ErrInvalid = errors.New("config: invalid")

// Duration is a time.Duration that reads and writes as "20ms" in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	PollPeriod Duration     `yaml:"poll_period"`
	Serial     SerialConfig `yaml:"serial"`
	Lift       AxisConfig   `yaml:"lift"`
	MGL        AxisConfig   `yaml:"mgl"`
	Teleop     TeleopConfig `yaml:"teleop"`
	Auton      AutonConfig  `yaml:"auton"`
	Plant      plant.Params `yaml:"plant"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
	CRC  bool   `yaml:"crc"`
}

type AxisConfig struct {
	Kp               float64 `yaml:"kp"`
	Ki               float64 `yaml:"ki"`
	Kd               float64 `yaml:"kd"`
	MaxIntegralError float64 `yaml:"max_integral_error"`
	Min              float64 `yaml:"min"`
	Max              float64 `yaml:"max"`
	Saturation       float64 `yaml:"saturation"`
	MaxRevs          float64 `yaml:"max_revs"`
	Debug            bool    `yaml:"debug"`
}

type TeleopConfig struct {
	Threshold   int     `yaml:"threshold"`
	Tank        bool    `yaml:"tank"`
	LiftRate    float64 `yaml:"lift_rate"`
	MGLRate     float64 `yaml:"mgl_rate"`
	AutonButton bool    `yaml:"auton_button"`
}

type AutonConfig struct {
	Routine string   `yaml:"routine"`
	Scripts []string `yaml:"scripts"`
}

func DefaultConfig() *Config {
	return &Config{
		PollPeriod: Duration(DefaultPollPeriod),
		Serial: SerialConfig{
			Baud: DefaultBaud,
			CRC:  true,
		},
		Lift: AxisConfig{
			Kp: 6.0, Ki: 0.005, Kd: 4.0,
			MaxIntegralError: DefaultMaxIntegralError,
			Min:              hw.MinPos,
			Max:              hw.MaxPos,
			Saturation:       hw.MaxPower,
			MaxRevs:          hw.LiftMaxRevs,
		},
		MGL: AxisConfig{
			Kp: 4.0, Ki: 0.005, Kd: 3.0,
			MaxIntegralError: DefaultMaxIntegralError,
			Min:              hw.MinPos,
			Max:              hw.MaxPos,
			Saturation:       hw.MaxPower,
			MaxRevs:          hw.MGLMaxRevs,
		},
		Teleop: TeleopConfig{
			Threshold:   DefaultThreshold,
			Tank:        true,
			LiftRate:    DefaultLiftRate,
			MGLRate:     DefaultMGLRate,
			AutonButton: true,
		},
		Auton: AutonConfig{
			Routine: DefaultRoutine,
		},
		Plant: plant.DefaultParams(),
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver overlays the file at path onto base, so keys missing from the
// file keep base's values.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
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

func (c *Config) Validate() error {
	if c.PollPeriod <= 0 {
		return fmt.Errorf("%w: poll_period must be positive, got %v", ErrInvalid, c.PollPeriod.Std())
	}
	if err := c.Lift.validate("lift"); err != nil {
		return err
	}
	if err := c.MGL.validate("mgl"); err != nil {
		return err
	}
	if c.Teleop.Threshold < 0 {
		return fmt.Errorf("%w: teleop.threshold must not be negative", ErrInvalid)
	}
	return nil
}

func (a AxisConfig) validate(name string) error {
	switch {
	case math.IsNaN(a.Min) || math.IsNaN(a.Max) || a.Min >= a.Max:
		return fmt.Errorf("%w: %s: min must be below max, got [%v, %v]", ErrInvalid, name, a.Min, a.Max)
	case !(a.Saturation > 0) || a.Saturation > hw.MaxPower:
		return fmt.Errorf("%w: %s: saturation must be in (0, %d], got %v", ErrInvalid, name, hw.MaxPower, a.Saturation)
	case math.IsNaN(a.MaxIntegralError) || a.MaxIntegralError < 0:
		return fmt.Errorf("%w: %s: max_integral_error must not be negative", ErrInvalid, name)
	case !(a.MaxRevs > 0):
		return fmt.Errorf("%w: %s: max_revs must be positive", ErrInvalid, name)
	}
	return nil
}

// PID returns the controller configuration of the axis, starting at the
// bottom of its travel.
func (a AxisConfig) PID() pid.Config {
	return pid.Config{
		Gains:            a.Gains(),
		MaxIntegralError: a.MaxIntegralError,
		Min:              a.Min,
		Max:              a.Max,
		Saturation:       a.Saturation,
		Initial:          a.Min,
	}
}

func (a AxisConfig) Gains() pid.Gains {
	return pid.Gains{Kp: a.Kp, Ki: a.Ki, Kd: a.Kd}
}
