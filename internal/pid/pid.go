package pid

import (
	"fmt"
	"math"
	"sync/atomic"
)

const (
	DefaultSaturation       = 127.0
	DefaultMaxIntegralError = 40.0
	DefaultMin              = 0.0
	DefaultMax              = 127.0
)

// Sensor reports the current position in target units.
type Sensor interface {
	Position() float64
}

// Actuator forwards a signed drive command in [-saturation, saturation].
type Actuator interface {
	Drive(power int)
}

// SensorFunc adapts a plain function to Sensor.
type SensorFunc func() float64

func (f SensorFunc) Position() float64 { return f() }

// ActuatorFunc adapts a plain function to Actuator.
type ActuatorFunc func(power int)

func (f ActuatorFunc) Drive(power int) { f(power) }

type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

type Config struct {
	Gains            Gains
	MaxIntegralError float64
	Min              float64
	Max              float64
	Saturation       float64
	Initial          float64
}

// Terms is the breakdown of one control step.
type Terms struct {
	Target   float64
	Position float64
	Error    float64
	Integral float64
	P        float64
	I        float64
	D        float64
	Drive    int
}

func (t Terms) String() string {
	return fmt.Sprintf("targetPos=%.1f, currentPos=%.1f, drive=%d, p=%.1f, i=%.1f, d=%.1f",
		t.Target, t.Position, t.Drive, t.P, t.I, t.D)
}

// Controller is the per-axis control state. Gains are fixed for the
// lifetime of the instance.
type Controller struct {
	gains            Gains
	maxIntegralError float64
	saturation       float64

	sensor   Sensor
	actuator Actuator
	target   *Target
	disabled atomic.Bool

	// touched only by the control task
	lastError float64
	err       float64
	integral  float64
}

func New(cfg Config, sensor Sensor, actuator Actuator) (*Controller, error) {
	if sensor == nil || actuator == nil {
		return nil, ErrNilCollaborator
	}
	if math.IsNaN(cfg.Min) || math.IsNaN(cfg.Max) || cfg.Min > cfg.Max {
		return nil, fmt.Errorf("%w: [%v, %v]", ErrInvalidBounds, cfg.Min, cfg.Max)
	}
	if !(cfg.Saturation > 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidSaturation, cfg.Saturation)
	}
	if math.IsNaN(cfg.MaxIntegralError) || cfg.MaxIntegralError < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidIntegralLimit, cfg.MaxIntegralError)
	}
	return &Controller{
		gains:            cfg.Gains,
		maxIntegralError: cfg.MaxIntegralError,
		saturation:       cfg.Saturation,
		sensor:           sensor,
		actuator:         actuator,
		target:           NewTarget(cfg.Min, cfg.Max, cfg.Initial),
	}, nil
}

// Step runs one control iteration and issues exactly one drive command.
func (c *Controller) Step() Terms {
	target := c.target.Get()
	position := c.sensor.Position()

	if c.disabled.Load() {
		c.actuator.Drive(0)
		return Terms{Target: target, Position: position, Error: c.err, Integral: c.integral}
	}

	c.lastError = c.err
	c.err = target - position

	// accumulate first, then discard when the error is too large for the
	// integral term to be useful
	c.integral += c.err
	if math.Abs(c.err) > c.maxIntegralError {
		c.integral = 0
	}

	derivative := c.err - c.lastError

	t := Terms{
		Target:   target,
		Position: position,
		Error:    c.err,
		Integral: c.integral,
		P:        c.gains.Kp * c.err,
		I:        c.gains.Ki * c.integral,
		D:        c.gains.Kd * derivative,
	}
	t.Drive = c.saturate(t.P + t.I + t.D)

	c.actuator.Drive(t.Drive)
	return t
}

func (c *Controller) saturate(u float64) int {
	if math.IsNaN(u) {
		return 0
	}
	if u > c.saturation {
		u = c.saturation
	} else if u < -c.saturation {
		u = -c.saturation
	}
	return int(u)
}

// SetTarget clamps and stores a new target position.
func (c *Controller) SetTarget(v float64) { c.target.Set(v) }

// Target returns the most recently committed target position.
func (c *Controller) Target() float64 { return c.target.Get() }

// TargetStore exposes the shared target for teleop and autonomous code.
func (c *Controller) TargetStore() *Target { return c.target }

// Disable forces a zero drive on every step without touching the integral.
func (c *Controller) Disable() { c.disabled.Store(true) }

func (c *Controller) Enable() { c.disabled.Store(false) }

func (c *Controller) Enabled() bool { return !c.disabled.Load() }

// Reset clears the error history and integral. Must be called from the
// control task or while it is stopped.
func (c *Controller) Reset() {
	c.integral = 0
	c.err = 0
	c.lastError = 0
}

func (c *Controller) Gains() Gains { return c.gains }

// Error returns the error from the most recent step.
func (c *Controller) Error() float64 { return c.err }

// Integral returns the integral accumulator after the most recent step.
func (c *Controller) Integral() float64 { return c.integral }

// Params returns the controller parameters for display.
func (c *Controller) Params() map[string]float64 {
	min, max := c.target.Bounds()
	return map[string]float64{
		"Kp":               c.gains.Kp,
		"Ki":               c.gains.Ki,
		"Kd":               c.gains.Kd,
		"MaxIntegralError": c.maxIntegralError,
		"Saturation":       c.saturation,
		"Min":              min,
		"Max":              max,
		"Target":           c.target.Get(),
	}
}
