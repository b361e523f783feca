// Package auton runs timed autonomous routines.
//
// Drive steps are open loop: the time a move takes is computed from the
// wheel geometry and motor speed in whole milliseconds, the same integer
// arithmetic the robot has always used, so routines tuned on the field keep
// their timing. Lift and MGL steps set a target and let the position
// controllers do the work while the routine waits.
package auton

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/san-kum/robart/internal/hw"
	"github.com/san-kum/robart/internal/sched"
)

// Geometry in 1/16 inch.
const (
	WheelRadius = 32
	BotRadius   = 120

	ClawTime = 150 * time.Millisecond
)

var (
	ErrUnknownRoutine = errors.New("auton: unknown routine")
	ErrInvalidStep    = errors.New("auton: invalid step")
)

type Kind string

const (
	Straight Kind = "straight"
	TurnCW   Kind = "turn_cw"
	TurnCCW  Kind = "turn_ccw"
	StopKind Kind = "stop"
	Lift     Kind = "lift"
	MGL      Kind = "mgl"
	Claw     Kind = "claw"
	Wait     Kind = "wait"
)

// Step is one action of a routine. Which fields apply depends on Kind.
type Step struct {
	Kind      Kind    `yaml:"kind"`
	Distance  int     `yaml:"distance,omitempty"`
	Power     int     `yaml:"power,omitempty"`
	Angle     int     `yaml:"angle,omitempty"`
	Radius    int     `yaml:"radius,omitempty"`
	Target    float64 `yaml:"target,omitempty"`
	Direction string  `yaml:"direction,omitempty"`
	Ms        int     `yaml:"ms,omitempty"`
}

func (s Step) String() string {
	switch s.Kind {
	case Straight:
		return fmt.Sprintf("straight %d at %d", s.Distance, s.Power)
	case TurnCW, TurnCCW:
		return fmt.Sprintf("%s %d° r=%d at %d", s.Kind, s.Angle, s.Radius, s.Power)
	case Lift, MGL:
		return fmt.Sprintf("%s to %.0f, wait %dms", s.Kind, s.Target, s.Ms)
	case Claw:
		return fmt.Sprintf("claw %s", s.Direction)
	case Wait:
		return fmt.Sprintf("wait %dms", s.Ms)
	}
	return string(s.Kind)
}

type Routine struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Robot is what a routine drives.
type Robot interface {
	Drive(left, right int)
	SetLiftTarget(v float64)
	SetMGLTarget(v float64)
	Claw(d hw.Direction)
}

// StraightTime is how long a straight move of distance takes at power.
func StraightTime(distance, power int) time.Duration {
	p := int64(abs(power))
	if p == 0 {
		return 0
	}
	// 2*pi*r*speed with pi=22/7 and speed=5/3 rot/s, folded left to right
	denom := int64(2*WheelRadius) * 5 / 3 * 22 / 7 * p
	return time.Duration(127000*int64(distance)/denom) * time.Millisecond
}

// TurnTime is how long the outer wheel at power takes to sweep angle
// degrees around a point radius from the robot's center.
func TurnTime(angle, radius, power int) time.Duration {
	if power <= 0 {
		return 0
	}
	num := int64(radius+BotRadius) * 3175 * int64(angle)
	denom := int64(WheelRadius) * 5 / 3 * 9 * int64(power)
	return time.Duration(num/denom) * time.Millisecond
}

// InnerPower is the power of the inner wheel for a turn of radius.
func InnerPower(radius, outer int) int {
	return ((radius - BotRadius) * outer) / (radius + BotRadius)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func parseDirection(s string) (hw.Direction, error) {
	switch s {
	case "close", "up":
		return hw.Close, nil
	case "open", "down":
		return hw.Open, nil
	case "stop", "":
		return hw.Stop, nil
	}
	return hw.Stop, fmt.Errorf("%w: unknown direction %q", ErrInvalidStep, s)
}

// Validate checks every step of the routine.
func (r *Routine) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: routine has no name", ErrInvalidStep)
	}
	for i, s := range r.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s step %d: %w", r.Name, i+1, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Kind {
	case Straight:
		if s.Distance < 0 || s.Power == 0 || abs(s.Power) > hw.MaxPower {
			return fmt.Errorf("%w: straight needs distance >= 0 and power in ±1..%d", ErrInvalidStep, hw.MaxPower)
		}
	case TurnCW, TurnCCW:
		if s.Angle < 0 || s.Radius < 0 || s.Power <= 0 || s.Power > hw.MaxPower {
			return fmt.Errorf("%w: %s needs angle, radius >= 0 and power in 1..%d", ErrInvalidStep, s.Kind, hw.MaxPower)
		}
	case Lift, MGL:
		if s.Target < hw.MinPos || s.Target > hw.MaxPos || s.Ms < 0 {
			return fmt.Errorf("%w: %s target must be in %v..%v", ErrInvalidStep, s.Kind, hw.MinPos, hw.MaxPos)
		}
	case Claw:
		if _, err := parseDirection(s.Direction); err != nil {
			return err
		}
	case Wait:
		if s.Ms < 0 {
			return fmt.Errorf("%w: negative wait", ErrInvalidStep)
		}
	case StopKind:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidStep, s.Kind)
	}
	return nil
}

// Run executes the routine step by step. Cancelling ctx stops the drive
// train and returns ctx.Err().
func Run(ctx context.Context, robot Robot, clock sched.Clock, r *Routine, log logr.Logger) error {
	if clock == nil {
		clock = sched.System
	}
	log = log.WithValues("routine", r.Name)
	log.Info("autonomous start", "steps", len(r.Steps))

	for i, s := range r.Steps {
		log.V(1).Info("step", "n", i+1, "step", s.String())
		if err := runStep(ctx, robot, clock, s); err != nil {
			robot.Drive(0, 0)
			if ctx.Err() != nil {
				log.Info("autonomous cancelled", "step", i+1)
			}
			return err
		}
	}
	log.Info("autonomous done")
	return nil
}

func runStep(ctx context.Context, robot Robot, clock sched.Clock, s Step) error {
	switch s.Kind {
	case Straight:
		robot.Drive(s.Power, s.Power)
		return wait(ctx, clock, StraightTime(s.Distance, s.Power))
	case TurnCW:
		robot.Drive(s.Power, InnerPower(s.Radius, s.Power))
		return wait(ctx, clock, TurnTime(s.Angle, s.Radius, s.Power))
	case TurnCCW:
		robot.Drive(InnerPower(s.Radius, s.Power), s.Power)
		return wait(ctx, clock, TurnTime(s.Angle, s.Radius, s.Power))
	case StopKind:
		robot.Drive(0, 0)
	case Lift:
		robot.SetLiftTarget(s.Target)
		return wait(ctx, clock, time.Duration(s.Ms)*time.Millisecond)
	case MGL:
		robot.SetMGLTarget(s.Target)
		return wait(ctx, clock, time.Duration(s.Ms)*time.Millisecond)
	case Claw:
		d, err := parseDirection(s.Direction)
		if err != nil {
			return err
		}
		robot.Claw(d)
		err = wait(ctx, clock, ClawTime)
		robot.Claw(hw.Stop)
		return err
	case Wait:
		return wait(ctx, clock, time.Duration(s.Ms)*time.Millisecond)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidStep, s.Kind)
	}
	return nil
}

func wait(ctx context.Context, clock sched.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
