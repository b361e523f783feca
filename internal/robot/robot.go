// Package robot owns the robot's mechanisms and the tasks that run them.
//
// A Robot is built once per process. The control task steps the lift and
// MGL position controllers every poll period; the operator task reads the
// joystick at the same rate and only ever moves targets, which the
// controllers share with it through their target stores.
package robot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/robart/internal/auton"
	"github.com/san-kum/robart/internal/config"
	"github.com/san-kum/robart/internal/hw"
	"github.com/san-kum/robart/internal/pid"
	"github.com/san-kum/robart/internal/sched"
	"github.com/san-kum/robart/internal/teleop"
)

// Axis is one closed-loop mechanism.
type Axis struct {
	Name    string
	Ctrl    *pid.Controller
	Encoder *hw.Encoder

	debug  bool
	latest atomic.Pointer[pid.Terms]
}

// Latest returns the terms of the most recent step.
func (a *Axis) Latest() pid.Terms {
	if t := a.latest.Load(); t != nil {
		return *t
	}
	return pid.Terms{Target: a.Ctrl.Target()}
}

func (a *Axis) step(log logr.Logger) {
	t := a.Ctrl.Step()
	a.latest.Store(&t)
	if a.debug {
		log.V(1).Info("pid", "axis", a.Name,
			"target", t.Target, "pos", t.Position, "drive", t.Drive,
			"p", t.P, "i", t.I, "d", t.D)
	}
}

// Snapshot is the latest state of both axes.
type Snapshot struct {
	Lift pid.Terms
	MGL  pid.Terms
}

type Robot struct {
	cfg   *config.Config
	bus   hw.Bus
	clock sched.Clock
	log   logr.Logger

	Lift *Axis
	MGL  *Axis

	liftMotor  *hw.Lift
	driveTrain *hw.DriveTrain
	claw       *hw.Spinner
	twisty     *hw.Spinner

	Routines *auton.Library
	Selector *auton.Selector
}

// New initializes the IMEs on bus and builds every mechanism. A short IME
// chain is logged and tolerated.
func New(cfg *config.Config, bus hw.Bus, clock sched.Clock, log logr.Logger) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = sched.System
	}
	if err := hw.Init(bus, log); err != nil && !errors.Is(err, hw.ErrIMECount) {
		return nil, err
	}

	r := &Robot{
		cfg:        cfg,
		bus:        bus,
		clock:      clock,
		log:        log,
		liftMotor:  hw.NewLift(bus, log),
		driveTrain: hw.NewDriveTrain(bus, log),
		claw:       hw.NewClaw(bus, log),
		twisty:     hw.NewTwisty(bus, log),
		Routines:   auton.NewLibrary(),
	}

	var err error
	r.Lift, err = newAxis("lift", cfg.Lift, bus, hw.IMELift, r.liftMotor, log)
	if err != nil {
		return nil, err
	}
	r.MGL, err = newAxis("mgl", cfg.MGL, bus, hw.IMEMGL, hw.NewMGL(bus, log), log)
	if err != nil {
		return nil, err
	}

	if err := r.Routines.LoadScripts(cfg.Auton.Scripts); err != nil {
		return nil, err
	}
	r.Selector, err = auton.NewSelector(r.Routines.Names(), cfg.Auton.Routine)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func newAxis(name string, cfg config.AxisConfig, bus hw.Bus, ime int, act pid.Actuator, log logr.Logger) (*Axis, error) {
	enc := hw.NewEncoder(bus, ime, cfg.MaxRevs, log.WithValues("axis", name))
	ctrl, err := pid.New(cfg.PID(), enc, act)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Axis{Name: name, Ctrl: ctrl, Encoder: enc, debug: cfg.Debug}, nil
}

// Step runs one controller step on each axis.
func (r *Robot) Step() {
	r.Lift.step(r.log)
	r.MGL.step(r.log)
}

func (r *Robot) Snapshot() Snapshot {
	return Snapshot{Lift: r.Lift.Latest(), MGL: r.MGL.Latest()}
}

// Period is the control and operator poll period.
func (r *Robot) Period() time.Duration { return r.cfg.PollPeriod.Std() }

func (r *Robot) Clock() sched.Clock { return r.clock }

// LiftDown reports the lift limit switch.
func (r *Robot) LiftDown() bool { return r.liftMotor.IsDown() }

func (r *Robot) Drive(left, right int) { r.driveTrain.Set(left, right) }

func (r *Robot) Claw(d hw.Direction) { r.claw.Set(d) }

func (r *Robot) Twisty(d hw.Direction) { r.twisty.Set(d) }

func (r *Robot) SetLiftTarget(v float64) { r.Lift.Ctrl.SetTarget(v) }

func (r *Robot) SetMGLTarget(v float64) { r.MGL.Ctrl.SetTarget(v) }

func (r *Robot) NudgeLift(delta float64) float64 {
	return r.Lift.Ctrl.TargetStore().Nudge(delta)
}

func (r *Robot) NudgeMGL(delta float64) float64 {
	return r.MGL.Ctrl.TargetStore().Nudge(delta)
}

// Stop zeroes every open-loop motor. The lift and MGL keep holding their
// targets.
func (r *Robot) Stop() {
	r.driveTrain.Set(0, 0)
	r.claw.Set(hw.Stop)
	r.twisty.Set(hw.Stop)
}

// Disable turns the lift and MGL controllers off and steps them once so
// their motors are commanded to zero, then stops the open-loop motors.
// Targets are kept. Call it once the control task has returned.
func (r *Robot) Disable() {
	r.Lift.Ctrl.Disable()
	r.MGL.Ctrl.Disable()
	r.Step()
	r.Stop()
}

// Enable resumes closed-loop control from the held targets.
func (r *Robot) Enable() {
	r.Lift.Ctrl.Enable()
	r.MGL.Ctrl.Enable()
}

// Task is a long running robot activity.
type Task func(ctx context.Context) error

// ControlTask steps both controllers every poll period.
func (r *Robot) ControlTask(ctx context.Context) error {
	return sched.Every(ctx, r.clock, r.Period(), r.log.WithName("control"), func(context.Context) {
		r.Step()
	})
}

// OperatorTask drives the robot from js every poll period.
func (r *Robot) OperatorTask(js teleop.Joystick) Task {
	return func(ctx context.Context) error {
		op := teleop.NewOperator(teleop.Config{
			Threshold:   r.cfg.Teleop.Threshold,
			Tank:        r.cfg.Teleop.Tank,
			LiftRate:    r.cfg.Teleop.LiftRate,
			MGLRate:     r.cfg.Teleop.MGLRate,
			AutonButton: r.cfg.Teleop.AutonButton,
		}, js, r, r.log.WithName("operator"))
		op.OnAuton = func() {
			if err := r.RunAuton(ctx); err != nil && ctx.Err() == nil {
				r.log.Error(err, "autonomous from joystick")
			}
		}
		defer r.Stop()
		return sched.Every(ctx, r.clock, r.Period(), r.log.WithName("operator"), func(context.Context) {
			op.Poll()
		})
	}
}

// AutonTask runs the selected routine once.
func (r *Robot) AutonTask() Task {
	return r.RunAuton
}

// RunAuton runs the currently selected routine.
func (r *Robot) RunAuton(ctx context.Context) error {
	routine, err := r.Routines.Get(r.Selector.Selected())
	if err != nil {
		return err
	}
	defer r.Stop()
	return auton.Run(ctx, r, r.clock, routine, r.log.WithName("auton"))
}

// Run runs tasks together until ctx ends or one of them fails. A task
// returning nil does not stop the others. Cancellation is not an error.
func (r *Robot) Run(ctx context.Context, tasks ...Task) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error { return task(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
