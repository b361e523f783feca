// Package teleop maps the driver's joystick onto the robot once per poll.
package teleop

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/san-kum/robart/internal/hw"
)

// Joystick axes and button groups of the competition controller.
const (
	AxisRightX = 1
	AxisRightY = 2
	AxisLeftY  = 3
	AxisLeftX  = 4

	GroupLeftTrigger  = 5
	GroupRightTrigger = 6
	GroupLeftPad      = 7
	GroupRightPad     = 8
)

type Button int

const (
	Up Button = iota
	Down
	Left
	Right
)

func (b Button) String() string {
	switch b {
	case Up:
		return "U"
	case Down:
		return "D"
	case Left:
		return "L"
	case Right:
		return "R"
	}
	return "?"
}

type Joystick interface {
	Analog(axis int) int
	Digital(group int, b Button) bool
}

// Robot is what the driver controls. Lift and MGL are closed loop, so the
// driver moves their targets instead of their motors.
type Robot interface {
	Drive(left, right int)
	NudgeLift(delta float64) float64
	NudgeMGL(delta float64) float64
	Claw(d hw.Direction)
	Twisty(d hw.Direction)
}

type Config struct {
	Threshold   int
	Tank        bool
	LiftRate    float64
	MGLRate     float64
	AutonButton bool
}

// Operator applies one joystick poll per Poll call.
type Operator struct {
	cfg   Config
	js    Joystick
	robot Robot
	log   logr.Logger

	// OnAuton runs when the autonomous debug button is pressed. It runs
	// on the polling goroutine and blocks polling until it returns.
	OnAuton func()

	autonHeld bool
}

func NewOperator(cfg Config, js Joystick, robot Robot, log logr.Logger) *Operator {
	return &Operator{cfg: cfg, js: js, robot: robot, log: log}
}

// Poll reads the joystick once and drives every mechanism from it.
func (o *Operator) Poll() {
	o.driveTrain()
	o.lift()
	o.claw()
	o.twisty()
	o.mgl()
	if o.cfg.AutonButton {
		o.auton()
	}
}

func (o *Operator) threshold(v int) int {
	if v > o.cfg.Threshold || -v > o.cfg.Threshold {
		return v
	}
	return 0
}

func (o *Operator) driveTrain() {
	var left, right int
	if o.cfg.Tank {
		left = o.threshold(o.js.Analog(AxisLeftY))
		right = o.threshold(o.js.Analog(AxisRightY))
	} else {
		fwd := o.threshold(o.js.Analog(AxisLeftY))
		turn := o.threshold(o.js.Analog(AxisRightX))
		left, right = fwd+turn, fwd-turn
	}
	o.robot.Drive(left, right)
}

func (o *Operator) lift() {
	d := o.direction(GroupRightTrigger, Up, Down)
	if d != hw.Stop {
		target := o.robot.NudgeLift(float64(d) * o.cfg.LiftRate)
		o.log.V(2).Info("lift target", "target", target)
	}
}

func (o *Operator) mgl() {
	d := o.direction(GroupRightPad, Up, Down)
	if d != hw.Stop {
		target := o.robot.NudgeMGL(float64(d) * o.cfg.MGLRate)
		o.log.V(2).Info("mgl target", "target", target)
	}
}

func (o *Operator) claw() {
	o.robot.Claw(o.direction(GroupLeftTrigger, Up, Down))
}

func (o *Operator) twisty() {
	o.robot.Twisty(o.direction(GroupRightPad, Left, Right))
}

// auton fires once per press of 7L.
func (o *Operator) auton() {
	held := o.js.Digital(GroupLeftPad, Left)
	pressed := held && !o.autonHeld
	o.autonHeld = held
	if pressed && o.OnAuton != nil {
		o.log.Info("autonomous triggered from joystick")
		o.OnAuton()
	}
}

func (o *Operator) direction(group int, up, down Button) hw.Direction {
	return hw.DirectionOf(o.js.Digital(group, up), o.js.Digital(group, down))
}

type buttonKey struct {
	group  int
	button Button
}

// Scripted is a Joystick whose state is set by code.
type Scripted struct {
	mu      sync.Mutex
	analog  map[int]int
	buttons map[buttonKey]bool
}

func NewScripted() *Scripted {
	return &Scripted{
		analog:  make(map[int]int),
		buttons: make(map[buttonKey]bool),
	}
}

func (s *Scripted) Analog(axis int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analog[axis]
}

func (s *Scripted) Digital(group int, b Button) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buttons[buttonKey{group, b}]
}

func (s *Scripted) SetAnalog(axis, v int) {
	s.mu.Lock()
	s.analog[axis] = v
	s.mu.Unlock()
}

func (s *Scripted) Press(group int, b Button) {
	s.mu.Lock()
	s.buttons[buttonKey{group, b}] = true
	s.mu.Unlock()
}

func (s *Scripted) Release(group int, b Button) {
	s.mu.Lock()
	delete(s.buttons, buttonKey{group, b})
	s.mu.Unlock()
}

// Neutral centers the sticks and releases every button.
func (s *Scripted) Neutral() {
	s.mu.Lock()
	s.analog = make(map[int]int)
	s.buttons = make(map[buttonKey]bool)
	s.mu.Unlock()
}
