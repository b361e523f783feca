package hw

import "github.com/go-logr/logr"

// port and sign of one motor in a group
type wiring struct {
	port int
	sign int
}

type group struct {
	bus   Bus
	ports []wiring
	log   logr.Logger
}

func (g group) set(power int) {
	power = clampPower(power)
	for _, w := range g.ports {
		if err := g.bus.MotorSet(w.port, w.sign*power); err != nil {
			g.log.Error(err, "setting motor", "port", w.port)
		}
	}
}

// Lift drives the four lift motors. Downward power is refused while the
// lift sits on its limit switch.
type Lift struct {
	group
}

func NewLift(bus Bus, log logr.Logger) *Lift {
	return &Lift{group{
		bus: bus,
		ports: []wiring{
			{PortLiftBL, 1}, {PortLiftTL, 1},
			{PortLiftBR, -1}, {PortLiftTR, -1},
		},
		log: log,
	}}
}

func (l *Lift) Drive(power int) {
	if power < 0 && l.IsDown() {
		power = 0
	}
	l.set(power)
}

// IsDown reports whether the limit switch is pressed. Read errors count as
// not down so the lift is never locked out by a flaky pin.
func (l *Lift) IsDown() bool {
	high, err := l.bus.DigitalRead(PinLiftLimit)
	if err != nil {
		l.log.Error(err, "reading lift limit switch")
		return false
	}
	return !high
}

// MGL drives the mobile-goal-lift pair.
type MGL struct {
	group
}

func NewMGL(bus Bus, log logr.Logger) *MGL {
	return &MGL{group{
		bus:   bus,
		ports: []wiring{{PortMGLLeft, 1}, {PortMGLRight, -1}},
		log:   log,
	}}
}

func (m *MGL) Drive(power int) { m.set(power) }

// DriveTrain is the tank drive base. Positive is forward on both sides.
type DriveTrain struct {
	left, right group
}

func NewDriveTrain(bus Bus, log logr.Logger) *DriveTrain {
	return &DriveTrain{
		left:  group{bus: bus, ports: []wiring{{PortDriveLeft, 1}}, log: log},
		right: group{bus: bus, ports: []wiring{{PortDriveRight, -1}}, log: log},
	}
}

func (d *DriveTrain) SetLeft(speed int)  { d.left.set(speed) }
func (d *DriveTrain) SetRight(speed int) { d.right.set(speed) }

func (d *DriveTrain) Set(left, right int) {
	d.SetLeft(left)
	d.SetRight(right)
}

// Spinner is a single open-loop motor driven by direction at a fixed speed,
// used for the claw and the twisty wrist.
type Spinner struct {
	group
	speed int
}

func NewClaw(bus Bus, log logr.Logger) *Spinner {
	return &Spinner{group{bus: bus, ports: []wiring{{PortClaw, 1}}, log: log}, ClawSpeed}
}

func NewTwisty(bus Bus, log logr.Logger) *Spinner {
	return &Spinner{group{bus: bus, ports: []wiring{{PortTwisty, 1}}, log: log}, TwistySpeed}
}

func (s *Spinner) Set(d Direction) {
	s.set(d.speed(s.speed, -s.speed))
}
