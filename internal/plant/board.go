package plant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/san-kum/robart/internal/hw"
	"github.com/san-kum/robart/internal/sched"
)

const countsPerRev = hw.CountsPerRevTorque

var (
	DefaultLift = AxisParams{MaxSpeed: 1045, Tau: 0.08, Gravity: 60, Travel: hw.LiftMaxRevs * countsPerRev}
	DefaultMGL  = AxisParams{MaxSpeed: 1045, Tau: 0.06, Gravity: 0, Travel: hw.MGLMaxRevs * countsPerRev}
	DefaultBase = AxisParams{MaxSpeed: 1045, Tau: 0.15}
)

type Params struct {
	Lift  AxisParams `yaml:"lift"`
	MGL   AxisParams `yaml:"mgl"`
	Drive AxisParams `yaml:"drive"`
}

func DefaultParams() Params {
	return Params{Lift: DefaultLift, MGL: DefaultMGL, Drive: DefaultBase}
}

type wire struct {
	port int
	sign float64
}

// simulated motor group with its encoder
type group struct {
	name   string
	axis   *Axis
	wires  []wire
	ime    int
	x      State
	offset float64
}

// Board is an in-memory motor board implementing hw.Bus.
type Board struct {
	mu     sync.Mutex
	motors map[int]int
	groups []*group
	integ  *RK4
	t      float64
	imes   int
}

func NewBoard(p Params) *Board {
	b := &Board{
		motors: make(map[int]int),
		integ:  NewRK4(),
		imes:   hw.IMECount,
	}
	b.groups = []*group{
		{name: "left", axis: NewAxis(p.Drive), ime: hw.IMELeft, wires: []wire{{hw.PortDriveLeft, 1}}},
		{name: "right", axis: NewAxis(p.Drive), ime: hw.IMERight, wires: []wire{{hw.PortDriveRight, -1}}},
		{name: "lift", axis: NewAxis(p.Lift), ime: hw.IMELift, wires: []wire{
			{hw.PortLiftBL, 1}, {hw.PortLiftTL, 1}, {hw.PortLiftBR, -1}, {hw.PortLiftTR, -1},
		}},
		{name: "mgl", axis: NewAxis(p.MGL), ime: hw.IMEMGL, wires: []wire{{hw.PortMGLLeft, 1}, {hw.PortMGLRight, -1}}},
	}
	for _, g := range b.groups {
		g.x = State{0, 0}
	}
	return b
}

func (b *Board) MotorSet(port, power int) error {
	if port < 1 || port > 10 {
		return fmt.Errorf("plant: motor port %d out of range", port)
	}
	b.mu.Lock()
	b.motors[port] = power
	b.mu.Unlock()
	return nil
}

// Motor returns the last power written to a port.
func (b *Board) Motor(port int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motors[port]
}

func (b *Board) group(ime int) (*group, error) {
	for _, g := range b.groups {
		if g.ime == ime {
			return g, nil
		}
	}
	return nil, fmt.Errorf("plant: no IME %d", ime)
}

// IMEGet reports counts with the mounting sign: upward travel counts down.
func (b *Board) IMEGet(id int) (int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, err := b.group(id)
	if err != nil {
		return 0, err
	}
	return int32(-(g.x[0] - g.offset)), nil
}

func (b *Board) IMEReset(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, err := b.group(id)
	if err != nil {
		return err
	}
	g.offset = g.x[0]
	return nil
}

func (b *Board) IMEInitializeAll() (int, error) {
	return b.imes, nil
}

// DigitalRead returns the limit switch level: low while the lift rests on
// its bottom stop. Other pins read high (pulled up).
func (b *Board) DigitalRead(pin int) (bool, error) {
	if pin != hw.PinLiftLimit {
		return true, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	g, _ := b.group(hw.IMELift)
	return g.x[0] > 0, nil
}

// Advance integrates every motor group over dt seconds.
func (b *Board) Advance(dt float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, g := range b.groups {
		u := 0.0
		for _, w := range g.wires {
			u += w.sign * float64(b.motors[w.port])
		}
		u /= float64(len(g.wires))
		x := b.integ.Step(g.axis, g.x, Control{u}, b.t, dt)
		if !x.IsValid() {
			x = State{g.x[0], 0}
		}
		g.x = g.axis.limit(x)
	}
	b.t += dt
}

// Time is the simulated time in seconds.
func (b *Board) Time() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.t
}

// Counts returns the true mechanism travel of the group wired to an IME,
// independent of encoder resets.
func (b *Board) Counts(ime int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, err := b.group(ime)
	if err != nil {
		return 0
	}
	return g.x[0]
}

// Place moves a group to a travel position at rest.
func (b *Board) Place(ime int, counts float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, err := b.group(ime); err == nil {
		g.x = g.axis.limit(State{counts, 0})
	}
}

// Run advances the board in wall-clock steps of period until ctx ends.
func (b *Board) Run(ctx context.Context, clock sched.Clock, period time.Duration, log logr.Logger) error {
	dt := period.Seconds()
	return sched.Every(ctx, clock, period, log, func(context.Context) {
		b.Advance(dt)
	})
}
