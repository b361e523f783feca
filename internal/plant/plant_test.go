package plant

import (
	"math"
	"testing"

	"github.com/san-kum/robart/internal/hw"
)

type oscillator struct{}

func (oscillator) Derive(x State, u Control, t float64) State { return State{x[1], -x[0]} }
func (oscillator) StateDim() int                              { return 2 }
func (oscillator) ControlDim() int                            { return 0 }

func TestRK4Accuracy(t *testing.T) {
	integ := NewRK4()
	x := State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(oscillator{}, x, nil, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)
	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestAxisReachesCommandedSpeed(t *testing.T) {
	axis := NewAxis(AxisParams{MaxSpeed: 1000, Tau: 0.05})
	integ := NewRK4()
	x := State{0, 0}
	for i := 0; i < 200; i++ {
		x = integ.Step(axis, x, Control{127}, 0, 0.005)
	}
	if math.Abs(x[1]-1000) > 1 {
		t.Errorf("expected ~1000 counts/s after 20 tau, got %f", x[1])
	}
}

func TestAxisLimits(t *testing.T) {
	axis := NewAxis(AxisParams{Travel: 100})
	tests := []struct {
		in, want State
	}{
		{State{-5, -10}, State{0, 0}},
		{State{150, 20}, State{100, 0}},
		{State{50, 20}, State{50, 20}},
		{State{0, 5}, State{0, 5}},
	}
	for _, tt := range tests {
		got := axis.limit(tt.in.Clone())
		if got[0] != tt.want[0] || got[1] != tt.want[1] {
			t.Errorf("limit(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBoardLiftMovesUp(t *testing.T) {
	b := NewBoard(DefaultParams())

	high, _ := b.DigitalRead(hw.PinLiftLimit)
	if high {
		t.Fatal("lift should start on the limit switch")
	}

	for _, port := range []int{hw.PortLiftBL, hw.PortLiftTL} {
		b.MotorSet(port, 127)
	}
	for _, port := range []int{hw.PortLiftBR, hw.PortLiftTR} {
		b.MotorSet(port, -127)
	}
	for i := 0; i < 100; i++ {
		b.Advance(0.01)
	}

	counts, err := b.IMEGet(hw.IMELift)
	if err != nil {
		t.Fatal(err)
	}
	if counts >= 0 {
		t.Errorf("upward travel should count down, got %d", counts)
	}
	high, _ = b.DigitalRead(hw.PinLiftLimit)
	if !high {
		t.Error("limit switch should release once the lift is up")
	}
	if math.Abs(b.Time()-1.0) > 1e-9 {
		t.Errorf("expected 1s simulated, got %f", b.Time())
	}
}

func TestBoardLiftFallsToFloor(t *testing.T) {
	b := NewBoard(DefaultParams())
	b.Place(hw.IMELift, 1000)
	for i := 0; i < 3000; i++ {
		b.Advance(0.01)
	}
	if got := b.Counts(hw.IMELift); got != 0 {
		t.Errorf("unpowered lift should rest on the floor, got %f", got)
	}
}

func TestBoardLimitSwitchOnlyAtFloor(t *testing.T) {
	b := NewBoard(DefaultParams())

	b.Place(hw.IMELift, 0.3)
	if high, _ := b.DigitalRead(hw.PinLiftLimit); !high {
		t.Error("switch should be released just above the floor")
	}
	b.Place(hw.IMELift, 0)
	if high, _ := b.DigitalRead(hw.PinLiftLimit); high {
		t.Error("switch should read low on the floor")
	}
	if high, _ := b.DigitalRead(hw.PinLiftLimit + 1); !high {
		t.Error("other pins should read high")
	}
}

func TestBoardOpposedWiringCancels(t *testing.T) {
	b := NewBoard(DefaultParams())
	b.MotorSet(hw.PortMGLLeft, 100)
	b.MotorSet(hw.PortMGLRight, 100)
	for i := 0; i < 50; i++ {
		b.Advance(0.01)
	}
	if got := b.Counts(hw.IMEMGL); got != 0 {
		t.Errorf("fighting motors should not move the mgl, got %f", got)
	}
}

func TestBoardIMEReset(t *testing.T) {
	b := NewBoard(DefaultParams())
	b.Place(hw.IMEMGL, 500)
	if c, _ := b.IMEGet(hw.IMEMGL); c != -500 {
		t.Errorf("expected -500, got %d", c)
	}
	if err := b.IMEReset(hw.IMEMGL); err != nil {
		t.Fatal(err)
	}
	if c, _ := b.IMEGet(hw.IMEMGL); c != 0 {
		t.Errorf("expected 0 after reset, got %d", c)
	}
	if _, err := b.IMEGet(9); err == nil {
		t.Error("expected error for unknown IME")
	}
	if err := b.MotorSet(11, 1); err == nil {
		t.Error("expected error for bad port")
	}
}

func TestBoardSatisfiesBus(t *testing.T) {
	var _ hw.Bus = NewBoard(DefaultParams())
}
