// Package hw maps robot mechanisms onto motor ports, integrated motor
// encoders (IMEs) and digital pins of the motor board.
package hw

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
)

// Bus is the motor board as seen by the robot code. It is implemented by
// the serial link in cortex and by the simulated board in plant.
type Bus interface {
	MotorSet(port, power int) error
	IMEGet(id int) (int32, error)
	IMEReset(id int) error
	IMEInitializeAll() (int, error)
	DigitalRead(pin int) (bool, error)
}

// motor ports
const (
	PortClaw       = 1
	PortMGLRight   = 2
	PortDriveLeft  = 3
	PortLiftBL     = 4
	PortLiftTL     = 5
	PortLiftBR     = 6
	PortLiftTR     = 7
	PortDriveRight = 8
	PortMGLLeft    = 9
	PortTwisty     = 10
)

// IME chain order
const (
	IMELeft = iota
	IMERight
	IMELift
	IMEMGL
	IMECount
)

// PinLiftLimit reads low while the lift rests on its bottom stop.
const PinLiftLimit = 2

const (
	MaxPower           = 127
	ClawSpeed          = 63
	TwistySpeed        = 63
	MaxPos             = 127.0
	MinPos             = 0.0
	CountsPerRevTorque = 627.2
	LiftMaxRevs        = 6.0
	MGLMaxRevs         = 3.0
)

var ErrIMECount = errors.New("hw: incorrect number of IMEs initialized")

// Direction merges up/down style inputs. CLOSE shares UP's value and OPEN
// shares DOWN's.
type Direction int

const (
	Down Direction = -1
	Stop Direction = 0
	Up   Direction = 1

	Open  = Down
	Close = Up
)

// DirectionOf merges two buttons into a direction; pressing both stops.
func DirectionOf(up, down bool) Direction {
	d := 0
	if up {
		d++
	}
	if down {
		d--
	}
	return Direction(d)
}

func (d Direction) speed(up, down int) int {
	switch d {
	case Up:
		return up
	case Down:
		return down
	}
	return 0
}

// Init brings up the IME chain and zeroes every encoder. A short chain is
// reported but not fatal: the robot runs with unreliable positions.
func Init(bus Bus, log logr.Logger) error {
	n, err := bus.IMEInitializeAll()
	if err != nil {
		return fmt.Errorf("initializing IMEs: %w", err)
	}
	var countErr error
	if n != IMECount {
		countErr = fmt.Errorf("%w: got %d, want %d", ErrIMECount, n, IMECount)
		log.Error(countErr, "expect unreliable behavior")
	}
	for id := 0; id < IMECount; id++ {
		if err := bus.IMEReset(id); err != nil {
			return fmt.Errorf("resetting IME %d: %w", id, err)
		}
	}
	return countErr
}

func clampPower(p int) int {
	if p > MaxPower {
		return MaxPower
	}
	if p < -MaxPower {
		return -MaxPower
	}
	return p
}
