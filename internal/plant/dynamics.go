// Package plant simulates the motor board: motor groups as first-order
// velocity lags integrated with RK4, encoders, and the lift limit switch.
package plant

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

// System is an ODE dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// AxisParams describe one motor group and the mechanism it moves. Units
// are IME counts.
type AxisParams struct {
	MaxSpeed float64 `yaml:"max_speed"` // counts/s at full power
	Tau      float64 `yaml:"tau"`       // motor time constant, s
	Gravity  float64 `yaml:"gravity"`   // counts/s pulled down at zero power
	Travel   float64 `yaml:"travel"`    // counts; 0 means unbounded
}

// Axis is the dynamics of one motor group. State is {position, velocity},
// control is {power} in -127..127.
type Axis struct {
	Params AxisParams
}

func NewAxis(p AxisParams) *Axis {
	return &Axis{Params: p}
}

func (a *Axis) Derive(x State, u Control, t float64) State {
	power := 0.0
	if len(u) > 0 {
		power = u[0]
	}
	tau := a.Params.Tau
	if tau <= 0 {
		tau = 1e-3
	}
	commanded := a.Params.MaxSpeed*power/127 - a.Params.Gravity
	return State{x[1], (commanded - x[1]) / tau}
}

func (a *Axis) StateDim() int   { return 2 }
func (a *Axis) ControlDim() int { return 1 }

// limit applies the hard stops, killing velocity into a stop.
func (a *Axis) limit(x State) State {
	if x[0] < 0 && a.Params.Travel > 0 {
		x[0] = 0
		if x[1] < 0 {
			x[1] = 0
		}
	}
	if a.Params.Travel > 0 && x[0] > a.Params.Travel {
		x[0] = a.Params.Travel
		if x[1] > 0 {
			x[1] = 0
		}
	}
	return x
}
