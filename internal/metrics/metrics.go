// Package metrics scores a closed-loop position response.
package metrics

import "math"

// Sample is one control step of an axis.
type Sample struct {
	T        float64 // seconds since the step was commanded
	Position float64
	Target   float64
	Drive    int
}

func (s Sample) Error() float64 { return s.Target - s.Position }

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Default returns the step-response metrics reported by trials.
func Default() []Metric {
	return []Metric{
		NewOvershoot(),
		NewSettlingTime(0.02),
		NewSteadyStateError(),
		NewControlEffort(),
		NewIAE(),
	}
}

// Overshoot is the furthest travel past the target in the direction of the
// step, in position units.
type Overshoot struct {
	start   float64
	max     float64
	samples int
}

func NewOvershoot() *Overshoot { return &Overshoot{} }

func (o *Overshoot) Name() string { return "overshoot" }

func (o *Overshoot) Observe(s Sample) {
	if o.samples == 0 {
		o.start = s.Position
	}
	o.samples++
	dir := 1.0
	if s.Target < o.start {
		dir = -1
	}
	if past := (s.Position - s.Target) * dir; past > o.max {
		o.max = past
	}
}

func (o *Overshoot) Value() float64 { return o.max }

func (o *Overshoot) Reset() { *o = Overshoot{} }

// SettlingTime is the time after which the error stays inside a band of
// the step size. It is +Inf when the response never settles.
type SettlingTime struct {
	band    float64
	start   float64
	last    float64
	settled bool
	samples int
}

func NewSettlingTime(band float64) *SettlingTime {
	return &SettlingTime{band: band}
}

func (s *SettlingTime) Name() string { return "settling_time" }

func (s *SettlingTime) Observe(x Sample) {
	if s.samples == 0 {
		s.start = x.Position
	}
	s.samples++
	tol := s.band * math.Abs(x.Target-s.start)
	if math.Abs(x.Error()) <= tol {
		if !s.settled {
			s.settled = true
			s.last = x.T
		}
		return
	}
	s.settled = false
}

func (s *SettlingTime) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	if !s.settled {
		return math.Inf(1)
	}
	return s.last
}

func (s *SettlingTime) Reset() { *s = SettlingTime{band: s.band} }

// SteadyStateError is the absolute error of the latest sample.
type SteadyStateError struct {
	last float64
}

func NewSteadyStateError() *SteadyStateError { return &SteadyStateError{} }

func (e *SteadyStateError) Name() string { return "steady_state_error" }

func (e *SteadyStateError) Observe(s Sample) { e.last = math.Abs(s.Error()) }

func (e *SteadyStateError) Value() float64 { return e.last }

func (e *SteadyStateError) Reset() { e.last = 0 }

// ControlEffort is the mean absolute drive.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(s Sample) {
	c.sum += math.Abs(float64(s.Drive))
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// IAE integrates the absolute error over time.
type IAE struct {
	sum     float64
	prevT   float64
	samples int
}

func NewIAE() *IAE { return &IAE{} }

func (i *IAE) Name() string { return "iae" }

func (i *IAE) Observe(s Sample) {
	if i.samples > 0 {
		i.sum += math.Abs(s.Error()) * (s.T - i.prevT)
	}
	i.prevT = s.T
	i.samples++
}

func (i *IAE) Value() float64 { return i.sum }

func (i *IAE) Reset() { *i = IAE{} }
