package pid

import (
	"math"
	"sync"
)

// Target is the shared setpoint of one axis. It is written by teleop and
// autonomous code and read by the control task.
type Target struct {
	mu    sync.Mutex
	value float64
	min   float64
	max   float64
}

// NewTarget returns a target store clamped to [min, max] holding initial.
func NewTarget(min, max, initial float64) *Target {
	t := &Target{min: min, max: max}
	t.value = t.clamp(initial)
	return t
}

func (t *Target) clamp(v float64) float64 {
	if v > t.max {
		return t.max
	}
	if v < t.min {
		return t.min
	}
	return v
}

// Set clamps v to the bounds and stores it. NaN is ignored.
func (t *Target) Set(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = t.clamp(v)
	t.mu.Lock()
	t.value = v
	t.mu.Unlock()
}

// Get returns the most recently stored value.
func (t *Target) Get() float64 {
	t.mu.Lock()
	v := t.value
	t.mu.Unlock()
	return v
}

// Nudge moves the target by delta in a single locked read-modify-write and
// returns the stored result.
func (t *Target) Nudge(delta float64) float64 {
	if math.IsNaN(delta) {
		return t.Get()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value = t.clamp(t.value + delta)
	return t.value
}

// Bounds returns the clamp range.
func (t *Target) Bounds() (min, max float64) {
	return t.min, t.max
}
