package experiment

import (
	"fmt"
	"sort"

	"github.com/go-logr/logr"

	"github.com/san-kum/robart/internal/hw"
	"github.com/san-kum/robart/internal/pid"
)

// Axis wires one closed-loop mechanism to a bus.
type Axis struct {
	Name    string
	IME     int
	MaxRevs float64
	// Actuator builds the motor driver of the axis on bus.
	Actuator func(bus hw.Bus, log logr.Logger) pid.Actuator
}

type Registry struct {
	axes map[string]Axis
}

func NewRegistry() *Registry {
	r := &Registry{axes: make(map[string]Axis)}

	r.Register(Axis{
		Name:    "lift",
		IME:     hw.IMELift,
		MaxRevs: hw.LiftMaxRevs,
		Actuator: func(bus hw.Bus, log logr.Logger) pid.Actuator {
			return hw.NewLift(bus, log)
		},
	})
	r.Register(Axis{
		Name:    "mgl",
		IME:     hw.IMEMGL,
		MaxRevs: hw.MGLMaxRevs,
		Actuator: func(bus hw.Bus, log logr.Logger) pid.Actuator {
			return hw.NewMGL(bus, log)
		},
	})

	return r
}

func (r *Registry) Register(a Axis) {
	r.axes[a.Name] = a
}

func (r *Registry) GetAxis(name string) (Axis, error) {
	a, ok := r.axes[name]
	if !ok {
		return Axis{}, fmt.Errorf("%w: %q", ErrUnknownAxis, name)
	}
	return a, nil
}

func (r *Registry) ListAxes() []string {
	names := make([]string, 0, len(r.axes))
	for name := range r.axes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
