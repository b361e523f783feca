package teleop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/robart/internal/hw"
	"github.com/san-kum/robart/internal/sched"
)

var ErrBadInput = errors.New("teleop: bad scripted input")

// Hold is one scripted joystick input: a button such as "6U" or an analog
// axis such as "a3=100", held for For. A zero For holds it until the run
// ends.
type Hold struct {
	Group  int
	Button Button
	Axis   int
	Value  int
	For    time.Duration
}

func (h Hold) analog() bool { return h.Axis != 0 }

func (h Hold) String() string {
	s := fmt.Sprintf("%d%s", h.Group, h.Button)
	if h.analog() {
		s = fmt.Sprintf("a%d=%d", h.Axis, h.Value)
	}
	if h.For > 0 {
		s += ":" + h.For.String()
	}
	return s
}

var buttonNames = map[string]Button{"U": Up, "D": Down, "L": Left, "R": Right}

// ParseHold reads "6U", "6U:500ms" or "a3=-80:2s".
func ParseHold(s string) (Hold, error) {
	var h Hold
	input, dur, timed := strings.Cut(strings.TrimSpace(s), ":")
	if timed {
		d, err := time.ParseDuration(dur)
		if err != nil || d <= 0 {
			return Hold{}, fmt.Errorf("%w: duration %q", ErrBadInput, dur)
		}
		h.For = d
	}

	if rest, ok := strings.CutPrefix(input, "a"); ok {
		axis, value, ok := strings.Cut(rest, "=")
		if !ok {
			return Hold{}, fmt.Errorf("%w: %q wants a<axis>=<value>", ErrBadInput, s)
		}
		n, err := strconv.Atoi(axis)
		if err != nil || n < AxisRightX || n > AxisLeftX {
			return Hold{}, fmt.Errorf("%w: axis %q", ErrBadInput, axis)
		}
		v, err := strconv.Atoi(value)
		if err != nil || v < -hw.MaxPower || v > hw.MaxPower {
			return Hold{}, fmt.Errorf("%w: value %q", ErrBadInput, value)
		}
		h.Axis, h.Value = n, v
		return h, nil
	}

	if len(input) < 2 {
		return Hold{}, fmt.Errorf("%w: %q", ErrBadInput, s)
	}
	b, ok := buttonNames[strings.ToUpper(input[len(input)-1:])]
	if !ok {
		return Hold{}, fmt.Errorf("%w: button %q", ErrBadInput, input)
	}
	g, err := strconv.Atoi(input[:len(input)-1])
	if err != nil || g < GroupLeftTrigger || g > GroupRightPad {
		return Hold{}, fmt.Errorf("%w: group %q", ErrBadInput, input)
	}
	h.Group, h.Button = g, b
	return h, nil
}

// Holds collects repeated --hold flags.
type Holds []Hold

func (hs *Holds) Set(s string) error {
	h, err := ParseHold(s)
	if err != nil {
		return err
	}
	*hs = append(*hs, h)
	return nil
}

func (hs *Holds) String() string {
	parts := make([]string, 0, len(*hs))
	for _, h := range *hs {
		parts = append(parts, h.String())
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (hs *Holds) Type() string { return "input" }

func (s *Scripted) apply(h Hold) {
	if h.analog() {
		s.SetAnalog(h.Axis, h.Value)
		return
	}
	s.Press(h.Group, h.Button)
}

func (s *Scripted) letGo(h Hold) {
	if h.analog() {
		s.SetAnalog(h.Axis, 0)
		return
	}
	s.Release(h.Group, h.Button)
}

// Play applies every hold at once, then lets each go after its duration.
// It returns when the last timed hold is released.
func (s *Scripted) Play(ctx context.Context, clock sched.Clock, holds []Hold) error {
	timed := make([]Hold, 0, len(holds))
	for _, h := range holds {
		s.apply(h)
		if h.For > 0 {
			timed = append(timed, h)
		}
	}
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].For < timed[j].For })

	var elapsed time.Duration
	for _, h := range timed {
		if d := h.For - elapsed; d > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clock.After(d):
			}
			elapsed = h.For
		}
		s.letGo(h)
	}
	return nil
}
