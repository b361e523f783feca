package teleop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/robart/internal/sched"
)

func TestParseHold(t *testing.T) {
	tests := []struct {
		in   string
		want Hold
	}{
		{"6U", Hold{Group: 6, Button: Up}},
		{"8d:250ms", Hold{Group: 8, Button: Down, For: 250 * time.Millisecond}},
		{"7L", Hold{Group: 7, Button: Left}},
		{"a3=100:2s", Hold{Axis: 3, Value: 100, For: 2 * time.Second}},
		{"a1=-80", Hold{Axis: 1, Value: -80}},
	}
	for _, tt := range tests {
		got, err := ParseHold(tt.in)
		if err != nil {
			t.Errorf("ParseHold(%q): %v", tt.in, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseHold(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestParseHoldRejects(t *testing.T) {
	for _, in := range []string{"", "U", "4U", "9U", "6X", "6U:soon", "6U:-1s", "a3", "a5=10", "a3=200", "a2=x"} {
		if _, err := ParseHold(in); !errors.Is(err, ErrBadInput) {
			t.Errorf("ParseHold(%q): expected ErrBadInput, got %v", in, err)
		}
	}
}

func TestHoldsFlagValue(t *testing.T) {
	var hs Holds
	for _, s := range []string{"6U:1s", "a2=50"} {
		if err := hs.Set(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := hs.Set("6Q"); err == nil {
		t.Error("expected error for unknown button")
	}
	if got := hs.String(); got != "[6U:1s,a2=50]" {
		t.Errorf("unexpected flag string %q", got)
	}
	if hs.Type() == "" {
		t.Error("flag type should be named")
	}
}

func TestPlayReleasesInOrder(t *testing.T) {
	epoch := time.Date(2017, 11, 4, 9, 0, 0, 0, time.UTC)
	clock := sched.NewFakeClock(epoch)
	js := NewScripted()
	holds := []Hold{
		{Group: GroupRightTrigger, Button: Up, For: 300 * time.Millisecond},
		{Axis: AxisLeftY, Value: 90, For: 100 * time.Millisecond},
		{Group: GroupRightPad, Button: Left},
	}

	if err := js.Play(context.Background(), clock, holds); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if got := clock.Now().Sub(epoch); got != 300*time.Millisecond {
		t.Errorf("expected last release at 300ms, got %v", got)
	}
	if js.Digital(GroupRightTrigger, Up) || js.Analog(AxisLeftY) != 0 {
		t.Error("timed inputs should be released")
	}
	if !js.Digital(GroupRightPad, Left) {
		t.Error("untimed input should stay held")
	}
}

func TestPlayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	js := NewScripted()
	err := js.Play(ctx, sched.System, []Hold{{Group: GroupRightTrigger, Button: Up, For: time.Hour}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled, got %v", err)
	}
	if !js.Digital(GroupRightTrigger, Up) {
		t.Error("hold should be applied before waiting")
	}
}
