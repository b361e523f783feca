package experiment

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/robart/internal/metrics"
	"github.com/san-kum/robart/internal/pid"
)

func run(t *testing.T, cfg Config) *Result {
	t.Helper()
	exp, err := New(cfg, NewRegistry(), logr.Discard())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	for _, m := range metrics.Default() {
		exp.AddMetric(m)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return res
}

func TestLiftStepConverges(t *testing.T) {
	res := run(t, DefaultConfig())

	if len(res.Times) != 200 {
		t.Errorf("expected 200 samples, got %d", len(res.Times))
	}
	if math.Abs(res.Final()-64) > 2 {
		t.Errorf("expected lift near 64, got %v", res.Final())
	}
	if res.Metrics["overshoot"] > 10 {
		t.Errorf("overshoot too large: %v", res.Metrics["overshoot"])
	}
	if res.Drives[0] != 127 {
		t.Errorf("expected saturated first drive, got %d", res.Drives[0])
	}
}

func TestMGLStepDown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Axis = "mgl"
	cfg.Gains = pid.Gains{Kp: 4, Ki: 0.005, Kd: 3}
	cfg.Start = 100
	cfg.Target = 20

	res := run(t, cfg)
	if math.Abs(res.Positions[0]-100) > 1 {
		t.Errorf("expected start near 100, got %v", res.Positions[0])
	}
	if math.Abs(res.Final()-20) > 2 {
		t.Errorf("expected mgl near 20, got %v", res.Final())
	}
	if res.Drives[0] >= 0 {
		t.Errorf("expected downward drive, got %d", res.Drives[0])
	}
}

func TestZeroGainsHoldStill(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gains = pid.Gains{}

	res := run(t, cfg)
	for i, d := range res.Drives {
		if d != 0 {
			t.Fatalf("sample %d: expected zero drive, got %d", i, d)
		}
	}
	if res.Final() != 0 {
		t.Errorf("expected lift to stay on its stop, got %v", res.Final())
	}
	if res.Metrics["control_effort"] != 0 {
		t.Errorf("expected zero effort, got %v", res.Metrics["control_effort"])
	}
}

func TestTargetIsClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = 500
	cfg.Duration = 100 * time.Millisecond

	res := run(t, cfg)
	for _, target := range res.Targets {
		if target != 127 {
			t.Fatalf("expected clamped target 127, got %v", target)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	exp, err := New(DefaultConfig(), NewRegistry(), logr.Discard())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := exp.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(res.Times) != 0 {
		t.Errorf("expected no samples, got %d", len(res.Times))
	}
}

func TestNewRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"unknown axis", func(c *Config) { c.Axis = "claw" }, ErrUnknownAxis},
		{"zero period", func(c *Config) { c.Period = 0 }, ErrBadTrial},
		{"duration shorter than period", func(c *Config) { c.Duration = time.Millisecond }, ErrBadTrial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg, NewRegistry(), logr.Discard()); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRunRejectsBadGains(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Saturation = 0
	exp, err := New(cfg, NewRegistry(), logr.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := exp.Run(context.Background()); !errors.Is(err, pid.ErrInvalidSaturation) {
		t.Errorf("expected ErrInvalidSaturation, got %v", err)
	}
}

func TestRegistryListAxes(t *testing.T) {
	if diff := cmp.Diff([]string{"lift", "mgl"}, NewRegistry().ListAxes()); diff != "" {
		t.Errorf("axes mismatch (-want +got):\n%s", diff)
	}
}
