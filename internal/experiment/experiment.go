// Package experiment runs step-response trials of one axis against the
// simulated board.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/san-kum/robart/internal/hw"
	"github.com/san-kum/robart/internal/metrics"
	"github.com/san-kum/robart/internal/pid"
	"github.com/san-kum/robart/internal/plant"
)

var (
	ErrUnknownAxis = errors.New("experiment: unknown axis")
	ErrBadTrial    = errors.New("experiment: invalid trial")
)

type Config struct {
	Axis             string
	Gains            pid.Gains
	MaxIntegralError float64
	Saturation       float64
	Start            float64
	Target           float64
	Duration         time.Duration
	Period           time.Duration
	Plant            plant.Params
}

// DefaultConfig is a half-travel step of the lift from the bottom stop.
func DefaultConfig() Config {
	return Config{
		Axis:             "lift",
		Gains:            pid.Gains{Kp: 6, Ki: 0.005, Kd: 4},
		MaxIntegralError: pid.DefaultMaxIntegralError,
		Saturation:       pid.DefaultSaturation,
		Start:            0,
		Target:           64,
		Duration:         4 * time.Second,
		Period:           20 * time.Millisecond,
		Plant:            plant.DefaultParams(),
	}
}

type Result struct {
	Times     []float64
	Positions []float64
	Targets   []float64
	Drives    []int
	Metrics   map[string]float64
}

// Final returns the last recorded position.
func (r *Result) Final() float64 {
	if len(r.Positions) == 0 {
		return 0
	}
	return r.Positions[len(r.Positions)-1]
}

type Experiment struct {
	cfg     Config
	axis    Axis
	metrics []metrics.Metric
	log     logr.Logger
}

func New(cfg Config, reg *Registry, log logr.Logger) (*Experiment, error) {
	if cfg.Period <= 0 || cfg.Duration < cfg.Period {
		return nil, fmt.Errorf("%w: period %v, duration %v", ErrBadTrial, cfg.Period, cfg.Duration)
	}
	axis, err := reg.GetAxis(cfg.Axis)
	if err != nil {
		return nil, err
	}
	return &Experiment{cfg: cfg, axis: axis, log: log.WithValues("axis", cfg.Axis)}, nil
}

func (e *Experiment) AddMetric(m metrics.Metric) {
	e.metrics = append(e.metrics, m)
}

// Run steps the controller and the board in lockstep for the configured
// duration. The board advances one period after every controller step.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	board := plant.NewBoard(e.cfg.Plant)
	board.Place(e.axis.IME, e.cfg.Start/hw.MaxPos*e.axis.MaxRevs*hw.CountsPerRevTorque)

	sensor := hw.NewEncoder(board, e.axis.IME, e.axis.MaxRevs, e.log)
	ctrl, err := pid.New(pid.Config{
		Gains:            e.cfg.Gains,
		MaxIntegralError: e.cfg.MaxIntegralError,
		Min:              hw.MinPos,
		Max:              hw.MaxPos,
		Saturation:       e.cfg.Saturation,
		Initial:          e.cfg.Start,
	}, sensor, e.axis.Actuator(board, e.log))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadTrial, err)
	}
	ctrl.SetTarget(e.cfg.Target)

	for _, m := range e.metrics {
		m.Reset()
	}

	steps := int(e.cfg.Duration / e.cfg.Period)
	dt := e.cfg.Period.Seconds()
	res := &Result{
		Times:     make([]float64, 0, steps),
		Positions: make([]float64, 0, steps),
		Targets:   make([]float64, 0, steps),
		Drives:    make([]int, 0, steps),
		Metrics:   make(map[string]float64),
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		terms := ctrl.Step()
		t := board.Time()
		e.log.V(2).Info("step", "t", t, "terms", terms.String())

		res.Times = append(res.Times, t)
		res.Positions = append(res.Positions, terms.Position)
		res.Targets = append(res.Targets, terms.Target)
		res.Drives = append(res.Drives, terms.Drive)
		s := metrics.Sample{T: t, Position: terms.Position, Target: terms.Target, Drive: terms.Drive}
		for _, m := range e.metrics {
			m.Observe(s)
		}

		board.Advance(dt)
	}

	for _, m := range e.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	return res, nil
}
