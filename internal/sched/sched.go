// Package sched invokes a callback on a fixed period, anchoring each wake
// time to the previous one rather than to "now" so the cadence does not
// drift.
package sched

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
)

var ErrInvalidPeriod = errors.New("sched: period must be positive")

// Clock abstracts wall time so loops can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// System is the wall clock.
var System Clock = realClock{}

// Ticker tracks the absolute anchor of a periodic task.
type Ticker struct {
	clock    Clock
	period   time.Duration
	anchor   time.Time
	overruns int
	skipped  int
	log      logr.Logger
}

func NewTicker(clock Clock, period time.Duration, log logr.Logger) (*Ticker, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if clock == nil {
		clock = System
	}
	return &Ticker{
		clock:  clock,
		period: period,
		anchor: clock.Now(),
		log:    log,
	}, nil
}

// DelayUntil blocks until one period after the previous wake time and then
// advances the anchor by exactly one period. A late caller returns at once.
// When the caller has fallen a whole period behind, the missed ticks are
// dropped and the anchor moves to now.
func (t *Ticker) DelayUntil(ctx context.Context) error {
	next := t.anchor.Add(t.period)
	now := t.clock.Now()
	wait := next.Sub(now)

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.clock.After(wait):
		}
		t.anchor = next
		return nil
	}

	t.overruns++
	if -wait >= t.period {
		missed := int(-wait / t.period)
		t.skipped += missed
		t.log.V(1).Info("tick overrun, re-anchoring", "late", -wait, "missed", missed)
		t.anchor = now
		return ctx.Err()
	}
	t.log.V(1).Info("tick overrun", "late", -wait)
	t.anchor = next
	return ctx.Err()
}

// Overruns is the number of ticks that started late.
func (t *Ticker) Overruns() int { return t.overruns }

// Skipped is the number of ticks dropped after falling a period behind.
func (t *Ticker) Skipped() int { return t.skipped }

func (t *Ticker) Period() time.Duration { return t.period }

// Every calls fn once per period until ctx is cancelled, then returns
// ctx.Err().
func Every(ctx context.Context, clock Clock, period time.Duration, log logr.Logger, fn func(context.Context)) error {
	t, err := NewTicker(clock, period, log)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fn(ctx)

		if err := t.DelayUntil(ctx); err != nil {
			return err
		}
	}
}
