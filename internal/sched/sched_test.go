package sched_test

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/robart/internal/sched"
)

var epoch = time.Date(2017, 11, 4, 9, 0, 0, 0, time.UTC)

var _ = Describe("Ticker", func() {
	const period = 20 * time.Millisecond

	var clock *sched.FakeClock

	BeforeEach(func() {
		clock = sched.NewFakeClock(epoch)
	})

	It("rejects a non-positive period", func() {
		_, err := sched.NewTicker(clock, 0, logr.Discard())
		Expect(err).To(MatchError(sched.ErrInvalidPeriod))
	})

	It("wakes on absolute multiples of the period regardless of work time", func() {
		t, err := sched.NewTicker(clock, period, logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		for i := 1; i <= 50; i++ {
			clock.Advance(7 * time.Millisecond)
			Expect(t.DelayUntil(context.Background())).To(Succeed())
			Expect(clock.Now()).To(Equal(epoch.Add(time.Duration(i) * period)))
		}
		Expect(t.Overruns()).To(BeZero())
	})

	It("catches up after a slow iteration without drifting", func() {
		t, err := sched.NewTicker(clock, period, logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		clock.Advance(30 * time.Millisecond)
		Expect(t.DelayUntil(context.Background())).To(Succeed())
		Expect(clock.Now()).To(Equal(epoch.Add(30 * time.Millisecond)))
		Expect(t.Overruns()).To(Equal(1))

		Expect(t.DelayUntil(context.Background())).To(Succeed())
		Expect(clock.Now()).To(Equal(epoch.Add(2 * period)))
	})

	It("drops ticks after falling a full period behind", func() {
		t, err := sched.NewTicker(clock, period, logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		clock.Advance(105 * time.Millisecond)
		Expect(t.DelayUntil(context.Background())).To(Succeed())
		Expect(t.Skipped()).To(Equal(4))

		Expect(t.DelayUntil(context.Background())).To(Succeed())
		Expect(clock.Now()).To(Equal(epoch.Add(125 * time.Millisecond)))
	})
})

var _ = Describe("Every", func() {
	It("runs once per period until cancelled", func() {
		clock := sched.NewFakeClock(epoch)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := 0
		var stamps []time.Time
		err := sched.Every(ctx, clock, 20*time.Millisecond, logr.Discard(), func(context.Context) {
			calls++
			stamps = append(stamps, clock.Now())
			if calls == 10 {
				cancel()
			}
		})

		Expect(err).To(MatchError(context.Canceled))
		Expect(calls).To(Equal(10))
		for i, s := range stamps {
			Expect(s).To(Equal(epoch.Add(time.Duration(i) * 20 * time.Millisecond)))
		}
	})

	It("returns immediately on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		err := sched.Every(ctx, sched.NewFakeClock(epoch), time.Millisecond, logr.Discard(), func(context.Context) { called = true })
		Expect(err).To(MatchError(context.Canceled))
		Expect(called).To(BeFalse())
	})

	It("runs against the wall clock", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		calls := 0
		err := sched.Every(ctx, sched.System, 10*time.Millisecond, logr.Discard(), func(context.Context) { calls++ })
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(calls).To(BeNumerically(">=", 5))
	})
})

var _ = Describe("FakeClock", func() {
	It("keeps one timeline for goroutines that share it", func() {
		clock := sched.NewFakeClock(epoch)
		clock.Share(2)

		fast, err := sched.NewTicker(clock, 10*time.Millisecond, logr.Discard())
		Expect(err).NotTo(HaveOccurred())
		slow, err := sched.NewTicker(clock, 30*time.Millisecond, logr.Discard())
		Expect(err).NotTo(HaveOccurred())

		run := func(t *sched.Ticker, n int) <-chan []time.Duration {
			out := make(chan []time.Duration, 1)
			go func() {
				defer GinkgoRecover()
				defer clock.Leave()
				var wakes []time.Duration
				for i := 0; i < n; i++ {
					Expect(t.DelayUntil(context.Background())).To(Succeed())
					wakes = append(wakes, clock.Now().Sub(epoch))
				}
				out <- wakes
			}()
			return out
		}

		fastWakes := run(fast, 6)
		slowWakes := run(slow, 2)

		ms := time.Millisecond
		Eventually(fastWakes).Should(Receive(Equal([]time.Duration{10 * ms, 20 * ms, 30 * ms, 40 * ms, 50 * ms, 60 * ms})))
		Eventually(slowWakes).Should(Receive(Equal([]time.Duration{30 * ms, 60 * ms})))
		Expect(clock.Now()).To(Equal(epoch.Add(60 * ms)))
	})

	It("fires queued waiters on Advance", func() {
		clock := sched.NewFakeClock(epoch)
		clock.Share(2)

		ch := clock.After(5 * time.Millisecond)
		Consistently(ch, 20*time.Millisecond).ShouldNot(Receive())

		clock.Advance(5 * time.Millisecond)
		Eventually(ch).Should(Receive(Equal(epoch.Add(5 * time.Millisecond))))
	})
})
