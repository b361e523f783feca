package pid_test

import (
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/robart/internal/pid"
)

type recorder struct {
	mu     sync.Mutex
	drives []int
}

func (r *recorder) Drive(power int) {
	r.mu.Lock()
	r.drives = append(r.drives, power)
	r.mu.Unlock()
}

func (r *recorder) last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drives[len(r.drives)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drives)
}

func fixed(pos float64) pid.Sensor {
	return pid.SensorFunc(func() float64 { return pos })
}

func config(g pid.Gains, maxIntegral float64) pid.Config {
	return pid.Config{
		Gains:            g,
		MaxIntegralError: maxIntegral,
		Min:              pid.DefaultMin,
		Max:              pid.DefaultMax,
		Saturation:       pid.DefaultSaturation,
	}
}

var _ = Describe("Controller", func() {
	var act *recorder

	BeforeEach(func() {
		act = &recorder{}
	})

	Describe("New", func() {
		It("rejects inverted bounds", func() {
			cfg := config(pid.Gains{Kp: 1}, 40)
			cfg.Min, cfg.Max = 10, 5
			_, err := pid.New(cfg, fixed(0), act)
			Expect(err).To(MatchError(pid.ErrInvalidBounds))
		})

		It("rejects non-positive saturation", func() {
			cfg := config(pid.Gains{Kp: 1}, 40)
			cfg.Saturation = 0
			_, err := pid.New(cfg, fixed(0), act)
			Expect(err).To(MatchError(pid.ErrInvalidSaturation))
		})

		It("rejects a negative integral threshold", func() {
			_, err := pid.New(config(pid.Gains{}, -1), fixed(0), act)
			Expect(err).To(MatchError(pid.ErrInvalidIntegralLimit))
		})

		It("requires both collaborators", func() {
			_, err := pid.New(config(pid.Gains{}, 40), nil, act)
			Expect(err).To(MatchError(pid.ErrNilCollaborator))
		})

		It("accepts an unbounded integral threshold", func() {
			_, err := pid.New(config(pid.Gains{}, math.Inf(1)), fixed(0), act)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("target store", func() {
		var ctrl *pid.Controller

		BeforeEach(func() {
			var err error
			ctrl, err = pid.New(config(pid.Gains{Kp: 1}, 40), fixed(0), act)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("stores values inside the bounds unchanged",
			func(v float64) {
				ctrl.SetTarget(v)
				Expect(ctrl.Target()).To(Equal(v))
			},
			Entry("min", 0.0),
			Entry("middle", 63.5),
			Entry("max", 127.0),
		)

		DescribeTable("clamps values outside the bounds to the nearest bound",
			func(v, want float64) {
				ctrl.SetTarget(v)
				Expect(ctrl.Target()).To(Equal(want))
			},
			Entry("below", -20.0, 0.0),
			Entry("far below", math.Inf(-1), 0.0),
			Entry("above", 200.0, 127.0),
			Entry("far above", math.Inf(1), 127.0),
		)

		It("ignores NaN", func() {
			ctrl.SetTarget(42)
			ctrl.SetTarget(math.NaN())
			Expect(ctrl.Target()).To(Equal(42.0))
		})

		It("nudges within the bounds", func() {
			store := ctrl.TargetStore()
			store.Set(120)
			Expect(store.Nudge(5)).To(Equal(125.0))
			Expect(store.Nudge(5)).To(Equal(127.0))
			Expect(store.Nudge(-200)).To(Equal(0.0))
		})

		It("keeps the last write when several land between steps", func() {
			ctrl.SetTarget(10)
			ctrl.SetTarget(20)
			ctrl.SetTarget(30)
			Expect(ctrl.Step().Target).To(Equal(30.0))
		})
	})

	Describe("Step", func() {
		It("is proportional with kp=1", func() {
			ctrl, err := pid.New(config(pid.Gains{Kp: 1}, math.Inf(1)), fixed(0), act)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(100)

			terms := ctrl.Step()
			Expect(terms.Drive).To(Equal(100))
			Expect(act.last()).To(Equal(100))
		})

		It("saturates the drive command", func() {
			ctrl, err := pid.New(config(pid.Gains{Kp: 5}, math.Inf(1)), fixed(0), act)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(100)
			Expect(ctrl.Step().Drive).To(Equal(127))

			ctrl, err = pid.New(config(pid.Gains{Kp: 5}, math.Inf(1)), fixed(120), act)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(0)
			Expect(ctrl.Step().Drive).To(Equal(-127))
		})

		It("truncates the drive toward zero", func() {
			ctrl, err := pid.New(config(pid.Gains{Kp: 0.5}, math.Inf(1)), fixed(0), act)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(3)
			Expect(ctrl.Step().Drive).To(Equal(1))
		})

		It("issues exactly one drive command per step", func() {
			ctrl, err := pid.New(config(pid.Gains{Kp: 1}, 40), fixed(0), act)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 5; i++ {
				ctrl.Step()
			}
			Expect(act.count()).To(Equal(5))
		})

		It("resets the integral on every step while the error exceeds the threshold", func() {
			ctrl, err := pid.New(config(pid.Gains{Ki: 1}, 40), fixed(0), act)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(50)

			for i := 0; i < 10; i++ {
				terms := ctrl.Step()
				Expect(terms.Integral).To(BeZero())
				Expect(terms.Drive).To(BeZero())
			}
		})

		It("accumulates then clamps", func() {
			pos := 0.0
			sensor := pid.SensorFunc(func() float64 { return pos })
			ctrl, err := pid.New(config(pid.Gains{Ki: 1}, 40), sensor, act)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(60)

			pos = 30
			Expect(ctrl.Step().Integral).To(Equal(30.0))
			Expect(ctrl.Step().Integral).To(Equal(60.0))
			pos = 0
			Expect(ctrl.Step().Integral).To(BeZero())
			pos = 30
			Expect(ctrl.Step().Integral).To(Equal(30.0))
		})

		It("takes the derivative as a difference of errors", func() {
			pos := 0.0
			sensor := pid.SensorFunc(func() float64 { return pos })
			ctrl, err := pid.New(config(pid.Gains{Kd: 1}, 40), sensor, act)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(100)

			Expect(ctrl.Step().D).To(Equal(100.0))
			Expect(ctrl.Step().D).To(BeZero())
			pos = 10
			Expect(ctrl.Step().D).To(Equal(-10.0))
		})

		It("converges on a first-order actuator", func() {
			pos := 0.0
			sensor := pid.SensorFunc(func() float64 { return pos })
			plant := pid.ActuatorFunc(func(power int) { pos += 0.2 * float64(power) })
			ctrl, err := pid.New(config(pid.Gains{Kp: 1, Ki: 0.02, Kd: 0.5}, 40), sensor, plant)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(100)

			converged := -1
			for i := 0; i < 200; i++ {
				ctrl.Step()
				if math.Abs(100-pos) < 1 {
					converged = i
					break
				}
			}
			Expect(converged).To(BeNumerically(">=", 0))
			Expect(converged).To(BeNumerically("<", 100))
		})

		It("drives zero while disabled without touching the integral", func() {
			ctrl, err := pid.New(config(pid.Gains{Kp: 1, Ki: 1}, 40), fixed(90), act)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(100)
			ctrl.Step()
			Expect(ctrl.Integral()).To(Equal(10.0))

			ctrl.Disable()
			Expect(ctrl.Enabled()).To(BeFalse())
			Expect(ctrl.Step().Drive).To(BeZero())
			Expect(act.last()).To(BeZero())
			Expect(ctrl.Integral()).To(Equal(10.0))

			ctrl.Enable()
			Expect(ctrl.Step().Integral).To(Equal(20.0))
		})

		It("forgets history on Reset", func() {
			ctrl, err := pid.New(config(pid.Gains{Kp: 1, Ki: 1, Kd: 1}, 40), fixed(90), act)
			Expect(err).NotTo(HaveOccurred())
			ctrl.SetTarget(100)
			ctrl.Step()
			ctrl.Reset()
			Expect(ctrl.Integral()).To(BeZero())
			Expect(ctrl.Error()).To(BeZero())
			Expect(ctrl.Step().D).To(Equal(10.0))
		})
	})

	It("never observes a torn target under concurrent writes", func() {
		ctrl, err := pid.New(config(pid.Gains{Kp: 1}, 40), fixed(0), act)
		Expect(err).NotTo(HaveOccurred())

		written := map[float64]bool{0: true}
		values := make([]float64, 0, 64)
		for i := 0; i < 64; i++ {
			v := float64(i) + 0.123456789
			values = append(values, v)
			written[v] = true
		}

		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(offset int) {
				defer GinkgoRecover()
				defer wg.Done()
				for i := 0; i < 500; i++ {
					ctrl.SetTarget(values[(i+offset)%len(values)])
				}
			}(w)
		}

		seen := make([]float64, 0, 1000)
		for i := 0; i < 1000; i++ {
			seen = append(seen, ctrl.Step().Target, ctrl.Target())
		}
		wg.Wait()

		for _, v := range seen {
			Expect(written).To(HaveKey(v))
		}
	})

	It("exposes its parameters", func() {
		ctrl, err := pid.New(config(pid.Gains{Kp: 1, Ki: 2, Kd: 3}, 40), fixed(0), act)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctrl.Gains()).To(Equal(pid.Gains{Kp: 1, Ki: 2, Kd: 3}))
		Expect(ctrl.Params()).To(HaveKeyWithValue("MaxIntegralError", 40.0))
	})
})
