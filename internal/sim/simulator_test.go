package sim_test

import (
	"context"
	"errors"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/integrators"
	"github.com/san-kum/dpend/internal/metrics"
	"github.com/san-kum/dpend/internal/physics"
	"github.com/san-kum/dpend/internal/sim"
)

func horizontal() dynamo.State {
	return dynamo.State{math.Pi / 2, 0, math.Pi / 2, 0}
}

func unitPendulum() *physics.DoublePendulum {
	return &physics.DoublePendulum{M1: 1, M2: 1, L1: 1, L2: 1, Gravity: 9.8}
}

func mustNew(sys sim.Pendulum, x0 dynamo.State, opts ...sim.Option) *sim.Simulator {
	s, err := sim.New(sys, x0, opts...)
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Simulator", func() {
	Describe("New", func() {
		It("rejects a state of the wrong length", func() {
			_, err := sim.New(unitPendulum(), dynamo.State{0, 0})
			Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
		})

		It("copies the initial state", func() {
			x0 := horizontal()
			s := mustNew(unitPendulum(), x0)
			x0[0] = 42
			Expect(s.State()[physics.Theta1]).To(Equal(math.Pi / 2))
		})
	})

	Describe("Advance", func() {
		It("starts the fall from the horizontal configuration", func() {
			s := mustNew(unitPendulum(), horizontal(), sim.WithSeed(1))

			s.Advance(0.01)

			x := s.State()
			Expect(x[physics.Omega1]).NotTo(BeZero())
			Expect(x[physics.Omega2]).NotTo(BeZero())
			Expect(x[physics.Theta1]).To(BeNumerically("~", math.Pi/2, 1e-3))
			Expect(x[physics.Theta2]).To(BeNumerically("~", math.Pi/2, 1e-3))
			Expect(s.Time()).To(Equal(0.01))
		})

		It("matches the analytic first-order motion", func() {
			s := mustNew(unitPendulum(), horizontal())
			s.Advance(0.001)

			// alpha1 = -g, alpha2 = 0 at the start
			Expect(s.State()[physics.Omega1]).To(BeNumerically("~", -9.8*0.001, 1e-5))
		})

		It("ignores non-positive dt", func() {
			s := mustNew(unitPendulum(), horizontal())
			s.Advance(0)
			s.Advance(-1)
			Expect(s.State()).To(Equal(horizontal()))
			Expect(s.Time()).To(BeZero())
			Expect(s.Trail()).To(BeEmpty())
		})

		It("is deterministic without perturbation", func() {
			run := func() []dynamo.State {
				s := mustNew(unitPendulum(), dynamo.State{2.5, 0, 2.9, 0.3})
				out := make([]dynamo.State, 0, 100)
				for i := 0; i < 100; i++ {
					s.Advance(1.0 / 30)
					out = append(out, s.State())
				}
				return out
			}
			Expect(run()).To(Equal(run()))
		})

		It("keeps energy within a small tolerance without kicks", func() {
			dp := unitPendulum()
			s := mustNew(dp, dynamo.State{math.Pi / 1.1, 0, math.Pi / 1.1, 0})
			e0 := s.Energy()

			for i := 0; i < 150; i++ {
				s.Advance(0.04)
			}

			Expect(math.Abs(s.Energy()-e0) / math.Abs(e0)).To(BeNumerically("<", 1e-3))
		})

		It("shrinks energy drift as dt shrinks for a fixed-step integrator", func() {
			drift := func(dt float64) float64 {
				s := mustNew(unitPendulum(), dynamo.State{1.2, 0, 0.8, 0}, sim.WithIntegrator(integrators.NewEuler()))
				e0 := s.Energy()
				for i := 0; i < int(math.Round(1/dt)); i++ {
					s.Advance(dt)
				}
				return math.Abs(s.Energy() - e0)
			}
			Expect(drift(0.001)).To(BeNumerically("<", drift(0.01)))
		})

		It("records the tip of mass 2 into the trail", func() {
			s := mustNew(unitPendulum(), horizontal(), sim.WithTrail(3))
			for i := 0; i < 5; i++ {
				s.Advance(0.02)
			}

			tr := s.Trail()
			Expect(tr).To(HaveLen(3))
			_, _, x2, y2 := s.Positions()
			Expect(tr[2].X).To(Equal(x2))
			Expect(tr[2].Y).To(Equal(y2))
		})

		It("notifies observers after each step", func() {
			drift := metrics.NewEnergyDrift(unitPendulum())
			s := mustNew(unitPendulum(), horizontal(), sim.WithObserver(drift))
			for i := 0; i < 10; i++ {
				s.Advance(0.04)
			}
			Expect(drift.Value()).To(BeNumerically("<", 1e-3))
		})

		It("carries non-finite states without failing", func() {
			s := mustNew(unitPendulum(), dynamo.State{math.NaN(), 0, 0, 0})
			Expect(func() { s.Advance(0.04) }).NotTo(Panic())
			Expect(s.State().IsValid()).To(BeFalse())
		})
	})

	Describe("Perturb", func() {
		It("changes only the angular velocities", func() {
			s := mustNew(unitPendulum(), dynamo.State{0.4, 0.1, -0.2, -0.3}, sim.WithSeed(7))

			k := s.Perturb()

			x := s.State()
			Expect(x[physics.Theta1]).To(Equal(0.4))
			Expect(x[physics.Theta2]).To(Equal(-0.2))
			Expect(x[physics.Omega1]).To(Equal(0.1 + k.D1))
			Expect(x[physics.Omega2]).To(Equal(-0.3 + k.D2))
		})

		It("draws kicks within the configured range", func() {
			s := mustNew(unitPendulum(), horizontal(), sim.WithPerturbStrength(4), sim.WithSeed(3))
			for i := 0; i < 500; i++ {
				k := s.Perturb()
				Expect(math.Abs(k.D1)).To(BeNumerically("<=", 4))
				Expect(math.Abs(k.D2)).To(BeNumerically("<=", 4))
			}
			Expect(s.Kicks()).To(Equal(500))
		})

		It("accumulates repeated kicks before the next step", func() {
			s := mustNew(unitPendulum(), horizontal(), sim.WithSeed(11))

			a := s.Perturb()
			b := s.Perturb()

			x := s.State()
			Expect(x[physics.Omega1]).To(BeNumerically("~", a.D1+b.D1, 1e-15))
			Expect(x[physics.Omega2]).To(BeNumerically("~", a.D2+b.D2, 1e-15))
		})

		It("uses the injected random source", func() {
			s := mustNew(unitPendulum(), horizontal(), sim.WithRand(rand.New(rand.NewSource(5))), sim.WithPerturbStrength(2))
			r := rand.New(rand.NewSource(5))

			k := s.Perturb()

			Expect(k.D1).To(Equal((2*r.Float64() - 1) * 2))
			Expect(k.D2).To(Equal((2*r.Float64() - 1) * 2))
		})
	})

	Describe("QueuePerturb", func() {
		It("applies queued kicks before the next integration", func() {
			queued := mustNew(unitPendulum(), horizontal(), sim.WithSeed(9))
			direct := mustNew(unitPendulum(), horizontal(), sim.WithSeed(9))

			queued.QueuePerturb()
			queued.QueuePerturb()
			Expect(queued.Pending()).To(Equal(2))
			Expect(queued.State()).To(Equal(horizontal()))

			queued.Advance(0.04)

			direct.Perturb()
			direct.Perturb()
			direct.Advance(0.04)

			Expect(queued.Pending()).To(BeZero())
			Expect(queued.Kicks()).To(Equal(2))
			Expect(queued.State()).To(Equal(direct.State()))
		})
	})

	Describe("Run", func() {
		It("stops when the callback returns false", func() {
			s := mustNew(unitPendulum(), horizontal())
			n := 0
			err := s.Run(context.Background(), 100, 0.01, func(f sim.Frame) bool {
				n++
				return n < 5
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(5))
		})

		It("returns the context error when cancelled", func() {
			s := mustNew(unitPendulum(), horizontal())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			Expect(s.Run(ctx, 10, 0.01, nil)).To(MatchError(context.Canceled))
			Expect(s.Time()).To(BeZero())
		})
	})

	Describe("Reset", func() {
		It("restores the initial configuration", func() {
			s := mustNew(unitPendulum(), horizontal(), sim.WithSeed(2))
			s.Perturb()
			s.Advance(0.1)
			s.Reset()

			Expect(s.State()).To(Equal(horizontal()))
			Expect(s.Time()).To(BeZero())
			Expect(s.Kicks()).To(BeZero())
			Expect(s.Trail()).To(BeEmpty())
		})

		It("keeps kicks queued around it", func() {
			s := mustNew(unitPendulum(), horizontal(), sim.WithSeed(2))
			s.QueuePerturb()
			s.Reset()
			Expect(s.Pending()).To(Equal(1))

			s.Advance(0.01)
			Expect(s.Kicks()).To(Equal(1))
			Expect(s.Pending()).To(BeZero())
		})

		It("can drop queued kicks explicitly", func() {
			s := mustNew(unitPendulum(), horizontal())
			s.QueuePerturb()
			s.QueuePerturb()
			Expect(s.DiscardPending()).To(Equal(2))
			Expect(s.Pending()).To(BeZero())

			s.Advance(0.01)
			Expect(s.Kicks()).To(BeZero())
		})
	})

	Describe("Frame", func() {
		It("reports positions consistent with the state", func() {
			s := mustNew(unitPendulum(), dynamo.State{0, 0, 0, 0})
			f := s.Frame()
			Expect(f.X1).To(BeZero())
			Expect(f.Y1).To(Equal(-1.0))
			Expect(f.Y2).To(Equal(-2.0))
			Expect(f.Energy).To(BeNumerically("~", -3*9.8, 1e-12))
		})
	})
})
