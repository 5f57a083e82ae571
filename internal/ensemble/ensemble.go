package ensemble

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/integrators"
	"github.com/san-kum/dpend/internal/physics"
)

type Config struct {
	Pendulum     physics.DoublePendulum
	Integrator   string
	BaseState    dynamo.State
	Perturbation float64
	Trials       int
	Duration     float64
	Dt           float64
	Seed         int64
	Workers      int
}

type Result struct {
	Trial      int
	InitState  dynamo.State
	FinalState dynamo.State
	TipX, TipY float64
	Finite     bool
}

// Run integrates cfg.Trials copies of the pendulum, each starting from
// BaseState with every component shifted by U(-Perturbation, Perturbation).
// Results are indexed by trial. Initial states are drawn up front so a
// given seed reproduces the same ensemble regardless of scheduling.
func Run(ctx context.Context, cfg Config) ([]Result, error) {
	if _, err := integrators.New(cfg.Integrator); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	results := make([]Result, cfg.Trials)
	for i := range results {
		jitter := make(dynamo.State, len(cfg.BaseState))
		for j := range jitter {
			jitter[j] = 2*rng.Float64() - 1
		}
		results[i] = Result{Trial: i, InitState: cfg.BaseState.Add(jitter.Scale(cfg.Perturbation))}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(cfg.Workers))

	for i := range results {
		i := i // per-iteration copy for pre-1.22 loop semantics
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// integrators keep scratch space, one per trial
			integ, _ := integrators.New(cfg.Integrator)
			dp := cfg.Pendulum

			final := integrate(ctx, &dp, integ, results[i].InitState, cfg.Dt, cfg.Duration)
			if final == nil {
				return ctx.Err()
			}
			_, _, x2, y2 := dp.Positions(final)
			results[i].FinalState = final
			results[i].TipX, results[i].TipY = x2, y2
			results[i].Finite = final.IsValid()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// integrate returns nil if ctx is cancelled part way.
func integrate(ctx context.Context, dyn dynamo.System, integ dynamo.Integrator, x0 dynamo.State, dt, duration float64) dynamo.State {
	x := x0.Clone()
	steps := int(math.Round(duration / dt))
	for i := 0; i < steps; i++ {
		if i%256 == 0 && ctx.Err() != nil {
			return nil
		}
		x = integ.Step(dyn, x, float64(i)*dt, dt)
	}
	return x
}

// Spread summarizes where the tips ended up: the centroid of the finite
// trials and the RMS distance from it.
type Spread struct {
	MeanX, MeanY float64
	RMS          float64
	Finite       int
	Diverged     int
}

func Summarize(results []Result) Spread {
	var s Spread
	for _, r := range results {
		if !r.Finite {
			s.Diverged++
			continue
		}
		s.Finite++
		s.MeanX += r.TipX
		s.MeanY += r.TipY
	}
	if s.Finite == 0 {
		return s
	}
	s.MeanX /= float64(s.Finite)
	s.MeanY /= float64(s.Finite)

	for _, r := range results {
		if r.Finite {
			dx, dy := r.TipX-s.MeanX, r.TipY-s.MeanY
			s.RMS += dx*dx + dy*dy
		}
	}
	s.RMS = math.Sqrt(s.RMS / float64(s.Finite))
	return s
}

func workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}
