package ensemble

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/physics"
)

func baseConfig() Config {
	return Config{
		Pendulum:     *physics.NewDoublePendulum(),
		Integrator:   "rk4",
		Perturbation: 1e-3,
		Trials:       8,
		Duration:     10,
		Dt:           0.01,
		Seed:         3,
		Workers:      4,
	}
}

func TestRunReproducible(t *testing.T) {
	cfg := baseConfig()
	cfg.BaseState = dynamo.State{2.5, 0, 2.5, 0}

	a, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if len(a) != cfg.Trials {
		t.Fatalf("results = %d, want %d", len(a), cfg.Trials)
	}
	for i := range a {
		if a[i].Trial != i {
			t.Errorf("result %d has trial %d", i, a[i].Trial)
		}
		if a[i].TipX != b[i].TipX || a[i].TipY != b[i].TipY {
			t.Errorf("trial %d differs between runs with the same seed", i)
		}
	}
}

func TestInitialJitterWithinPerturbation(t *testing.T) {
	cfg := baseConfig()
	cfg.BaseState = dynamo.State{1, 0.5, -1, 0}
	cfg.Duration = 0.1

	results, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if len(r.InitState) != len(cfg.BaseState) {
			t.Fatalf("trial %d init length = %d", r.Trial, len(r.InitState))
		}
		d := r.InitState.Sub(cfg.BaseState)
		if d.Norm() == 0 {
			t.Errorf("trial %d was not jittered", r.Trial)
		}
		for j, v := range d {
			if math.Abs(v) > cfg.Perturbation {
				t.Errorf("trial %d component %d jitter %g exceeds %g", r.Trial, j, v, cfg.Perturbation)
			}
		}
	}
	if cfg.BaseState[0] != 1 {
		t.Error("base state was modified")
	}
}

func TestChaoticEnsembleSpreadsMore(t *testing.T) {
	gentle := baseConfig()
	gentle.BaseState = dynamo.State{0.1, 0, 0.1, 0}
	wild := baseConfig()
	wild.BaseState = dynamo.State{3.0, 0, 3.0, 0}

	g, err := Run(context.Background(), gentle)
	if err != nil {
		t.Fatal(err)
	}
	w, err := Run(context.Background(), wild)
	if err != nil {
		t.Fatal(err)
	}

	gs, ws := Summarize(g), Summarize(w)
	if gs.Finite != gentle.Trials || ws.Finite != wild.Trials {
		t.Fatalf("unexpected divergence: %+v %+v", gs, ws)
	}
	if ws.RMS <= 10*gs.RMS {
		t.Errorf("chaotic spread %.4g should dwarf regular spread %.4g", ws.RMS, gs.RMS)
	}
}

func TestRunUnknownIntegrator(t *testing.T) {
	cfg := baseConfig()
	cfg.Integrator = "verlet"
	if _, err := Run(context.Background(), cfg); !errors.Is(err, dynamo.ErrUnknownIntegrator) {
		t.Errorf("Run() = %v, want ErrUnknownIntegrator", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := baseConfig()
	cfg.BaseState = dynamo.State{1, 0, 1, 0}
	if _, err := Run(ctx, cfg); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{TipX: 1, TipY: 0, Finite: true},
		{TipX: -1, TipY: 0, Finite: true},
		{TipX: math.NaN(), Finite: false},
	}
	s := Summarize(results)
	if s.Finite != 2 || s.Diverged != 1 {
		t.Errorf("counts = %d/%d", s.Finite, s.Diverged)
	}
	if s.MeanX != 0 || math.Abs(s.RMS-1) > 1e-12 {
		t.Errorf("spread = %+v, want centroid 0 and rms 1", s)
	}
}

func TestLinspace(t *testing.T) {
	got := Linspace(0, 1, 5)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Linspace[%d] = %f, want %f", i, got[i], want[i])
		}
	}
	if len(Linspace(2, 3, 1)) != 1 {
		t.Error("n=1 should give a single value")
	}
}

func TestChaosMap(t *testing.T) {
	cm, err := BuildChaosMap(context.Background(), MapConfig{
		Pendulum:   *physics.NewDoublePendulum(),
		Integrator: "rk4",
		Theta1:     []float64{0.05, 3.0},
		Theta2:     []float64{0.05, 3.0},
		Dt:         0.01,
		Duration:   10,
		Workers:    2,
	})
	if err != nil {
		t.Fatal(err)
	}

	if cm.Lambda[0][0] >= cm.Lambda[1][1] {
		t.Errorf("small swing exponent %f should be below the high start %f", cm.Lambda[0][0], cm.Lambda[1][1])
	}
	calm, wild := cm.Extremes()
	if calm == wild {
		t.Errorf("extremes should differ, both %v", calm)
	}
	if cm.Lambda[calm[0]][calm[1]] > cm.Lambda[0][0] {
		t.Error("calmest cell is not the minimum")
	}

	lines := strings.Split(strings.TrimSuffix(cm.ToASCII(), "\n"), "\n")
	if len(lines) != 2 || len([]rune(lines[0])) != 4 {
		t.Errorf("unexpected map shape:\n%s", cm.ToASCII())
	}
}
