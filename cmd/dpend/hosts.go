package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/san-kum/dpend/internal/analysis"
	"github.com/san-kum/dpend/internal/ensemble"
	"github.com/san-kum/dpend/internal/integrators"
	"github.com/san-kum/dpend/internal/logging"
	"github.com/san-kum/dpend/internal/metrics"
	"github.com/san-kum/dpend/internal/server"
	"github.com/san-kum/dpend/internal/sim"
	"github.com/san-kum/dpend/internal/storage"
	"github.com/san-kum/dpend/internal/viz"
)

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	// the terminal belongs to the view, so logs go to a file or nowhere
	logger := logging.Discard()
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		if logger, err = logging.New(cfg.LogLevel, f); err != nil {
			return err
		}
	}

	fps, err := cmd.Flags().GetInt("fps")
	if err != nil {
		return err
	}
	s, err := cfg.Build(logger)
	if err != nil {
		return err
	}

	m := viz.NewModel(s, cfg.Dt, cfg.Pendulum().Reach(),
		viz.WithFPS(fps),
		viz.WithTheme(theme),
		viz.WithLogger(logger),
	)
	return viz.Run(m)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	fps, err := cmd.Flags().GetInt("fps")
	if err != nil {
		return err
	}
	s, err := cfg.Build(logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(logger, s, cfg.Dt, server.WithFPS(fps))
	return srv.Run(ctx, cfg.Addr)
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	duration, err := cmd.Flags().GetFloat64("time")
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	dp := cfg.Pendulum()
	ms := []metrics.Metric{
		metrics.NewEnergy(dp),
		metrics.NewEnergyDrift(dp),
		metrics.NewPeakSpeed(),
		metrics.NewFinite(),
	}
	extra := make([]sim.Option, 0, len(ms))
	for _, m := range ms {
		extra = append(extra, sim.WithObserver(m))
	}

	s, err := cfg.Build(logger, extra...)
	if err != nil {
		return err
	}

	steps := int(math.Round(duration / cfg.Dt))
	kickSteps := 0
	if kickEvery > 0 {
		kickSteps = max(int(math.Round(kickEvery/cfg.Dt)), 1)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	samples := make([]storage.Sample, 0, steps+1)
	samples = append(samples, storage.FromFrame(s.Frame()))
	step := 0
	err = s.Run(ctx, steps, cfg.Dt, func(f sim.Frame) bool {
		samples = append(samples, storage.FromFrame(f))
		step++
		if kickSteps > 0 && step%kickSteps == 0 {
			s.QueuePerturb()
		}
		return true
	})
	if err != nil {
		logger.Warn("recording interrupted", slog.Int("steps", step), slog.Any("error", err))
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(storage.RunMetadata{
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Duration:   s.Time(),
		Integrator: cfg.Integrator,
		Params:     dp.GetParams(),
		Initial:    cfg.GetInitState(),
		Kicks:      s.Kicks(),
		Metrics:    metrics.Collect(ms),
	}, samples)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	logger.Info("run recorded", slog.String("id", runID), slog.Int("samples", len(samples)), slog.Int("kicks", s.Kicks()))
	fmt.Println(runID)
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	duration, err := cmd.Flags().GetFloat64("time")
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}

	steps := int(math.Round(duration / cfg.Dt))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tENERGY DRIFT\tFINITE\tWALL TIME")

	for _, name := range integrators.Names() {
		run := *cfg
		run.Integrator = name

		dp := run.Pendulum()
		drift, finite := metrics.NewEnergyDrift(dp), metrics.NewFinite()
		s, err := run.Build(logging.Discard(), sim.WithObserver(drift), sim.WithObserver(finite))
		if err != nil {
			return err
		}

		start := time.Now()
		if err := s.Run(context.Background(), steps, run.Dt, nil); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%.3e\t%.0f%%\t%s\n", name, drift.Value(), finite.Value()*100, time.Since(start).Round(time.Microsecond))
	}
	return w.Flush()
}

func runLyapunov(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	duration, err := cmd.Flags().GetFloat64("time")
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}

	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return err
	}
	dp, x0 := cfg.Pendulum(), cfg.GetInitState()

	if spectrum {
		labels := []string{"theta1", "omega1", "theta2", "omega2"}
		for i, v := range analysis.LyapunovSpectrum(dp, integ, x0, cfg.Dt/4, duration, 1e-8) {
			fmt.Printf("%-7s %+.4f /s\n", labels[i], v)
		}
		return nil
	}

	lambda := analysis.LyapunovExponent(dp, integ, x0, cfg.Dt/4, duration, 1e-8)
	fmt.Printf("largest lyapunov exponent: %+.4f /s\n", lambda)
	if lambda > 0.1 {
		fmt.Printf("chaotic: nearby trajectories separate e-fold every %.2f s\n", 1/lambda)
	} else {
		fmt.Println("regular: no exponential separation detected")
	}
	return nil
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	duration, err := cmd.Flags().GetFloat64("time")
	if err != nil {
		return err
	}
	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	results, err := ensemble.Run(ctx, ensemble.Config{
		Pendulum:     *cfg.Pendulum(),
		Integrator:   cfg.Integrator,
		BaseState:    cfg.GetInitState(),
		Perturbation: spread,
		Trials:       trials,
		Duration:     duration,
		Dt:           cfg.Dt / 4,
		Seed:         cfg.Seed,
		Workers:      workers,
	})
	if err != nil {
		return err
	}
	logger.Debug("ensemble finished", slog.Int("trials", len(results)), slog.Duration("elapsed", time.Since(start)))

	sp := ensemble.Summarize(results)
	fmt.Printf("trials: %d (diverged %d)\n", sp.Finite+sp.Diverged, sp.Diverged)
	fmt.Printf("initial jitter: %.1e\n", spread)
	fmt.Printf("tip centroid after %.1fs: (%+.3f, %+.3f)\n", duration, sp.MeanX, sp.MeanY)
	fmt.Printf("tip rms spread: %.3e (%.1fx the jitter)\n", sp.RMS, sp.RMS/spread)
	return nil
}

func runChaosMap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	duration, err := cmd.Flags().GetFloat64("time")
	if err != nil {
		return err
	}
	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	axis := ensemble.Linspace(-math.Pi, math.Pi, gridSize)
	cm, err := ensemble.BuildChaosMap(ctx, ensemble.MapConfig{
		Pendulum:   *cfg.Pendulum(),
		Integrator: cfg.Integrator,
		Theta1:     axis,
		Theta2:     axis,
		Dt:         cfg.Dt / 4,
		Duration:   duration,
		Workers:    workers,
	})
	if err != nil {
		return err
	}

	fmt.Println("lyapunov exponent, theta2 across and theta1 down, both from -pi to pi")
	fmt.Print(cm.ToASCII())
	calm, wild := cm.Extremes()
	fmt.Printf("calmest start: theta1=%+.2f theta2=%+.2f lambda=%+.3f\n",
		cm.Theta1[calm[0]], cm.Theta2[calm[1]], cm.Lambda[calm[0]][calm[1]])
	fmt.Printf("wildest start: theta1=%+.2f theta2=%+.2f lambda=%+.3f\n",
		cm.Theta1[wild[0]], cm.Theta2[wild[1]], cm.Lambda[wild[0]][wild[1]])
	return nil
}
