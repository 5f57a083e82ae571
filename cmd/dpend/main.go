package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/dpend/internal/config"
	"github.com/san-kum/dpend/internal/logging"
	"github.com/san-kum/dpend/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	logFile    string

	dt         float64
	theta1     float64
	omega1     float64
	theta2     float64
	omega2     float64
	trailLen   int
	strength   float64
	integrator string
	seed       int64
	theme      string

	addr      string
	kickEvery float64
	xAxis     int
	yAxis     int
	spectrum  bool
	trials    int
	spread    float64
	gridSize  int
	svgSize   int
	output    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// newRootCmd registers the dpend commands. Flags whose default differs
// between commands (--time, --workers, --fps) are registered without a
// shared variable and read back with cmd.Flags() in each command.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dpend",
		Short:         "chaotic double pendulum you can kick",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dpend", "data directory for recorded runs")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "initial condition preset")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run the pendulum in the terminal, click to kick it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	liveCmd.Flags().Int("fps", 25, "frames per second")
	liveCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")
	liveCmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")

	serveCmd := &cobra.Command{
		Use:   "serve [preset]",
		Short: "serve the pendulum over http and websocket",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}
	addSimFlags(serveCmd)
	serveCmd.Flags().Int("fps", 25, "frames per second")
	serveCmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")

	recordCmd := &cobra.Command{
		Use:   "record [preset]",
		Short: "run headless and save the trajectory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRecord,
	}
	addSimFlags(recordCmd)
	recordCmd.Flags().Float64("time", 20.0, "simulated seconds")
	recordCmd.Flags().Float64Var(&kickEvery, "kick-every", 0, "kick every n simulated seconds (0 disables)")

	compareCmd := &cobra.Command{
		Use:   "compare [preset]",
		Short: "compare energy drift across integrators",
		Args:  cobra.MaximumNArgs(1),
		RunE:  compareIntegrators,
	}
	addSimFlags(compareCmd)
	compareCmd.Flags().Float64("time", 10.0, "simulated seconds")

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov [preset]",
		Short: "estimate the largest lyapunov exponent",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLyapunov,
	}
	addSimFlags(lyapunovCmd)
	lyapunovCmd.Flags().Float64("time", 20.0, "simulated seconds")
	lyapunovCmd.Flags().BoolVar(&spectrum, "spectrum", false, "report the rate seen from each state direction")

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [preset]",
		Short: "run many nearly identical pendulums and measure how far apart they end up",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnsemble,
	}
	addSimFlags(ensembleCmd)
	ensembleCmd.Flags().Float64("time", 10.0, "simulated seconds")
	ensembleCmd.Flags().IntVar(&trials, "trials", 64, "number of pendulums")
	ensembleCmd.Flags().Float64Var(&spread, "spread", 1e-6, "initial state jitter per component")
	ensembleCmd.Flags().Int("workers", 0, "parallel workers (0 uses all cpus)")

	chaosMapCmd := &cobra.Command{
		Use:   "chaosmap",
		Short: "map the lyapunov exponent over starting angles",
		Args:  cobra.NoArgs,
		RunE:  runChaosMap,
	}
	addSimFlags(chaosMapCmd)
	chaosMapCmd.Flags().Float64("time", 10.0, "simulated seconds per cell")
	chaosMapCmd.Flags().IntVar(&gridSize, "grid", 24, "cells per axis")
	chaosMapCmd.Flags().Int("workers", 0, "parallel workers (0 uses all cpus)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot angles and energy of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency and energy drift analysis of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase portrait of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x", 1, "x axis column (1=theta1 2=omega1 3=theta2 4=omega2)")
	phaseCmd.Flags().IntVar(&yAxis, "y", 2, "y axis column")

	poincareCmd := &cobra.Command{
		Use:   "poincare [run_id]",
		Short: "poincare section of a run where theta2 crosses zero",
		Args:  cobra.ExactArgs(1),
		RunE:  poincarePlot,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print a run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "draw a run's trail as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  svgRun,
	}
	svgCmd.Flags().IntVar(&svgSize, "size", 600, "image width and height in pixels")
	svgCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list initial condition presets",
		RunE:  listPresets,
	}

	rootCmd.AddCommand(liveCmd, serveCmd, recordCmd, compareCmd, lyapunovCmd,
		ensembleCmd, chaosMapCmd, listCmd, plotCmd, analyzeCmd, phaseCmd,
		poincareCmd, exportCmd, svgCmd, presetsCmd)
	return rootCmd
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "simulated seconds per frame")
	cmd.Flags().Float64Var(&theta1, "theta1", config.DefaultTheta, "initial angle of the first link")
	cmd.Flags().Float64Var(&omega1, "omega1", 0, "initial angular velocity of the first link")
	cmd.Flags().Float64Var(&theta2, "theta2", config.DefaultTheta, "initial angle of the second link")
	cmd.Flags().Float64Var(&omega2, "omega2", 0, "initial angular velocity of the second link")
	cmd.Flags().IntVar(&trailLen, "trail", config.DefaultTrail, "trail length in points")
	cmd.Flags().Float64Var(&strength, "strength", config.DefaultStrength, "kick strength in rad/s")
	cmd.Flags().StringVar(&integrator, "integrator", "rk45", "integrator (euler, rk4, rk45)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
}

// loadConfig layers defaults, the config file, .env and DPEND_* variables,
// the preset and finally any flags the user set explicitly.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if err := config.LoadEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	name := preset
	if len(args) > 0 {
		name = args[0]
	}
	if name != "" {
		if err := cfg.ApplyPreset(name); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("theta1") {
		cfg.Initial.Theta1 = theta1
	}
	if flags.Changed("omega1") {
		cfg.Initial.Omega1 = omega1
	}
	if flags.Changed("theta2") {
		cfg.Initial.Theta2 = theta2
	}
	if flags.Changed("omega2") {
		cfg.Initial.Omega2 = omega2
	}
	if flags.Changed("trail") {
		cfg.Trail = trailLen
	}
	if flags.Changed("strength") {
		cfg.PerturbStrength = strength
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("addr") {
		cfg.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
