package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/dpend/internal/analysis"
	"github.com/san-kum/dpend/internal/config"
	"github.com/san-kum/dpend/internal/export"
	"github.com/san-kum/dpend/internal/physics"
	"github.com/san-kum/dpend/internal/storage"
)

var columnNames = []string{"t", "theta1", "omega1", "theta2", "omega2", "x2", "y2", "energy"}

func loadRun(runID string) (*storage.RunMetadata, []storage.Sample, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("run %s has no samples", runID)
	}
	return meta, samples, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDURATION\tDT\tINTEG\tKICKS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%.4fs\t%s\t%d\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Kicks,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d  kicks: %d\n\n", len(samples), meta.Kicks)

	for _, col := range []int{1, 3, 7} {
		graph := asciigraph.Plot(storage.Column(samples, col),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(columnNames[col]+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("frequency analysis: %s\n\n", meta.ID)

	theta1 := storage.Column(samples, 1)
	ps := analysis.PowerSpectrum(theta1)
	if len(ps) > 8 {
		graph := asciigraph.Plot(ps[:len(ps)/4],
			asciigraph.Height(15),
			asciigraph.Width(80),
			asciigraph.Caption("power spectrum (theta1)"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	for _, col := range []int{1, 3} {
		freq := analysis.DominantFrequency(storage.Column(samples, col), meta.Dt)
		fmt.Printf("%s dominant frequency: %.3f hz", columnNames[col], freq)
		if freq > 0 {
			fmt.Printf(" (period %.3f s)", 1/freq)
		}
		fmt.Println()
	}

	fmt.Printf("energy drift: %.3e\n", analysis.RelativeDrift(storage.Column(samples, 7)))
	if meta.Kicks > 0 {
		fmt.Printf("note: %d kicks injected energy during this run\n", meta.Kicks)
	}
	for name, v := range meta.Metrics {
		fmt.Printf("%s: %.4g\n", name, v)
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	if xAxis < 0 || xAxis >= len(columnNames) || yAxis < 0 || yAxis >= len(columnNames) {
		return fmt.Errorf("axis must be between 0 and %d", len(columnNames)-1)
	}
	_, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}

	portrait := analysis.PortraitFromSeries(storage.Column(samples, xAxis), storage.Column(samples, yAxis))
	fmt.Printf("phase portrait: %s vs %s\n\n", columnNames[yAxis], columnNames[xAxis])
	fmt.Print(portrait.ToASCII(80, 30))
	return nil
}

func poincarePlot(cmd *cobra.Command, args []string) error {
	_, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}

	section := analysis.PoincareFromSeries(
		storage.Column(samples, 3),
		storage.Column(samples, 1),
		storage.Column(samples, 2),
		0,
	)
	if len(section.Points) == 0 {
		fmt.Println("no crossings detected")
		return nil
	}
	fmt.Printf("poincare section (theta2 = 0 upward): omega1 vs theta1, %d points\n\n", len(section.Points))
	fmt.Print(section.ToASCII(80, 30))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta, samples)
}

func svgRun(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadRun(args[0])
	if err != nil {
		return err
	}

	dp := physics.NewDoublePendulum()
	for name, v := range meta.Params {
		if err := dp.SetParam(name, v); err != nil {
			return fmt.Errorf("run %s: %w", meta.ID, err)
		}
	}

	w := io.Writer(os.Stdout)
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return export.WriteRunSVG(w, samples, dp, svgSize)
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTHETA1\tTHETA2\tDESCRIPTION")
	for _, name := range config.ListPresets() {
		p, _ := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%s\n", name, p.Initial.Theta1, p.Initial.Theta2, p.Description)
	}
	return w.Flush()
}
