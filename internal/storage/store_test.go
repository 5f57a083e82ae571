package storage

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/sim"
)

func testSamples() []Sample {
	return []Sample{
		{T: 0, State: [4]float64{1.0, 0, 0.5, 0}, X2: 1.3, Y2: -1.4, Energy: -20.1},
		{T: 0.04, State: [4]float64{0.98, -0.3, 0.51, 0.2}, X2: 1.29, Y2: -1.45, Energy: -20.1},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(RunMetadata{
		Seed:       42,
		Dt:         0.04,
		Integrator: "rk45",
		Kicks:      3,
		Metrics:    map[string]float64{"energy": 1.5},
	}, testSamples())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Fatal("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.ID != runID || meta.Seed != 42 || meta.Kicks != 3 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Metrics["energy"] != 1.5 {
		t.Errorf("expected energy 1.5, got %f", meta.Metrics["energy"])
	}

	samples, err := st.LoadSamples(runID)
	if err != nil {
		t.Fatalf("load samples failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[1] != testSamples()[1] {
		t.Errorf("sample mismatch: got %+v", samples[1])
	}
}

func TestStoreList(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "runs"))

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	first, _ := st.Save(RunMetadata{}, nil)
	second, _ := st.Save(RunMetadata{}, nil)

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if first == second {
		t.Error("run ids should be unique")
	}
}

func TestStoreFileStructure(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	runID, err := st.Save(RunMetadata{}, testSamples())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, name := range []string{"metadata.json", "samples.csv"} {
		if _, err := os.Stat(filepath.Join(dir, runID, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestLoadMissingRun(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("missing"); err == nil {
		t.Error("expected error for missing run")
	}
	if _, err := st.LoadSamples("missing"); err == nil {
		t.Error("expected error for missing samples")
	}
}

func TestFromFrame(t *testing.T) {
	f := sim.Frame{
		Time:   1.5,
		State:  dynamo.State{0.1, 0.2, 0.3, 0.4},
		X2:     0.7,
		Y2:     -1.8,
		Energy: -28,
	}
	smp := FromFrame(f)
	if smp.T != 1.5 || smp.State[3] != 0.4 || smp.X2 != 0.7 || smp.Energy != -28 {
		t.Errorf("FromFrame() = %+v", smp)
	}
}

func TestColumn(t *testing.T) {
	samples := testSamples()
	tests := []struct {
		col  int
		want float64
	}{
		{0, 0.04},
		{1, 0.98},
		{4, 0.2},
		{5, 1.29},
		{6, -1.45},
		{7, -20.1},
	}
	for _, tt := range tests {
		if got := Column(samples, tt.col)[1]; got != tt.want {
			t.Errorf("Column(%d) = %f, want %f", tt.col, got, tt.want)
		}
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	meta := &RunMetadata{ID: "abc", Dt: 0.04}
	if err := ExportJSON(&buf, meta, testSamples()); err != nil {
		t.Fatal(err)
	}

	var out struct {
		ID      string   `json:"id"`
		Samples []Sample `json:"samples"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if out.ID != "abc" || len(out.Samples) != 2 {
		t.Errorf("unexpected export %+v", out)
	}
}

func TestSaveDivergedRun(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	nan := math.NaN()
	samples := append(testSamples(), Sample{
		T:      0.08,
		State:  [4]float64{nan, nan, nan, math.Inf(1)},
		X2:     nan,
		Y2:     nan,
		Energy: nan,
	})
	runID, err := st.Save(RunMetadata{
		Dt:      0.04,
		Params:  Values{"m1": 1},
		Metrics: Values{"energy": nan, "energy_drift": math.Inf(1), "finite": 0.5},
	}, samples)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !math.IsNaN(meta.Metrics["energy"]) || !math.IsNaN(meta.Metrics["energy_drift"]) {
		t.Errorf("non-finite metrics should load as NaN, got %v", meta.Metrics)
	}
	if meta.Metrics["finite"] != 0.5 || meta.Params["m1"] != 1 {
		t.Errorf("finite values changed: %v %v", meta.Metrics, meta.Params)
	}

	loaded, err := st.LoadSamples(runID)
	if err != nil {
		t.Fatalf("load samples failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("got %d samples, want 3", len(loaded))
	}
	if !math.IsNaN(loaded[2].State[0]) || !math.IsInf(loaded[2].State[3], 1) {
		t.Errorf("diverged row = %v", loaded[2].State)
	}

	runs, err := st.List()
	if err != nil || len(runs) != 1 {
		t.Errorf("List() = %d runs (%v), want 1", len(runs), err)
	}

	var buf bytes.Buffer
	if err := ExportJSON(&buf, meta, loaded); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !json.Valid(buf.Bytes()) {
		t.Error("export is not valid json")
	}
}

func TestSaveFailureLeavesNoDirectory(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	// initial states are validated upstream and are encoded as plain floats
	meta := RunMetadata{Dt: 0.04, Initial: []float64{math.NaN(), 0, 0, 0}}
	if _, err := st.Save(meta, testSamples()); err == nil {
		t.Fatal("expected save to fail")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed save left %d entries behind", len(entries))
	}
}
