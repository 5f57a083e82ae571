package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/dpend/internal/sim"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

var sampleHeader = []string{"t", "theta1", "omega1", "theta2", "omega2", "x2", "y2", "energy"}

// Store writes recorded runs under baseDir, one directory per run.
// Runs are exports for offline analysis and are never resumed.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Params     Values    `json:"params"`
	Initial    []float64 `json:"initial"`
	Kicks      int       `json:"kicks"`
	Metrics    Values    `json:"metrics"`
}

// Values is a named set of floats whose non-finite entries are written as
// JSON null and read back as NaN.
type Values map[string]float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(v))
	for name, x := range v {
		out[name] = jsonFloat(x)
	}
	return json.Marshal(out)
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(Values, len(raw))
	for name, x := range raw {
		if x == nil {
			out[name] = math.NaN()
			continue
		}
		out[name] = *x
	}
	*v = out
	return nil
}

// jsonFloat maps values JSON cannot carry to nil.
func jsonFloat(x float64) any {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}

// Sample is one row of a recorded run.
type Sample struct {
	T      float64    `json:"t"`
	State  [4]float64 `json:"state"`
	X2     float64    `json:"x2"`
	Y2     float64    `json:"y2"`
	Energy float64    `json:"energy"`
}

// MarshalJSON writes non-finite fields of a diverged sample as null.
func (smp Sample) MarshalJSON() ([]byte, error) {
	var state [4]any
	for i, x := range smp.State {
		state[i] = jsonFloat(x)
	}
	return json.Marshal(struct {
		T      any    `json:"t"`
		State  [4]any `json:"state"`
		X2     any    `json:"x2"`
		Y2     any    `json:"y2"`
		Energy any    `json:"energy"`
	}{jsonFloat(smp.T), state, jsonFloat(smp.X2), jsonFloat(smp.Y2), jsonFloat(smp.Energy)})
}

func FromFrame(f sim.Frame) Sample {
	var smp Sample
	smp.T = f.Time
	copy(smp.State[:], f.State)
	smp.X2, smp.Y2 = f.X2, f.Y2
	smp.Energy = f.Energy
	return smp
}

// Save writes a new run and returns its id. ID and Timestamp in meta are
// filled in. A run that fails to write leaves no directory behind.
func (s *Store) Save(meta RunMetadata, samples []Sample) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now()
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := writeRun(runDir, &meta, samples); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	return meta.ID, nil
}

func writeRun(runDir string, meta *RunMetadata, samples []Sample) error {
	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, samples); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}

func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sampleHeader); err != nil {
		return err
	}
	for _, smp := range samples {
		row := make([]string, 0, len(sampleHeader))
		row = append(row, formatFloat(smp.T))
		for _, v := range smp.State {
			row = append(row, formatFloat(v))
		}
		row = append(row, formatFloat(smp.X2), formatFloat(smp.Y2), formatFloat(smp.Energy))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes a run's metadata and samples as one JSON document.
func ExportJSON(w io.Writer, meta *RunMetadata, samples []Sample) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*RunMetadata
		Samples []Sample `json:"samples"`
	}{meta, samples})
}

// List returns all runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(sampleHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(records) < 2 {
		return []Sample{}, nil
	}

	samples := make([]Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		vals := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
			}
			vals[j] = v
		}
		samples = append(samples, Sample{
			T:      vals[0],
			State:  [4]float64{vals[1], vals[2], vals[3], vals[4]},
			X2:     vals[5],
			Y2:     vals[6],
			Energy: vals[7],
		})
	}
	return samples, nil
}

// Column extracts one series from samples: 0 is time, 1..4 the state, 5
// and 6 the tip position, 7 the energy.
func Column(samples []Sample, col int) []float64 {
	out := make([]float64, len(samples))
	for i, smp := range samples {
		switch {
		case col == 0:
			out[i] = smp.T
		case col <= 4:
			out[i] = smp.State[col-1]
		case col == 5:
			out[i] = smp.X2
		case col == 6:
			out[i] = smp.Y2
		default:
			out[i] = smp.Energy
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
