package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/linkage-sim/linkage/internal/driver"
)

// Store persists trajectories under a base directory, one subdirectory per
// run holding metadata.json and states.csv.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Scenario    string             `json:"scenario"`
	Timestamp   time.Time          `json:"timestamp"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Integrator  string             `json:"integrator"`
	StepsTaken  int                `json:"steps_taken"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes a run's metadata and trajectory; the returned ID names the run
// subdirectory.
func (s *Store) Save(scenario, integrator string, dt, duration float64, result *driver.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", scenario, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Scenario:    scenario,
		Timestamp:   time.Now(),
		Dt:          dt,
		Duration:    duration,
		Integrator:  integrator,
		StepsTaken:  result.StepsTaken,
		EnergyDrift: result.EnergyDrift,
		Metrics:     result.Metrics,
	}
	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()
	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if len(result.Frames) == 0 {
		return runID, nil
	}

	header := []string{"time"}
	for i := range result.Frames[0].Q {
		header = append(header, fmt.Sprintf("q%d", i))
	}
	for i := range result.Frames[0].U {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, fr := range result.Frames {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatFloat(fr.Time, 'f', 6, 64))
		for _, v := range fr.Q {
			row = append(row, strconv.FormatFloat(v, 'g', 10, 64))
		}
		for _, v := range fr.U {
			row = append(row, strconv.FormatFloat(v, 'g', 10, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return runID, w.Error()
}

// LoadMetadata reads back a saved run's metadata.
func (s *Store) LoadMetadata(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadFrames reads back a saved run's trajectory.
func (s *Store) LoadFrames(runID string) ([]driver.Frame, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("report: run %s has no trajectory", runID)
	}
	header := rows[0]
	nq := 0
	for _, col := range header {
		if len(col) > 0 && col[0] == 'q' {
			nq++
		}
	}
	nu := len(header) - 1 - nq
	frames := make([]driver.Frame, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("report: run %s has a malformed trajectory row", runID)
		}
		vals := make([]float64, len(row))
		for i, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		frames = append(frames, driver.Frame{
			Time: vals[0],
			Q:    vals[1 : 1+nq],
			U:    vals[1+nq : 1+nq+nu],
		})
	}
	return frames, nil
}

// List returns the IDs of all saved runs.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
