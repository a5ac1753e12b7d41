package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linkage-sim/linkage/internal/driver"
)

func sampleResult() *driver.Result {
	return &driver.Result{
		Frames: []driver.Frame{
			{Time: 0, Q: []float64{0.5}, U: []float64{0}},
			{Time: 0.01, Q: []float64{0.49}, U: []float64{-0.1}},
			{Time: 0.02, Q: []float64{0.47}, U: []float64{-0.2}},
		},
		Metrics:     map[string]float64{"energy_drift": 1e-9},
		StepsTaken:  2,
		EnergyDrift: 1e-9,
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	res := sampleResult()
	runID, err := store.Save("pendulum", "rk4", 0.01, 0.02, res)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(runID, "pendulum_") {
		t.Errorf("runID = %q, want pendulum_ prefix", runID)
	}

	meta, err := store.LoadMetadata(runID)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if meta.Integrator != "rk4" || meta.StepsTaken != 2 {
		t.Errorf("metadata round trip: %+v", meta)
	}
	if meta.Metrics["energy_drift"] != 1e-9 {
		t.Errorf("metrics round trip: %v", meta.Metrics)
	}

	ids, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != runID {
		t.Errorf("List = %v, want [%s]", ids, runID)
	}
}

func TestStoreWritesTrajectoryCSV(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	runID, err := store.Save("pendulum", "rk4", 0.01, 0.02, sampleResult())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, runID, "states.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("csv rows = %d, want header + 3 frames", len(rows))
	}
	if rows[0][0] != "time" || rows[0][1] != "q0" || rows[0][2] != "u0" {
		t.Errorf("csv header = %v", rows[0])
	}

	frames, err := store.LoadFrames(runID)
	if err != nil {
		t.Fatalf("LoadFrames: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if frames[2].Time != 0.02 || frames[2].Q[0] != 0.47 || frames[2].U[0] != -0.2 {
		t.Errorf("frame round trip: %+v", frames[2])
	}
}

func TestListOnMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"))
	ids, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("List = %v, want empty", ids)
	}
}

func TestPlotCoordinate(t *testing.T) {
	res := sampleResult()
	out, err := PlotCoordinate(res, 0, 40, 6)
	if err != nil {
		t.Fatalf("PlotCoordinate: %v", err)
	}
	if out == "" {
		t.Error("empty chart")
	}
	if _, err := PlotCoordinate(res, 5, 40, 6); err == nil {
		t.Error("PlotCoordinate accepted out-of-range index")
	}
	if _, err := PlotCoordinate(&driver.Result{}, 0, 40, 6); err == nil {
		t.Error("PlotCoordinate accepted empty result")
	}
}

func TestSummaryMentionsRun(t *testing.T) {
	meta := &RunMetadata{ID: "pendulum_1", Scenario: "pendulum", Integrator: "rk4", Dt: 0.01, Duration: 1, StepsTaken: 100}
	out := Summary(meta)
	for _, want := range []string{"pendulum_1", "rk4", "100"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
