package models

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/microtune/microtune/pkg/dataset"
)

// writeFilteredTable builds a plausible filtered run table where each
// target metric is a noiseless function of the resource parameters.
func writeFilteredTable(t *testing.T, dataDir, runID string) {
	t.Helper()
	dir := filepath.Join(dataDir, "filtered")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	rows := "iteration,pod,cpu limit,memory limit,number of pods,average response time,cpu usage,memory usage\n"
	iter := 1
	for _, cpu := range []float64{100, 200, 300, 400, 500} {
		for _, mem := range []float64{128, 256, 384} {
			for _, pods := range []float64{1, 2, 3} {
				art := 5000/(cpu*pods) + 100/mem
				cpuUse := 90 - cpu/10 - 5*pods
				memUse := 95 - mem/8
				rows += fmt.Sprintf("%d,teastore-webui-0,%g,%g,%g,%g,%g,%g\n",
					iter, cpu, mem, pods, art, cpuUse, memUse)
				iter++
			}
		}
	}
	path := filepath.Join(dir, runID+"_filtered.csv")
	if err := os.WriteFile(path, []byte(rows), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTrainer_TrainTarget(t *testing.T) {
	dataDir := t.TempDir()
	writeFilteredTable(t, dataDir, "20250101-120000")

	tr := &Trainer{DataDir: dataDir, Logger: slog.Default()}
	m, report, err := tr.TrainTarget("20250101-120000", dataset.TargetResponseTime, Linear)
	if err != nil {
		t.Fatalf("TrainTarget() error = %v", err)
	}
	if m == nil {
		t.Fatal("TrainTarget() returned nil model")
	}
	if report.MSE < 0 {
		t.Errorf("MSE = %v, want >= 0", report.MSE)
	}

	// The artifact must land under <DataDir>/models/<target>.json.
	path := Path(tr.ModelDir(), dataset.TargetResponseTime)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("artifact not persisted at %s: %v", path, err)
	}

	loaded, err := Load(tr.ModelDir(), dataset.TargetResponseTime)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Family() != Linear {
		t.Errorf("loaded Family() = %v, want %v", loaded.Family(), Linear)
	}
}

func TestTrainer_TrainAll(t *testing.T) {
	dataDir := t.TempDir()
	writeFilteredTable(t, dataDir, "20250101-130000")

	tr := &Trainer{DataDir: dataDir, Logger: slog.Default(), HiddenSizes: []int{8, 8}}
	for _, family := range []Family{Linear, SupportVector, NeuralNetwork} {
		if err := tr.TrainAll("20250101-130000", family); err != nil {
			t.Fatalf("TrainAll(%v) error = %v", family, err)
		}
	}

	// Every target metric gets one artifact; later families overwrite
	// earlier ones under the same name.
	loaded, err := LoadTargets(tr.ModelDir())
	if err != nil {
		t.Fatalf("LoadTargets() error = %v", err)
	}
	if len(loaded) != len(dataset.Targets) {
		t.Fatalf("LoadTargets() returned %d models, want %d", len(loaded), len(dataset.Targets))
	}
	for i, m := range loaded {
		if m.Family() != NeuralNetwork {
			t.Errorf("model %d Family() = %v, want %v", i, m.Family(), NeuralNetwork)
		}
	}
}

func TestTrainer_MissingFilteredFile(t *testing.T) {
	tr := &Trainer{DataDir: t.TempDir(), Logger: slog.Default()}
	m, report, err := tr.TrainTarget("19990101-000000", dataset.TargetCPUUsage, Linear)
	if err != nil {
		t.Fatalf("TrainTarget() error = %v, want nil (missing file is only a warning)", err)
	}
	if m != nil {
		t.Errorf("TrainTarget() model = %v, want nil", m)
	}
	if report != (Report{}) {
		t.Errorf("TrainTarget() report = %+v, want zero", report)
	}
}

func TestTrainer_UnsupportedFamily(t *testing.T) {
	dataDir := t.TempDir()
	writeFilteredTable(t, dataDir, "20250101-140000")

	tr := &Trainer{DataDir: dataDir, Logger: slog.Default()}
	if _, _, err := tr.TrainTarget("20250101-140000", dataset.TargetCPUUsage, Family(99)); err == nil {
		t.Error("TrainTarget() with a bogus family should fail")
	}
}
