package models

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/microtune/microtune/pkg/dataset"
)

// Trainer fits one model per target metric from a run's filtered table
// and persists the artifacts under <DataDir>/models.
type Trainer struct {
	DataDir string
	Logger  *slog.Logger

	// Search enables the SVR hyper-parameter grid search; without it
	// the SVR fits with the fixed default cost and gamma.
	Search bool

	// HiddenSizes overrides the MLP architecture, mainly for tests.
	HiddenSizes []int
}

func (t *Trainer) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// ModelDir returns where trained artifacts are stored.
func (t *Trainer) ModelDir() string {
	return filepath.Join(t.DataDir, "models")
}

// TrainAll trains the given family for every target metric of a run.
// Each model is persisted under the name of its target.
func (t *Trainer) TrainAll(runID string, family Family) error {
	for _, target := range dataset.Targets {
		if _, _, err := t.TrainTarget(runID, target, family); err != nil {
			return err
		}
	}
	t.logger().Info("all models trained", "run", runID, "family", family.String())
	return nil
}

// TrainTarget fits one model mapping the parameter features to a single
// target metric, reports its held-out fit quality, and persists it.
//
// A missing filtered table is a warning, not an error: the method
// returns (nil, zero report, nil) so callers can continue.
func (t *Trainer) TrainTarget(runID, target string, family Family) (Model, Report, error) {
	path := filepath.Join(t.DataDir, "filtered", runID+"_filtered.csv")
	if _, err := os.Stat(path); err != nil {
		t.logger().Warn("no filtered file found for run", "run", runID, "path", path)
		return nil, Report{}, nil
	}

	X, y, err := dataset.LoadFeatures(path, target)
	if err != nil {
		return nil, Report{}, err
	}

	trainX, testX, trainY, testY := TrainTestSplit(X, y, 0.25, SplitSeed)

	var m Model
	switch family {
	case Linear:
		lm := NewLinearModel()
		if err := lm.Fit(trainX, trainY); err != nil {
			return nil, Report{}, err
		}
		m = lm
	case SupportVector:
		if t.Search {
			cs, gammas := SVRSearchSpace()
			sm, result, err := GridSearchSVR(trainX, trainY, cs, gammas, 5, t.logger())
			if err != nil {
				return nil, Report{}, err
			}
			t.logger().Info("svr search", "target", target, "c", result.C, "gamma", result.Gamma)
			m = sm
		} else {
			sm := NewSVRModel(0, 0)
			if err := sm.Fit(trainX, trainY); err != nil {
				return nil, Report{}, err
			}
			m = sm
		}
	case NeuralNetwork:
		nm := NewMLPModel()
		if len(t.HiddenSizes) > 0 {
			nm.HiddenSizes = t.HiddenSizes
		}
		// The network trains on the full set; the split only sizes the
		// held-out report.
		if err := nm.Fit(X, y); err != nil {
			return nil, Report{}, err
		}
		m = nm
	default:
		return nil, Report{}, fmt.Errorf("models: unsupported family %v", family)
	}

	report, err := Evaluate(m, testX, testY)
	if err != nil {
		return nil, Report{}, err
	}
	t.logger().Info("model trained",
		"target", target,
		"family", family.String(),
		"rows", len(X),
		"mse", report.MSE,
		"r2", report.R2,
	)

	if err := Save(t.ModelDir(), target, m); err != nil {
		return nil, Report{}, err
	}
	return m, report, nil
}

// LoadTargets loads the persisted model of every target metric, in the
// order the advisor's decision matrix expects.
func LoadTargets(modelDir string) ([]Model, error) {
	out := make([]Model, 0, len(dataset.Targets))
	for _, target := range dataset.Targets {
		m, err := Load(modelDir, target)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
