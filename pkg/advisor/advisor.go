package advisor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/microtune/microtune/pkg/grid"
	"github.com/microtune/microtune/pkg/models"
)

// criteria orders the ranking directions to match models.LoadTargets:
// minimize response time, maximize cpu and memory usage. High predicted
// utilization at low latency means the limits fit the workload.
var criteria = []Direction{Minimize, Maximize, Maximize}

var ErrNoModels = errors.New("advisor: need one trained model per target metric")

// Advisor scores neighboring operating points with the trained target
// models and picks the best one.
type Advisor struct {
	// Models predict the target metrics, in the decision matrix's
	// column order: response time, cpu usage, memory usage.
	Models []models.Model

	// Step is the millicore and MiB increment between neighboring
	// candidates. Replicas always step by one.
	Step int

	Logger *slog.Logger
}

func (a *Advisor) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Window builds the 2*w candidate points around current: w points
// stepping down by 1..w steps, then w points stepping up. Replicas
// move one per offset while cpu and memory move a full step.
func Window(current grid.Point, w, step int) []grid.Point {
	points := make([]grid.Point, 2*w)
	for i := 0; i < 2*w; i++ {
		j := (i % w) + 1
		if i < w {
			points[i] = grid.Point{
				CPUMillis: current.CPUMillis - j*step,
				MemoryMiB: current.MemoryMiB - j*step,
				Replicas:  current.Replicas - j,
			}
		} else {
			points[i] = grid.Point{
				CPUMillis: current.CPUMillis + j*step,
				MemoryMiB: current.MemoryMiB + j*step,
				Replicas:  current.Replicas + j,
			}
		}
	}
	return points
}

// Recommend predicts every target metric across the candidate window
// around current and returns the top-ranked point.
func (a *Advisor) Recommend(current grid.Point, window int) (grid.Point, error) {
	if len(a.Models) != len(criteria) {
		return grid.Point{}, ErrNoModels
	}
	if window < 1 {
		return grid.Point{}, fmt.Errorf("advisor: window must be at least 1, got %d", window)
	}

	candidates := Window(current, window, a.Step)
	features := make([][]float64, len(candidates))
	for i, p := range candidates {
		features[i] = []float64{float64(p.CPUMillis), float64(p.MemoryMiB), float64(p.Replicas)}
	}

	matrix := make([][]float64, len(candidates))
	for i := range matrix {
		matrix[i] = make([]float64, len(a.Models))
	}
	for c, m := range a.Models {
		pred, err := m.Predict(features)
		if err != nil {
			return grid.Point{}, fmt.Errorf("advisor: predict column %d: %w", c, err)
		}
		for i, v := range pred {
			matrix[i][c] = v
		}
	}

	best, err := TOPSIS(matrix, criteria)
	if err != nil {
		return grid.Point{}, err
	}

	chosen := candidates[best]
	a.logger().Info("operating point recommended",
		"cpu", chosen.CPUMillis,
		"memory", chosen.MemoryMiB,
		"pods", chosen.Replicas,
		"art", matrix[best][0],
		"cpu_usage", matrix[best][1],
		"memory_usage", matrix[best][2],
	)
	return chosen, nil
}
