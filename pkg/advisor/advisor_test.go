package advisor

import (
	"testing"

	"github.com/microtune/microtune/pkg/grid"
	"github.com/microtune/microtune/pkg/models"
)

func TestWindow_CandidateValues(t *testing.T) {
	current := grid.Point{CPUMillis: 300, MemoryMiB: 512, Replicas: 3}
	points := Window(current, 2, 50)

	want := []grid.Point{
		{CPUMillis: 250, MemoryMiB: 462, Replicas: 2},
		{CPUMillis: 200, MemoryMiB: 412, Replicas: 1},
		{CPUMillis: 350, MemoryMiB: 562, Replicas: 4},
		{CPUMillis: 400, MemoryMiB: 612, Replicas: 5},
	}
	if len(points) != len(want) {
		t.Fatalf("Window() returned %d points, want %d", len(points), len(want))
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("Window()[%d] = %+v, want %+v", i, points[i], want[i])
		}
	}

	cpus := map[int]bool{}
	for _, p := range points {
		cpus[p.CPUMillis] = true
	}
	for _, c := range []int{200, 250, 350, 400} {
		if !cpus[c] {
			t.Errorf("candidate cpu %d missing from window", c)
		}
	}
}

func TestWindow_SizeIsTwiceW(t *testing.T) {
	for _, w := range []int{1, 2, 5} {
		if got := len(Window(grid.Point{CPUMillis: 500, MemoryMiB: 512, Replicas: 6}, w, 100)); got != 2*w {
			t.Errorf("Window(w=%d) size = %d, want %d", w, got, 2*w)
		}
	}
}

func TestTOPSIS_DominantAlternativeWins(t *testing.T) {
	// Row 1 dominates: lowest response time, highest utilization.
	matrix := [][]float64{
		{80, 40, 50},
		{20, 90, 85},
		{60, 55, 60},
	}
	best, err := TOPSIS(matrix, []Direction{Minimize, Maximize, Maximize})
	if err != nil {
		t.Fatalf("TOPSIS() error = %v", err)
	}
	if best != 1 {
		t.Errorf("TOPSIS() best = %d, want 1", best)
	}
}

func TestTOPSIS_TieBreaksToLowestIndex(t *testing.T) {
	matrix := [][]float64{
		{10, 50, 50},
		{10, 50, 50},
		{10, 50, 50},
	}
	best, err := TOPSIS(matrix, []Direction{Minimize, Maximize, Maximize})
	if err != nil {
		t.Fatalf("TOPSIS() error = %v", err)
	}
	if best != 0 {
		t.Errorf("TOPSIS() best on tie = %d, want 0", best)
	}
}

func TestTOPSIS_Errors(t *testing.T) {
	if _, err := TOPSIS(nil, []Direction{Minimize}); err == nil {
		t.Error("TOPSIS() with no alternatives should fail")
	}
	if _, err := TOPSIS([][]float64{{1, 2}}, []Direction{Minimize}); err == nil {
		t.Error("TOPSIS() with mismatched criteria should fail")
	}
	if _, err := TOPSIS([][]float64{{0}, {0}}, []Direction{Minimize}); err == nil {
		t.Error("TOPSIS() with an all-zero column should fail")
	}
}

// stubModel returns a fixed prediction per input row.
type stubModel struct {
	fn func(x []float64) float64
}

func (s stubModel) Family() models.Family                { return models.Linear }
func (s stubModel) Fit(_ [][]float64, _ []float64) error { return nil }

func (s stubModel) Predict(X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = s.fn(x)
	}
	return out, nil
}

func TestAdvisor_Recommend(t *testing.T) {
	// Response time falls and utilization rises with cpu, so the
	// largest candidate in the window should win.
	a := &Advisor{
		Models: []models.Model{
			stubModel{fn: func(x []float64) float64 { return 10000 / x[0] }},
			stubModel{fn: func(x []float64) float64 { return x[0] / 10 }},
			stubModel{fn: func(x []float64) float64 { return x[1] / 16 }},
		},
		Step: 50,
	}

	got, err := a.Recommend(grid.Point{CPUMillis: 300, MemoryMiB: 512, Replicas: 3}, 2)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	want := grid.Point{CPUMillis: 400, MemoryMiB: 612, Replicas: 5}
	if got != want {
		t.Errorf("Recommend() = %+v, want %+v", got, want)
	}
}

func TestAdvisor_Recommend_Validation(t *testing.T) {
	a := &Advisor{Models: []models.Model{stubModel{}}, Step: 50}
	if _, err := a.Recommend(grid.Point{CPUMillis: 300, MemoryMiB: 512, Replicas: 3}, 2); err == nil {
		t.Error("Recommend() with too few models should fail")
	}

	a.Models = []models.Model{
		stubModel{fn: func([]float64) float64 { return 1 }},
		stubModel{fn: func([]float64) float64 { return 1 }},
		stubModel{fn: func([]float64) float64 { return 1 }},
	}
	if _, err := a.Recommend(grid.Point{CPUMillis: 300, MemoryMiB: 512, Replicas: 3}, 0); err == nil {
		t.Error("Recommend() with window 0 should fail")
	}
}
