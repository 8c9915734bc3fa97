package models

import (
	"math"
	"testing"
)

// trainingSet builds a deterministic synthetic dataset over a small
// parameter grid with y = fn(cpu, memory, pods).
func trainingSet(fn func(c, m, p float64) float64) (X [][]float64, y []float64) {
	for _, c := range []float64{100, 200, 300, 400} {
		for _, m := range []float64{128, 256, 384} {
			for _, p := range []float64{1, 2, 3} {
				X = append(X, []float64{c, m, p})
				y = append(y, fn(c, m, p))
			}
		}
	}
	return X, y
}

func TestLinearModel_RecoversCoefficients(t *testing.T) {
	X, y := trainingSet(func(c, m, p float64) float64 {
		return 10 + 2*c + 0.5*m - 3*p
	})

	lm := NewLinearModel()
	if err := lm.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	wantCoef := []float64{2, 0.5, -3}
	for i, w := range wantCoef {
		if math.Abs(lm.Coef[i]-w) > 1e-6 {
			t.Errorf("Coef[%d] = %v, want %v", i, lm.Coef[i], w)
		}
	}
	if math.Abs(lm.Intercept-10) > 1e-6 {
		t.Errorf("Intercept = %v, want 10", lm.Intercept)
	}

	pred, err := lm.Predict([][]float64{{150, 200, 2}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	want := 10 + 2*150.0 + 0.5*200.0 - 3*2.0
	if math.Abs(pred[0]-want) > 1e-6 {
		t.Errorf("Predict() = %v, want %v", pred[0], want)
	}
}

func TestLinearModel_PredictBeforeFit(t *testing.T) {
	lm := NewLinearModel()
	if _, err := lm.Predict([][]float64{{1, 2, 3}}); err == nil {
		t.Error("Predict() on unfitted model should fail")
	}
}

func TestLinearModel_SingularFeatures(t *testing.T) {
	// All rows identical: X'X is singular.
	X := [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	y := []float64{1, 2, 3}
	if err := NewLinearModel().Fit(X, y); err == nil {
		t.Error("Fit() on constant features should report a singular matrix")
	}
}

func TestTrainTestSplit_Deterministic(t *testing.T) {
	X, y := trainingSet(func(c, m, p float64) float64 { return c + m + p })

	aTrainX, aTestX, _, _ := TrainTestSplit(X, y, 0.25, SplitSeed)
	bTrainX, bTestX, _, _ := TrainTestSplit(X, y, 0.25, SplitSeed)

	if len(aTrainX) != len(bTrainX) || len(aTestX) != len(bTestX) {
		t.Fatal("same seed produced different split sizes")
	}
	for i := range aTestX {
		for j := range aTestX[i] {
			if aTestX[i][j] != bTestX[i][j] {
				t.Fatal("same seed produced different test sets")
			}
		}
	}

	wantTest := len(X) / 4
	if len(aTestX) != wantTest {
		t.Errorf("test set size = %d, want %d (25%%)", len(aTestX), wantTest)
	}
	if len(aTrainX)+len(aTestX) != len(X) {
		t.Error("split lost rows")
	}
}

func TestMetrics_PerfectPrediction(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	if mse := MeanSquaredError(y, y); mse != 0 {
		t.Errorf("MSE of perfect prediction = %v, want 0", mse)
	}
	if r2 := R2Score(y, y); r2 != 1 {
		t.Errorf("R2 of perfect prediction = %v, want 1", r2)
	}

	mean := []float64{2.5, 2.5, 2.5, 2.5}
	if r2 := R2Score(y, mean); math.Abs(r2) > 1e-12 {
		t.Errorf("R2 of mean prediction = %v, want 0", r2)
	}
}

func TestLogspace(t *testing.T) {
	got := Logspace(-2, 10, 13, 10)
	if len(got) != 13 {
		t.Fatalf("len = %d, want 13", len(got))
	}
	if math.Abs(got[0]-0.01) > 1e-12 {
		t.Errorf("first = %v, want 0.01", got[0])
	}
	if math.Abs(got[12]-1e10) > 1 {
		t.Errorf("last = %v, want 1e10", got[12])
	}
	// Consecutive ratio is constant on a log grid.
	ratio := got[1] / got[0]
	if math.Abs(ratio-10) > 1e-9 {
		t.Errorf("ratio = %v, want 10", ratio)
	}
}
