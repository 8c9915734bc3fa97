package models

import (
	"math"
	"testing"
)

func TestSVRModel_FitAndPredictInRange(t *testing.T) {
	X, y := trainingSet(func(c, m, p float64) float64 {
		return 1000/p + c/10
	})

	svr := NewSVRModel(0, 0) // defaults: C=8, gamma=8
	if err := svr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	pred, err := svr.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range y {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	for i, v := range pred {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("pred[%d] = %v", i, v)
		}
		if v < lo-span || v > hi+span {
			t.Errorf("pred[%d] = %v far outside target range [%v, %v]", i, v, lo, hi)
		}
	}

	// Fit quality should beat predicting the mean.
	if r2 := R2Score(y, pred); r2 <= 0 {
		t.Errorf("training R2 = %v, want > 0", r2)
	}
}

func TestSVRModel_Deterministic(t *testing.T) {
	X, y := trainingSet(func(c, m, p float64) float64 { return c + m*p })

	a := NewSVRModel(8, 8)
	b := NewSVRModel(8, 8)
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	pa, _ := a.Predict(X[:5])
	pb, _ := b.Predict(X[:5])
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("two fits of the same data disagree: %v vs %v", pa[i], pb[i])
		}
	}
}

func TestSVRModel_PredictBeforeFit(t *testing.T) {
	if _, err := NewSVRModel(0, 0).Predict([][]float64{{1, 2, 3}}); err == nil {
		t.Error("Predict() on unfitted model should fail")
	}
}

func TestGridSearchSVR_PicksFiniteWinner(t *testing.T) {
	X, y := trainingSet(func(c, m, p float64) float64 { return c / p })

	cs := []float64{1, 8}
	gammas := []float64{1, 8}
	m, result, err := GridSearchSVR(X, y, cs, gammas, 3, nil)
	if err != nil {
		t.Fatalf("GridSearchSVR() error = %v", err)
	}
	if m == nil || m.SupportX == nil {
		t.Fatal("search did not return a fitted model")
	}
	if math.IsInf(result.Score, 0) || math.IsNaN(result.Score) {
		t.Errorf("cv score = %v", result.Score)
	}
	foundC := result.C == 1 || result.C == 8
	foundGamma := result.Gamma == 1 || result.Gamma == 8
	if !foundC || !foundGamma {
		t.Errorf("winner (%v, %v) not from the search space", result.C, result.Gamma)
	}
}
