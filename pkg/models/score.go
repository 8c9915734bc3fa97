package models

import (
	"fmt"
	"math"
	"math/rand"
)

// Report summarizes a model's fit quality on held-out data.
type Report struct {
	MSE float64
	R2  float64
}

func (r Report) String() string {
	return fmt.Sprintf("mse=%.4f r2=%.4f", r.MSE, r.R2)
}

// MeanSquaredError computes the average squared residual.
func MeanSquaredError(want, got []float64) float64 {
	if len(want) == 0 {
		return 0
	}
	var sum float64
	for i := range want {
		d := want[i] - got[i]
		sum += d * d
	}
	return sum / float64(len(want))
}

// R2Score computes the coefficient of determination. A perfect
// prediction scores 1; predicting the mean scores 0.
func R2Score(want, got []float64) float64 {
	if len(want) == 0 {
		return 0
	}
	var mean float64
	for _, v := range want {
		mean += v
	}
	mean /= float64(len(want))

	var ssRes, ssTot float64
	for i := range want {
		r := want[i] - got[i]
		ssRes += r * r
		d := want[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// Evaluate predicts over X and scores the result against y.
func Evaluate(m Model, X [][]float64, y []float64) (Report, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return Report{}, err
	}
	return Report{MSE: MeanSquaredError(y, pred), R2: R2Score(y, pred)}, nil
}

// SplitSeed is the fixed shuffle seed for train/test splits, so every
// training run sees the same partition of the same dataset.
const SplitSeed = 1

// TrainTestSplit shuffles the dataset with the given seed and carves
// off testFraction of it (rounded down, at least one row when the set
// has more than one) as the held-out test set.
func TrainTestSplit(X [][]float64, y []float64, testFraction float64, seed int64) (trainX [][]float64, testX [][]float64, trainY []float64, testY []float64) {
	n := len(X)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	testN := int(float64(n) * testFraction)
	if testN == 0 && n > 1 {
		testN = 1
	}

	for k, i := range idx {
		if k < testN {
			testX = append(testX, X[i])
			testY = append(testY, y[i])
		} else {
			trainX = append(trainX, X[i])
			trainY = append(trainY, y[i])
		}
	}
	return trainX, testX, trainY, testY
}

// Logspace returns num values spaced evenly on a log scale between
// base^start and base^stop inclusive.
func Logspace(start, stop float64, num int, base float64) []float64 {
	if num <= 0 {
		return nil
	}
	if num == 1 {
		return []float64{math.Pow(base, start)}
	}
	out := make([]float64, num)
	step := (stop - start) / float64(num-1)
	for i := range out {
		out[i] = math.Pow(base, start+float64(i)*step)
	}
	return out
}
