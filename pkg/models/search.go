package models

import (
	"fmt"
	"log/slog"
	"math"
)

// SearchResult reports the winning hyper-parameters of a grid search.
type SearchResult struct {
	C     float64
	Gamma float64
	Score float64 // cross-validated MSE of the winner
}

// SVRSearchSpace returns the log-spaced cost and gamma grids the
// search sweeps by default: C in 10^-2..10^10, gamma in 10^1..10^3,
// thirteen values each.
func SVRSearchSpace() (cs, gammas []float64) {
	return Logspace(-2, 10, 13, 10), Logspace(1, 3, 13, 10)
}

// GridSearchSVR sweeps the Cartesian product of the cost and gamma
// grids, scoring each combination by k-fold cross-validated MSE, and
// returns an SVR fitted on the full data with the winning parameters.
func GridSearchSVR(X [][]float64, y []float64, cs, gammas []float64, folds int, logger *slog.Logger) (*SVRModel, SearchResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := checkTrainingData(X, y); err != nil {
		return nil, SearchResult{}, err
	}
	if folds < 2 {
		folds = 5
	}
	if folds > len(X) {
		folds = len(X)
	}

	best := SearchResult{Score: math.Inf(1)}
	for _, c := range cs {
		for _, gamma := range gammas {
			score, err := crossValidateSVR(X, y, c, gamma, folds)
			if err != nil {
				return nil, SearchResult{}, err
			}
			if score < best.Score {
				best = SearchResult{C: c, Gamma: gamma, Score: score}
			}
		}
	}

	logger.Info("grid search finished",
		"best_c", best.C,
		"best_gamma", best.Gamma,
		"cv_mse", fmt.Sprintf("%.6f", best.Score),
	)

	winner := NewSVRModel(best.C, best.Gamma)
	if err := winner.Fit(X, y); err != nil {
		return nil, SearchResult{}, err
	}
	return winner, best, nil
}

// crossValidateSVR scores one (C, gamma) pair by contiguous k-fold
// splitting. Contiguous folds keep the scoring deterministic.
func crossValidateSVR(X [][]float64, y []float64, c, gamma float64, folds int) (float64, error) {
	n := len(X)
	foldSize := n / folds
	if foldSize == 0 {
		foldSize = 1
	}

	var total float64
	var scored int
	for f := 0; f < folds; f++ {
		lo := f * foldSize
		hi := lo + foldSize
		if f == folds-1 {
			hi = n
		}
		if lo >= n || hi <= lo {
			continue
		}

		var trainX, testX [][]float64
		var trainY, testY []float64
		for i := 0; i < n; i++ {
			if i >= lo && i < hi {
				testX = append(testX, X[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}
		if len(trainX) == 0 {
			continue
		}

		m := NewSVRModel(c, gamma)
		m.MaxIter = 500 // keep the sweep tractable
		if err := m.Fit(trainX, trainY); err != nil {
			return 0, err
		}
		pred, err := m.Predict(testX)
		if err != nil {
			return 0, err
		}
		total += MeanSquaredError(testY, pred)
		scored++
	}
	if scored == 0 {
		return math.Inf(1), nil
	}
	return total / float64(scored), nil
}
