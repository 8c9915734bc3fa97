package models

import (
	"errors"
	"math"
)

// LinearModel is ordinary least squares regression, solved through the
// normal equations with Gaussian elimination. Deterministic: the same
// training set always yields the same coefficients.
type LinearModel struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// NewLinearModel returns an unfitted OLS model.
func NewLinearModel() *LinearModel { return &LinearModel{} }

// Family implements Model.
func (m *LinearModel) Family() Family { return Linear }

// Fit solves (A'A)b = A'y where A is X with a prepended intercept column.
func (m *LinearModel) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(X, y); err != nil {
		return err
	}

	width := len(X[0]) + 1 // intercept term
	ata := make([][]float64, width)
	for i := range ata {
		ata[i] = make([]float64, width)
	}
	aty := make([]float64, width)

	row := make([]float64, width)
	for i, xs := range X {
		row[0] = 1
		copy(row[1:], xs)
		for a := 0; a < width; a++ {
			aty[a] += row[a] * y[i]
			for b := 0; b < width; b++ {
				ata[a][b] += row[a] * row[b]
			}
		}
	}

	beta, err := solveLinearSystem(ata, aty)
	if err != nil {
		return err
	}
	m.Intercept = beta[0]
	m.Coef = beta[1:]
	return nil
}

// Predict implements Model.
func (m *LinearModel) Predict(X [][]float64) ([]float64, error) {
	if m.Coef == nil {
		return nil, ErrNotFitted
	}
	if err := checkPredictInput(X, len(m.Coef)); err != nil {
		return nil, err
	}
	out := make([]float64, len(X))
	for i, row := range X {
		v := m.Intercept
		for j, x := range row {
			v += m.Coef[j] * x
		}
		out[i] = v
	}
	return out, nil
}

// solveLinearSystem solves Ax = b by Gaussian elimination with partial
// pivoting. A and b are modified in place.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		// Pivot on the largest remaining magnitude in this column.
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("models: singular matrix, features are collinear or constant")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		v := b[r]
		for c := r + 1; c < n; c++ {
			v -= a[r][c] * x[c]
		}
		x[r] = v / a[r][r]
	}
	return x, nil
}
