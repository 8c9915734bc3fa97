// Package advisor recommends the next resource operating point. It
// predicts every target metric over a window of neighboring parameter
// combinations and ranks the candidates with TOPSIS, a closeness-based
// multi-criteria decision method.
package advisor

import (
	"errors"
	"math"
)

// Direction states whether a criterion column should be minimized or
// maximized when ranking alternatives.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

var (
	ErrEmptyMatrix    = errors.New("advisor: decision matrix has no alternatives")
	ErrCriteriaShape  = errors.New("advisor: criteria count does not match matrix columns")
	ErrDegenerateNorm = errors.New("advisor: criterion column is all zeros")
)

// TOPSIS ranks the alternatives of a decision matrix by relative
// closeness to the ideal solution. Each column is vector-normalized
// (divided by its Euclidean norm) and weighted equally, the ideal and
// anti-ideal points are taken per criterion direction, and each row is
// scored by d-/(d- + d+). It returns the index of the best row; on a
// tie the lowest index wins.
func TOPSIS(matrix [][]float64, criteria []Direction) (int, error) {
	if len(matrix) == 0 {
		return 0, ErrEmptyMatrix
	}
	cols := len(matrix[0])
	if len(criteria) != cols {
		return 0, ErrCriteriaShape
	}
	for _, row := range matrix {
		if len(row) != cols {
			return 0, ErrCriteriaShape
		}
	}

	// Vector normalization per column.
	norm := make([][]float64, len(matrix))
	for i := range norm {
		norm[i] = make([]float64, cols)
	}
	weight := 1.0 / float64(cols)
	for c := 0; c < cols; c++ {
		var ss float64
		for _, row := range matrix {
			ss += row[c] * row[c]
		}
		colNorm := math.Sqrt(ss)
		if colNorm == 0 {
			return 0, ErrDegenerateNorm
		}
		for i, row := range matrix {
			norm[i][c] = row[c] / colNorm * weight
		}
	}

	// Ideal and anti-ideal points per criterion direction.
	ideal := make([]float64, cols)
	antiIdeal := make([]float64, cols)
	for c := 0; c < cols; c++ {
		lo, hi := norm[0][c], norm[0][c]
		for _, row := range norm {
			if row[c] < lo {
				lo = row[c]
			}
			if row[c] > hi {
				hi = row[c]
			}
		}
		if criteria[c] == Maximize {
			ideal[c], antiIdeal[c] = hi, lo
		} else {
			ideal[c], antiIdeal[c] = lo, hi
		}
	}

	best := 0
	bestScore := -1.0
	for i, row := range norm {
		var dPlus, dMinus float64
		for c := 0; c < cols; c++ {
			dPlus += (row[c] - ideal[c]) * (row[c] - ideal[c])
			dMinus += (row[c] - antiIdeal[c]) * (row[c] - antiIdeal[c])
		}
		dPlus = math.Sqrt(dPlus)
		dMinus = math.Sqrt(dMinus)

		score := 0.0
		if dPlus+dMinus > 0 {
			score = dMinus / (dMinus + dPlus)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, nil
}
