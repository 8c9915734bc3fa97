package models

import "math"

// MinMaxScaler rescales each feature column to [0, 1] over the range
// observed during Fit. Columns with zero range map to 0.
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// Fit records per-column minima and maxima.
func (s *MinMaxScaler) Fit(X [][]float64) {
	if len(X) == 0 {
		return
	}
	width := len(X[0])
	s.Min = make([]float64, width)
	s.Max = make([]float64, width)
	for j := 0; j < width; j++ {
		s.Min[j] = X[0][j]
		s.Max[j] = X[0][j]
	}
	for _, row := range X {
		for j, v := range row {
			if v < s.Min[j] {
				s.Min[j] = v
			}
			if v > s.Max[j] {
				s.Max[j] = v
			}
		}
	}
}

// Transform maps X into the fitted [0, 1] range.
func (s *MinMaxScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		nr := make([]float64, len(row))
		for j, v := range row {
			span := s.Max[j] - s.Min[j]
			if span != 0 {
				nr[j] = (v - s.Min[j]) / span
			}
		}
		out[i] = nr
	}
	return out
}

// InverseColumn maps a scaled scalar of column j back to original units.
func (s *MinMaxScaler) InverseColumn(j int, v float64) float64 {
	return v*(s.Max[j]-s.Min[j]) + s.Min[j]
}

// StandardScaler standardizes each feature column to zero mean and unit
// variance over the data seen during Fit.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit records per-column means and standard deviations.
func (s *StandardScaler) Fit(X [][]float64) {
	if len(X) == 0 {
		return
	}
	width := len(X[0])
	s.Mean = make([]float64, width)
	s.Std = make([]float64, width)

	for _, row := range X {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
}

// Transform maps X into standardized space.
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		nr := make([]float64, len(row))
		for j, v := range row {
			nr[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = nr
	}
	return out
}

// column lifts a vector into a single-column matrix so the scalers can
// be reused for targets.
func column(y []float64) [][]float64 {
	out := make([][]float64, len(y))
	for i, v := range y {
		out[i] = []float64{v}
	}
	return out
}

// flatten collapses a single-column matrix back to a vector.
func flatten(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = row[0]
	}
	return out
}
