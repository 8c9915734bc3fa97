package models

import (
	"math"
)

// SVRModel is epsilon-insensitive support-vector regression with an RBF
// kernel. Inputs and targets are min-max scaled to [0, 1] before
// fitting, matching how the narrow value ranges of resource parameters
// behave best under the kernel.
//
// The dual coefficients are found by batch subgradient descent on the
// regularized epsilon-insensitive objective. Training is deterministic:
// no random initialization or sampling is involved.
type SVRModel struct {
	C       float64 `json:"c"`
	Gamma   float64 `json:"gamma"`
	Epsilon float64 `json:"epsilon"`

	SupportX [][]float64 `json:"support_x"`
	Beta     []float64   `json:"beta"`
	Bias     float64     `json:"bias"`

	XScaler MinMaxScaler `json:"x_scaler"`
	YScaler MinMaxScaler `json:"y_scaler"`

	// MaxIter and LearningRate bound the optimization; zero values take
	// the defaults below.
	MaxIter      int     `json:"max_iter"`
	LearningRate float64 `json:"learning_rate"`
	Tol          float64 `json:"tol"`
}

// Defaults mirror the direct-fit hyper-parameters of the original
// tuning experiments.
const (
	defaultSVRC       = 8.0
	defaultSVRGamma   = 8.0
	defaultSVREpsilon = 0.1
)

// NewSVRModel returns an unfitted SVR with the given hyper-parameters.
// Non-positive C or gamma fall back to the defaults.
func NewSVRModel(c, gamma float64) *SVRModel {
	if c <= 0 {
		c = defaultSVRC
	}
	if gamma <= 0 {
		gamma = defaultSVRGamma
	}
	return &SVRModel{C: c, Gamma: gamma, Epsilon: defaultSVREpsilon}
}

// Family implements Model.
func (m *SVRModel) Family() Family { return SupportVector }

// Fit scales the training set to [0, 1] and optimizes the dual
// coefficients by subgradient descent.
func (m *SVRModel) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(X, y); err != nil {
		return err
	}

	m.XScaler.Fit(X)
	m.YScaler.Fit(column(y))
	sx := m.XScaler.Transform(X)
	sy := flatten(m.YScaler.Transform(column(y)))

	n := len(sx)
	kernel := make([][]float64, n)
	for i := range kernel {
		kernel[i] = make([]float64, n)
		for j := range kernel[i] {
			kernel[i][j] = rbf(sx[i], sx[j], m.Gamma)
		}
	}

	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 2000
	}
	lr := m.LearningRate
	if lr <= 0 {
		lr = 0.01 / float64(n)
	}
	tol := m.Tol
	if tol <= 0 {
		tol = 1e-6
	}

	beta := make([]float64, n)
	bias := 0.0
	pred := make([]float64, n)
	sign := make([]float64, n)
	grad := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		for i := 0; i < n; i++ {
			v := bias
			for j := 0; j < n; j++ {
				v += beta[j] * kernel[i][j]
			}
			pred[i] = v
		}

		var signSum float64
		for i := 0; i < n; i++ {
			err := pred[i] - sy[i]
			switch {
			case err > m.Epsilon:
				sign[i] = 1
			case err < -m.Epsilon:
				sign[i] = -1
			default:
				sign[i] = 0
			}
			signSum += sign[i]
		}

		var gradNorm float64
		for i := 0; i < n; i++ {
			var g float64
			for j := 0; j < n; j++ {
				g += kernel[i][j] * (beta[j] + m.C*sign[j])
			}
			grad[i] = g
			gradNorm += g * g
		}
		if math.Sqrt(gradNorm) < tol {
			break
		}

		for i := 0; i < n; i++ {
			beta[i] -= lr * grad[i]
		}
		bias -= lr * m.C * signSum
	}

	m.SupportX = sx
	m.Beta = beta
	m.Bias = bias
	return nil
}

// Predict implements Model.
func (m *SVRModel) Predict(X [][]float64) ([]float64, error) {
	if m.SupportX == nil {
		return nil, ErrNotFitted
	}
	if err := checkPredictInput(X, len(m.XScaler.Min)); err != nil {
		return nil, err
	}

	sx := m.XScaler.Transform(X)
	out := make([]float64, len(sx))
	for i, x := range sx {
		v := m.Bias
		for j, sv := range m.SupportX {
			v += m.Beta[j] * rbf(sv, x, m.Gamma)
		}
		out[i] = m.YScaler.InverseColumn(0, v)
	}
	return out, nil
}

func rbf(a, b []float64, gamma float64) float64 {
	var d2 float64
	for i := range a {
		d := a[i] - b[i]
		d2 += d * d
	}
	return math.Exp(-gamma * d2)
}
