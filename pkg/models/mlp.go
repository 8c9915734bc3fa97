package models

import (
	"math"
	"math/rand"
)

// MLPModel is a multilayer perceptron regressor with two hidden layers
// (1000 units each by default), tanh activations, and a linear output.
// Inputs are standardized to zero mean and unit variance before
// training. Weights are optimized with L-BFGS to a fixed tolerance.
//
// Weight initialization is seeded, so training the same data with the
// same seed reproduces the same network.
type MLPModel struct {
	HiddenSizes []int   `json:"hidden_sizes"`
	Tol         float64 `json:"tol"`
	MaxIter     int     `json:"max_iter"`
	Seed        int64   `json:"seed"`

	Sizes  []int          `json:"sizes"` // input, hidden..., output
	Params []float64      `json:"params"`
	Scaler StandardScaler `json:"scaler"`
}

// NewMLPModel returns an unfitted MLP with the default architecture.
func NewMLPModel() *MLPModel {
	return &MLPModel{
		HiddenSizes: []int{1000, 1000},
		Tol:         1e-2,
		MaxIter:     10000,
	}
}

// Family implements Model.
func (m *MLPModel) Family() Family { return NeuralNetwork }

// Fit standardizes the inputs and trains the network with L-BFGS.
func (m *MLPModel) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(X, y); err != nil {
		return err
	}
	if len(m.HiddenSizes) == 0 {
		m.HiddenSizes = []int{1000, 1000}
	}
	if m.Tol <= 0 {
		m.Tol = 1e-2
	}
	if m.MaxIter <= 0 {
		m.MaxIter = 10000
	}

	m.Scaler.Fit(X)
	sx := m.Scaler.Transform(X)

	m.Sizes = append(append([]int{len(X[0])}, m.HiddenSizes...), 1)
	m.Params = m.initParams()

	lossGrad := func(params []float64) (float64, []float64) {
		return m.lossAndGrad(params, sx, y)
	}
	m.Params = lbfgs(m.Params, lossGrad, m.MaxIter, m.Tol)
	return nil
}

// Predict implements Model.
func (m *MLPModel) Predict(X [][]float64) ([]float64, error) {
	if m.Params == nil {
		return nil, ErrNotFitted
	}
	if err := checkPredictInput(X, m.Sizes[0]); err != nil {
		return nil, err
	}
	sx := m.Scaler.Transform(X)
	out := make([]float64, len(sx))
	for i, x := range sx {
		acts := m.forward(m.Params, x)
		out[i] = acts[len(acts)-1][0]
	}
	return out, nil
}

// paramCount returns the flattened parameter vector length.
func (m *MLPModel) paramCount() int {
	n := 0
	for l := 0; l < len(m.Sizes)-1; l++ {
		n += m.Sizes[l+1]*m.Sizes[l] + m.Sizes[l+1]
	}
	return n
}

// initParams draws Glorot-uniform initial weights from the seeded RNG.
func (m *MLPModel) initParams() []float64 {
	rng := rand.New(rand.NewSource(m.Seed))
	params := make([]float64, m.paramCount())
	off := 0
	for l := 0; l < len(m.Sizes)-1; l++ {
		fanIn, fanOut := m.Sizes[l], m.Sizes[l+1]
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
		for i := 0; i < fanOut*fanIn; i++ {
			params[off+i] = (rng.Float64()*2 - 1) * limit
		}
		off += fanOut * fanIn
		off += fanOut // biases stay zero
	}
	return params
}

// layer returns the weight and bias slices of layer l within params.
func (m *MLPModel) layer(params []float64, l int) (w, b []float64) {
	off := 0
	for k := 0; k < l; k++ {
		off += m.Sizes[k+1]*m.Sizes[k] + m.Sizes[k+1]
	}
	wLen := m.Sizes[l+1] * m.Sizes[l]
	return params[off : off+wLen], params[off+wLen : off+wLen+m.Sizes[l+1]]
}

// forward computes activations per layer for one standardized input.
// Hidden layers use tanh; the output layer is linear.
func (m *MLPModel) forward(params []float64, x []float64) [][]float64 {
	acts := make([][]float64, len(m.Sizes))
	acts[0] = x
	for l := 0; l < len(m.Sizes)-1; l++ {
		w, b := m.layer(params, l)
		in := acts[l]
		out := make([]float64, m.Sizes[l+1])
		for i := range out {
			v := b[i]
			row := w[i*len(in) : (i+1)*len(in)]
			for j, xv := range in {
				v += row[j] * xv
			}
			if l < len(m.Sizes)-2 {
				v = math.Tanh(v)
			}
			out[i] = v
		}
		acts[l+1] = out
	}
	return acts
}

// lossAndGrad computes half mean squared error and its gradient over
// the full batch via backpropagation.
func (m *MLPModel) lossAndGrad(params []float64, X [][]float64, y []float64) (float64, []float64) {
	grad := make([]float64, len(params))
	n := float64(len(X))
	var loss float64

	for i, x := range X {
		acts := m.forward(params, x)
		pred := acts[len(acts)-1][0]
		resid := pred - y[i]
		loss += resid * resid / (2 * n)

		// Backpropagate deltas layer by layer.
		delta := []float64{resid / n}
		for l := len(m.Sizes) - 2; l >= 0; l-- {
			w, _ := m.layer(params, l)
			gw, gb := m.layerGrad(grad, l)
			in := acts[l]

			for r, d := range delta {
				gb[r] += d
				row := gw[r*len(in) : (r+1)*len(in)]
				for c, xv := range in {
					row[c] += d * xv
				}
			}

			if l == 0 {
				break
			}
			prev := make([]float64, m.Sizes[l])
			for c := range prev {
				var v float64
				for r, d := range delta {
					v += w[r*m.Sizes[l]+c] * d
				}
				// tanh'(z) = 1 - tanh(z)^2, and acts[l] holds tanh(z)
				v *= 1 - acts[l][c]*acts[l][c]
				prev[c] = v
			}
			delta = prev
		}
	}
	return loss, grad
}

// layerGrad returns the gradient slices matching layer l's layout.
func (m *MLPModel) layerGrad(grad []float64, l int) (gw, gb []float64) {
	off := 0
	for k := 0; k < l; k++ {
		off += m.Sizes[k+1]*m.Sizes[k] + m.Sizes[k+1]
	}
	wLen := m.Sizes[l+1] * m.Sizes[l]
	return grad[off : off+wLen], grad[off+wLen : off+wLen+m.Sizes[l+1]]
}

// lbfgs minimizes fg starting from x0 with the limited-memory BFGS
// two-loop recursion and Armijo backtracking line search. Returns the
// best parameter vector found.
func lbfgs(x0 []float64, fg func([]float64) (float64, []float64), maxIter int, tol float64) []float64 {
	const history = 10
	const c1 = 1e-4

	x := append([]float64(nil), x0...)
	f, g := fg(x)

	var sList, yList [][]float64
	var rhoList []float64

	for iter := 0; iter < maxIter; iter++ {
		if vecNorm(g) < tol {
			break
		}

		d := lbfgsDirection(g, sList, yList, rhoList)

		// Backtracking line search on the Armijo condition.
		gd := vecDot(g, d)
		if gd >= 0 {
			// Not a descent direction; restart from steepest descent.
			for i := range d {
				d[i] = -g[i]
			}
			gd = vecDot(g, d)
			sList, yList, rhoList = nil, nil, nil
		}

		alpha := 1.0
		var xNew []float64
		var fNew float64
		var gNew []float64
		ok := false
		for t := 0; t < 30; t++ {
			xNew = make([]float64, len(x))
			for i := range x {
				xNew[i] = x[i] + alpha*d[i]
			}
			fNew, gNew = fg(xNew)
			if fNew <= f+c1*alpha*gd {
				ok = true
				break
			}
			alpha *= 0.5
		}
		if !ok {
			break
		}

		s := make([]float64, len(x))
		yv := make([]float64, len(x))
		for i := range x {
			s[i] = xNew[i] - x[i]
			yv[i] = gNew[i] - g[i]
		}
		if sy := vecDot(s, yv); sy > 1e-10 {
			sList = append(sList, s)
			yList = append(yList, yv)
			rhoList = append(rhoList, 1/sy)
			if len(sList) > history {
				sList = sList[1:]
				yList = yList[1:]
				rhoList = rhoList[1:]
			}
		}

		x, f, g = xNew, fNew, gNew
	}
	return x
}

// lbfgsDirection applies the two-loop recursion to -g.
func lbfgsDirection(g []float64, sList, yList [][]float64, rhoList []float64) []float64 {
	q := make([]float64, len(g))
	for i := range g {
		q[i] = -g[i]
	}
	k := len(sList)
	alphas := make([]float64, k)

	for i := k - 1; i >= 0; i-- {
		alphas[i] = rhoList[i] * vecDot(sList[i], q)
		for j := range q {
			q[j] -= alphas[i] * yList[i][j]
		}
	}

	if k > 0 {
		// Scale by s'y / y'y of the most recent pair.
		gammaScale := vecDot(sList[k-1], yList[k-1]) / vecDot(yList[k-1], yList[k-1])
		for j := range q {
			q[j] *= gammaScale
		}
	}

	for i := 0; i < k; i++ {
		beta := rhoList[i] * vecDot(yList[i], q)
		for j := range q {
			q[j] += (alphas[i] - beta) * sList[i][j]
		}
	}
	return q
}

func vecDot(a, b []float64) float64 {
	var v float64
	for i := range a {
		v += a[i] * b[i]
	}
	return v
}

func vecNorm(a []float64) float64 {
	return math.Sqrt(vecDot(a, a))
}
