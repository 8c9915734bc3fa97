// Package models implements the regression model families that map
// resource parameters (CPU limit, memory limit, replica count) to a
// target metric, plus their persistence and evaluation helpers.
//
// Three families are supported: ordinary least squares, epsilon-SVR
// with an RBF kernel, and a two-hidden-layer multilayer perceptron.
// All three share the Model capability and serialize to JSON artifacts,
// so a saved model reloads to identical predictions.
package models

import (
	"errors"
	"fmt"
)

// Family identifies a regression model family.
type Family int

const (
	// Linear is ordinary least squares regression.
	Linear Family = iota
	// SupportVector is epsilon-SVR with an RBF kernel.
	SupportVector
	// NeuralNetwork is a two-hidden-layer MLP regressor.
	NeuralNetwork
)

func (f Family) String() string {
	switch f {
	case Linear:
		return "linear"
	case SupportVector:
		return "svr"
	case NeuralNetwork:
		return "neural"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// ParseFamily maps a family name to its tag. Accepted names are
// "linear", "svr", and "neural".
func ParseFamily(name string) (Family, error) {
	switch name {
	case "linear":
		return Linear, nil
	case "svr":
		return SupportVector, nil
	case "neural":
		return NeuralNetwork, nil
	default:
		return 0, fmt.Errorf("models: there is no model family %q", name)
	}
}

// Model is the common capability of all regression families.
type Model interface {
	// Family returns the model's family tag.
	Family() Family
	// Fit trains the model on a feature matrix and target vector.
	Fit(X [][]float64, y []float64) error
	// Predict evaluates the model at each row of X.
	Predict(X [][]float64) ([]float64, error)
}

// ErrNotFitted is returned by Predict on an untrained model.
var ErrNotFitted = errors.New("models: model has not been fitted")

// checkTrainingData validates the shape of a training set.
func checkTrainingData(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return errors.New("models: empty feature matrix")
	}
	if len(X) != len(y) {
		return fmt.Errorf("models: %d feature rows but %d targets", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return errors.New("models: feature rows are empty")
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("models: feature row %d has %d columns, want %d", i, len(row), width)
		}
	}
	return nil
}

// checkPredictInput validates prediction input against the fitted width.
func checkPredictInput(X [][]float64, width int) error {
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("models: input row %d has %d columns, model expects %d", i, len(row), width)
		}
	}
	return nil
}
