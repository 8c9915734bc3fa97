package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// artifact is the on-disk envelope of a trained model: a family tag
// plus the family-specific parameters.
type artifact struct {
	Family string          `json:"family"`
	Model  json.RawMessage `json:"model"`
}

// Path returns the artifact location for a model name, conventionally
// the target metric it predicts.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

// Save persists a fitted model under dir/<name>.json. Unlike raw
// experiment data, model artifacts are overwritten on retrain.
func Save(dir, name string, m Model) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("models: create model dir: %w", err)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("models: marshal model: %w", err)
	}
	data, err := json.MarshalIndent(artifact{Family: m.Family().String(), Model: payload}, "", "  ")
	if err != nil {
		return fmt.Errorf("models: marshal artifact: %w", err)
	}
	if err := os.WriteFile(Path(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("models: write artifact: %w", err)
	}
	return nil
}

// Load reads a model artifact and reconstructs its concrete family.
// A loaded model predicts identically to the model that was saved.
func Load(dir, name string) (Model, error) {
	data, err := os.ReadFile(Path(dir, name))
	if err != nil {
		return nil, fmt.Errorf("models: read artifact: %w", err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("models: decode artifact: %w", err)
	}
	family, err := ParseFamily(a.Family)
	if err != nil {
		return nil, err
	}

	var m Model
	switch family {
	case Linear:
		m = &LinearModel{}
	case SupportVector:
		m = &SVRModel{}
	case NeuralNetwork:
		m = &MLPModel{}
	}
	if err := json.Unmarshal(a.Model, m); err != nil {
		return nil, fmt.Errorf("models: decode %s model: %w", a.Family, err)
	}
	return m, nil
}
