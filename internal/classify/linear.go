package classify

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"goflare.io/urlguard/internal/models"
)

//go:embed default_model.yaml
var defaultModel []byte

var ErrInvalidModel = errors.New("invalid classifier model")

// LinearModel is a logistic regression over numeric features. Booleans count
// as 0/1, nil as 0, and a string value v of feature k activates the weight
// "k=v". Clip caps a feature's magnitude before weighting.
type LinearModel struct {
	Name      string             `yaml:"name"`
	Bias      float64            `yaml:"bias"`
	Threshold float64            `yaml:"threshold"`
	Weights   map[string]float64 `yaml:"weights"`
	Clip      map[string]float64 `yaml:"clip"`
}

// ParseModel decodes a YAML model.
func ParseModel(data []byte) (*LinearModel, error) {
	var m LinearModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrInvalidModel)
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		m.Threshold = 0.5
	}
	return &m, nil
}

// LoadModel reads the model at path, or the bundled model when path is empty.
func LoadModel(path string) (*LinearModel, error) {
	if path == "" {
		return ParseModel(defaultModel)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return ParseModel(data)
}

// Score returns the raw linear score of features.
func (m *LinearModel) Score(features models.FeatureVector) float64 {
	score := m.Bias
	for k, v := range features {
		switch x := v.(type) {
		case string:
			score += m.Weights[k+"="+x]
		default:
			n, ok := numeric(v)
			if !ok {
				continue
			}
			if limit, ok := m.Clip[k]; ok {
				n = math.Max(-limit, math.Min(limit, n))
			}
			score += m.Weights[k] * n
		}
	}
	return score
}

// Classify implements Classifier.
func (m *LinearModel) Classify(ctx context.Context, features models.FeatureVector) (models.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return models.Prediction{}, err
	}
	safe := sigmoid(m.Score(features))
	return models.Prediction{
		Safe:                safe >= m.Threshold,
		SafeProbability:     safe,
		PhishingProbability: 1 - safe,
	}, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
