// Package classify turns a feature vector into a safety prediction.
package classify

import (
	"context"

	"goflare.io/urlguard/internal/models"
)

// Classifier predicts whether a feature vector describes a safe URL.
type Classifier interface {
	Classify(ctx context.Context, features models.FeatureVector) (models.Prediction, error)
}
