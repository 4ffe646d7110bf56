package service

import (
	"context"

	"JumpVol/internal/domain/models"
)

// PosteriorFitter fits the HAR-Jumps model on a training table. Convergence problems
// are carried in the returned diagnostics; errors are reserved for invalid input and
// cancellation.
type PosteriorFitter interface {
	Name() string
	Fit(ctx context.Context, train models.FeatureTable) (*models.Posterior, error)
}
