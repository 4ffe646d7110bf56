package repository

import (
	"context"
	"errors"
	"time"

	"JumpVol/internal/domain/models"
	domrepo "JumpVol/internal/domain/repository"
	"JumpVol/pkg/cache"
)

// PosteriorCache keeps fit reports in a cache.Service under "fit:<fingerprint>".
type PosteriorCache struct {
	svc cache.Service
	ttl time.Duration
}

func NewPosteriorCache(svc cache.Service, ttl time.Duration) *PosteriorCache {
	return &PosteriorCache{svc: svc, ttl: ttl}
}

func fitKey(fingerprint string) string { return cache.GenerateKey("fit", fingerprint) }

func (c *PosteriorCache) Get(ctx context.Context, fingerprint string) (*models.FitReport, bool, error) {
	var r models.FitReport
	if err := c.svc.Get(ctx, fitKey(fingerprint), &r); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &r, true, nil
}

func (c *PosteriorCache) Put(ctx context.Context, report *models.FitReport) error {
	if report == nil || report.Fingerprint == "" {
		return nil
	}
	return c.svc.Set(ctx, fitKey(report.Fingerprint), report, c.ttl)
}

var _ domrepo.PosteriorCache = (*PosteriorCache)(nil)
