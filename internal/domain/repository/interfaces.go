package repository

import (
	"context"
	"time"

	"JumpVol/internal/domain/models"
)

// BarSource loads intraday bars for one symbol in ascending time order. A zero
// from or to leaves that side of the range open.
type BarSource interface {
	Bars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
}

// ResultSink persists pipeline outputs.
type ResultSink interface {
	Init(ctx context.Context) error // ensure tables
	StoreFeatures(ctx context.Context, symbol string, rows []models.FeatureRow) error
	StorePosterior(ctx context.Context, report *models.FitReport) error
	Close() error
}

// ReportPublisher announces finished fits.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *models.FitReport) error
	Close() error
}

// PosteriorCache stores fit reports keyed by input fingerprint.
type PosteriorCache interface {
	Get(ctx context.Context, fingerprint string) (*models.FitReport, bool, error)
	Put(ctx context.Context, report *models.FitReport) error
}

type Metrics interface {
	RecordDays(processed int, excludedByReason map[string]int)
	RecordJumps(n int)
	RecordStage(stage string, seconds float64)
	RecordFit(divergences int, rhat map[string]float64)
	RecordError(kind string)
}
