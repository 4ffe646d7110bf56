package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"JumpVol/internal/domain/models"
	domrepo "JumpVol/internal/domain/repository"
	domsvc "JumpVol/internal/domain/service"
	"JumpVol/internal/services/analytics"
	"JumpVol/internal/services/features"
	"JumpVol/internal/services/harj"
	"JumpVol/internal/services/jumps"
	"JumpVol/internal/services/variation"
	"JumpVol/pkg/cache"
	applogger "JumpVol/pkg/logger"
)

// Exclusion reasons used as metric labels.
const (
	ReasonEstimate = "estimate"
	ReasonJumpTest = "jump_test"
)

// PipelineConfig holds the estimation and feature settings.
type PipelineConfig struct {
	Delta         int
	Significance  float64
	ShortWindow   int
	LongWindow    int
	TrainFraction float64
	Fit           analytics.FitOptions
}

// FitterFactory builds a posterior fitter for a run configuration.
type FitterFactory func(opts analytics.FitOptions) (domsvc.PosteriorFitter, error)

// DefaultFitterFactory builds HAR-Jumps fitters.
func DefaultFitterFactory(opts analytics.FitOptions) (domsvc.PosteriorFitter, error) {
	return analytics.NewHARJFitter(opts)
}

// Pipeline runs bars → daily variation → jumps → features → posterior. Every stage
// produces a new value; nothing is shared between calls, so one Pipeline serves
// concurrent requests.
type Pipeline struct {
	source    domrepo.BarSource
	newFitter FitterFactory
	sink      domrepo.ResultSink
	pub       domrepo.ReportPublisher
	cache     domrepo.PosteriorCache
	metrics   domrepo.Metrics
	log       *applogger.Logger
	cfg       PipelineConfig
	detector  *jumps.Detector
	builder   *features.Builder
	now       func() time.Time
}

// Option configures optional collaborators of a Pipeline.
type Option func(*Pipeline)

// WithSink persists features and posteriors.
func WithSink(s domrepo.ResultSink) Option { return func(p *Pipeline) { p.sink = s } }

// WithPublisher announces finished fits.
func WithPublisher(pub domrepo.ReportPublisher) Option { return func(p *Pipeline) { p.pub = pub } }

// WithCache reuses fits of identical inputs.
func WithCache(c domrepo.PosteriorCache) Option { return func(p *Pipeline) { p.cache = c } }

// WithMetrics records pipeline metrics.
func WithMetrics(m domrepo.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// NewPipeline validates cfg and wires the stages.
func NewPipeline(source domrepo.BarSource, newFitter FitterFactory, cfg PipelineConfig, opts ...Option) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New("bar source is required")
	}
	if newFitter == nil {
		newFitter = DefaultFitterFactory
	}
	detector, err := jumps.NewDetector(cfg.Delta, cfg.Significance)
	if err != nil {
		return nil, err
	}
	builder, err := features.NewBuilder(cfg.ShortWindow, cfg.LongWindow)
	if err != nil {
		return nil, err
	}
	if !(cfg.TrainFraction > 0 && cfg.TrainFraction < 1) {
		return nil, fmt.Errorf("train fraction must be in (0, 1), got %g", cfg.TrainFraction)
	}
	p := &Pipeline{
		source:    source,
		newFitter: newFitter,
		metrics:   nopMetrics{},
		log:       applogger.Nop(),
		cfg:       cfg,
		detector:  detector,
		builder:   builder,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// FitDefaults returns the configured sampler run.
func (p *Pipeline) FitDefaults() analytics.FitOptions { return p.cfg.Fit }

// VariationResult is the output of the estimation and jump stages.
type VariationResult struct {
	Symbol   string               `json:"symbol"`
	Records  []models.JumpRecord  `json:"records"`
	Excluded []models.ExcludedDay `json:"excluded,omitempty"`
	Jumps    int                  `json:"jumps"`
	Critical float64              `json:"critical"`
}

// Query selects a symbol and an optional bar range. Zero times leave that side open.
type Query struct {
	Symbol string
	From   time.Time
	To     time.Time
}

// Variation loads the bars of q and returns per-day variation with jump flags.
func (p *Pipeline) Variation(ctx context.Context, q Query) (*VariationResult, error) {
	symbol := q.Symbol
	if symbol == "" {
		return nil, errors.New("symbol required")
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, fmt.Errorf("%w: range end %s precedes start %s", models.ErrInvalidInput,
			q.To.Format(models.DayLayout), q.From.Format(models.DayLayout))
	}

	start := time.Now()
	bars, err := p.source.Bars(ctx, symbol, q.From, q.To)
	if err != nil {
		p.metrics.RecordError("source")
		return nil, fmt.Errorf("load bars: %w", err)
	}
	p.metrics.RecordStage("load", time.Since(start).Seconds())

	start = time.Now()
	days := variation.GroupByDay(bars)
	vs, badEstimates, err := variation.ComputeAll(days, p.cfg.Delta)
	if err != nil {
		return nil, fmt.Errorf("estimate variation: %w", err)
	}
	recs, badTests, err := p.detector.ClassifyAll(vs)
	if err != nil {
		return nil, fmt.Errorf("jump test: %w", err)
	}
	p.metrics.RecordStage("variation", time.Since(start).Seconds())

	res := &VariationResult{
		Symbol:   symbol,
		Records:  recs,
		Excluded: append(append([]models.ExcludedDay(nil), badEstimates...), badTests...),
		Critical: p.detector.Critical(),
	}
	for _, r := range recs {
		if r.IsJump {
			res.Jumps++
		}
	}
	if len(res.Excluded) > 0 {
		p.log.Warn("days excluded",
			applogger.String("symbol", symbol),
			applogger.Any("excluded", res.Excluded),
		)
	}
	p.metrics.RecordDays(len(recs), map[string]int{
		ReasonEstimate: len(badEstimates),
		ReasonJumpTest: len(badTests),
	})
	p.metrics.RecordJumps(res.Jumps)
	p.log.Info("variation computed",
		applogger.String("symbol", symbol),
		applogger.Int("bars", len(bars)),
		applogger.Int("days", len(recs)),
		applogger.Int("excluded", len(res.Excluded)),
		applogger.Int("jumps", res.Jumps),
	)
	return res, nil
}

// FeaturesResult carries the transformed table and its chronological split.
type FeaturesResult struct {
	Symbol   string               `json:"symbol"`
	Table    models.FeatureTable  `json:"table"`
	Train    models.FeatureTable  `json:"train"`
	Test     models.FeatureTable  `json:"test"`
	Excluded []models.ExcludedDay `json:"excluded,omitempty"`
}

// Features runs Variation and builds the HAR feature table.
func (p *Pipeline) Features(ctx context.Context, q Query) (*FeaturesResult, error) {
	v, err := p.Variation(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(v.Records) < p.builder.MinDays() {
		return nil, fmt.Errorf("%w: %d valid days, need %d", models.ErrInsufficientHistory, len(v.Records), p.builder.MinDays())
	}

	start := time.Now()
	table := p.builder.Build(v.Records)
	train, test := table.Split(p.cfg.TrainFraction)
	p.metrics.RecordStage("features", time.Since(start).Seconds())

	return &FeaturesResult{Symbol: q.Symbol, Table: table, Train: train, Test: test, Excluded: v.Excluded}, nil
}

// FitParams selects the data and optionally overrides the configured run.
type FitParams struct {
	Query
	Options *analytics.FitOptions
}

// Fit builds features, fits the posterior on the training split, scores the test
// split and hands the report to the configured sinks. Sink failures are logged and
// counted but do not fail the fit.
func (p *Pipeline) Fit(ctx context.Context, params FitParams) (*models.FitReport, error) {
	opts := p.cfg.Fit
	if params.Options != nil {
		opts = *params.Options
	}

	fr, err := p.Features(ctx, params.Query)
	if err != nil {
		return nil, err
	}
	if fr.Train.Len() < harj.MinTrainRows {
		return nil, fmt.Errorf("%w: %d feature rows leave %d for training, need %d",
			models.ErrInsufficientHistory, fr.Table.Len(), fr.Train.Len(), harj.MinTrainRows)
	}
	fingerprint, err := Fingerprint(params.Symbol, opts, p.cfg.TrainFraction, fr.Table)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		cached, ok, err := p.cache.Get(ctx, fingerprint)
		switch {
		case err != nil:
			p.metrics.RecordError("cache")
			p.log.Warn("posterior cache get failed", applogger.String("fingerprint", fingerprint), applogger.Error(err))
		case ok:
			cached.Cached = true
			p.log.Info("posterior cache hit", applogger.String("symbol", params.Symbol), applogger.String("fingerprint", fingerprint))
			return cached, nil
		}
	}

	fitter, err := p.newFitter(opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	post, err := fitter.Fit(ctx, fr.Train)
	elapsed := time.Since(start)
	p.metrics.RecordStage("fit", elapsed.Seconds())
	if err != nil {
		if errors.Is(err, models.ErrSamplingCanceled) {
			p.metrics.RecordError("canceled")
		} else {
			p.metrics.RecordError("fit")
		}
		return nil, err
	}

	report := &models.FitReport{
		Symbol:      params.Symbol,
		Fingerprint: fingerprint,
		FittedAt:    p.now().UTC(),
		Sampler:     fitter.Name(),
		Chains:      opts.Chains,
		Warmup:      opts.Warmup,
		Draws:       opts.Draws,
		TrainRows:   fr.Train.Len(),
		TestRows:    fr.Test.Len(),
		Excluded:    fr.Excluded,
		Summary:     post.Summary,
		Diagnostics: post.Diagnostics,
		Test:        harj.Evaluate(harj.PointEstimate(post), fr.Train, fr.Test),
		Elapsed:     elapsed,
	}
	p.recordFit(report)
	p.deliver(ctx, fr, report)
	return report, nil
}

func (p *Pipeline) recordFit(r *models.FitReport) {
	divergences := 0
	for _, c := range r.Diagnostics.Chains {
		divergences += c.Divergences
	}
	rhat := make(map[string]float64, len(r.Summary))
	for _, s := range r.Summary {
		rhat[s.Name] = s.RHat
	}
	p.metrics.RecordFit(divergences, rhat)

	for _, w := range r.Diagnostics.Warnings {
		p.log.Warn("sampler warning",
			applogger.String("symbol", r.Symbol),
			applogger.String("kind", w.Kind),
			applogger.String("param", w.Param),
			applogger.String("message", w.Message),
		)
	}
	p.log.Info("fit complete",
		applogger.String("symbol", r.Symbol),
		applogger.String("sampler", r.Sampler),
		applogger.Int("train_rows", r.TrainRows),
		applogger.Int("test_rows", r.TestRows),
		applogger.Float64("test_rmse", r.Test.RMSE),
		applogger.Bool("converged", r.Diagnostics.Converged()),
		applogger.Duration("elapsed_ms", r.Elapsed),
	)
}

func (p *Pipeline) deliver(ctx context.Context, fr *FeaturesResult, r *models.FitReport) {
	if p.sink != nil {
		if err := p.sink.StoreFeatures(ctx, r.Symbol, fr.Table.Rows); err != nil {
			p.sinkFailed("store features", err)
		}
		if err := p.sink.StorePosterior(ctx, r); err != nil {
			p.sinkFailed("store posterior", err)
		}
	}
	if p.pub != nil {
		if err := p.pub.PublishReport(ctx, r); err != nil {
			p.sinkFailed("publish report", err)
		}
	}
	if p.cache != nil {
		if err := p.cache.Put(ctx, r); err != nil {
			p.sinkFailed("cache report", err)
		}
	}
}

func (p *Pipeline) sinkFailed(op string, err error) {
	p.metrics.RecordError("sink")
	p.log.Error(op+" failed", applogger.Error(err))
}

// Fingerprint identifies a fit by its inputs: symbol, run options, split and the
// transformed feature rows.
func Fingerprint(symbol string, opts analytics.FitOptions, trainFraction float64, table models.FeatureTable) (string, error) {
	b, err := json.Marshal(struct {
		Symbol        string               `json:"symbol"`
		Options       analytics.FitOptions `json:"options"`
		TrainFraction float64              `json:"train_fraction"`
		Rows          []models.FeatureRow  `json:"rows"`
	}{symbol, opts, trainFraction, table.Rows})
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return cache.HashKey(b), nil
}

type nopMetrics struct{}

func (nopMetrics) RecordDays(int, map[string]int) {}
func (nopMetrics) RecordJumps(int) {}
func (nopMetrics) RecordStage(string, float64) {}
func (nopMetrics) RecordFit(int, map[string]float64) {}
func (nopMetrics) RecordError(string) {}
