package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"JumpVol/internal/domain/models"
	domsvc "JumpVol/internal/domain/service"
	"JumpVol/internal/services/analytics"
	"JumpVol/internal/services/harj"
	applogger "JumpVol/pkg/logger"
)

type fakeSource struct {
	bars     []models.Bar
	err      error
	from, to time.Time
}

func (f *fakeSource) Bars(_ context.Context, _ string, from, to time.Time) ([]models.Bar, error) {
	f.from, f.to = from, to
	return f.bars, f.err
}

// syntheticBars builds days of 30 random-walk bars, plus one day too short to
// estimate and one flat day that fails the jump test.
func syntheticBars(days int) []models.Bar {
	rng := rand.New(rand.NewPCG(1, 1))
	start := time.Date(2022, 1, 3, 9, 30, 0, 0, time.UTC)
	var out []models.Bar
	price := 100.0
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		for i := 0; i < 30; i++ {
			price *= math.Exp(1e-3 * rng.NormFloat64())
			out = append(out, models.Bar{Time: day.Add(time.Duration(i) * time.Minute), Symbol: "SPY", Close: price})
		}
	}
	short := start.AddDate(0, 0, days)
	for i := 0; i < 3; i++ {
		out = append(out, models.Bar{Time: short.Add(time.Duration(i) * time.Minute), Close: 100})
	}
	flat := start.AddDate(0, 0, days+1)
	for i := 0; i < 10; i++ {
		out = append(out, models.Bar{Time: flat.Add(time.Duration(i) * time.Minute), Close: 100})
	}
	return out
}

type stubFitter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubFitter) Name() string { return "stub" }

func (s *stubFitter) Fit(_ context.Context, train models.FeatureTable) (*models.Posterior, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	post := &models.Posterior{Params: harj.Layout{Features: models.FeatureCount}.Names()}
	for _, n := range post.Params {
		ps := models.ParamSummary{Name: n, RHat: 1, ESS: 400, Draws: 1000}
		if n == "sigma" {
			ps.Mean = 1
		}
		if n == "alpha" {
			ps.Mean = -9
		}
		post.Summary = append(post.Summary, ps)
	}
	post.Diagnostics.Chains = []models.ChainStats{{Chain: 0, Divergences: 1}, {Chain: 1}}
	post.Diagnostics.Warnings = []models.SamplerWarning{{Kind: models.WarnDivergence, Message: "chain 0 had 1 divergent transitions"}}
	return post, nil
}

type fakeSink struct {
	features  int
	reports   int
	published int
	err       error
}

func (f *fakeSink) Init(context.Context) error { return nil }
func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) StoreFeatures(_ context.Context, _ string, rows []models.FeatureRow) error {
	f.features += len(rows)
	return f.err
}

func (f *fakeSink) StorePosterior(context.Context, *models.FitReport) error {
	f.reports++
	return f.err
}

func (f *fakeSink) PublishReport(context.Context, *models.FitReport) error {
	f.published++
	return f.err
}

type mapCache struct {
	m map[string]models.FitReport
}

func (c *mapCache) Get(_ context.Context, fp string) (*models.FitReport, bool, error) {
	r, ok := c.m[fp]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *mapCache) Put(_ context.Context, r *models.FitReport) error {
	c.m[r.Fingerprint] = *r
	return nil
}

type countingMetrics struct {
	nopMetrics
	processed   int
	excluded    map[string]int
	jumps       int
	errs        map[string]int
	divergences int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{excluded: map[string]int{}, errs: map[string]int{}}
}

func (m *countingMetrics) RecordDays(p int, ex map[string]int) {
	m.processed += p
	for k, v := range ex {
		m.excluded[k] += v
	}
}
func (m *countingMetrics) RecordJumps(n int) { m.jumps += n }
func (m *countingMetrics) RecordError(kind string) { m.errs[kind]++ }
func (m *countingMetrics) RecordFit(d int, _ map[string]float64) { m.divergences += d }

func testConfig() PipelineConfig {
	return PipelineConfig{
		Delta:         30,
		Significance:  0.01,
		ShortWindow:   5,
		LongWindow:    21,
		TrainFraction: 0.7,
		Fit:           analytics.FitOptions{Kind: "nuts", Chains: 2, Warmup: 10, Draws: 10, Seed: 1},
	}
}

func newTestPipeline(t *testing.T, src *fakeSource, fitter *stubFitter, opts ...Option) *Pipeline {
	t.Helper()
	factory := func(analytics.FitOptions) (domsvc.PosteriorFitter, error) { return fitter, nil }
	p, err := NewPipeline(src, factory, testConfig(), opts...)
	require.NoError(t, err)
	return p
}

func TestVariationExcludesBadDays(t *testing.T) {
	m := newCountingMetrics()
	p := newTestPipeline(t, &fakeSource{bars: syntheticBars(40)}, &stubFitter{}, WithMetrics(m))

	v, err := p.Variation(context.Background(), Query{Symbol: "SPY"})
	require.NoError(t, err)
	assert.Len(t, v.Records, 40)
	require.Len(t, v.Excluded, 2)
	assert.Equal(t, 40, m.processed)
	assert.Equal(t, 1, m.excluded[ReasonEstimate])
	assert.Equal(t, 1, m.excluded[ReasonJumpTest])
	assert.Equal(t, v.Jumps, m.jumps)
	assert.InDelta(t, -2.3263478740408408, v.Critical, 1e-9)

	for i := 1; i < len(v.Records); i++ {
		assert.True(t, v.Records[i-1].Date.Before(v.Records[i].Date))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJumps(&buf, v))
	assert.Contains(t, buf.String(), "2022-01-03")
	assert.Contains(t, buf.String(), "days=40")
}

func TestVariationLogsExcludedDays(t *testing.T) {
	var buf bytes.Buffer
	l := applogger.NewWithWriter(&buf, zerolog.WarnLevel)
	p := newTestPipeline(t, &fakeSource{bars: syntheticBars(30)}, &stubFitter{}, WithLogger(l))

	_, err := p.Variation(context.Background(), Query{Symbol: "SPY"})
	require.NoError(t, err)

	var entry struct {
		Message  string               `json:"message"`
		Symbol   string               `json:"symbol"`
		Excluded []models.ExcludedDay `json:"excluded"`
	}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "days excluded", entry.Message)
	assert.Equal(t, "SPY", entry.Symbol)
	require.Len(t, entry.Excluded, 2)
	assert.Equal(t, "2022-02-02", entry.Excluded[0].Date.Format(models.DayLayout))
}

func TestVariationErrors(t *testing.T) {
	p := newTestPipeline(t, &fakeSource{err: errors.New("disk gone")}, &stubFitter{})
	_, err := p.Variation(context.Background(), Query{Symbol: "SPY"})
	assert.ErrorContains(t, err, "disk gone")

	_, err = p.Variation(context.Background(), Query{})
	assert.Error(t, err)
}

func TestVariationPassesRange(t *testing.T) {
	src := &fakeSource{bars: syntheticBars(10)}
	p := newTestPipeline(t, src, &stubFitter{})
	from := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	_, err := p.Variation(context.Background(), Query{Symbol: "SPY", From: from, To: to})
	require.NoError(t, err)
	assert.Equal(t, from, src.from)
	assert.Equal(t, to, src.to)

	_, err = p.Variation(context.Background(), Query{Symbol: "SPY", From: to, To: from})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestFeaturesSplit(t *testing.T) {
	p := newTestPipeline(t, &fakeSource{bars: syntheticBars(40)}, &stubFitter{})
	fr, err := p.Features(context.Background(), Query{Symbol: "SPY"})
	require.NoError(t, err)
	assert.Equal(t, 18, fr.Table.Len())
	assert.Equal(t, 12, fr.Train.Len())
	assert.Equal(t, 6, fr.Test.Len())
	assert.True(t, fr.Train.Rows[11].Date.Before(fr.Test.Rows[0].Date))
}

func TestFeaturesInsufficientHistory(t *testing.T) {
	p := newTestPipeline(t, &fakeSource{bars: syntheticBars(22)}, &stubFitter{})
	_, err := p.Features(context.Background(), Query{Symbol: "SPY"})
	assert.True(t, errors.Is(err, models.ErrInsufficientHistory))
}

func TestFitShortTrainingSplit(t *testing.T) {
	// 23..25 valid days give 1..3 feature rows and at most one training row.
	for _, days := range []int{23, 24, 25} {
		t.Run(fmt.Sprintf("%d days", days), func(t *testing.T) {
			fitter := &stubFitter{}
			p := newTestPipeline(t, &fakeSource{bars: syntheticBars(days)}, fitter)

			_, err := p.Features(context.Background(), Query{Symbol: "SPY"})
			require.NoError(t, err)

			_, err = p.Fit(context.Background(), FitParams{Query: Query{Symbol: "SPY"}})
			assert.ErrorIs(t, err, models.ErrInsufficientHistory)
			assert.Zero(t, fitter.calls)
		})
	}

	fitter := &stubFitter{}
	p := newTestPipeline(t, &fakeSource{bars: syntheticBars(26)}, fitter)
	report, err := p.Fit(context.Background(), FitParams{Query: Query{Symbol: "SPY"}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.TrainRows)
	assert.Equal(t, 1, fitter.calls)
}

func TestFitShortTrainingSplitWithRealFitter(t *testing.T) {
	p, err := NewPipeline(&fakeSource{bars: syntheticBars(25)}, nil, testConfig())
	require.NoError(t, err)
	_, err = p.Fit(context.Background(), FitParams{Query: Query{Symbol: "SPY"}})
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
	assert.False(t, errors.Is(err, models.ErrDomain))
}

func TestFitDeliversAndCaches(t *testing.T) {
	sink := &fakeSink{}
	cache := &mapCache{m: map[string]models.FitReport{}}
	fitter := &stubFitter{}
	m := newCountingMetrics()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPipeline(t, &fakeSource{bars: syntheticBars(40)}, fitter,
		WithSink(sink), WithPublisher(sink), WithCache(cache), WithMetrics(m),
		WithClock(func() time.Time { return fixed }))

	r, err := p.Fit(context.Background(), FitParams{Query: Query{Symbol: "SPY"}})
	require.NoError(t, err)
	assert.Equal(t, "SPY", r.Symbol)
	assert.Equal(t, "stub", r.Sampler)
	assert.Equal(t, fixed, r.FittedAt)
	assert.Equal(t, 12, r.TrainRows)
	assert.Equal(t, 6, r.TestRows)
	assert.Equal(t, 6, r.Test.Rows)
	assert.Greater(t, r.Test.RMSE, 0.0)
	assert.Len(t, r.Fingerprint, 64)
	assert.False(t, r.Cached)
	assert.Len(t, r.Excluded, 2)

	assert.Equal(t, 18, sink.features)
	assert.Equal(t, 1, sink.reports)
	assert.Equal(t, 1, sink.published)
	assert.Equal(t, 1, m.divergences)

	again, err := p.Fit(context.Background(), FitParams{Query: Query{Symbol: "SPY"}})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, r.Fingerprint, again.Fingerprint)
	assert.Equal(t, 1, fitter.calls)

	other := analytics.FitOptions{Kind: "metropolis", Chains: 1, Warmup: 5, Draws: 5}
	third, err := p.Fit(context.Background(), FitParams{Query: Query{Symbol: "SPY"}, Options: &other})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.NotEqual(t, r.Fingerprint, third.Fingerprint)
	assert.Equal(t, 2, fitter.calls)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, r))
	out := buf.String()
	for _, want := range []string{"symbol=SPY", "theta", "sigma", "hdi_3%", "warning [divergence]", "excluded days: 2"} {
		assert.Contains(t, out, want)
	}
}

func TestFitSinkFailuresAreNotFatal(t *testing.T) {
	sink := &fakeSink{err: errors.New("unavailable")}
	m := newCountingMetrics()
	p := newTestPipeline(t, &fakeSource{bars: syntheticBars(40)}, &stubFitter{}, WithSink(sink), WithPublisher(sink), WithMetrics(m))

	_, err := p.Fit(context.Background(), FitParams{Query: Query{Symbol: "SPY"}})
	require.NoError(t, err)
	assert.Equal(t, 3, m.errs["sink"])
}

func TestFitCanceled(t *testing.T) {
	fitter := &stubFitter{err: fmt.Errorf("fit stub: %w: %w", models.ErrSamplingCanceled, context.DeadlineExceeded)}
	m := newCountingMetrics()
	p := newTestPipeline(t, &fakeSource{bars: syntheticBars(40)}, fitter, WithMetrics(m))

	_, err := p.Fit(context.Background(), FitParams{Query: Query{Symbol: "SPY"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSamplingCanceled))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, m.errs["canceled"])
}

func TestNewPipelineValidation(t *testing.T) {
	cfg := testConfig()
	_, err := NewPipeline(nil, nil, cfg)
	assert.Error(t, err)

	src := &fakeSource{}
	bad := cfg
	bad.TrainFraction = 1
	_, err = NewPipeline(src, nil, bad)
	assert.Error(t, err)

	bad = cfg
	bad.ShortWindow = 30
	_, err = NewPipeline(src, nil, bad)
	assert.Error(t, err)

	bad = cfg
	bad.Delta = 0
	_, err = NewPipeline(src, nil, bad)
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	table := models.FeatureTable{Rows: []models.FeatureRow{{NextDayRV: 1}}}
	opts := analytics.FitOptions{Kind: "nuts", Chains: 4}
	a, err := Fingerprint("SPY", opts, 0.7, table)
	require.NoError(t, err)
	b, err := Fingerprint("SPY", opts, 0.7, table)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Fingerprint("QQQ", opts, 0.7, table)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
