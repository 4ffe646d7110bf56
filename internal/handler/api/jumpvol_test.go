package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"JumpVol/internal/domain/models"
	"JumpVol/internal/services/analytics"
	"JumpVol/internal/usecase"
	xhttp "JumpVol/pkg/http"
	xlogger "JumpVol/pkg/logger"
)

type fakePipeline struct {
	err      error
	lastQ    usecase.Query
	lastOpts *analytics.FitOptions
	block    bool
}

func (f *fakePipeline) Variation(_ context.Context, q usecase.Query) (*usecase.VariationResult, error) {
	f.lastQ = q
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.VariationResult{Symbol: q.Symbol, Jumps: 1, Critical: -2.326}, nil
}

func (f *fakePipeline) Features(_ context.Context, q usecase.Query) (*usecase.FeaturesResult, error) {
	f.lastQ = q
	if f.err != nil {
		return nil, f.err
	}
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := make([]models.FeatureRow, 10)
	for i := range rows {
		rows[i].Date = day.AddDate(0, 0, i)
	}
	table := models.FeatureTable{Rows: rows}
	train, test := table.Split(0.7)
	return &usecase.FeaturesResult{Symbol: q.Symbol, Table: table, Train: train, Test: test}, nil
}

func (f *fakePipeline) Fit(ctx context.Context, p usecase.FitParams) (*models.FitReport, error) {
	f.lastQ = p.Query
	f.lastOpts = p.Options
	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", models.ErrSamplingCanceled, ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.FitReport{Symbol: p.Symbol, Sampler: p.Options.Kind, Chains: p.Options.Chains}, nil
}

func (f *fakePipeline) FitDefaults() analytics.FitOptions {
	return analytics.FitOptions{Kind: "nuts", Chains: 4, Warmup: 1000, Draws: 250, Seed: 7, TargetAccept: 0.8, MaxTreeDepth: 10}
}

func newTestServer(p *fakePipeline) (*xhttp.Server, *JumpVolHandler) {
	h := NewJumpVolHandler(xlogger.Nop(), p)
	reg := prometheus.NewRegistry()
	return xhttp.NewServer(h, xhttp.WithMetrics("/metrics", reg, reg)), h
}

func serve(s *xhttp.Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func TestVariationEndpoint(t *testing.T) {
	p := &fakePipeline{}
	s, _ := newTestServer(p)

	rec := serve(s, http.MethodGet, "/api/variation?symbol=SPY&from=2024-01-01&to=2024-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res usecase.VariationResult
	decode(t, rec, &res)
	assert.Equal(t, "SPY", res.Symbol)
	assert.Equal(t, 1, res.Jumps)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), p.lastQ.From)
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC), p.lastQ.To)
}

func TestVariationValidation(t *testing.T) {
	s, _ := newTestServer(&fakePipeline{})

	rec := serve(s, http.MethodGet, "/api/variation", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"symbol"`)

	rec = serve(s, http.MethodGet, "/api/variation?symbol=SPY&from=someday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"from"`)
}

func TestFeaturesEndpointSplits(t *testing.T) {
	s, _ := newTestServer(&fakePipeline{})

	for split, want := range map[string]int{"": 10, "all": 10, "train": 6, "test": 4} {
		rec := serve(s, http.MethodGet, "/api/features?symbol=SPY&split="+split, "")
		require.Equal(t, http.StatusOK, rec.Code, split)
		var res FeaturesResponse
		decode(t, rec, &res)
		assert.Len(t, res.Rows, want, split)
		assert.Equal(t, 10, res.Total)
	}

	rec := serve(s, http.MethodGet, "/api/features?symbol=SPY&split=holdout", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_ONEOF")
}

func TestFitEndpointMergesOptions(t *testing.T) {
	p := &fakePipeline{}
	s, _ := newTestServer(p)

	rec := serve(s, http.MethodPost, "/api/fit", `{"symbol":"SPY","kind":"metropolis","chains":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, p.lastOpts)
	assert.Equal(t, "metropolis", p.lastOpts.Kind)
	assert.Equal(t, 2, p.lastOpts.Chains)
	assert.Equal(t, 1000, p.lastOpts.Warmup)
	assert.Equal(t, uint64(7), p.lastOpts.Seed)
	assert.Equal(t, 10, p.lastOpts.MaxTreeDepth)

	var report models.FitReport
	decode(t, rec, &report)
	assert.Equal(t, "metropolis", report.Sampler)

	rec = serve(s, http.MethodPost, "/api/fit", `{"symbol":"SPY","kind":"gibbs"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, http.MethodPost, "/api/fit", `{"symbol":"SPY","chains":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFitEndpointTimeout(t *testing.T) {
	s, _ := newTestServer(&fakePipeline{block: true})
	rec := serve(s, http.MethodPost, "/api/fit", `{"symbol":"SPY","timeout_seconds":1}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_TIMEOUT")
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: 10 valid days, need 23", models.ErrInsufficientHistory), http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_HISTORY"},
		{models.NewDomainError("jump test", "bv is zero"), http.StatusUnprocessableEntity, "ERR_DOMAIN"},
		{fmt.Errorf("load bars: %w", fs.ErrNotExist), http.StatusNotFound, "ERR_NOT_FOUND"},
		{fmt.Errorf("%w: bad range", models.ErrInvalidInput), http.StatusBadRequest, "ERR_BAD_REQUEST"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		s, _ := newTestServer(&fakePipeline{err: tc.err})
		rec := serve(s, http.MethodGet, "/api/variation?symbol=SPY", "")
		assert.Equal(t, tc.status, rec.Code, tc.code)
		assert.Contains(t, rec.Body.String(), tc.code)
	}
}

func TestHealth(t *testing.T) {
	s, h := newTestServer(&fakePipeline{})
	rec := serve(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.AddHealthCheck("clickhouse", func(context.Context) error { return nil })
	h.AddHealthCheck("redis", func(context.Context) error { return errors.New("refused") })
	rec = serve(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var res map[string]string
	decode(t, rec, &res)
	assert.Equal(t, "ok", res["clickhouse"])
	assert.Equal(t, "refused", res["redis"])
}
