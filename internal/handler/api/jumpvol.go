package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"JumpVol/internal/domain/models"
	domrepo "JumpVol/internal/domain/repository"
	"JumpVol/internal/services/analytics"
	"JumpVol/internal/usecase"
	xhttp "JumpVol/pkg/http"
	xlogger "JumpVol/pkg/logger"
	xutil "JumpVol/pkg/util"
)

// Pipeline is the part of *usecase.Pipeline the handler serves.
type Pipeline interface {
	Variation(ctx context.Context, q usecase.Query) (*usecase.VariationResult, error)
	Features(ctx context.Context, q usecase.Query) (*usecase.FeaturesResult, error)
	Fit(ctx context.Context, params usecase.FitParams) (*models.FitReport, error)
	FitDefaults() analytics.FitOptions
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// JumpVolHandler exposes the pipeline over Echo.
type JumpVolHandler struct {
	logger   *xlogger.Logger
	pipeline Pipeline
	checks   map[string]HealthCheck
	fitMW    []echo.MiddlewareFunc
}

func NewJumpVolHandler(logger *xlogger.Logger, pipeline Pipeline) *JumpVolHandler {
	return &JumpVolHandler{logger: logger, pipeline: pipeline, checks: map[string]HealthCheck{}}
}

// AddHealthCheck registers a dependency probe reported by /healthz.
func (h *JumpVolHandler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// UseFitMiddleware wraps the fit route only, e.g. with a rate limiter.
func (h *JumpVolHandler) UseFitMiddleware(mw ...echo.MiddlewareFunc) {
	h.fitMW = append(h.fitMW, mw...)
}

func (h *JumpVolHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/variation", h.Variation)
	g.GET("/features", h.Features)
	g.POST("/fit", h.Fit, h.fitMW...)
}

func (h *JumpVolHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	res := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", xlogger.String("dependency", name), xlogger.Error(err))
			res[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		res[name] = "ok"
	}
	return xhttp.DataResponse(c, status, res)
}

func (h *JumpVolHandler) Variation(c echo.Context) error {
	req := &models.VariationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, appErr := query(req.Symbol, req.From, req.To)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}

	res, err := h.pipeline.Variation(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("variation usecase error", xlogger.String("symbol", q.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// FeaturesResponse is the selected part of a feature table.
type FeaturesResponse struct {
	Symbol   string               `json:"symbol"`
	Split    domrepo.Split        `json:"split"`
	Total    int                  `json:"total"`
	Rows     []models.FeatureRow  `json:"rows"`
	Excluded []models.ExcludedDay `json:"excluded,omitempty"`
}

func (h *JumpVolHandler) Features(c echo.Context) error {
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, appErr := query(req.Symbol, req.From, req.To)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}

	fr, err := h.pipeline.Features(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("features usecase error", xlogger.String("symbol", q.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	split := domrepo.NormalizeSplit(req.Split)
	rows := fr.Table.Rows
	switch split {
	case domrepo.SplitTrain:
		rows = fr.Train.Rows
	case domrepo.SplitTest:
		rows = fr.Test.Rows
	}
	return xhttp.SuccessResponse(c, FeaturesResponse{
		Symbol:   fr.Symbol,
		Split:    split,
		Total:    fr.Table.Len(),
		Rows:     rows,
		Excluded: fr.Excluded,
	})
}

func (h *JumpVolHandler) Fit(c echo.Context) error {
	req := &models.FitRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, appErr := query(req.Symbol, req.From, req.To)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}

	ctx := c.Request().Context()
	if req.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	opts := mergeFitOptions(h.pipeline.FitDefaults(), req)
	report, err := h.pipeline.Fit(ctx, usecase.FitParams{Query: q, Options: &opts})
	if err != nil {
		h.logger.Error("fit usecase error", xlogger.String("symbol", q.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, report)
}

func mergeFitOptions(base analytics.FitOptions, req *models.FitRequest) analytics.FitOptions {
	if req.Kind != "" {
		base.Kind = req.Kind
	}
	if req.Chains > 0 {
		base.Chains = req.Chains
	}
	if req.Warmup > 0 {
		base.Warmup = req.Warmup
	}
	if req.Draws > 0 {
		base.Draws = req.Draws
	}
	if req.Seed > 0 {
		base.Seed = req.Seed
	}
	if req.TargetAccept > 0 {
		base.TargetAccept = req.TargetAccept
	}
	return base
}

func query(symbol, from, to string) (usecase.Query, *xhttp.AppError) {
	q := usecase.Query{Symbol: symbol}
	var appErr *xhttp.AppError
	if q.From, appErr = xhttp.ParseTimeField("from", from); appErr != nil {
		return q, appErr
	}
	if q.To, appErr = xhttp.ParseTimeField("to", to); appErr != nil {
		return q, appErr
	}
	q.To = xutil.EndOfDay(q.To)
	return q, nil
}

// toAppError maps pipeline errors to HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return xhttp.BadRequestErrorf("", "%v", err).WithError(err)
	case errors.Is(err, fs.ErrNotExist):
		return xhttp.NewAppError("ERR_NOT_FOUND", "symbol", "no bars for symbol", http.StatusNotFound).WithError(err)
	case errors.Is(err, models.ErrInsufficientHistory):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_HISTORY", err.Error()).WithError(err)
	case errors.Is(err, models.ErrDomain):
		return xhttp.UnprocessableError("ERR_DOMAIN", err.Error()).WithError(err)
	case errors.Is(err, models.ErrSamplingCanceled), errors.Is(err, context.DeadlineExceeded):
		return xhttp.TimeoutError("fit did not finish in time").WithError(err)
	default:
		return xhttp.InternalError("pipeline failed").WithError(err)
	}
}
