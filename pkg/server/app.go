// Package server runs the HTTP application until it is told to stop.
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"JumpVol/pkg/config"
	xhttp "JumpVol/pkg/http"
	applogger "JumpVol/pkg/logger"
)

// App encapsulates the HTTP application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
}

// New builds the Echo server for handler. reg receives the HTTP metrics and is
// what the metrics endpoint serves.
func New(cfg *config.Config, l *applogger.Logger, handler xhttp.Handler, reg *prometheus.Registry) *App {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	srv := xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(metricsPath, reg, reg),
		xhttp.WithLogger(l),
	)
	return &App{cfg: cfg, l: l, httpServer: srv}
}

// HTTPServer exposes the underlying server.
func (a *App) HTTPServer() *xhttp.Server { return a.httpServer }

// Run serves until ctx is done, SIGINT/SIGTERM arrives or the listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := a.httpServer.Start()
	a.l.Info("jumpvol api started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("addr", a.httpServer.Addr()),
		applogger.String("sampler", a.cfg.Sampler.Kind),
	)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	}
	return a.shutdown()
}

func (a *App) shutdown() error {
	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}
	a.l.Info("shutdown complete")
	return nil
}
