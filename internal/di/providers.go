package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"JumpVol/internal/domain/repository"
	"JumpVol/internal/handler/api"
	internalrepo "JumpVol/internal/repository"
	"JumpVol/internal/service/ratelimit"
	"JumpVol/internal/services/analytics"
	"JumpVol/internal/usecase"
	"JumpVol/pkg/cache"
	pkgch "JumpVol/pkg/clickhouse"
	"JumpVol/pkg/config"
	pkgkafka "JumpVol/pkg/kafka"
	applogger "JumpVol/pkg/logger"
	"JumpVol/pkg/metrics"
	"JumpVol/pkg/server"
)

// Runtime is everything the CLI commands need.
type Runtime struct {
	Config   *config.Config
	Logger   *applogger.Logger
	Pipeline *usecase.Pipeline
}

// ProvideLogger builds the application logger from cfg.Log.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry shared by all metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the pipeline metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.NewWithRegisterer(reg)
}

// ProvideClickHouseClient connects to ClickHouse when it is enabled; otherwise
// it returns nil.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	l.Info("clickhouse connected",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database),
	)
	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideBarSource selects the bar source named by cfg.Source.Kind.
func ProvideBarSource(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.BarSource, error) {
	switch cfg.Source.Kind {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("source clickhouse requires clickhouse.enabled")
		}
		src := internalrepo.NewCHBarSource(ch, cfg.Source.Table)
		src.SetLogger(l)
		return src, nil
	default:
		src := internalrepo.NewCSVBarSource(cfg.Source.Path)
		src.SetLogger(l)
		return src, nil
	}
}

// ProvideResultSink returns the ClickHouse sink with its tables ensured, or nil
// when ClickHouse is disabled.
func ProvideResultSink(ch *pkgch.Client, l *applogger.Logger) (repository.ResultSink, error) {
	if ch == nil {
		return nil, nil
	}
	sink := internalrepo.NewCHResultSink(ch)
	sink.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return sink, nil
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	l.Info("kafka producer ready",
		applogger.Strings("brokers", cfg.Kafka.Brokers),
		applogger.String("topic", cfg.Kafka.Topic),
	)
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideReportPublisher publishes fit reports to cfg.Kafka.Topic, or returns nil
// without a producer.
func ProvideReportPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.ReportPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideCacheService uses Redis when enabled and an in-process cache otherwise.
func ProvideCacheService(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	var svc cache.Service
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Redis.Addr),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		l.Info("redis cache connected", applogger.String("addr", cfg.Redis.Addr))
		svc = rc
	} else {
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(256))
	}
	cleanup := func() {
		if err := svc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}
	return svc, cleanup, nil
}

// ProvidePosteriorCache keeps fit reports for cfg.Redis.TTL.
func ProvidePosteriorCache(cfg *config.Config, svc cache.Service) repository.PosteriorCache {
	return internalrepo.NewPosteriorCache(svc, cfg.Redis.TTL)
}

// ProvidePipelineConfig maps the estimator, feature and sampler sections.
func ProvidePipelineConfig(cfg *config.Config) usecase.PipelineConfig {
	return usecase.PipelineConfig{
		Delta:         cfg.Estimator.Delta,
		Significance:  cfg.Estimator.Significance,
		ShortWindow:   cfg.Features.ShortWindow,
		LongWindow:    cfg.Features.LongWindow,
		TrainFraction: cfg.Features.TrainFraction,
		Fit: analytics.FitOptions{
			Kind:         cfg.Sampler.Kind,
			Chains:       cfg.Sampler.Chains,
			Warmup:       cfg.Sampler.Warmup,
			Draws:        cfg.Sampler.Draws,
			Seed:         cfg.Sampler.Seed,
			TargetAccept: cfg.Sampler.TargetAccept,
			MaxTreeDepth: cfg.Sampler.MaxTreeDepth,
		},
	}
}

// ProvidePipeline wires the pipeline with whichever sinks are configured.
func ProvidePipeline(
	pc usecase.PipelineConfig,
	src repository.BarSource,
	sink repository.ResultSink,
	pub repository.ReportPublisher,
	pcache repository.PosteriorCache,
	m *metrics.Recorder,
	l *applogger.Logger,
) (*usecase.Pipeline, error) {
	opts := []usecase.Option{
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
		usecase.WithCache(pcache),
	}
	if sink != nil {
		opts = append(opts, usecase.WithSink(sink))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	return usecase.NewPipeline(src, usecase.DefaultFitterFactory, pc, opts...)
}

// ProvideRuntime bundles the pipeline for the CLI.
func ProvideRuntime(cfg *config.Config, l *applogger.Logger, p *usecase.Pipeline) *Runtime {
	return &Runtime{Config: cfg, Logger: l, Pipeline: p}
}

// ProvideHandler builds the HTTP handler with health checks for the enabled
// dependencies and the fit rate limit.
func ProvideHandler(cfg *config.Config, l *applogger.Logger, p *usecase.Pipeline, ch *pkgch.Client, svc cache.Service) *api.JumpVolHandler {
	h := api.NewJumpVolHandler(l, p)
	if ch != nil {
		h.AddHealthCheck("clickhouse", ch.Health)
	}
	h.AddHealthCheck("cache", func(ctx context.Context) error {
		_, err := svc.Exists(ctx, "healthz")
		return err
	})
	if cfg.Server.FitRatePerMinute > 0 {
		h.UseFitMiddleware(ratelimit.New(cfg.Server.FitRatePerMinute, cfg.Server.FitBurst).Middleware())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, h *api.JumpVolHandler, reg *prometheus.Registry) *server.App {
	return server.New(cfg, l, h, reg)
}
