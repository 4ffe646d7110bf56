//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"JumpVol/pkg/config"
	"JumpVol/pkg/server"
)

var pipelineSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,

	// Infrastructure clients
	ProvideClickHouseClient,
	ProvideKafkaProducer,
	ProvideCacheService,

	// Repositories
	ProvideBarSource,
	ProvideResultSink,
	ProvideReportPublisher,
	ProvidePosteriorCache,

	// Use case
	ProvidePipelineConfig,
	ProvidePipeline,
)

// InitializeRuntime wires the pipeline for one-shot CLI commands.
func InitializeRuntime(cfg *config.Config) (*Runtime, func(), error) {
	wire.Build(pipelineSet, ProvideRuntime)
	return nil, nil, nil
}

// InitializeApp wires up all dependencies and returns the HTTP application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(pipelineSet, ProvideHandler, ProvideApp)
	return nil, nil, nil
}
