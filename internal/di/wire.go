//go:build wireinject
// +build wireinject

package di

import (
	"SignalPulse/pkg/config"
	"SignalPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePostgres,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRedisClient,
		ProvideCache,

		// Repositories
		ProvideSignalStore,
		ProvidePerformanceStore,
		ProvideAggregateStore,
		ProvideSignalPublisher,
		ProvideMarketData,
		ProvideMarketStream,

		// Use cases
		ProvideAttributor,
		ProvideDetectionCycle,
		ProvideSignalLifecycle,
		ProvidePerformanceService,
		ProvideJobQueue,
		ProvideSignalMonitor,
		ProvideScheduler,
		ProvideKafkaConsumer,

		// Application server
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
