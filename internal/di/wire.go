//go:build wireinject
// +build wireinject

package di

import (
	"SignalForge/pkg/config"
	"SignalForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,

		// Storage
		ProvideClickHouseClient,
		ProvideSignalStore,
		ProvideRunRecorder,
		ProvideCache,
		ProvideWebhookStore,
		ProvideEventPublisher,

		// Upstream data
		ProvideMarketDataBase,
		ProvideAssetService,
		ProvideMacroService,
		ProvideFeedService,
		ProvideFinnhub,

		// Analysis and delivery
		ProvideClassifier,
		ProvideSummaryGenerator,
		ProvideTelegram,
		ProvideWebhookDispatcher,

		// Workflow
		ProvideEngine,
		ProvideSignalSkills,
		ProvideRunner,
		ProvideScheduler,
		ProvideKafkaConsumer,
		ProvideTriggerHandler,

		// HTTP
		ProvideSignalQuery,
		ProvideRateLimiter,
		ProvideAPIHandler,
		ProvideHTTPServer,

		// Application
		ProvideClosers,
		ProvideApp,
	)
	return &server.App{}, nil
}
