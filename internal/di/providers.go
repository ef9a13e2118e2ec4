package di

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/handler/api"
	internalrepo "SignalForge/internal/repository"
	"SignalForge/internal/scheduler"
	"SignalForge/internal/service/finnhub"
	"SignalForge/internal/services/marketdata"
	"SignalForge/internal/services/notify"
	"SignalForge/internal/services/regime"
	"SignalForge/internal/services/summary"
	"SignalForge/internal/services/webhook"
	"SignalForge/internal/usecase"
	"SignalForge/internal/workflow"
	pkgcache "SignalForge/pkg/cache"
	pkgch "SignalForge/pkg/clickhouse"
	"SignalForge/pkg/config"
	xhttp "SignalForge/pkg/http"
	pkgkafka "SignalForge/pkg/kafka"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/metrics"
	"SignalForge/pkg/server"

	"github.com/google/uuid"
)

const schemaTimeout = 10 * time.Second

// ProvideLogger builds the root logger. With log.collect set and Kafka
// enabled, warnings and errors are also folded into digests on the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.FlushInterval,
			Topic:        cfg.Kafka.Topics.Logs,
			Publisher:    producer,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideClickHouseClient opens the shared ClickHouse pool.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the signal store and applies its schema.
func ProvideSignalStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.CHSignalStore, error) {
	store := internalrepo.NewCHSignalStore(ch, cfg.ClickHouse.Database)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

func ProvideRunRecorder(ch *pkgch.Client, cfg *config.Config) *internalrepo.CHRunRecorder {
	return internalrepo.NewCHRunRecorder(ch, cfg.ClickHouse.Database)
}

// ProvideCache connects to Redis, or falls back to an in-process cache when
// no address is configured. The fallback only suits a single instance.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (pkgcache.Service, error) {
	if cfg.Redis.Addr == "" {
		l.Warn("redis not configured, using in-process cache and locks")
		return pkgcache.NewMemoryCache(), nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideWebhookStore keeps subscribers in Redis when it backs the cache.
func ProvideWebhookStore(c pkgcache.Service) domrepo.WebhookStore {
	if rc, ok := c.(*pkgcache.RedisCache); ok {
		return internalrepo.NewRedisWebhookStore(rc)
	}
	return internalrepo.NewMemoryWebhookStore()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithBatchLimits(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes stored signals to the signals topic.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Signals)
}

// ProvideKafkaConsumer creates the trigger consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithLogger(l.With(applogger.String("component", "trigger-consumer")))
	return consumer, nil
}

func ProvideMarketDataBase(cfg *config.Config, l *applogger.Logger) *marketdata.HTTPServiceBase {
	return marketdata.NewHTTPServiceBase(cfg, marketdata.WithLogger(l.With(applogger.String("component", "marketdata"))))
}

func ProvideAssetService(base *marketdata.HTTPServiceBase, cfg *config.Config) *marketdata.AssetService {
	return marketdata.NewAssetService(base, cfg.MarketData.HistoryDays)
}

func ProvideMacroService(base *marketdata.HTTPServiceBase, c pkgcache.Service, cfg *config.Config) *marketdata.MacroService {
	return marketdata.NewMacroService(base, c, cfg.MarketData.MacroStaleAfter)
}

func ProvideFeedService(base *marketdata.HTTPServiceBase) *marketdata.FeedService {
	return marketdata.NewFeedService(base)
}

// ProvideFinnhub creates the live price snapshotter, or nil when disabled.
func ProvideFinnhub(cfg *config.Config, l *applogger.Logger) *finnhub.Client {
	if !cfg.Finnhub.Enabled || cfg.Finnhub.APIKey == "" {
		return nil
	}
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.SnapshotWait,
		cfg.Finnhub.PingInterval,
		finnhub.WithLogger(l.With(applogger.String("component", "finnhub"))),
	)
}

func ProvideClassifier(c pkgcache.Service, l *applogger.Logger) *regime.Classifier {
	return regime.NewClassifier(
		regime.WithCache(c),
		regime.WithLogger(l.With(applogger.String("component", "regime"))),
	)
}

// ProvideSummaryGenerator routes crypto to the remote model and the rest
// to the embedded one.
func ProvideSummaryGenerator(cfg *config.Config, rec *metrics.Recorder, l *applogger.Logger) *summary.Generator {
	remote := summary.NewRemoteProvider(cfg.LLM.Remote.BaseURL, cfg.LLM.Remote.APIKey, cfg.LLM.Remote.Model, cfg.LLM.Timeout)
	embedded := summary.NewEmbeddedProvider(cfg.LLM.Embedded.BaseURL, cfg.LLM.Embedded.APIKey, cfg.LLM.Embedded.Model, cfg.LLM.Timeout)
	return summary.NewGenerator(summary.DefaultPrompts(), summary.NewRouter(remote, embedded),
		summary.WithPrompt(cfg.LLM.PromptName, cfg.LLM.PromptVersion),
		summary.WithTimeout(cfg.LLM.Timeout),
		summary.WithMetrics(rec),
		summary.WithLogger(l.With(applogger.String("component", "summary"))),
	)
}

// ProvideTelegram creates the notifier, or nil when disabled.
func ProvideTelegram(cfg *config.Config, rec *metrics.Recorder, l *applogger.Logger) *notify.Telegram {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		return nil
	}
	return notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.SiteURL,
		notify.WithAPIURL(cfg.Telegram.BaseURL),
		notify.WithMetrics(rec),
		notify.WithLogger(l.With(applogger.String("component", "telegram"))),
	)
}

// ProvideWebhookDispatcher creates the dispatcher, or nil when disabled.
func ProvideWebhookDispatcher(cfg *config.Config, store domrepo.WebhookStore, rec *metrics.Recorder, l *applogger.Logger) *webhook.Dispatcher {
	if !cfg.Webhooks.Enabled {
		return nil
	}
	return webhook.NewDispatcher(store,
		webhook.WithTimeout(cfg.Webhooks.Timeout),
		webhook.WithMaxFailures(cfg.Webhooks.MaxFailures),
		webhook.WithMetrics(rec),
		webhook.WithLogger(l.With(applogger.String("component", "webhooks"))),
	)
}

func ProvideEngine(rec *metrics.Recorder, l *applogger.Logger) *workflow.Engine {
	return workflow.NewEngine(
		workflow.WithLogger(l.With(applogger.String("component", "workflow"))),
		workflow.WithMetrics(rec),
		workflow.WithRunIDs(uuid.NewString),
	)
}

// ProvideSignalSkills assembles the skill collaborators. Disabled optional
// services stay nil interfaces so the skills skip them.
func ProvideSignalSkills(
	cfg *config.Config,
	assets *marketdata.AssetService,
	macro *marketdata.MacroService,
	feeds *marketdata.FeedService,
	prices *finnhub.Client,
	classifier *regime.Classifier,
	summaries *summary.Generator,
	store *internalrepo.CHSignalStore,
	publisher domrepo.EventPublisher,
	telegram *notify.Telegram,
	webhooks *webhook.Dispatcher,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *usecase.SignalSkills {
	deps := usecase.SkillDeps{
		Assets:     assets,
		Macro:      macro,
		Calendar:   feeds,
		News:       feeds,
		Prediction: feeds,
		Classifier: classifier,
		Summaries:  summaries,
		Store:      store,
		Publisher:  publisher,
		Universe: func(c models.Category) []string {
			return cfg.Tickers(string(c))
		},
		Metrics: rec,
		Logger:  l.With(applogger.String("component", "skills")),
	}
	if prices != nil {
		deps.Prices = prices
	}
	if telegram != nil {
		deps.Notifier = telegram
	}
	if webhooks != nil {
		deps.Webhooks = webhooks
	}
	return usecase.NewSignalSkills(deps)
}

// ProvideRunner compiles the signal workflow. Runs hold a per-slot lock so
// a manual trigger and a scheduled tick never produce the same slot twice.
func ProvideRunner(
	engine *workflow.Engine,
	skills *usecase.SignalSkills,
	runs *internalrepo.CHRunRecorder,
	locks pkgcache.Service,
	rec *metrics.Recorder,
	cfg *config.Config,
	l *applogger.Logger,
) (*usecase.Runner, error) {
	return usecase.NewRunner(engine, skills, runs,
		usecase.WithRunnerLogger(l.With(applogger.String("component", "runner"))),
		usecase.WithRunnerMetrics(rec),
		usecase.WithRunTimeout(cfg.Scheduler.RunTimeout),
		usecase.WithSlotLock(locks, cfg.Scheduler.RunTimeout),
	)
}

// ProvideScheduler registers the configured jobs, or returns nil when the
// scheduler is disabled.
func ProvideScheduler(runner *usecase.Runner, cfg *config.Config, rec *metrics.Recorder, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s := scheduler.New(runner,
		scheduler.WithLogger(l),
		scheduler.WithMetrics(rec),
		scheduler.WithRunTimeout(cfg.Scheduler.RunTimeout),
	)
	if err := s.Register(cfg.Scheduler.Jobs); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

func ProvideTriggerHandler(runner *usecase.Runner, cfg *config.Config, rec *metrics.Recorder, l *applogger.Logger) *usecase.TriggerHandler {
	return usecase.NewTriggerHandler(cfg.Kafka.Topics.Triggers, runner, rec, l.With(applogger.String("component", "trigger")))
}

func ProvideSignalQuery(store *internalrepo.CHSignalStore, c pkgcache.Service, cfg *config.Config, l *applogger.Logger) *usecase.SignalQuery {
	return usecase.NewSignalQuery(store, c, cfg.API.LatestCacheTTL, l)
}

func ProvideRateLimiter(cfg *config.Config) api.TriggerLimiter {
	return api.NewTriggerLimiter(cfg.API.TriggerRatePerMinute, cfg.API.TriggerRatePerMinute)
}

// ProvideAPIHandler exposes health, latest signal and manual run routes.
func ProvideAPIHandler(
	l *applogger.Logger,
	query *usecase.SignalQuery,
	runner *usecase.Runner,
	limiter api.TriggerLimiter,
	ch *pkgch.Client,
	c pkgcache.Service,
) *api.SignalsEchoHandler {
	checks := []api.HealthCheck{{Name: "clickhouse", Check: ch.Health}}
	if rc, ok := c.(*pkgcache.RedisCache); ok {
		checks = append(checks, api.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}})
	}
	return api.NewSignalsEchoHandler(l.With(applogger.String("component", "api")), query, runner, limiter, checks...)
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.SignalsEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l.With(applogger.String("component", "http")), []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideClosers lists resources in open order; the app closes them in
// reverse so the log collector drains before the producer closes.
func ProvideClosers(ch *pkgch.Client, c pkgcache.Service, publisher domrepo.EventPublisher, l *applogger.Logger) server.Closers {
	return server.Closers{
		{Name: "clickhouse", Close: ch.Close},
		{Name: "cache", Close: c.Close},
		{Name: "kafka-producer", Close: publisher.Close},
		{Name: "log-collector", Close: func() error {
			l.RemoveCollector()
			return nil
		}},
	}
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	trigger *usecase.TriggerHandler,
	srv *xhttp.Server,
	closers server.Closers,
) *server.App {
	return server.New(l, server.Options{
		Scheduler:       sched,
		Consumer:        consumer,
		Trigger:         trigger,
		HTTP:            srv,
		Closers:         closers,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
}
