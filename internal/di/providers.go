package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"SignalPulse/internal/domain/repository"
	domsvc "SignalPulse/internal/domain/service"
	"SignalPulse/internal/handler/api"
	mid "SignalPulse/internal/middleware"
	internalrepo "SignalPulse/internal/repository"
	"SignalPulse/internal/service/finnhub"
	"SignalPulse/internal/service/marketdata"
	enginemetrics "SignalPulse/internal/service/metrics"
	"SignalPulse/internal/service/ratelimit"
	"SignalPulse/internal/services/analytics"
	"SignalPulse/internal/services/attribution"
	"SignalPulse/internal/services/detectors"
	"SignalPulse/internal/services/scoring"
	"SignalPulse/internal/usecase"
	"SignalPulse/pkg/cache"
	pkgch "SignalPulse/pkg/clickhouse"
	"SignalPulse/pkg/config"
	xhttp "SignalPulse/pkg/http"
	"SignalPulse/pkg/http/middleware"
	pkgkafka "SignalPulse/pkg/kafka"
	"SignalPulse/pkg/logger"
	pkgmetrics "SignalPulse/pkg/metrics"
	"SignalPulse/pkg/queue"
	"SignalPulse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&cfg.Logger)
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	return pkgmetrics.NewRegistry()
}

// ProvideMetrics creates the engine metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return enginemetrics.New(reg)
}

// ProvidePostgres opens the signal database.
func ProvidePostgres(cfg *config.Config) (*gorm.DB, error) {
	return internalrepo.OpenPostgres(internalrepo.PostgresOptions{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		AutoMigrate:     cfg.Postgres.AutoMigrate,
	})
}

func ProvideSignalStore(db *gorm.DB) repository.SignalStore {
	return internalrepo.NewSignalStore(db)
}

func ProvidePerformanceStore(db *gorm.DB) repository.PerformanceStore {
	return internalrepo.NewPerformanceStore(db)
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// aggregate table exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, internalrepo.AggregateSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ProvideAggregateStore(ch *pkgch.Client, log *logger.Logger) repository.AggregateStore {
	return internalrepo.NewCHAggregateStore(ch, log)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(reg,
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher announces signal events on Kafka. Without a producer
// the engine runs with no publisher.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topics.Emitted, cfg.Kafka.Topics.Closed)
}

// ProvideRedisClient connects to Redis, or returns nil when disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideCache shares bar fetches through Redis, falling back to an
// in-process cache.
func ProvideCache(client *redis.Client, cfg *config.Config) cache.Service {
	if client != nil {
		return cache.NewRedisCache(client, cache.WithRedisPrefix(cfg.Queue.Name))
	}
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(4096), cache.WithMemoryCleanup(time.Minute))
}

// ProvideMarketData routes bar requests to Alpaca or Twelve Data by asset
// class, each behind its own token bucket.
func ProvideMarketData(cfg *config.Config, c cache.Service, metrics repository.Metrics, log *logger.Logger) repository.MarketDataProvider {
	md := cfg.MarketData
	router := marketdata.NewRouter(metrics,
		marketdata.WithProvider(marketdata.ProviderAlpaca, marketdata.NewAlpaca(md.Alpaca),
			ratelimit.New(float64(md.Alpaca.RateLimit.Capacity), md.Alpaca.RateLimit.RefillPerSec)),
		marketdata.WithProvider(marketdata.ProviderTwelveData, marketdata.NewTwelveData(md.TwelveData),
			ratelimit.New(float64(md.TwelveData.RateLimit.Capacity), md.TwelveData.RateLimit.RefillPerSec)),
		marketdata.WithRoutes(md.Routes, md.SymbolRoutes),
		marketdata.WithCryptoSymbols(cfg.Engine.Universe.Crypto),
	)
	if !md.Cache.Enabled {
		return router
	}
	return marketdata.NewCached(router, c, md.Cache.TTL, md.Cache.Namespace, log)
}

func ProvideAttributor(cfg *config.Config, data repository.MarketDataProvider, log *logger.Logger) domsvc.Attributor {
	return attribution.New(cfg.Attribution, data, log)
}

// ProvideDetectionCycle wires every detector family into the cycle.
func ProvideDetectionCycle(
	cfg *config.Config,
	data repository.MarketDataProvider,
	signals repository.SignalStore,
	pub repository.SignalPublisher,
	metrics repository.Metrics,
	log *logger.Logger,
) *usecase.DetectionCycle {
	return usecase.NewDetectionCycle(
		cfg.Engine,
		data,
		scoring.New(),
		detectors.NewBuilder(cfg.Engine.MinRiskReward, cfg.Engine.Universe.Crypto),
		detectors.All(),
		signals,
		pub,
		metrics,
		log,
	)
}

func ProvideSignalLifecycle(signals repository.SignalStore, pub repository.SignalPublisher, metrics repository.Metrics, log *logger.Logger) *usecase.SignalLifecycle {
	return usecase.NewSignalLifecycle(signals, pub, metrics, log)
}

func ProvidePerformanceService(
	cfg *config.Config,
	signals repository.SignalStore,
	perf repository.PerformanceStore,
	aggregates repository.AggregateStore,
	attributor domsvc.Attributor,
	metrics repository.Metrics,
	log *logger.Logger,
) *usecase.PerformanceService {
	return usecase.NewPerformanceService(signals, perf, aggregates, attributor, analytics.ParamsFrom(cfg.Attribution), metrics, log)
}

// ProvideJobQueue creates the Redis job queue with the attribution jobs
// registered, or nil without Redis.
func ProvideJobQueue(cfg *config.Config, client *redis.Client, perf *usecase.PerformanceService, log *logger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	q := queue.NewRedisQueue(log, queue.Config{
		Workers:      cfg.Queue.Workers,
		RetryLimit:   cfg.Queue.MaxRetries,
		RetryDelay:   cfg.Queue.RetryDelay,
		PollInterval: cfg.Queue.PollInterval,
	}, client, queue.WithKeyPrefix(cfg.Queue.Name+":queue"))
	q.Register(usecase.AttributeSignalJob(perf), usecase.DailyAnalysisJob(perf))
	return q
}

// ProvideMarketStream creates the Finnhub trade stream, or nil when disabled.
func ProvideMarketStream(cfg *config.Config, log *logger.Logger) repository.MarketStream {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		finnhub.WithBufferSize(cfg.Finnhub.BufferSize),
		finnhub.WithLogger(log),
	)
}

// ProvideSignalMonitor builds the live monitor over the whole universe.
func ProvideSignalMonitor(
	cfg *config.Config,
	stream repository.MarketStream,
	lifecycle *usecase.SignalLifecycle,
	metrics repository.Metrics,
	log *logger.Logger,
) *usecase.SignalMonitor {
	if stream == nil {
		return nil
	}
	return usecase.NewSignalMonitor(stream, lifecycle, cfg.Engine.Symbols(), metrics, log,
		[]mid.PipelineOption{
			mid.WithMaxRPS(cfg.Finnhub.MaxRPS),
			mid.WithBufferSize(cfg.Finnhub.BufferSize),
		},
	)
}

// ProvideScheduler drives the detection cycle and the daily analysis. New
// signals are handed to the monitor as soon as they are stored.
func ProvideScheduler(
	cfg *config.Config,
	cycle *usecase.DetectionCycle,
	perf *usecase.PerformanceService,
	jobs *queue.RedisQueue,
	monitor *usecase.SignalMonitor,
	log *logger.Logger,
) *usecase.Scheduler {
	var opts []usecase.SchedulerOption
	if jobs != nil {
		opts = append(opts, usecase.WithJobQueue(jobs))
	}
	if monitor != nil {
		opts = append(opts, usecase.WithEmitHook(monitor.Watch))
	}
	return usecase.NewScheduler(cycle, perf, cfg.Engine.CycleInterval, cfg.Queue.DailyAnalysisAt, log, opts...)
}

// ProvideKafkaConsumer consumes signal.closed events for attribution, or
// returns nil when no brokers are configured.
func ProvideKafkaConsumer(
	cfg *config.Config,
	reg *prometheus.Registry,
	jobs *queue.RedisQueue,
	perf *usecase.PerformanceService,
	metrics repository.Metrics,
	log *logger.Logger,
) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log, reg,
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

	var pub queue.Publisher
	if jobs != nil {
		pub = jobs
	}
	consumer.RegisterHandler(usecase.NewClosedSignalHandler(cfg.Kafka.Topics.Closed, pub, perf, metrics))
	return consumer, nil
}

// ProvideHandlers lists the HTTP route groups.
func ProvideHandlers(
	cfg *config.Config,
	log *logger.Logger,
	cycle *usecase.DetectionCycle,
	lifecycle *usecase.SignalLifecycle,
	perf *usecase.PerformanceService,
	monitor *usecase.SignalMonitor,
) []xhttp.Handler {
	var watcher api.Watcher
	if monitor != nil {
		watcher = monitor
	}
	return []xhttp.Handler{
		api.NewSignalsHandler(log, lifecycle, perf, cfg.Auth.Enabled),
		api.NewAnalyticsHandler(log, perf),
		api.NewCyclesHandler(log, cycle, watcher),
	}
}

// ProvideHTTPServer creates the Echo server with metrics, readiness probes
// and, when enabled, bearer-token tier extraction.
func ProvideHTTPServer(
	cfg *config.Config,
	log *logger.Logger,
	reg *prometheus.Registry,
	handlers []xhttp.Handler,
	db *gorm.DB,
	ch *pkgch.Client,
	redisClient *redis.Client,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithReadiness("clickhouse", ch.Health),
	}
	if sqlDB, err := db.DB(); err == nil {
		opts = append(opts, xhttp.WithReadiness("postgres", sqlDB.PingContext))
	}
	if redisClient != nil {
		opts = append(opts, xhttp.WithReadiness("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg))
	}
	srv := xhttp.NewServer(log, handlers, opts...)
	if cfg.Auth.Enabled {
		srv.Echo().Use(middleware.TierAuth([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer))
	}
	return srv
}

// ProvideApp assembles the application and ships warning and error digests
// to Kafka when a producer is available.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	scheduler *usecase.Scheduler,
	monitor *usecase.SignalMonitor,
	jobs *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	db *gorm.DB,
	ch *pkgch.Client,
	redisClient *redis.Client,
	c cache.Service,
) *server.App {
	opts := []server.Option{}
	if monitor != nil {
		opts = append(opts, server.WithMonitor(monitor))
	}
	if jobs != nil {
		opts = append(opts, server.WithJobQueue(jobs))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer))
	}

	closers := []server.Closer{{Name: "clickhouse", Close: ch.Close}}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, server.Closer{Name: "postgres", Close: sqlDB.Close})
	}
	if redisClient != nil {
		closers = append(closers, server.Closer{Name: "redis", Close: redisClient.Close})
	} else {
		closers = append(closers, server.Closer{Name: "cache", Close: c.Close})
	}
	if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka producer", Close: producer.Close})
		if cfg.Kafka.Topics.Logs != "" {
			log.AttachCollector(&logger.CollectionConfig{
				FlushInterval: 30 * time.Second,
				MaxEntries:    100,
				Topic:         cfg.Kafka.Topics.Logs,
				Publisher:     producer,
			})
		}
	}
	opts = append(opts, server.WithClosers(closers...))

	return server.New(cfg, log, srv, scheduler, opts...)
}
