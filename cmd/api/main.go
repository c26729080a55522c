package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/cloudevents"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/idempotency"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/kafka"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/logging"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/metrics"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/middleware"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/mongodb"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/outbox"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/resilience"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/pkg/tracing"

	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/api/handlers"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/application"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/domain"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/infrastructure/memory"
	mongoStore "github.com/abhijeet-qsofte/asikh-oms-sub000/internal/infrastructure/mongodb"
	"github.com/abhijeet-qsofte/asikh-oms-sub000/internal/infrastructure/storage"
)

const serviceName = "dispatch-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting dispatch-service API")

	config := loadConfig()
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = config.OTLPEndpoint
	tracingConfig.Environment = config.Environment
	tracingConfig.ServiceVersion = config.Version
	tracingConfig.Enabled = config.TracingEnabled

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint, "enabled", tracingConfig.Enabled)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))
	logger.Info("Metrics initialized")

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceDispatch)

	stores, err := openPersistence(ctx, config, eventFactory, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize storage", "driver", config.StorageDriver)
		os.Exit(1)
	}
	defer stores.close(context.Background())
	logger.Info("Storage initialized", "driver", config.StorageDriver)

	photos, err := openPhotoStore(ctx, config, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize photo store", "store", config.PhotoStore)
		os.Exit(1)
	}

	// Outbox publisher drains events written with each transaction
	if config.OutboxEnabled {
		if config.KafkaCreateTopics {
			topicsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := kafka.EnsureTopics(topicsCtx, config.Kafka.Brokers, kafka.DefaultTopicConfigs(), config.KafkaReplicationFactor)
			cancel()
			if err != nil {
				logger.WithError(err).Error("Failed to create Kafka topics")
				os.Exit(1)
			}
			logger.Info("Kafka topics ensured", "replicationFactor", config.KafkaReplicationFactor)
		}

		producer, closeProducer := kafka.NewProductionProducer(config.Kafka, m, logger)
		defer closeProducer()

		outboxPublisher := outbox.NewPublisher(stores.outbox, producer, logger, m, outbox.DefaultPublisherConfig())
		if err := outboxPublisher.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start outbox publisher")
			os.Exit(1)
		}
		defer outboxPublisher.Stop()
		logger.Info("Outbox publisher started", "brokers", config.Kafka.Brokers)
	}

	batchService := application.NewBatchService(stores.store, logger, m)
	crateService := application.NewCrateService(stores.store, photos, logger, m)
	reconciliationService := application.NewReconciliationService(stores.store, photos, logger, m)

	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)

	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(serviceName)))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, logger.Logger, stores.ready))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	idempotencyConfig := idempotency.DefaultConfig(serviceName, stores.idempotency)
	idempotencyConfig.UserIDExtractor = middleware.GetUserID
	idempotencyConfig.Metrics = idempotency.NewMetrics(m.Registry())
	idempotencyConfig.Logger = logger.Logger

	v1 := router.Group("/api/v1")
	v1.Use(idempotency.Middleware(idempotencyConfig))
	handlers.NewBatchHandlers(batchService, logger).RegisterRoutes(v1)
	handlers.NewCrateHandlers(crateService, logger).RegisterRoutes(v1)
	handlers.NewReconciliationHandlers(reconciliationService, logger).RegisterRoutes(v1)

	srv := &http.Server{
		Addr:    config.ServerAddr,
		Handler: router,
		// Photo uploads arrive inline as base64
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// persistence bundles the store with the repositories that live beside it
type persistence struct {
	store       domain.Store
	outbox      outbox.Repository
	idempotency idempotency.KeyRepository
	ready       func(ctx context.Context) error
	close       func(ctx context.Context)
}

func openPersistence(ctx context.Context, config *Config, eventFactory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) (*persistence, error) {
	if config.StorageDriver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore(eventFactory)
		return &persistence{
			store:       store,
			outbox:      store.Outbox(),
			idempotency: idempotency.NewMemoryKeyRepository(),
			ready:       func(context.Context) error { return nil },
			close:       func(context.Context) {},
		}, nil
	}

	client, err := mongodb.NewClient(ctx, config.MongoDB, m, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	breaker := resilience.NewCircuitBreaker(mongoStore.BreakerConfig(), logger.Logger).WithMetrics(m)
	store := mongoStore.NewStore(client, eventFactory, breaker, logger)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}

	keys := idempotency.NewMongoKeyRepository(client.Database())
	if err := keys.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}

	return &persistence{
		store:       store,
		outbox:      store.Outbox(),
		idempotency: keys,
		ready:       client.HealthCheck,
		close: func(ctx context.Context) {
			if err := client.Close(ctx); err != nil {
				logger.WithError(err).Error("Failed to close MongoDB client")
			}
		},
	}, nil
}

// openPhotoStore returns nil when photos are disabled; uploads are then
// skipped and only caller-supplied URLs are kept.
func openPhotoStore(ctx context.Context, config *Config, m *metrics.Metrics, logger *logging.Logger) (application.PhotoStore, error) {
	var backend storage.Backend
	switch config.PhotoStore {
	case "none", "":
		logger.Info("Photo uploads disabled")
		return nil, nil
	case "memory":
		backend = storage.NewMemoryStore()
	default:
		s3Store, err := storage.NewS3Store(ctx, config.S3)
		if err != nil {
			return nil, err
		}
		backend = s3Store
	}

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("photo-store"), logger.Logger).WithMetrics(m)
	logger.Info("Photo store initialized", "store", backend.Name(), "timeout", config.PhotoUploadTimeout)
	return storage.NewGuardedStore(backend, breaker, config.PhotoUploadTimeout, m), nil
}

// Config holds application configuration
type Config struct {
	ServerAddr    string
	Environment   string
	Version       string
	StorageDriver string
	MongoDB       *mongodb.Config
	Kafka         *kafka.Config
	OutboxEnabled bool

	KafkaCreateTopics      bool
	KafkaReplicationFactor int

	TracingEnabled bool
	OTLPEndpoint   string

	PhotoStore         string
	PhotoUploadTimeout time.Duration
	S3                 storage.S3Config
}

func loadConfig() *Config {
	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = kafka.ParseBrokers(getEnv("KAFKA_BROKERS", "localhost:9092"))
	kafkaConfig.ClientID = serviceName

	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", mongoConfig.Database)

	return &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		Version:       getEnv("VERSION", "unknown"),
		StorageDriver: getEnv("STORAGE_DRIVER", "mongodb"),
		MongoDB:       mongoConfig,
		Kafka:         kafkaConfig,
		OutboxEnabled: getEnvBool("OUTBOX_ENABLED", true),

		KafkaCreateTopics:      getEnvBool("KAFKA_CREATE_TOPICS", false),
		KafkaReplicationFactor: getEnvInt("KAFKA_REPLICATION_FACTOR", 0),

		TracingEnabled: getEnvBool("TRACING_ENABLED", true),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		PhotoStore:         getEnv("PHOTO_STORE", "none"),
		PhotoUploadTimeout: getEnvDuration("PHOTO_UPLOAD_TIMEOUT", 5*time.Second),
		S3: storage.S3Config{
			Bucket:          getEnv("PHOTO_S3_BUCKET", ""),
			Region:          getEnv("PHOTO_S3_REGION", "us-east-1"),
			Endpoint:        getEnv("PHOTO_S3_ENDPOINT", ""),
			PathStyle:       getEnvBool("PHOTO_S3_PATH_STYLE", false),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PresignExpiry:   storage.DefaultPresignExpiry,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
