package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RishiKendai/cellguard/internal/api"
	"github.com/RishiKendai/cellguard/internal/config"
	"github.com/RishiKendai/cellguard/internal/configs/env"
	"github.com/RishiKendai/cellguard/internal/infra/mongo"
	redisInfra "github.com/RishiKendai/cellguard/internal/infra/redis"
	"github.com/RishiKendai/cellguard/internal/logger"
	"github.com/RishiKendai/cellguard/internal/metrics"
	"github.com/RishiKendai/cellguard/internal/plagiarism"
	"github.com/RishiKendai/cellguard/internal/preprocess"
	"github.com/RishiKendai/cellguard/internal/repository"
	"github.com/RishiKendai/cellguard/internal/repository/memory"
	"github.com/RishiKendai/cellguard/internal/repository/postgres"
	"github.com/RishiKendai/cellguard/internal/repository/sqlite"
	"github.com/RishiKendai/cellguard/internal/storage"
	"github.com/RishiKendai/cellguard/internal/stream"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// stores bundles the fragment and relation repositories of one driver
type stores struct {
	fragments plagiarism.FragmentRepository
	relations plagiarism.RelationRepository
	close     func()
}

func main() {
	if err := env.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to parse .env file, continuing with system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("Starting cellguard server")

	// Initialize Prometheus metrics
	metrics.InitPrometheus()
	log.Info().Msg("Prometheus metrics initialized")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := api.StartServer("metrics", metricsMux, cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open store")
	}
	defer st.close()

	fetcher, err := newFetcher(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("objectStore", cfg.ObjectStore).Msg("Failed to create object fetcher")
	}

	// Redis is optional; without it locks and status stay in process
	var (
		locker      plagiarism.VersionLocker = plagiarism.NewLocalLocker()
		status                               = statusStore(plagiarism.NewLocalStatus())
		redisClient *redisInfra.Client
	)
	if cfg.RedisEnabled() {
		redisClient, err = redisInfra.NewClient(ctx, cfg.RedisHost, cfg.RedisPassword, 0)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Redis client")
		}
		defer redisClient.Close()

		locker = redisInfra.NewLocker(redisClient.Client, cfg.LockTTL)
		status = redisInfra.NewStatusStore(redisClient.Client)
	}

	tokenizer := plagiarism.NewTokenizer(cfg.NormalizeLiterals)
	cache := plagiarism.NewFragmentCache(st.fragments, fetcher, preprocess.NewNotebookExtractor(), locker)

	// Initialize worker pool
	workerPool := plagiarism.NewWorkerPool(ctx, 0)
	defer workerPool.Close()

	service := plagiarism.NewService(cache, st.relations, tokenizer, workerPool, status)
	service.SetFetchConcurrency(cfg.FetchConcurrency)

	router := api.SetupRoutes(cfg, service, status)

	if redisClient != nil {
		preprocessSvc := preprocess.NewService(cache)
		retryHandler := stream.NewRetryHandler(redisClient.Client, cfg.RedisDeadLetterKey)

		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "unknown"
		}
		consumerName := fmt.Sprintf("consumer-%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
		consumer := stream.NewConsumer(redisClient.Client, stream.ConsumerConfig{
			StreamKey: cfg.RedisStreamKey,
			Group:     cfg.RedisConsumerGroup,
			Name:      consumerName,
			Retention: cfg.StreamRetentionDuration,
		}, preprocessSvc, retryHandler)
		log.Info().Str("consumer_name", consumerName).Msg("Redis stream consumer initialized")

		// Start Redis consumer in background
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Redis consumer error")
			}
		}()
		log.Info().Msg("Redis consumer started")
	}

	srv := api.StartServer("api", router, cfg.ServerPort)

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	// Shutdown Gin server gracefully
	if err := api.ShutdownServer(srv, 30*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down Gin server")
	}

	// Stop the consumer and workers
	cancel()

	if err := api.ShutdownServer(metricsServer, 5*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down metrics server")
	}

	log.Info().Msg("Shutdown complete")
}

// statusStore both records and serves check progress
type statusStore interface {
	plagiarism.StatusReporter
	api.StatusReader
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pg, err := postgres.NewStore(cfg.PostgresDSN, cfg.MaxConcurrentChecks*4)
		if err != nil {
			return nil, err
		}
		return &stores{fragments: pg, relations: pg, close: func() { _ = pg.Close() }}, nil

	case config.StoreMongo:
		mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		mongoRepo := repository.NewMongoRepository(mongoClient)
		relations := repository.NewRelationsRepository(mongoRepo)
		if err := relations.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to ensure MongoDB indexes")
		}
		return &stores{
			fragments: repository.NewFragmentsRepository(mongoRepo),
			relations: relations,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mongoClient.Close(closeCtx)
			},
		}, nil

	case config.StoreSQLite:
		lite, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{fragments: lite, relations: lite, close: func() { _ = lite.Close() }}, nil

	case config.StoreMemory:
		mem := memory.NewStore()
		log.Warn().Msg("Using in-memory store; fragments and relations are lost on restart")
		return &stores{fragments: mem, relations: mem, close: func() {}}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func newFetcher(cfg *config.Config) (plagiarism.ObjectFetcher, error) {
	switch cfg.ObjectStore {
	case config.ObjectStoreMinio:
		fetcher, err := storage.NewMinioFetcher(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
		return fetcher, nil
	case config.ObjectStoreHTTP:
		return storage.NewHTTPFetcher(cfg.DocumentServiceURL, cfg.DocumentServiceAPIKey), nil
	case config.ObjectStoreFilesystem:
		return storage.NewFilesystemFetcher(cfg.NotebookDir), nil
	}
	return nil, fmt.Errorf("unknown object store %q", cfg.ObjectStore)
}
