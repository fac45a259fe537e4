// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/miplaza/backend/internal/api"
	"github.com/miplaza/backend/internal/auth"
	"github.com/miplaza/backend/internal/commerce"
	"github.com/miplaza/backend/internal/config"
	"github.com/miplaza/backend/internal/db"
	"github.com/miplaza/backend/internal/embedding"
	"github.com/miplaza/backend/internal/health"
	"github.com/miplaza/backend/internal/jobs"
	"github.com/miplaza/backend/internal/middleware"
	"github.com/miplaza/backend/internal/post"
	"github.com/miplaza/backend/internal/section"
	"github.com/miplaza/backend/internal/story"
	"github.com/miplaza/backend/internal/tracing"
	"github.com/miplaza/backend/internal/upload"
)

const serviceName = "miplaza-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	if *help {
		fmt.Println("MiPlaza API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "configuration error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx := context.Background()

	// Database
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Embedding provider. An unknown provider is a startup failure, never a
	// silent fallback.
	provider, err := embedding.NewProvider(embedding.ProviderConfig{
		Name:     cfg.EmbeddingsProvider,
		Endpoint: cfg.EmbeddingsEndpoint,
		Model:    cfg.EmbeddingsModel,
	})
	if err != nil {
		logger.Error("failed to initialize embedding provider", "error", err)
		os.Exit(1)
	}

	// Tracing (enabled when an OTLP endpoint is configured)
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "",
		Environment:  cfg.Env,
		ExporterType: "otlp-grpc",
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SamplingRate: 0.1,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Metrics
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	searchMetrics := commerce.NewMetrics()
	if err := searchMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register search metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// Repositories
	commerceRepo := commerce.NewPostgresRepository(conn)
	postRepo := post.NewPostgresRepository(conn)
	storyRepo := story.NewPostgresRepository(conn)
	sectionRepo := section.NewPostgresRepository(conn)
	embeddingStore := embedding.NewPostgresStore(conn)

	// Domain services
	commerceService := commerce.NewService(commerceRepo, embeddingStore, provider, cfg.EmbeddingModelVersion, logger)
	ranker := commerce.NewRanker(commerceRepo, storyRepo, postRepo, embeddingStore, provider, searchMetrics, logger)
	feed := post.NewFeed(postRepo, logger)
	jwtService := auth.NewJWTService(cfg.JWTSecret)

	// Background story expiry sweep
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sweeper := jobs.NewSweeper(storyRepo, jobs.DefaultSweepInterval, jobMetrics, logger)
	go sweeper.Run(sweepCtx)

	// Rate limiting: Redis-backed when configured, per-process otherwise
	var rateLimitStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	var redisChecker api.HealthChecker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient, logger, httpMetrics)
		redisChecker = health.NewRedisChecker(redisClient)
	}

	// Upload service (optional, requires S3 configuration)
	var uploadService *upload.Service
	if cfg.S3BucketName != "" {
		uploadService, err = upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.S3BucketName,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			MaxSizeMB:       cfg.S3MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to initialize upload service", "error", err)
			os.Exit(1)
		}
	}

	var embeddingsChecker api.HealthChecker
	if cfg.EmbeddingsProvider == embedding.ProviderLocal {
		embeddingsChecker = health.NewEmbeddingsChecker(cfg.EmbeddingsEndpoint)
	}

	mux := newRouter(routerDeps{
		commerceHandlers: api.NewCommerceHandlers(commerceService, ranker),
		postHandlers:     api.NewPostHandlers(postRepo, commerceRepo),
		storyHandlers:    api.NewStoryHandlers(storyRepo, commerceRepo, postRepo),
		sectionHandlers:  api.NewSectionHandlers(sectionRepo),
		feedHandlers:     api.NewFeedHandlers(feed),
		uploadHandlers:   newUploadHandlers(uploadService),
		healthHandlers: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:         health.NewDBChecker(conn),
			RedisChecker:      redisChecker,
			EmbeddingsChecker: embeddingsChecker,
		}),
		jwtService: jwtService,
		searchLimiter: middleware.RateLimiter(
			rateLimitStore, middleware.DefaultSearchLimit(), middleware.UserKeyFunc()),
	})

	// Middleware chain: RequestID -> CORS -> Tracing -> Logging -> HTTPMetrics -> RateLimiter
	limited := middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.UserKeyFunc())(mux)
	handler := middleware.RequestID(
		middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSOrigins()})(
			middleware.Tracing(serviceName)(
				middleware.Logging(logger)(
					middleware.HTTPMetrics(httpMetrics)(limited)))))

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newUploadHandlers returns nil when the upload service is not configured;
// the router then answers 404 for /uploads/sign.
func newUploadHandlers(service *upload.Service) *api.UploadHandlers {
	if service == nil {
		return nil
	}
	return api.NewUploadHandlers(service)
}

// promHandler exposes the Prometheus metrics endpoint.
func promHandler() http.Handler {
	return promhttp.Handler()
}
