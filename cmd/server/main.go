package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "subtitlehub/internal/api/http"
	"subtitlehub/internal/app"
	"subtitlehub/internal/catalog"
	"subtitlehub/internal/domain"
	"subtitlehub/internal/metadata/tmdb"
	"subtitlehub/internal/metrics"
	"subtitlehub/internal/notify"
	"subtitlehub/internal/repository/mongo"
	"subtitlehub/internal/requests"
	"subtitlehub/internal/telemetry"
	"subtitlehub/internal/users"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "subtitlehub")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "subtitlehub"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Int("searchLimit", cfg.SearchLimit),
		slog.String("defaultLanguage", cfg.DefaultLanguage),
		slog.Bool("tmdbEnabled", cfg.TMDBAPIKey != ""),
		slog.Bool("redisEnabled", cfg.RedisURL != ""),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	subtitleRepo := mongo.NewSubtitleRepository(mongoClient, cfg.MongoDatabase)
	userRepo := mongo.NewUserRepository(mongoClient, cfg.MongoDatabase)
	requestRepo := mongo.NewRequestRepository(mongoClient, cfg.MongoDatabase)
	ledgerRepo := mongo.NewLedgerRepository(mongoClient, cfg.MongoDatabase)

	if err := subtitleRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("subtitle indexes failed", slog.String("error", err.Error()))
	}
	if err := requestRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("request indexes failed", slog.String("error", err.Error()))
	}
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		logger.Warn("user indexes failed", slog.String("error", err.Error()))
	}

	if cfg.StartImage != "" {
		if err := ledgerRepo.SeedSetting(ctx, "start_image", cfg.StartImage); err != nil {
			logger.Warn("start image seed failed", slog.String("error", err.Error()))
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("redis url invalid", slog.String("error", err.Error()))
			os.Exit(1)
		}
		redisClient = redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, continuing without cache backend", slog.String("error", err.Error()))
			redisClient = nil
		}
	}

	catalogOpts := []catalog.Option{
		catalog.WithLogger(logger),
		catalog.WithStats(ledgerRepo),
	}
	if redisClient != nil {
		catalogOpts = append(catalogOpts, catalog.WithRedisCache(catalog.NewRedisCacheBackend(redisClient)))
	}
	catalogSvc := catalog.NewService(subtitleRepo, catalog.Config{
		SearchLimit:     cfg.SearchLimit,
		FuzzyThreshold:  cfg.FuzzyThreshold,
		DefaultLanguage: cfg.DefaultLanguage,
		CacheTTL:        time.Duration(cfg.CacheTTLHours) * time.Hour,
		CacheDisabled:   cfg.CacheDisabled,
	}, catalogOpts...)

	userSvc := users.NewService(userRepo, users.WithStats(ledgerRepo), users.WithLogger(logger))
	requestSvc := requests.NewService(requestRepo,
		requests.WithUsers(userRepo),
		requests.WithStats(ledgerRepo),
		requests.WithLogger(logger),
	)

	tmdbClient := tmdb.NewClient(tmdb.Config{
		APIKey:   cfg.TMDBAPIKey,
		BaseURL:  cfg.TMDBBaseURL,
		Redis:    redisClient,
		CacheTTL: time.Duration(cfg.TMDBCacheTTLDays) * 24 * time.Hour,
	})

	handler := apihttp.NewServer(catalogSvc,
		apihttp.WithLogger(logger),
		apihttp.WithRequests(requestSvc),
		apihttp.WithUsers(userSvc),
		apihttp.WithSettings(ledgerRepo),
		apihttp.WithStats(ledgerRepo),
		apihttp.WithMetadata(tmdbClient),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithAdminIDs(cfg.AdminIDs),
		apihttp.WithIndexChannel(cfg.IndexChannelID),
	)

	go catalogSvc.RunWarmer(rootCtx)

	watcher := notify.NewWatcher(requestRepo.Collection(), func(ctx context.Context, event notify.RequestEvent) {
		handler.BroadcastRequestEvent(event)
	}, logger)
	go watcher.Run(rootCtx)

	go updateGauges(rootCtx, catalogSvc, requestRepo, handler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", slog.String("error", err.Error()))
		}
	}
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// updateGauges periodically refreshes the Prometheus gauges that cannot
// be maintained incrementally.
func updateGauges(ctx context.Context, catalogSvc *catalog.Service, requestRepo *mongo.RequestRepository, handler *apihttp.Server) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if total, err := catalogSvc.Count(refreshCtx); err == nil {
				metrics.CatalogSize.Set(float64(total))
			}
			if pending, err := requestRepo.CountByStatus(refreshCtx, domain.RequestPending); err == nil {
				metrics.PendingRequests.Set(float64(pending))
			}
			cancel()
			metrics.WSClientsConnected.Set(float64(handler.WSClientCount()))
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
