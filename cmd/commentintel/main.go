package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rajasatyajit/CommentIntel/config"
	"github.com/rajasatyajit/CommentIntel/internal/api"
	"github.com/rajasatyajit/CommentIntel/internal/cache"
	"github.com/rajasatyajit/CommentIntel/internal/classifier"
	"github.com/rajasatyajit/CommentIntel/internal/contextual"
	"github.com/rajasatyajit/CommentIntel/internal/database"
	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/metrics"
	middlewares "github.com/rajasatyajit/CommentIntel/internal/middleware"
	"github.com/rajasatyajit/CommentIntel/internal/notify"
	"github.com/rajasatyajit/CommentIntel/internal/pipeline"
	"github.com/rajasatyajit/CommentIntel/internal/priority"
	"github.com/rajasatyajit/CommentIntel/internal/ratelimit"
	"github.com/rajasatyajit/CommentIntel/internal/scheduler"
	"github.com/rajasatyajit/CommentIntel/internal/store"
	"github.com/rajasatyajit/CommentIntel/internal/taxonomy"
)

const reanalysisTimeout = 10 * time.Minute

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting CommentIntel",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)

	// Initialize store
	commentStore, err := store.Open(ctx, db, cfg.Database.SQLitePath)
	if err != nil {
		logger.Fatal("Failed to open store", "error", err)
	}
	if c, ok := commentStore.(io.Closer); ok {
		defer c.Close()
	}

	// Load taxonomy and build the analysis components
	tax, err := loadTaxonomy(cfg.Taxonomy)
	if err != nil {
		logger.Fatal("Failed to load taxonomy", "error", err)
	}
	logger.Info("Taxonomy loaded",
		"categories", len(tax.Categories),
		"locale", tax.Locale,
		"fingerprint", tax.Fingerprint(),
	)
	commentClassifier := classifier.New(contextual.New(tax))
	prioritizer := priority.New(tax)

	// Initialize pipeline
	opts := []pipeline.Option{
		pipeline.WithLookback(time.Duration(cfg.Schedule.LookbackDays) * 24 * time.Hour),
	}
	if cfg.Alerting.Enabled() {
		slackNotifier, err := notify.NewSlack(cfg.Alerting)
		if err != nil {
			logger.Fatal("Failed to configure alerting", "error", err)
		}
		opts = append(opts, pipeline.WithNotifier(slackNotifier))
		logger.Info("Slack alerting enabled", "channel", cfg.Alerting.SlackChannel, "min_tier", cfg.Alerting.MinTier)
	}
	commentPipeline := pipeline.New(commentStore, commentClassifier, prioritizer, cfg.Pipeline, opts...)

	// Start pipeline in background
	if len(commentPipeline.Sources()) > 0 {
		go func() {
			if err := commentPipeline.Run(ctx); err != nil {
				logger.Error("Pipeline error", "error", err)
			}
		}()
	}

	// Scheduled re-analysis
	if cfg.Schedule.Cron != "" {
		sched, err := scheduler.New(cfg.Schedule.Cron, commentPipeline, reanalysisTimeout)
		if err != nil {
			logger.Fatal("Failed to configure scheduler", "error", err)
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	// Redis-backed rate limiting and response cache, in-memory limiter otherwise
	limiter, responseCache, closeRedis := setupRedis(ctx, cfg)
	defer closeRedis()

	// Initialize API handlers
	apiHandler := api.NewHandler(commentStore, commentPipeline, commentClassifier, Version, BuildTime, GitCommit,
		api.WithCache(responseCache),
	)
	r := newRouter(cfg, apiHandler, limiter)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	cancel()

	logger.Info("Server exited")
}

// newRouter builds the HTTP router with the global middleware chain
func newRouter(cfg *config.Config, h *api.Handler, limiter ratelimit.Limiter) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
	r.Use(middlewares.Security)
	r.Use(middlewares.CORS(cfg.Server.CORSOrigins))
	r.Use(middlewares.BodyLimit(cfg.Server.MaxBodyBytes))
	r.Use(middlewares.RateLimit(limiter, cfg.RateLimit.RequestsPerMinute))

	h.RegisterRoutes(r)
	return r
}

// loadTaxonomy reads the configured taxonomy file or falls back to the embedded default
func loadTaxonomy(cfg config.TaxonomyConfig) (*taxonomy.Taxonomy, error) {
	if cfg.Path == "" {
		return taxonomy.Default()
	}
	return taxonomy.Load(cfg.Path)
}

// setupRedis connects to Redis when configured. Connection failures degrade to the
// in-memory limiter without a cache.
func setupRedis(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, *cache.Cache, func()) {
	if cfg.Redis.URL == "" {
		return ratelimit.NewMemoryLimiter(), nil, func() {}
	}

	client, err := ratelimit.Connect(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable; using in-memory rate limiting", "error", err)
		return ratelimit.NewMemoryLimiter(), nil, func() {}
	}

	logger.Info("Redis connected", "cache_ttl", cfg.Cache.TTL)
	mgr := ratelimit.NewManager(client)
	return mgr, cache.New(client, cfg.Cache.TTL), func() { _ = mgr.Close() }
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
