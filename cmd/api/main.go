package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/flowsync/flowsync-api/config"
	"github.com/flowsync/flowsync-api/internal/cache"
	"github.com/flowsync/flowsync-api/internal/handlers"
	"github.com/flowsync/flowsync-api/internal/middleware"
	"github.com/flowsync/flowsync-api/internal/repository"
	"github.com/flowsync/flowsync-api/internal/scheduler"
	"github.com/flowsync/flowsync-api/internal/services"
	"github.com/flowsync/flowsync-api/pkg/circuitbreaker"
	"github.com/flowsync/flowsync-api/pkg/db"
	"github.com/flowsync/flowsync-api/pkg/httpclient"
	"github.com/flowsync/flowsync-api/pkg/jwt"
	"github.com/flowsync/flowsync-api/pkg/limiter"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
	"github.com/flowsync/flowsync-api/pkg/notion"
	"github.com/flowsync/flowsync-api/pkg/profiling"
	"github.com/flowsync/flowsync-api/pkg/tracing"
	"github.com/flowsync/flowsync-api/pkg/webflow"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// registerAPIRoutes registers the authenticated sync routes
func registerAPIRoutes(
	group *gin.RouterGroup,
	tokenManager *jwt.TokenManager,
	apiRateLimiter *middleware.RateLimiter,
	syncHandler *handlers.SyncHandler,
) {
	integrations := group.Group("/integrations/:id")
	integrations.Use(apiRateLimiter.Middleware(), middleware.BearerAuthMiddleware(tokenManager))

	integrations.POST("/sync", middleware.BodySizeLimitMiddleware(64*1024), syncHandler.RunSync)
	integrations.GET("/sync-runs/:runId", syncHandler.GetRun)
}

// registerWebhookRoutes registers Webflow delivery routes. Limits are keyed
// by integration so one noisy site cannot starve the others.
func registerWebhookRoutes(
	group *gin.RouterGroup,
	cfg *config.Config,
	webhookRateLimiter *middleware.RateLimiter,
	webhookHandler *handlers.WebhookHandler,
) {
	group.POST("/webhooks/webflow/:integrationId",
		webhookRateLimiter.Middleware(),
		middleware.BodySizeLimitMiddleware(cfg.Server.MaxBodyBytes),
		middleware.WebflowSignatureMiddleware(cfg.Webflow.WebhookSecret, cfg.Webflow.WebhookMaxSkew),
		webhookHandler.HandleWebflowWebhook,
	)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: cfg.Observability.ServiceName,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting FlowSync API",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.Server.AppEnv),
	)

	// Initialize distributed tracing
	tracerShutdown, err := tracing.InitTracer(tracing.Config{
		ServiceName:       cfg.Observability.ServiceName,
		ServiceNamespace:  cfg.Observability.ServiceNamespace,
		ServiceVersion:    cfg.Observability.ServiceVersion,
		ServiceInstanceID: cfg.Observability.ServiceInstanceID,
		Environment:       cfg.Server.AppEnv,
		Endpoint:          cfg.Observability.ExporterEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	stopProfiler, err := profiling.InitProfiler(cfg.Profiling, cfg.Observability, cfg.Server.AppEnv)
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer stopProfiler()

	metrics.RecordInfrastructureMetrics()

	// Initialize PostgreSQL connection pool
	poolCfg := db.PoolConfig{
		URL:           cfg.Database.URL,
		MaxConns:      cfg.Database.MaxConns,
		MinConns:      cfg.Database.MinConns,
		CACertPath:    cfg.Database.CACertPath,
		TLSServerName: cfg.Database.TLSServerName,
	}
	pool, err := db.NewPool(context.Background(), poolCfg)
	if err != nil {
		logger.Fatal("Failed to initialize database connection pool", zap.Error(err))
	}
	defer db.Close(pool)

	// NOTE: migrations run separately via cmd/migrate before the app starts

	// Repositories
	integrationRepo := repository.NewIntegrationRepository(pool)
	mappingRepo := repository.NewMappingRepository(pool)
	syncRunRepo := repository.NewSyncRunRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)

	schemaCache := cache.NewSchemaCache(cfg.Sync.SchemaCacheTTL)

	// Pools and breakers are process-wide; every per-user client shares them
	notionOpts := notion.Options{
		BaseURL:         cfg.Notion.BaseURL,
		Version:         cfg.Notion.Version,
		Pool:            limiter.NewPool("notion", cfg.Notion.WriteConcurrency, cfg.Notion.CreateDelay),
		Breaker:         circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("notion")),
		ConflictBackoff: cfg.Notion.ConflictBackoff,
		AppendBatchSize: cfg.Notion.AppendBatchSize,
		AppendDelay:     cfg.Notion.AppendDelay,
	}
	webflowOpts := webflow.Options{
		BaseURL:           cfg.Webflow.BaseURL,
		RequestsPerMinute: cfg.Webflow.RequestsPerMinute,
		Pool:              limiter.NewPool("webflow", cfg.Webflow.WriteConcurrency, 0),
		Breaker:           circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("webflow")),
	}
	clientFactory := services.NewTokenClientFactory(tokenRepo, notionOpts, webflowOpts)

	// Initialize HTTP client for completion triggers
	httpClient := httpclient.NewStandardClient(10 * time.Second)

	// Initialize services
	syncService := services.NewSyncService(integrationRepo, mappingRepo, syncRunRepo, clientFactory, schemaCache, cfg, httpClient)
	webhookService := services.NewWebhookService(integrationRepo, mappingRepo, clientFactory, schemaCache)

	repairScheduler, err := scheduler.New(cfg.Sync.Schedule, integrationRepo, syncService)
	if err != nil {
		logger.Fatal("Failed to initialize scheduler", zap.Error(err))
	}
	repairScheduler.Start()

	tokenManager := jwt.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, time.Hour)

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(syncService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	healthHandler := handlers.NewHealthHandler(pool.Ping)

	// Set up Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName)) // OpenTelemetry tracing
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware(cfg.IsProduction()))

	allowedOrigins := cfg.Server.AllowedOrigins
	if cfg.IsDevelopment() {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "traceparent", "tracestate"},
		ExposeHeaders: []string{"Content-Length", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}))

	// Rate limiter cleanup loops stop with this context
	limiterCtx, stopLimiters := context.WithCancel(context.Background())
	defer stopLimiters()

	generalRateLimiter := middleware.NewRateLimiter(limiterCtx, 50, 100, middleware.ClientIPKey)
	apiRateLimiter := middleware.NewRateLimiter(limiterCtx, 5, 10, middleware.ClientIPKey)
	webhookRateLimiter := middleware.NewRateLimiter(limiterCtx, rate.Limit(20), 60, middleware.ParamKey("integrationId"))

	// Utility endpoints (not versioned - operational endpoints)
	api := router.Group("/api")
	api.GET("/healthcheck", generalRateLimiter.Middleware(), healthHandler.Healthcheck)
	api.GET("/metrics", generalRateLimiter.Middleware(), gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	registerAPIRoutes(v1, tokenManager, apiRateLimiter, syncHandler)
	registerWebhookRoutes(v1, cfg, webhookRateLimiter, webhookHandler)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	repairScheduler.Stop(ctx)
	if err := syncService.Wait(ctx); err != nil {
		logger.Warn("Sync runs still in flight at shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
