package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/bundlewise/backend/internal/application/billing"
	bundlingapp "github.com/bundlewise/backend/internal/application/bundling"
	shopapp "github.com/bundlewise/backend/internal/application/shop"
	"github.com/bundlewise/backend/internal/domain/bundling"
	"github.com/bundlewise/backend/internal/domain/shared"
	"github.com/bundlewise/backend/internal/infrastructure/auth"
	"github.com/bundlewise/backend/internal/infrastructure/cache"
	"github.com/bundlewise/backend/internal/infrastructure/config"
	"github.com/bundlewise/backend/internal/infrastructure/logger"
	"github.com/bundlewise/backend/internal/infrastructure/notification"
	"github.com/bundlewise/backend/internal/infrastructure/persistence"
	"github.com/bundlewise/backend/internal/infrastructure/shopify"
	"github.com/bundlewise/backend/internal/infrastructure/telemetry"
	"github.com/bundlewise/backend/internal/interfaces/http/handler"
	"github.com/bundlewise/backend/internal/interfaces/http/middleware"
	"github.com/bundlewise/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize telemetry first so the logger can bridge to the collector
	tel, err := setupTelemetry(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize telemetry: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := buildLogger(cfg, tel.logs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync() //nolint:errcheck // stdout sync fails on some platforms

	appLogger.Info("starting bundlewise backend",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.Bool("telemetry", cfg.Telemetry.Enabled))

	// Database connection with zap-backed GORM logging
	gormLog := logger.NewGormLogger(appLogger, cfg.Log.Level, cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		appLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := registerDBTelemetry(cfg, db, tel, appLogger); err != nil {
		appLogger.Fatal("failed to register database telemetry", zap.Error(err))
	}

	// Repositories
	shopRepo := persistence.NewGormShopRepository(db.DB)
	ruleRepo := persistence.NewGormBundleRuleRepository(db.DB)
	conversionRepo := persistence.NewGormOrderConversionRepository(db.DB)

	// Webhook delivery dedupe store: Redis in production, in-memory fallback
	// elsewhere. The ledger's uniqueness constraint backstops either way.
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(appLogger),
		cache.WithInMemoryFallback(!cfg.IsProduction()))
	dedupeStore, err := storeFactory.CreateStore()
	if err != nil {
		appLogger.Fatal("failed to create idempotency store", zap.Error(err))
	}
	defer dedupeStore.Close()

	// Shopify Admin API clients
	clients := shopify.NewFactory(cfg.Shopify, appLogger)

	// Business metrics for the conversion pipeline (nil when telemetry is off)
	var conversionMetrics *telemetry.ConversionMetrics
	if tel.meter.IsEnabled() {
		conversionMetrics, err = telemetry.NewConversionMetrics(telemetry.ConversionMetricsConfig{
			Meter:  tel.meter.Meter("bundlewise.conversions"),
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Fatal("failed to create conversion metrics", zap.Error(err))
		}
	}

	// Outbound merchant notifications
	notifiers := []bundling.ConversionNotifier{
		notification.NewEmailNotifier(cfg.Notification, appLogger),
		notification.NewSlackNotifier(appLogger),
	}
	dispatcher := bundlingapp.NewDispatcher(notifiers, appLogger)

	// Application services
	shopService := shopapp.NewShopService(shopRepo, ruleRepo, appLogger)
	ruleService := bundlingapp.NewRuleService(ruleRepo, appLogger)
	queryService := bundlingapp.NewConversionQueryService(conversionRepo, appLogger)
	quotaService := billingapp.NewQuotaService(conversionRepo, shopRepo, clients,
		cfg.Billing, cfg.Quota, appLogger)
	orchestrator := bundlingapp.NewEditOrchestrator(clients, conversionRepo, conversionMetrics, appLogger)
	conversionService := bundlingapp.NewConversionService(ruleRepo, conversionRepo,
		quotaService, orchestrator, dispatcher, conversionMetrics, appLogger)

	// HTTP engine
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		appLogger.Fatal("failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(appLogger))
	engine.Use(logger.GinMiddleware(appLogger))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: tel.meter,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       true,
		}))
	}
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsConfig(cfg)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", healthHandler(db, appLogger))

	// Webhook ingestion lives outside the versioned API group: deliveries
	// authenticate with the app secret's HMAC, not a session token
	webhookHandler := handler.NewWebhookHandler(conversionService, shopService,
		dedupeStore, shared.DefaultIdempotencyConfig(), appLogger)
	webhookHandler.RegisterRoutes(engine, webhookMiddleware(cfg)...)

	// Admin API: every route behind App Bridge session token verification
	verifier := auth.NewSessionTokenVerifier(cfg.Shopify)
	apiMiddleware := []gin.HandlerFunc{middleware.SessionAuth(verifier, appLogger)}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		// Keyed by shop so one busy merchant cannot starve the rest
		apiMiddleware = append(apiMiddleware, middleware.RateLimitByKey(limiter, func(c *gin.Context) string {
			if domain := middleware.GetSessionShopDomain(c); domain != "" {
				return domain
			}
			return c.ClientIP()
		}))
	}

	router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithGroupMiddleware(apiMiddleware...),
	).
		Register(handler.NewRuleHandler(ruleService, shopService, appLogger)).
		Register(handler.NewConversionHandler(queryService, shopService, appLogger)).
		Register(handler.NewSettingsHandler(shopService, appLogger)).
		Register(handler.NewQuotaHandler(quotaService, shopService, appLogger)).
		Register(handler.NewSystemHandler()).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http server shutdown failed", zap.Error(err))
	}

	// Let in-flight notification sends finish before tearing down
	dispatcher.Wait()

	tel.shutdown(shutdownCtx, appLogger)

	appLogger.Info("shutdown complete")
}

// telemetryStack groups the OTel providers so shutdown can walk them in order
type telemetryStack struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func setupTelemetry(ctx context.Context, cfg *config.Config) (*telemetryStack, error) {
	// Bootstrap logger for provider construction; the real logger needs the
	// logs provider to exist first
	bootLogger, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, err
	}

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLogger)
	if err != nil {
		return nil, fmt.Errorf("tracer provider: %w", err)
	}

	meter, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLogger)
	if err != nil {
		return nil, fmt.Errorf("meter provider: %w", err)
	}

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLogger)
	if err != nil {
		return nil, fmt.Errorf("logger provider: %w", err)
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.ProfilingServerAddress,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, bootLogger)
	if err != nil {
		return nil, fmt.Errorf("profiler: %w", err)
	}

	// Link trace spans to profiles when both backends are running
	if cfg.Telemetry.Enabled && cfg.Telemetry.ProfilingEnabled {
		if err := tracer.EnableSpanProfiles(); err != nil {
			return nil, fmt.Errorf("span profiles: %w", err)
		}
	}

	return &telemetryStack{tracer: tracer, meter: meter, logs: logs, profiler: profiler}, nil
}

func (t *telemetryStack) shutdown(ctx context.Context, log *zap.Logger) {
	if err := t.tracer.Shutdown(ctx); err != nil {
		log.Error("tracer shutdown failed", zap.Error(err))
	}
	if err := t.meter.Shutdown(ctx); err != nil {
		log.Error("meter shutdown failed", zap.Error(err))
	}
	if err := t.logs.Shutdown(ctx); err != nil {
		log.Error("logs shutdown failed", zap.Error(err))
	}
	if err := t.profiler.Stop(); err != nil {
		log.Error("profiler stop failed", zap.Error(err))
	}
}

// buildLogger returns the application logger: plain zap normally, bridged
// to the OTLP collector when telemetry is enabled
func buildLogger(cfg *config.Config, logs *telemetry.LoggerProvider) (*zap.Logger, error) {
	if logs != nil && logs.IsEnabled() {
		return telemetry.CreateBridgedLoggerFromConfig(&telemetry.BaseLoggerConfig{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		}, logs, cfg.Telemetry.ServiceName)
	}
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// registerDBTelemetry attaches query tracing and pool metrics to GORM
func registerDBTelemetry(cfg *config.Config, db *persistence.Database, tel *telemetryStack, log *zap.Logger) error {
	if !cfg.Telemetry.Enabled {
		return nil
	}

	if cfg.Telemetry.DBTraceEnabled {
		tracingPlugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:          true,
			LogFullSQL:       cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
			WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
		}, log)
		if err := tracingPlugin.RegisterOtelGorm(db.DB); err != nil {
			return fmt.Errorf("db tracing: %w", err)
		}
	}

	dbMetrics, err := telemetry.NewDBMetrics(tel.meter.Meter("bundlewise.db"), telemetry.DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		return fmt.Errorf("db metrics: %w", err)
	}
	if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
		return fmt.Errorf("db metrics plugin: %w", err)
	}

	return nil
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	return corsCfg
}

// webhookMiddleware builds the webhook ingestion chain: the per-shop rate
// limiter runs before HMAC verification so floods are shed cheaply
func webhookMiddleware(cfg *config.Config) []gin.HandlerFunc {
	var mw []gin.HandlerFunc
	if cfg.HTTP.WebhookRateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.WebhookRateLimitRequests, cfg.HTTP.WebhookRateLimitWindow)
		mw = append(mw, middleware.RateLimitByKey(limiter, func(c *gin.Context) string {
			if domain := c.GetHeader(middleware.HeaderWebhookShop); domain != "" {
				return domain
			}
			return c.ClientIP()
		}))
	}
	mw = append(mw, middleware.VerifyWebhookHMAC(cfg.Shopify.APISecret))
	return mw
}

func healthHandler(db *persistence.Database, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			log.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}
