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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appsplit "github.com/portalpay/backend/internal/application/split"
	"github.com/portalpay/backend/internal/domain/split"
	"github.com/portalpay/backend/internal/infrastructure/auth"
	"github.com/portalpay/backend/internal/infrastructure/brands"
	"github.com/portalpay/backend/internal/infrastructure/config"
	"github.com/portalpay/backend/internal/infrastructure/logger"
	"github.com/portalpay/backend/internal/infrastructure/persistence"
	"github.com/portalpay/backend/internal/infrastructure/telemetry"
	"github.com/portalpay/backend/internal/interfaces/http/handler"
	"github.com/portalpay/backend/internal/interfaces/http/middleware"
	"github.com/portalpay/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting PortalPay Split API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Site config store holds the per-merchant split documents. The table is
	// migrated at startup so fresh deployments come up without a manual step.
	siteConfigStore := persistence.NewSiteConfigStore(db.DB, log)
	if err := siteConfigStore.Migrate(); err != nil {
		log.Fatal("Failed to migrate site config store", zap.Error(err))
	}

	// Redis backs the brand config cache and the token blacklist. When it is
	// unreachable the service degrades to in-memory implementations so a
	// single-instance deployment still works.
	var (
		brandCache     brands.ConfigCache
		tokenBlacklist auth.TokenBlacklist
	)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisErr := redisClient.Ping(pingCtx).Err()
	pingCancel()
	if redisErr != nil {
		log.Warn("Redis unavailable, falling back to in-memory cache and blacklist",
			zap.Error(redisErr))
		_ = redisClient.Close()
		brandCache = brands.NewInMemoryConfigCache()
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		brandCache = brands.NewRedisConfigCache(redisClient, log)
		tokenBlacklist = auth.NewRedisTokenBlacklistWithClient(redisClient)
		log.Info("Redis connected successfully")
	}

	// Brand fee policies come from the platform brand service, cached to
	// keep read latency off the hot path.
	policyClient := brands.NewHTTPPolicyClient(
		cfg.Brand.ConfigBaseURL,
		cfg.Brand.ConfigTimeout,
		brands.WithLogger(log),
	)
	policySource := brands.NewCachedPolicySource(policyClient, brandCache, cfg.Brand.CacheTTL, log)

	// Split resolution service
	splitService := appsplit.NewService(siteConfigStore, policySource, cfg.SplitDefaults(), log)

	// JWT validation for gateway-fronted callers
	jwtService := auth.NewJWTService(cfg.JWT)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	// 8. Tracing - Create spans and mark error responses
	// 9. OptionalAuth - Resolve the caller identity without rejecting
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Tracing middleware
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())

	// Gateway auth resolves the caller; split handlers decide per endpoint
	// how much a given caller may see.
	engine.Use(middleware.OptionalAuth(middleware.GatewayConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		APIKeys:        cfg.Security.APIKeys,
		Logger:         log,
	}))
	engine.Use(middleware.TracingAttributeInjector())

	// Health check endpoint (outside API routing)
	engine.GET("/health", healthHandler(db, log))

	// Initialize HTTP handlers
	splitHandler := handler.NewSplitHandler(splitService, handler.SplitConfig{
		DefaultBrandKey: cfg.Brand.DefaultKey,
		HostSuffix:      cfg.Brand.HostSuffix,
		Aliases:         split.AliasTable(cfg.Brand.Aliases),
		CSRF: middleware.CSRFConfig{
			Disable:        cfg.Security.CSRFDisable,
			TrustedOrigins: cfg.Security.TrustedOrigins,
			Logger:         log,
		},
	}, log)
	systemHandler := handler.NewSystemHandler()

	// Setup API routes. The split wire contract is unversioned, so routes
	// mount directly under /api.
	r := router.NewRouter(engine, router.WithAPIVersion(""))
	r.Register(splitHandler).Register(systemHandler)
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
