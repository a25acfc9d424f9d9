// Package main provides the main entry point for the estate registry API
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/estate-registry/app/handlers"
	"github.com/amirphl/estate-registry/app/middleware"
	"github.com/amirphl/estate-registry/app/router"
	"github.com/amirphl/estate-registry/app/services"
	businessflow "github.com/amirphl/estate-registry/business_flow"
	"github.com/amirphl/estate-registry/config"
	_ "github.com/amirphl/estate-registry/docs"
	"github.com/amirphl/estate-registry/logger"
	"github.com/amirphl/estate-registry/migrations"
	"github.com/amirphl/estate-registry/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// @title Estate Registry API
// @version 1.0
// @description Multi-tenant registry of real-estate companies, their clients and marketers.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	logger    *zap.Logger
	db        *gorm.DB
	cache     *redis.Client
	stopFuncs []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logging, "estate-registry")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting estate registry",
		zap.String("environment", cfg.Deployment.Environment),
		zap.String("version", cfg.Deployment.Version),
		zap.String("commit", cfg.Deployment.CommitHash))

	// Initialize application
	app, err := initializeApplication(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize application", zap.Error(err))
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	appLogger.Info("Shutting down gracefully")

	app.shutdown(cfg.Server.ShutdownTimeout)

	appLogger.Info("Server stopped")
}

// shutdown stops background workers, drains the HTTP server and closes connections
func (a *Application) shutdown(timeout time.Duration) {
	for _, fn := range a.stopFuncs {
		fn()
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := a.server.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}

// initializeDatabase opens the connection pool and, when enabled, applies pending migrations
func initializeDatabase(cfg config.DatabaseConfig, appLogger *zap.Logger) (*gorm.DB, error) {
	ctx := context.Background()

	db, err := repository.OpenDatabase(ctx, cfg, appLogger)
	if err != nil {
		return nil, err
	}

	appLogger.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	if cfg.AutoMigrate {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		applied, err := migrations.Apply(ctx, sqlDB, appLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		appLogger.Info("Migrations up to date", zap.Int("applied", len(applied)))
	}

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig, appLogger *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	appLogger.Info("Redis connection established", zap.String("addr", opt.Addr), zap.Int("db", cfg.RedisDB))
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, appLogger *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					appLogger.Warn("Redis healthcheck failed, tenant lookups fall back to the database", zap.Error(err))
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication wires repositories, flows, handlers and the router
func initializeApplication(cfg *config.ProductionConfig, appLogger *zap.Logger) (*Application, error) {
	db, err := initializeDatabase(cfg.Database, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	rc, err := initializeCache(cfg.Cache, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	// Repositories
	companyRepo := repository.NewCompanyRepository(db)
	sequenceRepo := repository.NewCompanySequenceRepository(db)
	clientRepo := repository.NewClientUserRepository(db)
	marketerRepo := repository.NewMarketerUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	tx := repository.NewGormTransactor(db)

	// Services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.CompanyTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	tenantCache := services.NewTenantCache(rc, cfg.Cache.RedisPrefix, cfg.Cache.DefaultTTL, appLogger)

	// Business flows
	flowLogger := appLogger.Named("flow")
	bcryptCost := cfg.Security.BcryptCost
	allocator := businessflow.NewSequenceAllocator(companyRepo, sequenceRepo, tx, cfg.Allocation, flowLogger)
	companyFlow := businessflow.NewCompanyFlow(companyRepo, sequenceRepo, auditRepo, tx, tenantCache, bcryptCost, flowLogger)
	clientFlow := businessflow.NewClientFlow(clientRepo, marketerRepo, auditRepo, allocator, bcryptCost, flowLogger)
	marketerFlow := businessflow.NewMarketerFlow(marketerRepo, auditRepo, allocator, bcryptCost, flowLogger)
	sequenceFlow := businessflow.NewSequenceAdminFlow(companyRepo, sequenceRepo, auditRepo, allocator, tx, flowLogger, clientRepo, marketerRepo)
	adminAuthFlow := businessflow.NewAdminAuthFlow(adminRepo, auditRepo, tokenService, bcryptCost, flowLogger)
	companyAuthFlow := businessflow.NewCompanyAuthFlow(companyRepo, auditRepo, tokenService, flowLogger)

	if cfg.Admin.Username != "" {
		created, err := adminAuthFlow.EnsureBootstrapAdmin(context.Background(), cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
		}
		if created {
			appLogger.Info("Bootstrap admin created", zap.String("username", cfg.Admin.Username))
		}
	}

	// Handlers
	handlerLogger := appLogger.Named("http")
	timeout := cfg.Server.RequestTimeout
	h := router.Handlers{
		AdminAuth:   handlers.NewAdminAuthHandler(adminAuthFlow, handlerLogger, timeout),
		CompanyAuth: handlers.NewCompanyAuthHandler(companyAuthFlow, handlerLogger, timeout),
		Company:     handlers.NewCompanyHandler(companyFlow, handlerLogger, timeout),
		Client:      handlers.NewClientHandler(clientFlow, handlerLogger, timeout),
		Marketer:    handlers.NewMarketerHandler(marketerFlow, handlerLogger, timeout),
		Sequence:    handlers.NewSequenceAdminHandler(sequenceFlow, handlerLogger, timeout),
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService, companyFlow, businessflow.IsCompanyNotFound)

	checks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error { return repository.Ping(ctx, db) },
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}

	r := router.NewFiberRouter(cfg, h, authMiddleware, checks, appLogger)

	app := &Application{
		router: r,
		config: cfg,
		server: r.GetApp(),
		logger: appLogger,
		db:     db,
		cache:  rc,
	}

	if rc != nil {
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second, appLogger))
	}

	return app, nil
}
