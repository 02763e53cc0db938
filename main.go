package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yp-firedoor/firedoor-oa/authz"
	"github.com/yp-firedoor/firedoor-oa/config"
	"github.com/yp-firedoor/firedoor-oa/controllers"
	"github.com/yp-firedoor/firedoor-oa/middleware"
	"github.com/yp-firedoor/firedoor-oa/models"
	"github.com/yp-firedoor/firedoor-oa/services"
	"github.com/yp-firedoor/firedoor-oa/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fire door OA server failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := config.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting fire door OA server", zap.String("env", cfg.GoEnv))

	if err := config.ConnectDatabase(cfg); err != nil {
		return err
	}
	db := config.GetDB()
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database migration completed successfully")

	ctx := context.Background()

	utils.MaxFileSize = cfg.MaxUploadSize
	storage, err := services.InitFileStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize file storage: %w", err)
	}

	cache := newStatsCache(ctx, cfg, logger)

	deps, err := buildDependencies(cfg, db, storage, cache, logger)
	if err != nil {
		return err
	}

	created, err := deps.Users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin account: %w", err)
	}
	if created {
		logger.Info("Created initial admin account", zap.String("username", cfg.AdminUsername))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := setupRouter(cfg, deps, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server is running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
	return nil
}

// newStatsCache uses Redis when REDIS_ADDR is set and reachable, otherwise an in-process cache
func newStatsCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) services.StatsCache {
	if cfg.RedisAddr == "" {
		return services.NewMemoryStatsCache()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, caching statistics in memory",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		rdb.Close()
		return services.NewMemoryStatsCache()
	}

	logger.Info("Statistics cache connected to Redis", zap.String("addr", cfg.RedisAddr))
	return services.NewRedisStatsCache(rdb)
}

func buildDependencies(cfg *config.Config, db *gorm.DB, storage services.FileStorage, cache services.StatsCache, logger *zap.Logger) (controllers.Dependencies, error) {
	matrix, err := authz.NewMatrix()
	if err != nil {
		return controllers.Dependencies{}, err
	}

	audit := services.NewAuditLogger(db, logger)
	stats := services.NewStatsService(db, cache, cfg.StatsCacheTTL, logger)

	return controllers.Dependencies{
		Config: cfg,
		DB:     db,
		Matrix: matrix,
		Auth:   services.NewAuthService(db, services.TokenSettingsFromConfig(cfg), matrix, audit),
		Users:  services.NewUserService(db, audit, logger),
		Orders: services.NewOrderService(db, storage, stats, audit, cfg.Location(), logger),
		Stats:  stats,
		Audit:  audit,
	}, nil
}

// setupRouter builds the engine with the global middleware chain and the API routes
func setupRouter(cfg *config.Config, deps controllers.Dependencies, logger *zap.Logger) (*gin.Engine, error) {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ClientContext())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	// Attachment routes stream stored files with a known length.
	router.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`^/api/v1/orders/[^/]+/(download|preview)/`})))

	if err := controllers.RegisterRoutes(router, deps); err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}
	return router, nil
}
