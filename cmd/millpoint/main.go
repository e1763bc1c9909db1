package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nikolaihoj1/millpoint-nc/internal/config"
	"github.com/Nikolaihoj1/millpoint-nc/internal/middleware"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/entity"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/handler"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/repository"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/service"
	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/sse"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/observability"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/search"
	"github.com/Nikolaihoj1/millpoint-nc/internal/shared/storage"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatalf("JWT_SECRET must be set")
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting millpoint-nc service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("env", cfg.Server.Env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Otel.Enabled,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Server.Env,
		Version:     Version,
		SampleRatio: cfg.Otel.SampleRatio,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to init tracing", zap.Error(err))
	}

	db, err := initDatabase(cfg.Database, cfg.IsProduction())
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(entity.All()...); err != nil {
		zapLogger.Fatal("Database migration failed", zap.Error(err))
	}
	zapLogger.Info("Database migration completed", zap.String("driver", cfg.Database.Driver))

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = initRedis(cfg.Redis)
		if err := rdb.Ping(ctx).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, index events stay in memory", zap.Error(err))
			rdb.Close()
			rdb = nil
		}
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		zapLogger.Fatal("Failed to init file storage", zap.Error(err))
	}

	var index search.Index = search.Disabled{}
	if cfg.Search.Host != "" {
		meili := search.NewMeiliIndex(cfg.Search.Host, cfg.Search.APIKey, cfg.Search.Index)
		if err := meili.Configure(ctx); err != nil {
			zapLogger.Warn("Search index setup failed", zap.Error(err))
		}
		index = meili
	} else {
		zapLogger.Warn("MEILISEARCH_HOST not set, program search disabled")
	}

	var queue search.Queue = search.NewMemoryQueue(1024)
	if rdb != nil {
		queue = search.NewRedisQueue(rdb, cfg.Redis.QueueKey)
	}
	indexer := search.NewIndexer(index, queue, zapLogger, search.WithRetry(cfg.Search.MaxRetries, 0))

	hub := sse.NewHub(zapLogger)
	repos := repository.NewRepositories(db)
	services := service.NewServices(service.Deps{
		Repos:  repos,
		Store:  store,
		Index:  indexer.Index(),
		Events: indexer,
		Hub:    hub,
		Logger: zapLogger,
	})
	handlers := handler.NewHandlers(services, store, hub, zapLogger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Otel.Enabled {
		router.Use(otelgin.Middleware(cfg.Otel.ServiceName))
	}
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS(cfg.CORS.Origin))
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/events"})))

	registerRoutes(router, handlers, repos, rdb, cfg)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// SSE connections stay open.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return indexer.Run(gctx)
	})
	g.Go(func() error {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLogger.Warn("Tracer shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("Server stopped with error", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig, production bool) (*gorm.DB, error) {
	level := logger.Info
	if production {
		level = logger.Warn
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(level),
		// Referential checks live in the service layer.
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath + "?_busy_timeout=5000")
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite allows one writer; serialize through one connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func initStorage(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "minio":
		return storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
	case "local", "":
		return storage.NewLocalStore(cfg.Storage.Path)
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok"}
		status := http.StatusOK
		if err := repos.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	handler.RegisterRoutes(r, h, cfg.JWT.Secret)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.Response{Success: false, Error: "Resource not found"})
	})
}
