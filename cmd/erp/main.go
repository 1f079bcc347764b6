package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shstksdbs/ERP-Project-sub001/internal/config"
	"github.com/shstksdbs/ERP-Project-sub001/internal/middleware"
	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/feishu"
	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/metrics"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/handler"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/memstore"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/notify"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/repository"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/service"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const eventsPath = "/api/v1/events"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting erp supply service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage", cfg.Storage.Driver),
	)

	maxStock, _ := cfg.Inventory.MaxStock()
	m := metrics.New()

	var (
		stores service.Stores
		checks []readinessCheck
	)
	switch cfg.Storage.Driver {
	case "memory":
		stores = memoryStores(zapLogger)
	default:
		db, err := initDatabase(cfg.Database)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := entity.AutoMigrate(db); err != nil {
			zapLogger.Fatal("AutoMigrate supply tables failed", zap.Error(err))
		}
		repos := repository.NewRepositories(db)
		stores = service.Stores{
			Tx:        repos.Tx,
			Branches:  repos.Branch,
			Materials: repos.Material,
			Requests:  repos.Request,
			History:   repos.History,
			Stocks:    repos.Stock,
			Ledger:    repos.Ledger,
		}
		checks = append(checks, readinessCheck{name: "database", check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})

		if cfg.Redis.Enabled {
			rdb := initRedis(cfg.Redis)
			defer rdb.Close()
			cache := repository.NewCatalogCache(rdb, repos.Branch, repos.Material, cfg.Redis.CacheTTL, zapLogger)
			stores.Branches = cache
			stores.Materials = cache
			checks = append(checks, readinessCheck{name: "redis", check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}})
		}
	}

	// Notification sinks
	hub := notify.NewHub(zapLogger)
	sinks := []notify.Sink{hub}
	var kafkaSink *notify.KafkaSink
	if cfg.Kafka.Enabled {
		kafkaSink = notify.NewKafkaSink(notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		sinks = append(sinks, kafkaSink)
	}
	if cfg.Feishu.Enabled {
		bot := feishu.NewBotClient(cfg.Feishu.WebhookURL, cfg.Feishu.Secret, cfg.Feishu.Timeout)
		sinks = append(sinks, notify.NewFeishuSink(bot, cfg.Feishu.BaseURL))
	}
	dispatcher := notify.NewDispatcher(cfg.Notify.Timeout, m, zapLogger, sinks...)

	services := service.NewServices(stores, dispatcher, m, service.InventoryOptions{
		AllowNegativeStock: cfg.Inventory.AllowNegativeStock,
		DefaultMaxStock:    maxStock,
	}, zapLogger)
	handlers := handler.NewHandlers(services, hub)
	handlers.Events.WithBuffer(cfg.Notify.SSEBuffer)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Operator())
	router.Use(middleware.Logger(zapLogger, "/health/live", "/health/ready", "/metrics"))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{eventsPath})))

	registerRoutes(router, handlers, m, checks)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	// flush notifications already committed
	dispatcher.Wait()
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			zapLogger.Warn("Kafka writer close failed", zap.Error(err))
		}
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

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// memoryStores in-process backend for local runs. The branch directory and
// material catalog start with one demo row each.
func memoryStores(zapLogger *zap.Logger) service.Stores {
	store := memstore.New()
	store.SeedBranch(entity.Branch{ID: 1, Code: "DEMO", Name: "Demo branch", IsActive: true})
	store.SeedMaterial(entity.Material{ID: 1, Code: "DEMO-001", Name: "Demo material", Unit: "ea", IsActive: true})
	zapLogger.Warn("Using in-memory storage; data is lost on restart")
	return service.Stores{
		Tx:        store,
		Branches:  store.Branches,
		Materials: store.Materials,
		Requests:  store.Requests,
		History:   store.History,
		Stocks:    store.Stocks,
		Ledger:    store.Ledger,
	}
}

type readinessCheck struct {
	name  string
	check func(ctx context.Context) error
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, m *metrics.Metrics, checks []readinessCheck) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		for _, rc := range checks {
			if err := rc.check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "check": rc.name, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	r.GET("/metrics", gin.WrapH(m.Handler()))

	h.RegisterRoutes(r.Group("/api/v1"))
}
