package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appledger "github.com/godown/backend/internal/application/ledger"
	"github.com/godown/backend/internal/domain/shared"
	"github.com/godown/backend/internal/infrastructure/cache"
	"github.com/godown/backend/internal/infrastructure/config"
	"github.com/godown/backend/internal/infrastructure/event"
	"github.com/godown/backend/internal/infrastructure/logger"
	"github.com/godown/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
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

	log.Info("Starting godown ledger service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Production schemas are managed by the migrate binary; development
	// databases are synced directly from the models.
	if cfg.App.Env == "development" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to auto-migrate schema", zap.Error(err))
		}
		log.Info("Schema auto-migrated")
	}

	// Redis carries the inbound event stream and the idempotency keys
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	pingCancel()
	defer redisClient.Close()
	log.Info("Redis connected successfully")

	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Application services share one transaction scope so every event lands
	// atomically: entry, batch mutations, mappings, and balance rows together.
	scope := persistence.NewGormTransactionScope(db.DB)
	materializer := appledger.NewMaterializerService(appledger.MaterializerConfig{
		MaxCascadeDays: cfg.Ledger.MaxCascadeDays,
	}, log)
	translator := appledger.NewTranslatorService(scope, materializer, appledger.TranslatorConfig{
		AllowShortfall: cfg.Ledger.AllowShortfall,
	}, log)
	detector := appledger.NewVarianceDetectorService(scope, appledger.DetectorConfig{
		Threshold: decimal.NewFromFloat(cfg.Ledger.VarianceThreshold),
	}, log)

	// Event plumbing: serializer decodes inbound envelopes, the bus fans them
	// out, and the idempotency wrapper makes redelivery a no-op.
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)

	bus := event.NewInMemoryEventBus(log)
	translatorHandler := event.NewIdempotentHandler(
		appledger.NewTranslatorEventHandler(translator),
		idempotencyStore,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Event.IdempotencyTTL,
			Enabled: true,
		}),
	)
	bus.Subscribe(translatorHandler)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	if err := bus.Start(runCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	subscriber := event.NewSubscriber(redisClient, event.DefaultEventChannel, serializer, bus, log)
	if err := subscriber.Start(runCtx); err != nil {
		log.Fatal("Failed to start event subscriber", zap.Error(err))
	}

	// Periodic variance detection over every tenant with stock on the books
	go runDetectorLoop(runCtx, db, detector, cfg.Ledger.DetectorInterval, log)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	cancelRun()
	subscriber.Stop()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := bus.Stop(stopCtx); err != nil {
		log.Error("Event bus shutdown failed", zap.Error(err))
	}

	log.Info("Service exited gracefully")
}

// runDetectorLoop runs one detection sweep immediately and then on every tick
// until the context is cancelled.
func runDetectorLoop(ctx context.Context, db *persistence.Database, detector *appledger.VarianceDetectorService, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runSweep(ctx, db, detector, log)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runSweep(ctx, db, detector, log)
		}
	}
}

// runSweep runs variance detection for every tenant holding active batches
func runSweep(ctx context.Context, db *persistence.Database, detector *appledger.VarianceDetectorService, log *zap.Logger) {
	var tenantIDs []uuid.UUID
	err := db.DB.WithContext(ctx).
		Table("inventory_batch").
		Distinct("tenant_id").
		Pluck("tenant_id", &tenantIDs).Error
	if err != nil {
		log.Error("Failed to list tenants for detection sweep", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		report, err := detector.RunOnce(ctx, tenantID)
		if err != nil {
			log.Error("Detection sweep failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		if report.CountVariances > 0 || report.IntegrityVariances > 0 {
			log.Info("Detection sweep raised variances",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("count_variances", report.CountVariances),
				zap.Int("integrity_variances", report.IntegrityVariances),
			)
		}
	}
}
