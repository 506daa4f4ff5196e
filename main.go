package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mitrakarya/lending/config"
	mysqldb "github.com/mitrakarya/lending/infra/mysql"
	redisdb "github.com/mitrakarya/lending/infra/redis"
	"github.com/mitrakarya/lending/internal/model"
	ratelimiter "github.com/mitrakarya/lending/pkg/rate-limiter"
	"github.com/mitrakarya/lending/pkg/telemetry"
	"github.com/mitrakarya/lending/presenter"
	"github.com/mitrakarya/lending/router"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	slog.Info("Starting application setup...")

	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		slog.Error("No .env file found, using system environment variables", "error", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	tel, err := telemetry.New(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize monitoring: %v", err))
	}

	db, err := mysqldb.InitializeDatabase()
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.SHUTDOWN_TIMEOUT)
		defer cancelShutdown()

		zap.L().Info("Closing MySQL Connection...")
		if err := mysqldb.Close(db, shutdownCtx); err != nil {
			zap.L().Error("Error disconnecting from MySQL", zap.Error(err))
		} else {
			zap.L().Info("Disconnected from MySQL.")
		}

		zap.L().Info("Shutting down monitoring...")
		if err := tel.Shutdown(shutdownCtx); err != nil {
			zap.L().Error("Error during monitoring shutdown", zap.Error(err))
		} else {
			zap.L().Info("Monitoring shutdown complete.")
		}
	}()

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migration completed!")

	SeedSettings(db)

	if err := mysqldb.Ping(db, ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connection successful!")

	stats := mysqldb.GetStats(db)
	slog.Info("Database stats:", "stats", stats)

	redisClient := redisdb.MonitorRedis(cfg)
	go redisdb.WatchConnectionRedis(&redisClient, cfg)

	limiter := ratelimiter.NewRateLimiter(redisClient, cfg.RATE_LIMIT_RPS, cfg.RATE_LIMIT_BURST, 5*time.Minute)

	presenter := presenter.NewPresenter(db, tel)
	router := router.NewRouter(presenter, db, tel, cfg, limiter)

	addr := ":" + cfg.SERVER_PORT

	listenErr := make(chan error, 1)

	go func() {
		zap.L().Info("Server starting", zap.String("address", addr))
		if err := router.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		} else {
			listenErr <- nil
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-listenErr:
		if err != nil {
			zap.L().Error("Server listen error", zap.Error(err))
			os.Exit(1)
		}
	}

	zap.L().Info("Starting graceful shutdown...")
	shutdownTimeout := 10 * time.Second
	if err := router.ShutdownWithTimeout(shutdownTimeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zap.L().Warn("Server shutdown timed out", zap.Duration("timeout", shutdownTimeout))
		} else {
			zap.L().Error("Server shutdown error", zap.Error(err))
		}
	} else {
		zap.L().Info("Server gracefully stopped.")
	}

	zap.L().Info("Application shutdown complete.")
}

// SeedSettings inserts the default pricing configuration. Existing rows win;
// operators tune these per deployment.
func SeedSettings(db *gorm.DB) {
	slog.Info("Seeding system settings...")

	settings := []model.SystemSetting{
		{Key: "INTEREST_RATE", Value: "10", Description: "Flat interest rate applied to the principal, in percent"},
		{Key: "MIN_WEEKS_BEFORE_CLOSURE", Value: "4", Description: "Minimum weeks a loan must run before it can be closed"},
		{Key: "INSURANCE_FEES", Value: "1", Description: "Insurance fee charged at disbursement"},
		{Key: "INSURANCE_FEES_TYPE", Value: "PERCENT", Description: "Insurance fee interpretation: PERCENT of principal or FIXED"},
		{Key: "PROCESSING_FEES", Value: "2", Description: "Processing fee charged at disbursement"},
		{Key: "PROCESSING_FEES_TYPE", Value: "PERCENT", Description: "Processing fee interpretation: PERCENT of principal or FIXED"},
		{Key: "BOOK_PRICE", Value: "50", Description: "Passbook price charged at disbursement"},
		{Key: "BOOK_PRICE_TYPE", Value: "FIXED", Description: "Passbook price interpretation: PERCENT of principal or FIXED"},
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&settings).Error; err != nil {
		slog.Error("Failed to seed system settings", "error", err)
		os.Exit(1)
	}

	slog.Info("System settings seeded successfully.")
}
