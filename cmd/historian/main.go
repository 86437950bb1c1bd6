// cmd/historian is an asynchronous historian service that pops arena action
// records from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/arena/internal/cache"
	"github.com/jason-s-yu/arena/internal/config"
	"github.com/jason-s-yu/arena/internal/database"
	"github.com/jason-s-yu/arena/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load(os.Getenv("ARENA_CONFIG"))
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.Database.DSN(), cfg.Database.MaxConns); err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer database.DB.Close()
	if err := database.EnsureSchema(ctx, database.DB); err != nil {
		logger.Fatalf("schema: %v", err)
	}

	if err := cache.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer cache.Rdb.Close()

	h := historian.New(
		cache.NewActionQueue(cache.Rdb, cfg.Redis.Queue),
		database.NewStore(database.DB),
		historian.Config{
			BatchSize:  cfg.Historian.BatchSize,
			FlushDelay: cfg.Historian.FlushDelay,
			Retention:  cfg.Historian.Retention,
			PurgeSpec:  cfg.Historian.PurgeSpec,
			Logger:     logger,
		},
	)
	if err := h.Run(ctx); err != nil {
		logger.Fatalf("historian: %v", err)
	}
	logger.Info("Historian shutdown complete.")
}
