// cmd/persister drains the Redis mutation outbox written by the lobby server
// into PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/sketchlobby/internal/cache"
	"github.com/jason-s-yu/sketchlobby/internal/config"
	"github.com/jason-s-yu/sketchlobby/internal/database"
	"github.com/jason-s-yu/sketchlobby/internal/historian"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(cfg.Level())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer rdb.Close()

	svc := historian.New(
		cache.NewOutbox(rdb, cfg.OutboxQueueName),
		database.NewGateway(pool),
		historian.Options{
			BatchSize:  cfg.PersisterBatchSize,
			FlushDelay: cfg.PersisterFlushInterval,
		},
		logger,
	)

	logger.WithFields(logrus.Fields{
		"queue": cfg.OutboxQueueName,
		"redis": cfg.RedisAddr,
	}).Info("persister started")
	svc.Run(ctx)
	logger.Info("persister shutdown complete")
}
