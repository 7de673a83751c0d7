// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/sketchlobby/internal/cache"
	"github.com/jason-s-yu/sketchlobby/internal/config"
	"github.com/jason-s-yu/sketchlobby/internal/database"
	"github.com/jason-s-yu/sketchlobby/internal/gallery"
	"github.com/jason-s-yu/sketchlobby/internal/handlers"
	"github.com/jason-s-yu/sketchlobby/internal/lobby"
	"github.com/jason-s-yu/sketchlobby/internal/persistence"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(cfg.Level())

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, err := gallery.Open(cfg.ImagesRoot)
	if err != nil {
		logger.Fatalf("failed to open image library: %v", err)
	}

	gateway, closers, err := openGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to set up persistence: %v", err)
	}
	writer := persistence.NewWriter(gateway, persistence.WriterOptions{
		QueueSize:   cfg.WriterQueueSize,
		MaxAttempts: cfg.WriterMaxAttempts,
		RetryDelay:  cfg.WriterRetryDelay,
	}, logger)

	store := lobby.NewStore(
		lobby.WithLogger(logger),
		lobby.WithImageProvider(lib),
		lobby.WithGateway(writer),
	)
	srv := handlers.NewServer(store, handlers.NewHub(logger), lib, logger)
	srv.UploadMaxBytes = cfg.UploadMaxBytes

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":        httpServer.Addr,
			"persistence": cfg.Persistence,
			"images":      lib.Root(),
		}).Info("Running")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server exited: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if err := writer.Close(shutdownCtx); err != nil {
		logger.Warnf("persistence writer did not drain: %v", err)
	}
	for _, c := range closers {
		c.Close()
	}
	logger.Info("shutdown complete")
}

// openGateway builds the durable mirror selected by PERSISTENCE.
func openGateway(ctx context.Context, cfg config.Config, logger *logrus.Logger) (persistence.Gateway, []io.Closer, error) {
	switch cfg.Persistence {
	case config.PersistencePostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("persisting lobbies to postgres")
		return database.NewGateway(pool), []io.Closer{closerFunc(pool.Close)}, nil

	case config.PersistenceRedis:
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("queue", cfg.OutboxQueueName).Info("persisting lobbies through the redis outbox")
		return cache.NewOutbox(rdb, cfg.OutboxQueueName), []io.Closer{rdb}, nil

	default:
		logger.Info("persistence disabled; lobbies live in memory only")
		return persistence.Nop{}, nil, nil
	}
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
