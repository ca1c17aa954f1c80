// cmd/historyd drains the egress bus under its own durable consumer
// group and persists every published event to Postgres for audit and
// replay, adapting the teacher's cmd/db/historian.go from a fixed
// Redis-list action queue to the hub's subject-routed event stream.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voidloop/connectionhub/internal/bus"
	"github.com/voidloop/connectionhub/internal/config"
	"github.com/voidloop/connectionhub/internal/history"
	"github.com/voidloop/connectionhub/internal/kv"
)

const (
	batchSize  = 20
	flushEvery = 500 * time.Millisecond
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("historyd: load config")
	}
	if cfg.PostgresURL == "" {
		logger.Fatal("historyd: POSTGRES_URL is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := kv.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, logger)
	if err != nil {
		logger.WithError(err).Fatal("historyd: connect redis")
	}

	pg, err := history.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		logger.WithError(err).Fatal("historyd: connect postgres")
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Fatal("historyd: ensure schema")
	}

	consumerName := hostnameOrDefault("historyd")
	consumer := bus.NewConsumer(store.Client(), bus.EgressStream, "connection_hub_history", consumerName)

	svc := history.NewService(pg, consumer, logger, batchSize, flushEvery)
	logger.Info("historyd: started")
	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Fatal("historyd: exited")
	}
	logger.Info("historyd: shutdown complete")
}

func hostnameOrDefault(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
}
