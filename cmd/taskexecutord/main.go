// cmd/taskexecutord polls the scheduler's sorted set for due tasks and
// runs them through the same command processors the ingress router
// uses, the deferred half of the connection hub's presence pipeline.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voidloop/connectionhub/internal/bus"
	"github.com/voidloop/connectionhub/internal/command"
	"github.com/voidloop/connectionhub/internal/config"
	"github.com/voidloop/connectionhub/internal/executor"
	"github.com/voidloop/connectionhub/internal/kv"
	"github.com/voidloop/connectionhub/internal/lock"
	"github.com/voidloop/connectionhub/internal/mapper"
	"github.com/voidloop/connectionhub/internal/realtime"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

const pollInterval = 1 * time.Second

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("taskexecutord: load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := kv.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, logger)
	if err != nil {
		logger.WithError(err).Fatal("taskexecutord: connect redis")
	}
	rdb := store.Client()

	sched := scheduler.New(rdb)
	deps := &command.Deps{
		Store:               store,
		Locks:               lock.New(store, cfg.LockTTL),
		Lobbies:             mapper.NewLobbyMapper(store, cfg.LobbyTTL),
		Games:               mapper.NewGameMapper(store, cfg.GameTTL),
		Scheduler:           sched,
		Events:              bus.NewPublisher(rdb),
		Realtime:            realtime.New(cfg.RealtimeURL, cfg.RealtimeAPIKey, logger),
		Log:                 logger,
		PresenceGraceWindow: cfg.PresenceGraceWindow,
	}
	processors := command.New(deps)

	exec := executor.New(processors, sched, logger)
	logger.WithField("poll_interval", pollInterval).Info("taskexecutord: started")
	exec.Run(ctx, pollInterval)
	logger.Info("taskexecutord: shutdown complete")
}
