// cmd/connectionhubd is the main presence/lifecycle coordinator
// process: it reads the ingress bus, dispatches each subject to its
// command processor, and serves a small health-check endpoint the way
// the teacher's cmd/server does for its HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/voidloop/connectionhub/internal/bus"
	"github.com/voidloop/connectionhub/internal/command"
	"github.com/voidloop/connectionhub/internal/config"
	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/kv"
	"github.com/voidloop/connectionhub/internal/lock"
	"github.com/voidloop/connectionhub/internal/mapper"
	"github.com/voidloop/connectionhub/internal/middleware"
	"github.com/voidloop/connectionhub/internal/opid"
	"github.com/voidloop/connectionhub/internal/realtime"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

const (
	pollCount = 32
	pollBlock = 2 * time.Second
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("connectionhubd: load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := kv.Connect(ctx, cfg.RedisAddr, cfg.RedisDB, logger)
	if err != nil {
		logger.WithError(err).Fatal("connectionhubd: connect redis")
	}
	rdb := store.Client()

	deps := &command.Deps{
		Store:               store,
		Locks:               lock.New(store, cfg.LockTTL),
		Lobbies:             mapper.NewLobbyMapper(store, cfg.LobbyTTL),
		Games:               mapper.NewGameMapper(store, cfg.GameTTL),
		Scheduler:           scheduler.New(rdb),
		Events:              bus.NewPublisher(rdb),
		Realtime:            realtime.New(cfg.RealtimeURL, cfg.RealtimeAPIKey, logger),
		Log:                 logger,
		PresenceGraceWindow: cfg.PresenceGraceWindow,
	}
	processors := command.New(deps)

	router := newRouter(logger, processors)
	consumerName := hostnameOrDefault("connectionhubd")
	consumer := bus.NewConsumer(rdb, bus.IngressStream, "connection_hub_commands", consumerName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return router.Run(gctx, consumer, pollCount, pollBlock)
	})
	g.Go(func() error {
		return serveHealth(gctx, logger)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.WithError(err).Fatal("connectionhubd: exited")
	}
	logger.Info("connectionhubd: shutdown complete")
}

func serveHealth(ctx context.Context, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := ":8081"
	if port := os.Getenv("HEALTH_PORT"); port != "" {
		addr = ":" + port
	}
	srv := &http.Server{Addr: addr, Handler: middleware.LogMiddleware(logger)(mux)}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func hostnameOrDefault(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
}

// newRouter registers every subject→command handler from §6.1.
func newRouter(logger *logrus.Logger, p *command.Processors) *bus.Router {
	r := bus.NewRouter(logger)

	r.Handle("api_gateway.lobby.created", handleCreateLobby(logger, p))
	r.Handle("api_gateway.lobby.user_joined", handleJoinLobby(logger, p))
	r.Handle("api_gateway.lobby.user_left", handleLeaveLobby(logger, p))
	r.Handle("api_gateway.lobby.user_kicked", handleKickFromLobby(logger, p))
	r.Handle("api_gateway.game.created", handleCreateGame(logger, p))
	r.Handle("api_gateway.game.player_disconnected", handleDisconnectFromGame(logger, p))
	r.Handle("api_gateway.game.player_reconnected", handleReconnectToGame(logger, p))
	r.Handle("api_gateway.presence.acknowledged", handleAcknowledgePresence(logger, p))
	r.Handle("connect_four.game.ended", handleEndGame(logger, p))

	return r
}

type createLobbyBody struct {
	OperationID string          `json:"operation_id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	RuleSet     json.RawMessage `json:"rule_set"`
	Password    *string         `json:"password"`
}

func handleCreateLobby(logger *logrus.Logger, p *command.Processors) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		var body createLobbyBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("connectionhubd: decode create_lobby body: %w", err)
		}
		userID, err := ids.ParseUserId(body.UserID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode create_lobby body: %w", err)
		}
		ruleSet, err := domain.UnmarshalRuleSet(body.RuleSet)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode create_lobby body: %w", err)
		}
		operationID := opid.FromIngress(logger, body.OperationID)
		_, err = p.CreateLobby(ctx, operationID, command.CreateLobbyInput{
			CurrentUserID: userID,
			Name:          body.Name,
			RuleSet:       ruleSet,
			Password:      body.Password,
		})
		return logDomainOrReturn(logger, "create_lobby", err)
	}
}

type joinLobbyBody struct {
	OperationID string  `json:"operation_id"`
	UserID      string  `json:"user_id"`
	LobbyID     string  `json:"lobby_id"`
	Password    *string `json:"password"`
}

func handleJoinLobby(logger *logrus.Logger, p *command.Processors) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		var body joinLobbyBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("connectionhubd: decode join_lobby body: %w", err)
		}
		userID, err := ids.ParseUserId(body.UserID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode join_lobby body: %w", err)
		}
		lobbyID, err := ids.ParseLobbyId(body.LobbyID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode join_lobby body: %w", err)
		}
		operationID := opid.FromIngress(logger, body.OperationID)
		err = p.JoinLobby(ctx, operationID, command.JoinLobbyInput{
			CurrentUserID: userID,
			LobbyID:       lobbyID,
			Password:      body.Password,
		})
		return logDomainOrReturn(logger, "join_lobby", err)
	}
}

type leaveLobbyBody struct {
	OperationID string `json:"operation_id"`
	UserID      string `json:"user_id"`
	LobbyID     string `json:"lobby_id"`
}

func handleLeaveLobby(logger *logrus.Logger, p *command.Processors) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		var body leaveLobbyBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("connectionhubd: decode leave_lobby body: %w", err)
		}
		userID, err := ids.ParseUserId(body.UserID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode leave_lobby body: %w", err)
		}
		lobbyID, err := ids.ParseLobbyId(body.LobbyID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode leave_lobby body: %w", err)
		}
		operationID := opid.FromIngress(logger, body.OperationID)
		err = p.LeaveLobby(ctx, operationID, command.LeaveLobbyInput{
			CurrentUserID: userID,
			LobbyID:       lobbyID,
		})
		return logDomainOrReturn(logger, "leave_lobby", err)
	}
}

type kickFromLobbyBody struct {
	OperationID string `json:"operation_id"`
	UserID      string `json:"user_id"`
	LobbyID     string `json:"lobby_id"`
	UserToKick  string `json:"user_to_kick"`
}

func handleKickFromLobby(logger *logrus.Logger, p *command.Processors) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		var body kickFromLobbyBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("connectionhubd: decode kick_from_lobby body: %w", err)
		}
		userID, err := ids.ParseUserId(body.UserID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode kick_from_lobby body: %w", err)
		}
		lobbyID, err := ids.ParseLobbyId(body.LobbyID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode kick_from_lobby body: %w", err)
		}
		userToKick, err := ids.ParseUserId(body.UserToKick)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode kick_from_lobby body: %w", err)
		}
		operationID := opid.FromIngress(logger, body.OperationID)
		err = p.KickFromLobby(ctx, operationID, command.KickFromLobbyInput{
			CurrentUserID: userID,
			LobbyID:       lobbyID,
			UserToKick:    userToKick,
		})
		return logDomainOrReturn(logger, "kick_from_lobby", err)
	}
}

type createGameBody struct {
	OperationID string `json:"operation_id"`
	UserID      string `json:"user_id"`
	LobbyID     string `json:"lobby_id"`
}

func handleCreateGame(logger *logrus.Logger, p *command.Processors) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		var body createGameBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("connectionhubd: decode create_game body: %w", err)
		}
		userID, err := ids.ParseUserId(body.UserID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode create_game body: %w", err)
		}
		lobbyID, err := ids.ParseLobbyId(body.LobbyID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode create_game body: %w", err)
		}
		operationID := opid.FromIngress(logger, body.OperationID)
		_, err = p.CreateGame(ctx, operationID, command.CreateGameInput{
			CurrentUserID: userID,
			LobbyID:       lobbyID,
		})
		return logDomainOrReturn(logger, "create_game", err)
	}
}

type disconnectFromGameBody struct {
	OperationID string `json:"operation_id"`
	UserID      string `json:"user_id"`
	GameID      string `json:"game_id"`
}

func handleDisconnectFromGame(logger *logrus.Logger, p *command.Processors) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		var body disconnectFromGameBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("connectionhubd: decode disconnect_from_game body: %w", err)
		}
		userID, err := ids.ParseUserId(body.UserID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode disconnect_from_game body: %w", err)
		}
		gameID, err := ids.ParseGameId(body.GameID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode disconnect_from_game body: %w", err)
		}
		operationID := opid.FromIngress(logger, body.OperationID)
		err = p.DisconnectFromGame(ctx, operationID, command.DisconnectFromGameInput{
			CurrentUserID: userID,
			GameID:        gameID,
		})
		return logDomainOrReturn(logger, "disconnect_from_game", err)
	}
}

type reconnectToGameBody struct {
	OperationID string `json:"operation_id"`
	UserID      string `json:"user_id"`
	GameID      string `json:"game_id"`
}

func handleReconnectToGame(logger *logrus.Logger, p *command.Processors) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		var body reconnectToGameBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("connectionhubd: decode reconnect_to_game body: %w", err)
		}
		userID, err := ids.ParseUserId(body.UserID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode reconnect_to_game body: %w", err)
		}
		gameID, err := ids.ParseGameId(body.GameID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode reconnect_to_game body: %w", err)
		}
		operationID := opid.FromIngress(logger, body.OperationID)
		err = p.ReconnectToGame(ctx, operationID, command.ReconnectToGameInput{
			CurrentUserID: userID,
			GameID:        gameID,
		})
		return logDomainOrReturn(logger, "reconnect_to_game", err)
	}
}

type acknowledgePresenceBody struct {
	OperationID string `json:"operation_id"`
	UserID      string `json:"user_id"`
}

func handleAcknowledgePresence(logger *logrus.Logger, p *command.Processors) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		var body acknowledgePresenceBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("connectionhubd: decode acknowledge_presence body: %w", err)
		}
		userID, err := ids.ParseUserId(body.UserID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode acknowledge_presence body: %w", err)
		}
		operationID := opid.FromIngress(logger, body.OperationID)
		err = p.AcknowledgePresence(ctx, operationID, command.AcknowledgePresenceInput{
			CurrentUserID: userID,
		})
		return logDomainOrReturn(logger, "acknowledge_presence", err)
	}
}

type endGameBody struct {
	OperationID string `json:"operation_id"`
	GameID      string `json:"game_id"`
}

func handleEndGame(logger *logrus.Logger, p *command.Processors) bus.Handler {
	return func(ctx context.Context, msg bus.Message) error {
		var body endGameBody
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			return fmt.Errorf("connectionhubd: decode end_game body: %w", err)
		}
		gameID, err := ids.ParseGameId(body.GameID)
		if err != nil {
			return fmt.Errorf("connectionhubd: decode end_game body: %w", err)
		}
		operationID := opid.FromIngress(logger, body.OperationID)
		err = p.EndGame(ctx, operationID, command.EndGameInput{GameID: gameID})
		return logDomainOrReturn(logger, "end_game", err)
	}
}

// logDomainOrReturn logs and swallows a domain/application error (a
// malformed or precondition-violating ingress message can never
// succeed on redelivery) while letting transport errors bubble so the
// router leaves the entry unacked in the consumer group's pending list.
func logDomainOrReturn(logger *logrus.Logger, commandName string, err error) error {
	if err == nil {
		return nil
	}
	if domain.Kind(err) != "" {
		logger.WithError(err).WithField("command", commandName).Warn("connectionhubd: rejected by domain, dropping")
		return nil
	}
	return err
}
