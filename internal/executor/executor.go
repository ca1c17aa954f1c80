// Package executor wraps the task scheduler's poll loop, turning due
// tasks back into command-processor invocations. Domain and
// application errors are swallowed here — a stale or racing task is
// expected to no-op quietly — while transport-level failures are
// retried a bounded number of times before being logged and dropped.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voidloop/connectionhub/internal/command"
	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/middleware"
	"github.com/voidloop/connectionhub/internal/opid"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

const (
	maxTransportAttempts = 5
	retryBaseDelay       = 200 * time.Millisecond
)

// Executor drains due tasks and dispatches them to command processors.
type Executor struct {
	processors *command.Processors
	scheduler  *scheduler.Scheduler
	log        *logrus.Logger
}

// New builds an Executor.
func New(processors *command.Processors, sched *scheduler.Scheduler, log *logrus.Logger) *Executor {
	return &Executor{processors: processors, scheduler: sched, log: log}
}

// Run polls the scheduler every interval until ctx is cancelled.
func (e *Executor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.PollOnce(ctx); err != nil {
				e.log.WithError(err).Error("executor: poll failed")
			}
		}
	}
}

// PollOnce fetches every currently-due task and executes it.
func (e *Executor) PollOnce(ctx context.Context) error {
	tasks, err := e.scheduler.Due(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("executor: fetch due tasks: %w", err)
	}
	for _, t := range tasks {
		e.execute(ctx, t)
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, t scheduler.Task) {
	err := e.withRetry(func() error { return e.dispatch(ctx, t) })
	if err == nil {
		return
	}
	taskLog := e.log.WithField("kind", t.Kind)
	if kind := domain.Kind(err); kind != "" {
		middleware.LogStaleFire(taskLog, t.ID, kind)
		return
	}
	middleware.LogTransportFailure(taskLog, "command."+t.Kind, err)
}

// withRetry calls fn up to maxTransportAttempts times in all while it
// fails with a transport error, backing off exponentially between
// attempts and returning immediately on a domain
// error (those never succeed on retry).
func (e *Executor) withRetry(fn func() error) error {
	var err error
	delay := retryBaseDelay
	for attempt := 1; attempt <= maxTransportAttempts; attempt++ {
		err = fn()
		if err == nil || domain.Kind(err) != "" {
			return err
		}
		if attempt < maxTransportAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

func (e *Executor) dispatch(ctx context.Context, t scheduler.Task) error {
	switch t.Kind {
	case scheduler.KindRemoveFromLobby:
		var payload struct {
			LobbyID     string `json:"lobby_id"`
			UserID      string `json:"user_id"`
			OperationID string `json:"operation_id"`
		}
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			return fmt.Errorf("executor: decode remove_from_lobby payload: %w", err)
		}
		lobbyID, err := ids.ParseLobbyId(payload.LobbyID)
		if err != nil {
			return fmt.Errorf("executor: decode remove_from_lobby payload: %w", err)
		}
		userID, err := ids.ParseUserId(payload.UserID)
		if err != nil {
			return fmt.Errorf("executor: decode remove_from_lobby payload: %w", err)
		}
		operationID := opid.FromIngress(e.log, payload.OperationID)
		return e.processors.RemoveFromLobby(ctx, operationID, command.RemoveFromLobbyTaskInput{
			LobbyID: lobbyID,
			UserID:  userID,
		})

	case scheduler.KindDisconnectFromGame:
		var payload struct {
			GameID      string `json:"game_id"`
			UserID      string `json:"user_id"`
			OperationID string `json:"operation_id"`
		}
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			return fmt.Errorf("executor: decode disconnect_from_game payload: %w", err)
		}
		gameID, err := ids.ParseGameId(payload.GameID)
		if err != nil {
			return fmt.Errorf("executor: decode disconnect_from_game payload: %w", err)
		}
		userID, err := ids.ParseUserId(payload.UserID)
		if err != nil {
			return fmt.Errorf("executor: decode disconnect_from_game payload: %w", err)
		}
		operationID := opid.FromIngress(e.log, payload.OperationID)
		return e.processors.DisconnectFromGame(ctx, operationID, command.DisconnectFromGameInput{
			CurrentUserID: userID,
			GameID:        gameID,
		})

	case scheduler.KindTryToDisqualifyPlayer:
		var payload struct {
			GameID        string `json:"game_id"`
			PlayerID      string `json:"player_id"`
			PlayerStateID string `json:"player_state_id"`
			OperationID   string `json:"operation_id"`
		}
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			return fmt.Errorf("executor: decode try_to_disqualify_player payload: %w", err)
		}
		gameID, err := ids.ParseGameId(payload.GameID)
		if err != nil {
			return fmt.Errorf("executor: decode try_to_disqualify_player payload: %w", err)
		}
		playerID, err := ids.ParseUserId(payload.PlayerID)
		if err != nil {
			return fmt.Errorf("executor: decode try_to_disqualify_player payload: %w", err)
		}
		playerStateID, err := ids.ParsePlayerStateId(payload.PlayerStateID)
		if err != nil {
			return fmt.Errorf("executor: decode try_to_disqualify_player payload: %w", err)
		}
		operationID := opid.FromIngress(e.log, payload.OperationID)
		return e.processors.TryToDisqualifyPlayer(ctx, operationID, command.TryToDisqualifyPlayerInput{
			GameID:        gameID,
			PlayerID:      playerID,
			PlayerStateID: playerStateID,
		})

	default:
		return fmt.Errorf("executor: unknown task kind %q", t.Kind)
	}
}
