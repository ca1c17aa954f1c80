package command

import (
	"context"
	"fmt"

	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/events"
	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/middleware"
	"github.com/voidloop/connectionhub/internal/realtime"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

// ReconnectToGameInput is the decoded
// api_gateway.game.player_reconnected ingress body.
type ReconnectToGameInput struct {
	CurrentUserID ids.UserId
	GameID        ids.GameId
}

// ReconnectToGame marks the current user connected again, unscheduling
// the disqualify timer tied to its pre-reconnect PlayerStateId — the
// id the domain transition is about to rotate away from.
func (p *Processors) ReconnectToGame(ctx context.Context, operationID ids.OperationId, in ReconnectToGameInput) error {
	log := middleware.CommandLogger(p.d.Log, operationID.String(), nil)

	uow := p.begin()
	if err := uow.locks.Acquire(ctx, in.GameID.Hex()); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: reconnect to game: %w", err)
	}

	game, err := p.d.Games.ByID(ctx, in.GameID)
	if err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: reconnect to game: %w", err)
	}
	if game == nil {
		uow.abort(ctx)
		return domain.ErrGameDoesNotExist
	}
	ps, ok := game.Players[in.CurrentUserID]
	if !ok {
		uow.abort(ctx)
		return domain.ErrCurrentUserNotInGame
	}
	previousStateID := ps.ID

	if err := domain.Reconnect(game, in.CurrentUserID); err != nil {
		uow.abort(ctx)
		return err
	}

	if err := p.d.Games.Update(ctx, uow.pipe, game); err != nil {
		uow.abort(ctx)
		return err
	}

	taskID := scheduler.TryToDisqualifyPlayerTaskID(previousStateID)
	if err := p.d.Scheduler.Unschedule(ctx, taskID); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: reconnect to game: unschedule: %w", err)
	}

	if err := uow.commit(ctx); err != nil {
		return fmt.Errorf("command: reconnect to game: commit: %w", err)
	}

	event := events.PlayerReconnected{GameID: game.ID, PlayerID: in.CurrentUserID}
	if err := p.d.Events.Publish(ctx, operationID, event); err != nil {
		middleware.LogTransportFailure(log, "events.Publish", err)
	}
	if err := p.d.Realtime.Publish(ctx, realtime.GameChannel(game.ID), event); err != nil {
		middleware.LogTransportFailure(log, "realtime.Publish", err)
	}

	return nil
}
