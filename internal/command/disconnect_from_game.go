package command

import (
	"context"
	"fmt"
	"time"

	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/events"
	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/middleware"
	"github.com/voidloop/connectionhub/internal/realtime"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

// DisconnectFromGameInput is the decoded
// api_gateway.game.player_disconnected ingress body.
type DisconnectFromGameInput struct {
	CurrentUserID ids.UserId
	GameID        ids.GameId
}

// DisconnectFromGame marks the current user disconnected and starts its
// disqualification countdown.
func (p *Processors) DisconnectFromGame(ctx context.Context, operationID ids.OperationId, in DisconnectFromGameInput) error {
	log := middleware.CommandLogger(p.d.Log, operationID.String(), nil)

	uow := p.begin()
	if err := uow.locks.Acquire(ctx, in.GameID.Hex()); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: disconnect from game: %w", err)
	}

	game, err := p.d.Games.ByID(ctx, in.GameID)
	if err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: disconnect from game: %w", err)
	}
	if game == nil {
		uow.abort(ctx)
		return domain.ErrGameDoesNotExist
	}
	if !game.HasPlayer(in.CurrentUserID) {
		uow.abort(ctx)
		return domain.ErrCurrentUserNotInGame
	}

	if err := domain.Disconnect(game, in.CurrentUserID); err != nil {
		uow.abort(ctx)
		return err
	}
	ps := game.Players[in.CurrentUserID]

	if err := p.d.Games.Update(ctx, uow.pipe, game); err != nil {
		uow.abort(ctx)
		return err
	}

	taskID := scheduler.TryToDisqualifyPlayerTaskID(ps.ID)
	if err := p.d.Scheduler.Schedule(ctx, taskID, scheduler.KindTryToDisqualifyPlayer, time.Now().Add(ps.TimeLeft), tryToDisqualifyPlayerPayload{
		GameID:        game.ID.String(),
		PlayerID:      in.CurrentUserID.String(),
		PlayerStateID: ps.ID.String(),
		OperationID:   operationID.String(),
	}); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: disconnect from game: schedule: %w", err)
	}

	if err := uow.commit(ctx); err != nil {
		return fmt.Errorf("command: disconnect from game: commit: %w", err)
	}

	event := events.PlayerDisconnected{GameID: game.ID, PlayerID: in.CurrentUserID}
	if err := p.d.Events.Publish(ctx, operationID, event); err != nil {
		middleware.LogTransportFailure(log, "events.Publish", err)
	}
	if err := p.d.Realtime.Publish(ctx, realtime.GameChannel(game.ID), event); err != nil {
		middleware.LogTransportFailure(log, "realtime.Publish", err)
	}

	return nil
}
