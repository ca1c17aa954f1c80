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

// TryToDisqualifyPlayerInput is the payload of a fired
// TryToDisqualifyPlayer task.
type TryToDisqualifyPlayerInput struct {
	GameID        ids.GameId
	PlayerID      ids.UserId
	PlayerStateID ids.PlayerStateId
}

// TryToDisqualifyPlayer is the task-triggered disqualification check.
// If the player's state id has moved on (reconnected, or already
// disqualified) since this task was scheduled, it silently no-ops —
// that is precisely what makes a disconnect→reconnect race safe.
func (p *Processors) TryToDisqualifyPlayer(ctx context.Context, operationID ids.OperationId, in TryToDisqualifyPlayerInput) error {
	log := middleware.CommandLogger(p.d.Log, operationID.String(), nil)

	uow := p.begin()
	if err := uow.locks.Acquire(ctx, in.GameID.Hex()); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: try to disqualify player: %w", err)
	}

	game, err := p.d.Games.ByID(ctx, in.GameID)
	if err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: try to disqualify player: %w", err)
	}
	if game == nil {
		uow.abort(ctx)
		return nil
	}
	if !game.HasPlayer(in.PlayerID) {
		uow.abort(ctx)
		return nil
	}

	disqualified, gameEnded := domain.TryToDisqualifyPlayer(game, in.PlayerID, in.PlayerStateID)
	if !disqualified {
		uow.abort(ctx)
		return nil
	}

	var unscheduleIDs []string
	if gameEnded {
		if err := p.d.Games.Delete(ctx, uow.pipe, game.ID); err != nil {
			uow.abort(ctx)
			return err
		}
		for _, remaining := range game.PlayerOrder {
			unscheduleIDs = append(unscheduleIDs, scheduler.DisconnectFromGameTaskID(game.ID, remaining))
			unscheduleIDs = append(unscheduleIDs, scheduler.TryToDisqualifyPlayerTaskID(game.Players[remaining].ID))
		}
	} else {
		if err := p.d.Games.Update(ctx, uow.pipe, game); err != nil {
			uow.abort(ctx)
			return err
		}
	}
	if err := p.d.Scheduler.UnscheduleMany(ctx, unscheduleIDs); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: try to disqualify player: unschedule: %w", err)
	}

	if err := uow.commit(ctx); err != nil {
		return fmt.Errorf("command: try to disqualify player: commit: %w", err)
	}

	event := events.PlayerDisqualified{GameID: in.GameID, PlayerID: in.PlayerID}
	if err := p.d.Events.Publish(ctx, operationID, event); err != nil {
		middleware.LogTransportFailure(log, "events.Publish", err)
	}
	if err := p.d.Realtime.Publish(ctx, realtime.GameChannel(in.GameID), event); err != nil {
		middleware.LogTransportFailure(log, "realtime.Publish", err)
	}

	return nil
}
