package command

import (
	"context"
	"fmt"

	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

// EndGameInput is the decoded connect_four.game.ended ingress body: the
// per-game rule engine telling the hub a match is over.
type EndGameInput struct {
	GameID ids.GameId
}

// EndGame deletes the game and unschedules every pending task still
// associated with it.
func (p *Processors) EndGame(ctx context.Context, operationID ids.OperationId, in EndGameInput) error {
	uow := p.begin()
	if err := uow.locks.Acquire(ctx, in.GameID.Hex()); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: end game: %w", err)
	}

	game, err := p.d.Games.ByID(ctx, in.GameID)
	if err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: end game: %w", err)
	}
	if game == nil {
		uow.abort(ctx)
		return domain.ErrGameDoesNotExist
	}

	if err := p.d.Games.Delete(ctx, uow.pipe, game.ID); err != nil {
		uow.abort(ctx)
		return err
	}

	var unscheduleIDs []string
	for _, playerID := range game.PlayerOrder {
		unscheduleIDs = append(unscheduleIDs, scheduler.DisconnectFromGameTaskID(game.ID, playerID))
		unscheduleIDs = append(unscheduleIDs, scheduler.TryToDisqualifyPlayerTaskID(game.Players[playerID].ID))
	}
	if err := p.d.Scheduler.UnscheduleMany(ctx, unscheduleIDs); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: end game: unschedule: %w", err)
	}

	if err := uow.commit(ctx); err != nil {
		return fmt.Errorf("command: end game: commit: %w", err)
	}

	return nil
}
