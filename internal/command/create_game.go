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

// CreateGameInput is the decoded api_gateway.game.created ingress body.
type CreateGameInput struct {
	CurrentUserID ids.UserId
	LobbyID       ids.LobbyId
}

// CreateGame promotes a lobby to a game: the lobby is consumed (there is
// no separate end_lobby trigger — see DESIGN.md).
func (p *Processors) CreateGame(ctx context.Context, operationID ids.OperationId, in CreateGameInput) (ids.GameId, error) {
	log := middleware.CommandLogger(p.d.Log, operationID.String(), nil)

	uow := p.begin()
	if err := uow.locks.Acquire(ctx, in.LobbyID.Hex()); err != nil {
		uow.abort(ctx)
		return ids.GameId{}, fmt.Errorf("command: create game: %w", err)
	}

	lobby, err := p.d.Lobbies.ByID(ctx, in.LobbyID)
	if err != nil {
		uow.abort(ctx)
		return ids.GameId{}, fmt.Errorf("command: create game: %w", err)
	}
	if lobby == nil {
		uow.abort(ctx)
		return ids.GameId{}, domain.ErrLobbyDoesNotExist
	}

	game, err := domain.CreateGame(lobby, in.CurrentUserID)
	if err != nil {
		uow.abort(ctx)
		return ids.GameId{}, err
	}

	if err := p.d.Lobbies.Delete(ctx, uow.pipe, lobby.ID); err != nil {
		uow.abort(ctx)
		return ids.GameId{}, err
	}
	if err := p.d.Games.Save(ctx, uow.pipe, game); err != nil {
		uow.abort(ctx)
		return ids.GameId{}, err
	}

	var scheduleInputs []scheduler.ScheduleInput
	var unscheduleIDs []string
	for _, playerID := range game.PlayerOrder {
		unscheduleIDs = append(unscheduleIDs, scheduler.RemoveFromLobbyTaskID(lobby.ID, playerID))
		scheduleInputs = append(scheduleInputs, scheduler.ScheduleInput{
			ID:       scheduler.DisconnectFromGameTaskID(game.ID, playerID),
			Kind:     scheduler.KindDisconnectFromGame,
			Deadline: time.Now().Add(p.d.PresenceGraceWindow),
			Payload: disconnectFromGamePayload{
				GameID:      game.ID.String(),
				UserID:      playerID.String(),
				OperationID: operationID.String(),
			},
		})
	}
	if err := p.d.Scheduler.UnscheduleMany(ctx, unscheduleIDs); err != nil {
		uow.abort(ctx)
		return ids.GameId{}, fmt.Errorf("command: create game: unschedule: %w", err)
	}
	if err := p.d.Scheduler.ScheduleMany(ctx, scheduleInputs); err != nil {
		uow.abort(ctx)
		return ids.GameId{}, fmt.Errorf("command: create game: schedule: %w", err)
	}

	if err := uow.commit(ctx); err != nil {
		return ids.GameId{}, fmt.Errorf("command: create game: commit: %w", err)
	}

	var first, second ids.UserId
	if len(game.PlayerOrder) > 0 {
		first = game.PlayerOrder[0]
	}
	if len(game.PlayerOrder) > 1 {
		second = game.PlayerOrder[1]
	}
	timeForEachPlayer := game.Kind.(domain.ConnectFourRuleSet).TimeForEachPlayer
	event := events.ConnectFourGameCreated{
		GameID:            game.ID,
		LobbyID:           lobby.ID,
		FirstPlayerID:     first,
		SecondPlayerID:    second,
		TimeForEachPlayer: timeForEachPlayer,
		CreatedAt:         game.CreatedAt,
	}
	if err := p.d.Events.Publish(ctx, operationID, event); err != nil {
		middleware.LogTransportFailure(log, "events.Publish", err)
	}

	var batch []realtime.Command
	for _, playerID := range game.PlayerOrder {
		batch = append(batch, realtime.Command{Publish: &realtime.PublishCommand{
			Channel: realtime.UserChannel(playerID),
			Data:    event,
		}})
	}
	if err := p.d.Realtime.Batch(ctx, batch, true); err != nil {
		middleware.LogTransportFailure(log, "realtime.Batch", err)
	}

	return game.ID, nil
}
