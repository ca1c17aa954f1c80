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

// CreateLobbyInput is the decoded api_gateway.lobby.created ingress
// body.
type CreateLobbyInput struct {
	CurrentUserID ids.UserId
	Name          string
	RuleSet       domain.RuleSet
	Password      *string
}

// CreateLobby builds a lobby for a user with no existing lobby or game.
func (p *Processors) CreateLobby(ctx context.Context, operationID ids.OperationId, in CreateLobbyInput) (ids.LobbyId, error) {
	log := middleware.CommandLogger(p.d.Log, operationID.String(), nil)

	existingLobby, err := p.d.Lobbies.ByUserID(ctx, in.CurrentUserID)
	if err != nil {
		return ids.LobbyId{}, fmt.Errorf("command: create lobby: %w", err)
	}
	if existingLobby != nil {
		return ids.LobbyId{}, domain.ErrCurrentUserInLobby
	}
	existingGame, err := p.d.Games.ByPlayerID(ctx, in.CurrentUserID)
	if err != nil {
		return ids.LobbyId{}, fmt.Errorf("command: create lobby: %w", err)
	}
	if existingGame != nil {
		return ids.LobbyId{}, domain.ErrCurrentUserInGame
	}

	if err := domain.ValidateLobbyName(in.Name); err != nil {
		return ids.LobbyId{}, err
	}
	if err := domain.ValidateRuleSet(in.RuleSet); err != nil {
		return ids.LobbyId{}, err
	}
	if in.Password != nil && *in.Password != "" {
		if err := domain.ValidateLobbyPassword(*in.Password); err != nil {
			return ids.LobbyId{}, err
		}
	}

	lobby := domain.CreateLobby(in.Name, in.CurrentUserID, in.RuleSet, in.Password)

	uow := p.begin()
	if err := uow.locks.Acquire(ctx, lobby.ID.Hex()); err != nil {
		uow.abort(ctx)
		return ids.LobbyId{}, fmt.Errorf("command: create lobby: %w", err)
	}
	if err := p.d.Lobbies.Save(ctx, uow.pipe, lobby); err != nil {
		uow.abort(ctx)
		return ids.LobbyId{}, err
	}

	taskID := scheduler.RemoveFromLobbyTaskID(lobby.ID, in.CurrentUserID)
	if err := p.d.Scheduler.Schedule(ctx, taskID, scheduler.KindRemoveFromLobby, time.Now().Add(p.d.PresenceGraceWindow), removeFromLobbyPayload{
		LobbyID:     lobby.ID.String(),
		UserID:      in.CurrentUserID.String(),
		OperationID: operationID.String(),
	}); err != nil {
		uow.abort(ctx)
		return ids.LobbyId{}, fmt.Errorf("command: create lobby: schedule: %w", err)
	}

	if err := uow.commit(ctx); err != nil {
		return ids.LobbyId{}, fmt.Errorf("command: create lobby: commit: %w", err)
	}

	event := events.LobbyCreated{
		LobbyID: lobby.ID,
		Name:    lobby.Name,
		AdminID: in.CurrentUserID,
		RuleSet: lobby.RuleSet,
	}
	if err := p.d.Events.Publish(ctx, operationID, event); err != nil {
		middleware.LogTransportFailure(log, "events.Publish", err)
	}
	if err := p.d.Realtime.Batch(ctx, []realtime.Command{
		{Publish: &realtime.PublishCommand{Channel: realtime.UserChannel(in.CurrentUserID), Data: event}},
		{Publish: &realtime.PublishCommand{Channel: realtime.LobbyBrowserChannel, Data: event}},
	}, true); err != nil {
		middleware.LogTransportFailure(log, "realtime.Batch", err)
	}

	return lobby.ID, nil
}
