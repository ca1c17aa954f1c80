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

// JoinLobbyInput is the decoded api_gateway.lobby.user_joined ingress
// body.
type JoinLobbyInput struct {
	CurrentUserID ids.UserId
	LobbyID       ids.LobbyId
	Password      *string
}

// JoinLobby adds the current user to an existing lobby as a regular
// member.
func (p *Processors) JoinLobby(ctx context.Context, operationID ids.OperationId, in JoinLobbyInput) error {
	log := middleware.CommandLogger(p.d.Log, operationID.String(), nil)

	existingLobby, err := p.d.Lobbies.ByUserID(ctx, in.CurrentUserID)
	if err != nil {
		return fmt.Errorf("command: join lobby: %w", err)
	}
	if existingLobby != nil {
		return domain.ErrCurrentUserInLobby
	}
	existingGame, err := p.d.Games.ByPlayerID(ctx, in.CurrentUserID)
	if err != nil {
		return fmt.Errorf("command: join lobby: %w", err)
	}
	if existingGame != nil {
		return domain.ErrCurrentUserInGame
	}

	uow := p.begin()
	if err := uow.locks.Acquire(ctx, in.LobbyID.Hex()); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: join lobby: %w", err)
	}

	lobby, err := p.d.Lobbies.ByID(ctx, in.LobbyID)
	if err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: join lobby: %w", err)
	}
	if lobby == nil {
		uow.abort(ctx)
		return domain.ErrLobbyDoesNotExist
	}

	if err := domain.JoinLobby(lobby, in.CurrentUserID, in.Password); err != nil {
		uow.abort(ctx)
		return err
	}

	if err := p.d.Lobbies.Update(ctx, uow.pipe, lobby); err != nil {
		uow.abort(ctx)
		return err
	}

	taskID := scheduler.RemoveFromLobbyTaskID(lobby.ID, in.CurrentUserID)
	if err := p.d.Scheduler.Schedule(ctx, taskID, scheduler.KindRemoveFromLobby, time.Now().Add(p.d.PresenceGraceWindow), removeFromLobbyPayload{
		LobbyID:     lobby.ID.String(),
		UserID:      in.CurrentUserID.String(),
		OperationID: operationID.String(),
	}); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: join lobby: schedule: %w", err)
	}

	if err := uow.commit(ctx); err != nil {
		return fmt.Errorf("command: join lobby: commit: %w", err)
	}

	event := events.UserJoinedLobby{LobbyID: lobby.ID, UserID: in.CurrentUserID}
	if err := p.d.Events.Publish(ctx, operationID, event); err != nil {
		middleware.LogTransportFailure(log, "events.Publish", err)
	}

	snapshot := lobbySnapshot(lobby)
	if err := p.d.Realtime.Batch(ctx, []realtime.Command{
		{Publish: &realtime.PublishCommand{Channel: realtime.LobbyChannel(lobby.ID), Data: event}},
		{Publish: &realtime.PublishCommand{Channel: realtime.UserChannel(in.CurrentUserID), Data: snapshot}},
	}, true); err != nil {
		middleware.LogTransportFailure(log, "realtime.Batch", err)
	}

	return nil
}

type lobbyUserSnapshot struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

type lobbySnapshotPayload struct {
	LobbyID ids.LobbyId         `json:"lobby_id"`
	Name    string              `json:"name"`
	Users   []lobbyUserSnapshot `json:"users"`
}

func lobbySnapshot(lobby *domain.Lobby) lobbySnapshotPayload {
	users := make([]lobbyUserSnapshot, len(lobby.UserOrder))
	for i, uid := range lobby.UserOrder {
		users[i] = lobbyUserSnapshot{UserID: uid.String(), Role: lobby.Roles[uid]}
	}
	return lobbySnapshotPayload{LobbyID: lobby.ID, Name: lobby.Name, Users: users}
}
