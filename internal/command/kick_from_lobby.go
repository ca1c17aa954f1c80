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

// KickFromLobbyInput is the decoded api_gateway.lobby.user_kicked
// ingress body.
type KickFromLobbyInput struct {
	CurrentUserID ids.UserId
	LobbyID       ids.LobbyId
	UserToKick    ids.UserId
}

// KickFromLobby removes UserToKick from the lobby on the admin's
// behalf.
func (p *Processors) KickFromLobby(ctx context.Context, operationID ids.OperationId, in KickFromLobbyInput) error {
	log := middleware.CommandLogger(p.d.Log, operationID.String(), nil)

	uow := p.begin()
	if err := uow.locks.Acquire(ctx, in.LobbyID.Hex()); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: kick from lobby: %w", err)
	}

	lobby, err := p.d.Lobbies.ByID(ctx, in.LobbyID)
	if err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: kick from lobby: %w", err)
	}
	if lobby == nil {
		uow.abort(ctx)
		return domain.ErrLobbyDoesNotExist
	}

	if err := domain.KickFromLobby(lobby, in.UserToKick, in.CurrentUserID); err != nil {
		uow.abort(ctx)
		return err
	}

	if err := p.d.Lobbies.Update(ctx, uow.pipe, lobby); err != nil {
		uow.abort(ctx)
		return err
	}

	taskID := scheduler.RemoveFromLobbyTaskID(in.LobbyID, in.UserToKick)
	if err := p.d.Scheduler.Unschedule(ctx, taskID); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: kick from lobby: unschedule: %w", err)
	}

	if err := uow.commit(ctx); err != nil {
		return fmt.Errorf("command: kick from lobby: commit: %w", err)
	}

	event := events.UserKickedFromLobby{LobbyID: in.LobbyID, UserID: in.UserToKick}
	if err := p.d.Events.Publish(ctx, operationID, event); err != nil {
		middleware.LogTransportFailure(log, "events.Publish", err)
	}
	if err := p.d.Realtime.Batch(ctx, []realtime.Command{
		{Unsubscribe: &realtime.UnsubscribeCommand{User: in.UserToKick.String(), Channel: realtime.LobbyChannel(in.LobbyID)}},
		{Publish: &realtime.PublishCommand{Channel: realtime.LobbyChannel(in.LobbyID), Data: event}},
	}, true); err != nil {
		middleware.LogTransportFailure(log, "realtime.Batch", err)
	}

	return nil
}
