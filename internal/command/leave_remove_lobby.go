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

// LeaveLobbyInput is the decoded api_gateway.lobby.user_left ingress
// body.
type LeaveLobbyInput struct {
	CurrentUserID ids.UserId
	LobbyID       ids.LobbyId
}

// LeaveLobby removes the current user from their lobby.
func (p *Processors) LeaveLobby(ctx context.Context, operationID ids.OperationId, in LeaveLobbyInput) error {
	return p.removeFromLobby(ctx, operationID, in.LobbyID, in.CurrentUserID, true)
}

// RemoveFromLobbyTaskInput is the payload of a fired RemoveFromLobby
// task (the stale-presence path).
type RemoveFromLobbyTaskInput struct {
	LobbyID ids.LobbyId
	UserID  ids.UserId
}

// RemoveFromLobby is the task-triggered counterpart to LeaveLobby: same
// domain transition, caller-supplied user id, and silent on a lobby or
// membership that's already gone (stale fire).
func (p *Processors) RemoveFromLobby(ctx context.Context, operationID ids.OperationId, in RemoveFromLobbyTaskInput) error {
	return p.removeFromLobby(ctx, operationID, in.LobbyID, in.UserID, false)
}

// removeFromLobby is the shared implementation: LeaveLobby and
// RemoveFromLobby are the same operation under different triggers (see
// DESIGN.md's force-leave-vs-remove-from-lobby decision), differing
// only in whether "lobby gone" / "user not in lobby" is a user-facing
// error (voluntary leave) or a silent no-op (stale task fire).
func (p *Processors) removeFromLobby(ctx context.Context, operationID ids.OperationId, lobbyID ids.LobbyId, userID ids.UserId, userFacing bool) error {
	log := middleware.CommandLogger(p.d.Log, operationID.String(), nil)

	uow := p.begin()
	if err := uow.locks.Acquire(ctx, lobbyID.Hex()); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: remove from lobby: %w", err)
	}

	lobby, err := p.d.Lobbies.ByID(ctx, lobbyID)
	if err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: remove from lobby: %w", err)
	}
	if lobby == nil {
		uow.abort(ctx)
		if userFacing {
			return domain.ErrLobbyDoesNotExist
		}
		return nil
	}
	if !lobby.HasUser(userID) {
		uow.abort(ctx)
		if userFacing {
			return domain.ErrCurrentUserNotInLobby
		}
		return nil
	}

	emptyNow, newAdmin := domain.RemoveFromLobby(lobby, userID)

	if emptyNow {
		if err := p.d.Lobbies.Delete(ctx, uow.pipe, lobby.ID); err != nil {
			uow.abort(ctx)
			return err
		}
	} else {
		if err := p.d.Lobbies.Update(ctx, uow.pipe, lobby); err != nil {
			uow.abort(ctx)
			return err
		}
	}

	taskID := scheduler.RemoveFromLobbyTaskID(lobbyID, userID)
	if err := p.d.Scheduler.Unschedule(ctx, taskID); err != nil {
		uow.abort(ctx)
		return fmt.Errorf("command: remove from lobby: unschedule: %w", err)
	}

	if err := uow.commit(ctx); err != nil {
		return fmt.Errorf("command: remove from lobby: commit: %w", err)
	}

	var event events.Event
	if userFacing {
		event = events.UserLeftLobby{LobbyID: lobbyID, UserID: userID, NewAdminID: newAdmin}
	} else {
		event = events.UserRemovedFromLobby{LobbyID: lobbyID, UserID: userID, NewAdminID: newAdmin}
	}
	if err := p.d.Events.Publish(ctx, operationID, event); err != nil {
		middleware.LogTransportFailure(log, "events.Publish", err)
	}

	var batch []realtime.Command
	batch = append(batch, realtime.Command{Unsubscribe: &realtime.UnsubscribeCommand{
		User:    userID.String(),
		Channel: realtime.LobbyChannel(lobbyID),
	}})
	if !emptyNow {
		batch = append(batch, realtime.Command{Publish: &realtime.PublishCommand{
			Channel: realtime.LobbyChannel(lobbyID),
			Data:    event,
		}})
	}
	if err := p.d.Realtime.Batch(ctx, batch, true); err != nil {
		middleware.LogTransportFailure(log, "realtime.Batch", err)
	}

	return nil
}
