package command

import (
	"context"
	"fmt"
	"time"

	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

// AcknowledgePresenceInput is the decoded
// api_gateway.presence.acknowledged ingress body: "this user is alive
// right now".
type AcknowledgePresenceInput struct {
	CurrentUserID ids.UserId
}

// AcknowledgePresence reschedules whichever presence task currently
// applies to the user — RemoveFromLobby if they're in a lobby,
// DisconnectFromGame if they're in a game, a no-op otherwise. Because
// both task ids are deterministic per (entity, user), repeated
// heartbeats simply overwrite the previous deadline: exactly one task
// survives no matter how many heartbeats land.
func (p *Processors) AcknowledgePresence(ctx context.Context, operationID ids.OperationId, in AcknowledgePresenceInput) error {
	lobby, err := p.d.Lobbies.ByUserID(ctx, in.CurrentUserID)
	if err != nil {
		return fmt.Errorf("command: acknowledge presence: %w", err)
	}
	if lobby != nil {
		taskID := scheduler.RemoveFromLobbyTaskID(lobby.ID, in.CurrentUserID)
		return p.d.Scheduler.Schedule(ctx, taskID, scheduler.KindRemoveFromLobby, time.Now().Add(p.d.PresenceGraceWindow), removeFromLobbyPayload{
			LobbyID:     lobby.ID.String(),
			UserID:      in.CurrentUserID.String(),
			OperationID: operationID.String(),
		})
	}

	game, err := p.d.Games.ByPlayerID(ctx, in.CurrentUserID)
	if err != nil {
		return fmt.Errorf("command: acknowledge presence: %w", err)
	}
	if game != nil {
		taskID := scheduler.DisconnectFromGameTaskID(game.ID, in.CurrentUserID)
		return p.d.Scheduler.Schedule(ctx, taskID, scheduler.KindDisconnectFromGame, time.Now().Add(p.d.PresenceGraceWindow), disconnectFromGamePayload{
			GameID:      game.ID.String(),
			UserID:      in.CurrentUserID.String(),
			OperationID: operationID.String(),
		})
	}

	return nil
}
