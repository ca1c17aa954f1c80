package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

func TestKickFromLobby_RemovesTargetAndUnschedulesTheirPresenceTask(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	admin := ids.NewUserId()
	member := ids.NewUserId()

	lobbyID, err := rig.Processors.CreateLobby(ctx, ids.NewOperationId(), CreateLobbyInput{
		CurrentUserID: admin,
		Name:          "table",
		RuleSet:       connectFourRuleSet(),
	})
	require.NoError(t, err)
	require.NoError(t, rig.Processors.JoinLobby(ctx, ids.NewOperationId(), JoinLobbyInput{
		CurrentUserID: member,
		LobbyID:       lobbyID,
	}))

	require.NoError(t, rig.Processors.KickFromLobby(ctx, ids.NewOperationId(), KickFromLobbyInput{
		CurrentUserID: admin,
		LobbyID:       lobbyID,
		UserToKick:    member,
	}))

	lobby, err := rig.Processors.d.Lobbies.ByID(ctx, lobbyID)
	require.NoError(t, err)
	assert.False(t, lobby.HasUser(member))
	taskIDs := scheduledTaskIDs(t, rig)
	assert.NotContains(t, taskIDs, scheduler.RemoveFromLobbyTaskID(lobbyID, member))
	assert.Contains(t, taskIDs, scheduler.RemoveFromLobbyTaskID(lobbyID, admin))
}

func TestKickFromLobby_NonAdminCannotKick(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	admin := ids.NewUserId()
	member := ids.NewUserId()

	lobbyID, err := rig.Processors.CreateLobby(ctx, ids.NewOperationId(), CreateLobbyInput{
		CurrentUserID: admin,
		Name:          "table",
		RuleSet:       connectFourRuleSet(),
	})
	require.NoError(t, err)
	require.NoError(t, rig.Processors.JoinLobby(ctx, ids.NewOperationId(), JoinLobbyInput{
		CurrentUserID: member,
		LobbyID:       lobbyID,
	}))

	err = rig.Processors.KickFromLobby(ctx, ids.NewOperationId(), KickFromLobbyInput{
		CurrentUserID: member,
		LobbyID:       lobbyID,
		UserToKick:    admin,
	})
	assert.ErrorIs(t, err, domain.ErrUserIsNotAdmin)
}
