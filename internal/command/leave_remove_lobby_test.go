package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/events"
	"github.com/voidloop/connectionhub/internal/ids"
)

func TestLeaveLobby_LastUserDeletesLobby(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	admin := ids.NewUserId()

	lobbyID, err := rig.Processors.CreateLobby(ctx, ids.NewOperationId(), CreateLobbyInput{
		CurrentUserID: admin,
		Name:          "table",
		RuleSet:       connectFourRuleSet(),
	})
	require.NoError(t, err)

	require.NoError(t, rig.Processors.LeaveLobby(ctx, ids.NewOperationId(), LeaveLobbyInput{
		CurrentUserID: admin,
		LobbyID:       lobbyID,
	}))

	lobby, err := rig.Processors.d.Lobbies.ByID(ctx, lobbyID)
	require.NoError(t, err)
	assert.Nil(t, lobby)
}

func TestLeaveLobby_RejectsWhenNotAMember(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	admin := ids.NewUserId()

	lobbyID, err := rig.Processors.CreateLobby(ctx, ids.NewOperationId(), CreateLobbyInput{
		CurrentUserID: admin,
		Name:          "table",
		RuleSet:       connectFourRuleSet(),
	})
	require.NoError(t, err)

	err = rig.Processors.LeaveLobby(ctx, ids.NewOperationId(), LeaveLobbyInput{
		CurrentUserID: ids.NewUserId(),
		LobbyID:       lobbyID,
	})
	assert.ErrorIs(t, err, domain.ErrCurrentUserNotInLobby)
}

// TestRemoveFromLobby_StaleTaskFireIsSilent is the task-triggered twin
// of LeaveLobby: firing against a user already gone from the lobby
// (already left, already kicked) must not surface an error.
func TestRemoveFromLobby_StaleTaskFireIsSilent(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	admin := ids.NewUserId()

	lobbyID, err := rig.Processors.CreateLobby(ctx, ids.NewOperationId(), CreateLobbyInput{
		CurrentUserID: admin,
		Name:          "table",
		RuleSet:       connectFourRuleSet(),
	})
	require.NoError(t, err)
	require.NoError(t, rig.Processors.LeaveLobby(ctx, ids.NewOperationId(), LeaveLobbyInput{
		CurrentUserID: admin,
		LobbyID:       lobbyID,
	}))

	err = rig.Processors.RemoveFromLobby(ctx, ids.NewOperationId(), RemoveFromLobbyTaskInput{
		LobbyID: lobbyID,
		UserID:  admin,
	})
	assert.NoError(t, err)
}

func TestRemoveFromLobby_AdminTransferPublishesNewAdmin(t *testing.T) {
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

	require.NoError(t, rig.Processors.RemoveFromLobby(ctx, ids.NewOperationId(), RemoveFromLobbyTaskInput{
		LobbyID: lobbyID,
		UserID:  admin,
	}))

	lobby, err := rig.Processors.d.Lobbies.ByID(ctx, lobbyID)
	require.NoError(t, err)
	role, ok := lobby.RoleOf(member)
	require.True(t, ok)
	assert.Equal(t, domain.RoleAdmin, role)

	removed, ok := rig.Events.last().(events.UserRemovedFromLobby)
	require.True(t, ok)
	require.NotNil(t, removed.NewAdminID)
	assert.Equal(t, member, *removed.NewAdminID)
}
