package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidloop/connectionhub/internal/ids"
)

func connectFour() RuleSet {
	return ConnectFourRuleSet{TimeForEachPlayer: time.Minute}
}

func TestCreateLobby_CreatorIsAdmin(t *testing.T) {
	admin := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)

	role, ok := lobby.RoleOf(admin)
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, role)
	assert.Empty(t, lobby.AdminTransferQueue)
}

func TestJoinLobby_AppendsToTransferQueue(t *testing.T) {
	admin := ids.NewUserId()
	joiner := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)

	require.NoError(t, JoinLobby(lobby, joiner, nil))

	role, ok := lobby.RoleOf(joiner)
	require.True(t, ok)
	assert.Equal(t, RoleMember, role)
	assert.Equal(t, []ids.UserId{joiner}, lobby.AdminTransferQueue)
}

func TestJoinLobby_RejectsOverCapacity(t *testing.T) {
	admin := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, ids.NewUserId(), nil))

	err := JoinLobby(lobby, ids.NewUserId(), nil)
	assert.ErrorIs(t, err, ErrUserLimitReached)
}

func TestJoinLobby_PasswordEnforced(t *testing.T) {
	admin := ids.NewUserId()
	pw := "secret"
	lobby := CreateLobby("table", admin, connectFour(), &pw)

	err := JoinLobby(lobby, ids.NewUserId(), nil)
	assert.ErrorIs(t, err, ErrPasswordRequired)

	wrong := "nope"
	err = JoinLobby(lobby, ids.NewUserId(), &wrong)
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	err = JoinLobby(lobby, ids.NewUserId(), &pw)
	assert.NoError(t, err)
}

// TestRemoveFromLobby_NonAdminPopsTransferQueue guards the invariant
// that the transfer queue tracks every non-admin, whether removal was
// voluntary or task-triggered — both entry points share this function.
func TestRemoveFromLobby_NonAdminPopsTransferQueue(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, member, nil))
	require.Contains(t, lobby.AdminTransferQueue, member)

	emptyNow, newAdmin := RemoveFromLobby(lobby, member)

	assert.False(t, emptyNow)
	assert.Nil(t, newAdmin)
	assert.NotContains(t, lobby.AdminTransferQueue, member)
	assert.False(t, lobby.HasUser(member))
}

func TestRemoveFromLobby_AdminPromotesTransferQueueHead(t *testing.T) {
	admin := ids.NewUserId()
	first := ids.NewUserId()
	second := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, first, nil))
	require.NoError(t, JoinLobby(lobby, second, nil))

	emptyNow, newAdmin := RemoveFromLobby(lobby, admin)

	require.False(t, emptyNow)
	require.NotNil(t, newAdmin)
	assert.Equal(t, first, *newAdmin)
	role, _ := lobby.RoleOf(first)
	assert.Equal(t, RoleAdmin, role)
	assert.Equal(t, []ids.UserId{second}, lobby.AdminTransferQueue)
}

func TestRemoveFromLobby_LastUserEmptiesLobby(t *testing.T) {
	admin := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)

	emptyNow, newAdmin := RemoveFromLobby(lobby, admin)

	assert.True(t, emptyNow)
	assert.Nil(t, newAdmin)
}

func TestKickFromLobby_RequiresAdmin(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, member, nil))

	err := KickFromLobby(lobby, admin, member)
	assert.ErrorIs(t, err, ErrUserIsNotAdmin)
}

func TestKickFromLobby_CannotKickSelf(t *testing.T) {
	admin := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)

	err := KickFromLobby(lobby, admin, admin)
	assert.ErrorIs(t, err, ErrUserIsTryingKickHimself)
}

func TestKickFromLobby_RemovesTargetAndQueueEntry(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, member, nil))

	require.NoError(t, KickFromLobby(lobby, member, admin))

	assert.False(t, lobby.HasUser(member))
	assert.NotContains(t, lobby.AdminTransferQueue, member)
}

func TestCreateGame_RequiresAdmin(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, member, nil))

	_, err := CreateGame(lobby, member)
	assert.ErrorIs(t, err, ErrUserIsNotAdmin)
}

func TestCreateGame_EveryPlayerStartsConnectedWithFullBudget(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, member, nil))

	game, err := CreateGame(lobby, admin)
	require.NoError(t, err)

	assert.Equal(t, lobby.UserOrder, game.PlayerOrder)
	for _, ps := range game.Players {
		assert.Equal(t, PlayerConnected, ps.Status)
		assert.Equal(t, ReconnectBudget, ps.TimeLeft)
	}
}

func TestDisconnect_RotatesStateIdAndRejectsDouble(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, member, nil))
	game, err := CreateGame(lobby, admin)
	require.NoError(t, err)

	before := game.Players[admin].ID
	require.NoError(t, Disconnect(game, admin))
	assert.NotEqual(t, before, game.Players[admin].ID)
	assert.Equal(t, PlayerDisconnected, game.Players[admin].Status)

	err = Disconnect(game, admin)
	assert.ErrorIs(t, err, ErrUserIsDisconnectedFromGame)
}

func TestReconnect_RotatesStateIdAndRejectsDouble(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, member, nil))
	game, err := CreateGame(lobby, admin)
	require.NoError(t, err)
	require.NoError(t, Disconnect(game, admin))

	before := game.Players[admin].ID
	require.NoError(t, Reconnect(game, admin))
	assert.NotEqual(t, before, game.Players[admin].ID)
	assert.Equal(t, PlayerConnected, game.Players[admin].Status)

	err = Reconnect(game, admin)
	assert.ErrorIs(t, err, ErrUserIsConnectedToGame)
}

// TestTryToDisqualifyPlayer_StaleStateIdIsNoOp is the reconnect-race
// safety net: a disqualify task scheduled against a PlayerStateId the
// player has since rotated away from must not touch the game.
func TestTryToDisqualifyPlayer_StaleStateIdIsNoOp(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, member, nil))
	game, err := CreateGame(lobby, admin)
	require.NoError(t, err)

	staleID := game.Players[admin].ID
	require.NoError(t, Disconnect(game, admin))
	require.NoError(t, Reconnect(game, admin))

	disqualified, gameEnded := TryToDisqualifyPlayer(game, admin, staleID)

	assert.False(t, disqualified)
	assert.False(t, gameEnded)
	assert.True(t, game.HasPlayer(admin))
}

func TestTryToDisqualifyPlayer_EndsGameBelowMinPlayers(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := CreateLobby("table", admin, connectFour(), nil)
	require.NoError(t, JoinLobby(lobby, member, nil))
	game, err := CreateGame(lobby, admin)
	require.NoError(t, err)

	currentID := game.Players[admin].ID
	disqualified, gameEnded := TryToDisqualifyPlayer(game, admin, currentID)

	assert.True(t, disqualified)
	assert.True(t, gameEnded)
	assert.False(t, game.HasPlayer(admin))
}
