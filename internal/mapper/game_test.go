package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/ids"
)

func TestGameKey_EmbedsSortedPlayerHexes(t *testing.T) {
	gameID := ids.NewGameId()
	a := ids.NewUserId()
	b := ids.NewUserId()

	key1 := gameKey(gameID, []ids.UserId{a, b})
	key2 := gameKey(gameID, []ids.UserId{b, a})

	assert.Equal(t, key1, key2)
	assert.Contains(t, key1, gameID.Hex())
}

func TestGamePlayerPattern_MatchesAnyPlayerKey(t *testing.T) {
	gameID := ids.NewGameId()
	a := ids.NewUserId()
	b := ids.NewUserId()

	key := gameKey(gameID, []ids.UserId{a, b})

	assert.True(t, globMatch(t, gamePlayerPattern(a), key))
	assert.True(t, globMatch(t, gamePlayerPattern(b), key))
	assert.False(t, globMatch(t, gamePlayerPattern(ids.NewUserId()), key))
	assert.True(t, globMatch(t, gameIDPattern(gameID), key))
}

func TestEncodeDecodeGame_RoundTrip(t *testing.T) {
	admin := ids.NewUserId()
	member := ids.NewUserId()
	lobby := domain.CreateLobby("table", admin, domain.ConnectFourRuleSet{TimeForEachPlayer: time.Minute}, nil)
	require.NoError(t, domain.JoinLobby(lobby, member, nil))
	game, err := domain.CreateGame(lobby, admin)
	require.NoError(t, err)
	require.NoError(t, domain.Disconnect(game, member))

	rec, err := encodeGame(game)
	require.NoError(t, err)

	got, err := decodeGame(rec)
	require.NoError(t, err)

	assert.Equal(t, game.ID, got.ID)
	assert.Equal(t, game.Kind, got.Kind)
	assert.Equal(t, game.PlayerOrder, got.PlayerOrder)
	assert.Equal(t, game.CreatedAt.Unix(), got.CreatedAt.Unix())
	require.Len(t, got.Players, len(game.Players))
	for uid, ps := range game.Players {
		gotPS, ok := got.Players[uid]
		require.True(t, ok)
		assert.Equal(t, ps.ID, gotPS.ID)
		assert.Equal(t, ps.Status, gotPS.Status)
		assert.InDelta(t, ps.TimeLeft.Seconds(), gotPS.TimeLeft.Seconds(), 0.001)
	}
}
