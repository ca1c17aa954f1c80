package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/ids"
)

func TestEndGame_DeletesGameAndUnschedulesPendingTasks(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	gameID, _, _ := setUpGame(t, rig)

	require.NoError(t, rig.Processors.EndGame(ctx, ids.NewOperationId(), EndGameInput{GameID: gameID}))

	game, err := rig.Processors.d.Games.ByID(ctx, gameID)
	require.NoError(t, err)
	assert.Nil(t, game)
	assert.Empty(t, scheduledTaskIDs(t, rig))
}

func TestEndGame_RejectsUnknownGame(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	err := rig.Processors.EndGame(ctx, ids.NewOperationId(), EndGameInput{GameID: ids.NewGameId()})
	assert.ErrorIs(t, err, domain.ErrGameDoesNotExist)
}
