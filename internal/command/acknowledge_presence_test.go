package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

func TestAcknowledgePresence_RescheduledWhileInLobby(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	admin := ids.NewUserId()

	lobbyID, err := rig.Processors.CreateLobby(ctx, ids.NewOperationId(), CreateLobbyInput{
		CurrentUserID: admin,
		Name:          "table",
		RuleSet:       connectFourRuleSet(),
	})
	require.NoError(t, err)

	require.NoError(t, rig.Processors.AcknowledgePresence(ctx, ids.NewOperationId(), AcknowledgePresenceInput{
		CurrentUserID: admin,
	}))

	due, err := rig.Processors.d.Scheduler.Due(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due, "heartbeat must push the deadline into the future")

	taskID := scheduler.RemoveFromLobbyTaskID(lobbyID, admin)
	require.NoError(t, rig.Processors.d.Scheduler.Unschedule(ctx, taskID))
}

func TestAcknowledgePresence_NoOpWhenNotTracked(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	err := rig.Processors.AcknowledgePresence(ctx, ids.NewOperationId(), AcknowledgePresenceInput{
		CurrentUserID: ids.NewUserId(),
	})
	assert.NoError(t, err)
}
