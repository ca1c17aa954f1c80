package executor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidloop/connectionhub/internal/command"
	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/events"
	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/kv"
	"github.com/voidloop/connectionhub/internal/lock"
	"github.com/voidloop/connectionhub/internal/mapper"
	"github.com/voidloop/connectionhub/internal/realtime"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

func newTestExecutor(t *testing.T) (*Executor, *command.Processors, *scheduler.Scheduler, *mapper.LobbyMapper) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := kv.Connect(context.Background(), mr.Addr(), 0, logger)
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	realtimeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(realtimeServer.Close)

	lobbies := mapper.NewLobbyMapper(store, 24*time.Hour)
	sched := scheduler.New(rdb)
	deps := &command.Deps{
		Store:               store,
		Locks:               lock.New(store, time.Minute),
		Lobbies:             lobbies,
		Games:               mapper.NewGameMapper(store, 24*time.Hour),
		Scheduler:           sched,
		Events:              fakeEventsPublisher{},
		Realtime:            realtime.New(realtimeServer.URL, "test-key", logger),
		Log:                 logger,
		PresenceGraceWindow: 15 * time.Second,
	}
	processors := command.New(deps)
	return New(processors, sched, logger), processors, sched, lobbies
}

// fakeEventsPublisher discards every published event; these tests only
// assert on state reachable through the mappers.
type fakeEventsPublisher struct{}

func (fakeEventsPublisher) Publish(context.Context, ids.OperationId, events.Event) error {
	return nil
}

func TestPollOnce_DispatchesDueRemoveFromLobbyTask(t *testing.T) {
	exec, processors, sched, lobbies := newTestExecutor(t)
	ctx := context.Background()
	admin := ids.NewUserId()

	lobbyID, err := processors.CreateLobby(ctx, ids.NewOperationId(), command.CreateLobbyInput{
		CurrentUserID: admin,
		Name:          "table",
		RuleSet:       domain.ConnectFourRuleSet{TimeForEachPlayer: time.Minute},
	})
	require.NoError(t, err)

	taskID := scheduler.RemoveFromLobbyTaskID(lobbyID, admin)
	require.NoError(t, sched.Schedule(ctx, taskID, scheduler.KindRemoveFromLobby, time.Now().Add(-time.Second), map[string]string{
		"lobby_id":     lobbyID.String(),
		"user_id":      admin.String(),
		"operation_id": ids.NewOperationId().String(),
	}))

	require.NoError(t, exec.PollOnce(ctx))

	lobby, err := lobbies.ByID(ctx, lobbyID)
	require.NoError(t, err)
	assert.Nil(t, lobby, "the lobby's last user is removed, so it must be gone")
}

func TestPollOnce_UnknownTaskKindIsLoggedNotPanicked(t *testing.T) {
	exec, _, sched, _ := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, sched.Schedule(ctx, "task:bogus", "not_a_real_kind", time.Now().Add(-time.Second), map[string]string{}))

	assert.NotPanics(t, func() {
		require.NoError(t, exec.PollOnce(ctx))
	})
}
