package command

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/voidloop/connectionhub/internal/events"
	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/kv"
	"github.com/voidloop/connectionhub/internal/lock"
	"github.com/voidloop/connectionhub/internal/mapper"
	"github.com/voidloop/connectionhub/internal/realtime"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

// fakePublisher is a hand-written stand-in for the durable-bus
// publisher, capturing every event published during a test instead of
// touching a real stream.
type fakePublisher struct {
	mu        sync.Mutex
	published []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, _ ids.OperationId, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, event)
	return nil
}

func (f *fakePublisher) last() events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return nil
	}
	return f.published[len(f.published)-1]
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// testRig bundles a Processors instance backed by miniredis and a
// no-op realtime fan-out endpoint, plus the fake publisher for
// assertions on what was published to the durable bus.
type testRig struct {
	Processors *Processors
	Events     *fakePublisher
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := kv.Connect(context.Background(), mr.Addr(), 0, logger)
	if err != nil {
		t.Fatalf("connect test kv store: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	realtimeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(realtimeServer.Close)

	fake := &fakePublisher{}
	deps := &Deps{
		Store:               store,
		Locks:               lock.New(store, time.Minute),
		Lobbies:             mapper.NewLobbyMapper(store, 24*time.Hour),
		Games:               mapper.NewGameMapper(store, 24*time.Hour),
		Scheduler:           scheduler.New(rdb),
		Events:              fake,
		Realtime:            realtime.New(realtimeServer.URL, "test-key", logger),
		Log:                 logger,
		PresenceGraceWindow: 15 * time.Second,
	}

	return &testRig{Processors: New(deps), Events: fake}
}

// scheduledTaskIDs claims every task due within the next hour and
// returns their ids.
func scheduledTaskIDs(t *testing.T, rig *testRig) []string {
	t.Helper()
	tasks, err := rig.Processors.d.Scheduler.Due(context.Background(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("load scheduled tasks: %v", err)
	}
	taskIDs := make([]string, len(tasks))
	for i, task := range tasks {
		taskIDs[i] = task.ID
	}
	return taskIDs
}
