package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidloop/connectionhub/internal/ids"
)

type fakeEvent struct {
	Value string `json:"value"`
}

func (fakeEvent) Subject() string { return "connection_hub.test.fake" }

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestPublisherConsumer_RoundTrip(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()

	pub := NewPublisher(rdb)
	opID := ids.NewOperationId()
	require.NoError(t, pub.Publish(ctx, opID, fakeEvent{Value: "hello"}))

	consumer := NewConsumer(rdb, EgressStream, "test_group", "test_consumer")
	require.NoError(t, consumer.EnsureGroup(ctx))

	msgs, err := consumer.Fetch(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, fakeEvent{}.Subject(), msgs[0].Subject)
	assert.Equal(t, opID, msgs[0].OperationID)
	assert.JSONEq(t, `{"value":"hello"}`, string(msgs[0].Body))

	require.NoError(t, consumer.Ack(ctx, msgs[0].EntryID))

	again, err := consumer.Fetch(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, again, "acked entries must not be redelivered as new")
}

func TestConsumer_IndependentStreamsDoNotInterfere(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()

	ingress := NewConsumer(rdb, IngressStream, "ingress_group", "c1")
	egress := NewConsumer(rdb, EgressStream, "egress_group", "c1")
	require.NoError(t, ingress.EnsureGroup(ctx))
	require.NoError(t, egress.EnsureGroup(ctx))

	require.NoError(t, NewPublisher(rdb).Publish(ctx, ids.NewOperationId(), fakeEvent{Value: "egress-only"}))

	ingressMsgs, err := ingress.Fetch(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, ingressMsgs)

	egressMsgs, err := egress.Fetch(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, egressMsgs, 1)
}

func TestRouter_LeavesFailedHandlerUnacked(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, NewPublisher(rdb).Publish(ctx, ids.NewOperationId(), fakeEvent{Value: "retry-me"}))

	consumer := NewConsumer(rdb, EgressStream, "router_group", "c1")
	require.NoError(t, consumer.EnsureGroup(ctx))

	logger := logrus.New()
	attempts := 0
	router := NewRouter(logger)
	router.Handle(fakeEvent{}.Subject(), func(_ context.Context, _ Message) error {
		attempts++
		return assert.AnError
	})

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_ = router.Run(runCtx, consumer, 10, 0)

	assert.GreaterOrEqual(t, attempts, 1)

	redelivered, err := rdb.XPending(ctx, EgressStream, "router_group").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), redelivered.Count, "a failed handler must leave its entry pending, not acked")
}
