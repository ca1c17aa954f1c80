// Package bus implements the durable message bus on Redis Streams: one
// stream for ingress and one for egress, each carrying every subject of
// its direction, read with consumer groups for
// durable pull delivery, generalizing the teacher's single
// RPush-based action queue (internal/cache.PublishGameAction) into a
// subject-routed, consumer-group-acknowledged stream.
package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/voidloop/connectionhub/internal/events"
	"github.com/voidloop/connectionhub/internal/ids"
)

// EgressStream is the single stream every connection_hub.* event is
// published to; subject-based routing happens via the "subject" field,
// not via separate streams, since a single Redis Stream already gives
// every consumer group its own cursor over the same log.
const EgressStream = "connection_hub.egress"

// Publisher publishes domain events to the durable bus.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher builds a Publisher against rdb.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

var _ events.Publisher = (*Publisher)(nil)

// Publish appends event to the egress stream with its subject and the
// correlating operation id.
func (p *Publisher) Publish(ctx context.Context, operationID ids.OperationId, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("bus: marshal event %s: %w", event.Subject(), err)
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: EgressStream,
		Values: map[string]interface{}{
			"subject":      event.Subject(),
			"operation_id": operationID.String(),
			"payload":      payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("bus: publish %s: %w", event.Subject(), err)
	}
	return nil
}
