package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voidloop/connectionhub/internal/ids"
)

// IngressStream carries every inbound subject listed in §6.1.
const IngressStream = "connection_hub.ingress"

// Message is one decoded ingress entry.
type Message struct {
	EntryID     string
	Subject     string
	OperationID ids.OperationId
	Body        []byte
}

// Consumer reads a stream under a durable, named consumer-group cursor,
// mirroring the per-subject durable consumer names §6.1 specifies (one
// group per topic/processor). The same type serves both the ingress
// stream (command processors) and the egress stream (history, and any
// other durable subscriber).
type Consumer struct {
	rdb    *redis.Client
	stream string
	group  string
	name   string
}

// NewConsumer builds a Consumer against stream. group is the durable
// group name (`connection_hub_<topic>`); name identifies this
// particular process within the group.
func NewConsumer(rdb *redis.Client, stream, group, name string) *Consumer {
	return &Consumer{rdb: rdb, stream: stream, group: group, name: name}
}

// EnsureGroup creates the consumer group (and the stream, if absent) if
// it doesn't already exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("bus: ensure group %s: %w", c.group, err)
	}
	return nil
}

// Fetch pulls up to count entries never before delivered to this group,
// blocking up to block for them; a block of zero or less returns at
// once. An entry fetched earlier and left unacknowledged stays in the
// group's pending list and is not returned by later Fetch calls.
func (c *Consumer) Fetch(ctx context.Context, count int64, block time.Duration) ([]Message, error) {
	if block <= 0 {
		// go-redis sends BLOCK 0 (wait forever) for a zero duration and
		// omits BLOCK for a negative one.
		block = -1
	}
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("bus: fetch group %s: %w", c.group, err)
	}

	var out []Message
	for _, stream := range res {
		for _, entry := range stream.Messages {
			msg, err := decodeEntry(entry)
			if err != nil {
				// malformed entry: ack it so it doesn't block the group forever,
				// and skip it rather than crash the consumer loop.
				c.rdb.XAck(ctx, c.stream, c.group, entry.ID)
				continue
			}
			out = append(out, msg)
		}
	}
	return out, nil
}

// Ack acknowledges successful processing of entryID.
func (c *Consumer) Ack(ctx context.Context, entryID string) error {
	if err := c.rdb.XAck(ctx, c.stream, c.group, entryID).Err(); err != nil {
		return fmt.Errorf("bus: ack %s: %w", entryID, err)
	}
	return nil
}

func decodeEntry(entry redis.XMessage) (Message, error) {
	subject, _ := entry.Values["subject"].(string)
	if subject == "" {
		return Message{}, fmt.Errorf("bus: entry %s missing subject", entry.ID)
	}
	body, _ := entry.Values["payload"].(string)

	var opID ids.OperationId
	if raw, ok := entry.Values["operation_id"].(string); ok && raw != "" {
		parsed, err := ids.ParseOperationId(raw)
		if err == nil {
			opID = parsed
		}
		// malformed/absent operation ids are handled by internal/opid at
		// the dispatch boundary, which mints a fresh one and logs a warning.
	}

	return Message{
		EntryID:     entry.ID,
		Subject:     subject,
		OperationID: opID,
		Body:        []byte(body),
	}, nil
}
