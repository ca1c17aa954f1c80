// Package scheduler implements deferred tasks with deterministic,
// replace-on-reschedule ids on top of a Redis sorted set (deadlines as
// scores) plus a companion hash (task payloads). This is the same
// poll-then-pop shape an idle-timeout worker uses against its own
// sorted sets, generalized to a named-kind payload instead of a single
// fixed event type.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	zsetKey = "scheduled_tasks"
	hashKey = "scheduled_tasks:payload"
)

// Task is a due, dequeued unit of work: its kind and a kind-specific
// JSON payload (entity ids, operation id) the executor decodes.
type Task struct {
	ID      string
	Kind    string
	Payload json.RawMessage
}

type storedPayload struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Scheduler manages the deferred-task sorted set.
type Scheduler struct {
	rdb *redis.Client
}

// New builds a Scheduler against rdb.
func New(rdb *redis.Client) *Scheduler {
	return &Scheduler{rdb: rdb}
}

// Schedule upserts a task by id: rescheduling the same id replaces its
// deadline and payload rather than creating a duplicate.
func (s *Scheduler) Schedule(ctx context.Context, id, kind string, deadline time.Time, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("scheduler: marshal payload for %q: %w", id, err)
	}
	stored, err := json.Marshal(storedPayload{Kind: kind, Payload: payloadJSON})
	if err != nil {
		return fmt.Errorf("scheduler: marshal stored payload for %q: %w", id, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, zsetKey, redis.Z{Score: float64(deadline.Unix()), Member: id})
	pipe.HSet(ctx, hashKey, id, stored)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler: schedule %q: %w", id, err)
	}
	return nil
}

// ScheduleInput is one entry of a ScheduleMany batch.
type ScheduleInput struct {
	ID       string
	Kind     string
	Deadline time.Time
	Payload  any
}

// ScheduleMany schedules every input, vectorized into one round trip.
func (s *Scheduler) ScheduleMany(ctx context.Context, inputs []ScheduleInput) error {
	if len(inputs) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	for _, in := range inputs {
		payloadJSON, err := json.Marshal(in.Payload)
		if err != nil {
			return fmt.Errorf("scheduler: marshal payload for %q: %w", in.ID, err)
		}
		stored, err := json.Marshal(storedPayload{Kind: in.Kind, Payload: payloadJSON})
		if err != nil {
			return fmt.Errorf("scheduler: marshal stored payload for %q: %w", in.ID, err)
		}
		pipe.ZAdd(ctx, zsetKey, redis.Z{Score: float64(in.Deadline.Unix()), Member: in.ID})
		pipe.HSet(ctx, hashKey, in.ID, stored)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler: schedule many: %w", err)
	}
	return nil
}

// Unschedule removes a task by id. Removing a missing id is a no-op.
func (s *Scheduler) Unschedule(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, zsetKey, id)
	pipe.HDel(ctx, hashKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler: unschedule %q: %w", id, err)
	}
	return nil
}

// UnscheduleMany removes every id, vectorized.
func (s *Scheduler) UnscheduleMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, zsetKey, id)
		pipe.HDel(ctx, hashKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("scheduler: unschedule many: %w", err)
	}
	return nil
}

// Due pops every task whose deadline is <= now, removing each from the
// sorted set as it's claimed (ZRem's return count makes the claim
// race-safe across multiple poller instances) and resolving its stored
// payload.
func (s *Scheduler) Due(ctx context.Context, now time.Time) ([]Task, error) {
	members, err := s.rdb.ZRangeByScore(ctx, zsetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduler: fetch due tasks: %w", err)
	}

	var tasks []Task
	for _, id := range members {
		removed, err := s.rdb.ZRem(ctx, zsetKey, id).Result()
		if err != nil {
			return tasks, fmt.Errorf("scheduler: claim %q: %w", id, err)
		}
		if removed == 0 {
			// another poller already claimed it
			continue
		}

		raw, err := s.rdb.HGet(ctx, hashKey, id).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return tasks, fmt.Errorf("scheduler: load payload %q: %w", id, err)
		}
		s.rdb.HDel(ctx, hashKey, id)

		var sp storedPayload
		if err := json.Unmarshal([]byte(raw), &sp); err != nil {
			return tasks, fmt.Errorf("scheduler: decode payload %q: %w", id, err)
		}
		tasks = append(tasks, Task{ID: id, Kind: sp.Kind, Payload: sp.Payload})
	}
	return tasks, nil
}
