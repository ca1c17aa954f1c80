// Package kv wraps the Redis client in the narrow operation set the
// connection hub's core actually needs: get, set, set-if-absent,
// delete, pattern scan, and pipelined commits. Lock manager, data
// mappers, task scheduler, and durable bus all build on top of this
// (or, where they need Redis features this interface doesn't expose —
// sorted sets, streams — take the underlying client directly, the way
// the teacher exposes a single package-level *redis.Client).
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Store is a thin, request-shareable wrapper around a *redis.Client.
type Store struct {
	rdb *redis.Client
	log *logrus.Logger
}

// Connect dials Redis and verifies connectivity with a Ping, mirroring
// the teacher's ConnectRedis bootstrap.
func Connect(ctx context.Context, addr string, db int, log *logrus.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kv: connect to redis at %s: %w", addr, err)
	}
	log.WithField("addr", addr).Info("connected to redis")
	return &Store{rdb: rdb, log: log}, nil
}

// Client exposes the underlying *redis.Client for packages (lock,
// scheduler, bus) that need Redis features — sorted sets, streams,
// consumer groups — outside this narrow KV contract.
func (s *Store) Client() *redis.Client { return s.rdb }

// Get returns the value for key, or ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return b, nil
}

// Set writes key unconditionally, with an optional TTL (zero means no
// expiry).
func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	}
	return nil
}

// SetIfAbsent atomically sets key only if it does not already exist,
// reporting whether the write happened. Used by the lock manager.
func (s *Store) SetIfAbsent(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, val, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("kv: setnx %q: %w", key, err)
	}
	return ok, nil
}

// Delete removes the given keys. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("kv: delete %v: %w", keys, err)
	}
	return nil
}

// Scan returns every key matching pattern, iterating with the cursor
// based SCAN command rather than KEYS so it never blocks the server.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("kv: scan %q: %w", pattern, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	return keys, nil
}

// Pipeline accumulates writes for an atomic, all-or-nothing commit at
// the end of one request — the "pipeline flush" in the command
// processor skeleton's step 9.
type Pipeline struct {
	pipe redis.Pipeliner
}

// Pipeline starts a new accumulator. Nothing is sent to Redis until
// Commit is called.
func (s *Store) Pipeline() *Pipeline {
	return &Pipeline{pipe: s.rdb.TxPipeline()}
}

// Set queues an unconditional write.
func (p *Pipeline) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	p.pipe.Set(ctx, key, val, ttl)
}

// Delete queues a deletion. A no-op target key is fine; Redis ignores
// deletes of keys that don't exist.
func (p *Pipeline) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	p.pipe.Del(ctx, keys...)
}

// Commit flushes every queued operation atomically. An empty pipeline
// commits as a no-op.
func (p *Pipeline) Commit(ctx context.Context) error {
	if _, err := p.pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("kv: pipeline commit: %w", err)
	}
	return nil
}

// Discard abandons every queued operation without sending anything.
// Safe to call even if Commit already ran.
func (p *Pipeline) Discard() {
	p.pipe.Discard()
}
