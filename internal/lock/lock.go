// Package lock implements the per-entity advisory lock manager: a
// set-if-absent key with a bounded TTL and a short poll loop, exactly as
// described by the lock manager this is ported from. TTL bounds
// liveness on crash; polling trades latency for implementation
// simplicity, which is an acceptable trade at this system's scale.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/voidloop/connectionhub/internal/kv"
)

const pollInterval = 100 * time.Millisecond

const keyPrefix = "locks:"

// Manager issues per-request lock Requests against a shared KV store.
type Manager struct {
	store *kv.Store
	ttl   time.Duration
}

// New builds a Manager whose locks expire after ttl if never released.
func New(store *kv.Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// Request tracks every lock acquired during one command, so it can
// release them all together on commit or abort.
type Request struct {
	mgr  *Manager
	held map[string]struct{}
}

// NewRequest starts a fresh lock-tracking session for one command.
func (m *Manager) NewRequest() *Request {
	return &Request{mgr: m, held: make(map[string]struct{})}
}

// Acquire blocks until id is owned by this request, polling every
// pollInterval while another holder's TTL has not yet expired. A
// second acquire of an id already held by this request is a no-op
// (reentrant within one request).
func (r *Request) Acquire(ctx context.Context, id string) error {
	if _, ok := r.held[id]; ok {
		return nil
	}
	key := keyPrefix + id
	for {
		ok, err := r.mgr.store.SetIfAbsent(ctx, key, []byte{}, r.mgr.ttl)
		if err != nil {
			return fmt.Errorf("lock: acquire %q: %w", id, err)
		}
		if ok {
			r.held[id] = struct{}{}
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock: acquire %q: %w", id, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// ReleaseAll deletes every lock this request acquired. Called exactly
// once per commit and once per abort; safe to call on a request that
// acquired nothing.
func (r *Request) ReleaseAll(ctx context.Context) error {
	if len(r.held) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.held))
	for id := range r.held {
		keys = append(keys, keyPrefix+id)
	}
	if err := r.mgr.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("lock: release all: %w", err)
	}
	r.held = make(map[string]struct{})
	return nil
}
