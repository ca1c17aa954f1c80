// Package command implements the eleven command processors: the
// orchestration layer that loads an aggregate under lock, applies a
// pure domain transition, persists it, (un)schedules tasks, and fans
// out events and realtime publications. Every processor follows the
// nine-step skeleton; this file holds what they share.
package command

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voidloop/connectionhub/internal/events"
	"github.com/voidloop/connectionhub/internal/kv"
	"github.com/voidloop/connectionhub/internal/lock"
	"github.com/voidloop/connectionhub/internal/mapper"
	"github.com/voidloop/connectionhub/internal/realtime"
	"github.com/voidloop/connectionhub/internal/scheduler"
)

// Deps are the collaborators every processor shares, analogous to the
// source's per-request DI container but constructed explicitly once at
// the consumer boundary and passed down.
type Deps struct {
	Store     *kv.Store
	Locks     *lock.Manager
	Lobbies   *mapper.LobbyMapper
	Games     *mapper.GameMapper
	Scheduler *scheduler.Scheduler
	Events    events.Publisher
	Realtime  *realtime.Client
	Log       *logrus.Logger

	PresenceGraceWindow time.Duration // 15s: RemoveFromLobby/DisconnectFromGame deadline
}

// Processors bundles every command processor behind the Deps they
// share.
type Processors struct {
	d *Deps
}

// New builds a Processors bundle.
func New(d *Deps) *Processors { return &Processors{d: d} }

// unitOfWork is one command's lock tracking + KV pipeline, committed or
// discarded together at step 9.
type unitOfWork struct {
	locks *lock.Request
	pipe  *kv.Pipeline
}

func (p *Processors) begin() *unitOfWork {
	return &unitOfWork{
		locks: p.d.Locks.NewRequest(),
		pipe:  p.d.Store.Pipeline(),
	}
}

// commit flushes the pipeline then releases every lock, regardless of
// whether the commit succeeded — release_all runs exactly once per
// request, on commit or abort alike.
func (u *unitOfWork) commit(ctx context.Context) error {
	commitErr := u.pipe.Commit(ctx)
	releaseErr := u.locks.ReleaseAll(ctx)
	if commitErr != nil {
		return commitErr
	}
	return releaseErr
}

// abort discards pending writes and releases any locks taken so far.
func (u *unitOfWork) abort(ctx context.Context) {
	u.pipe.Discard()
	u.locks.ReleaseAll(ctx)
}
