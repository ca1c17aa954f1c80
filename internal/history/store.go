// Package history is the supplemental audit trail: every committed
// connection-hub event, persisted to Postgres for later replay/
// diagnostics. It is not on the hot path of any command — it
// subscribes to the durable bus the same way any other consumer group
// would, batches, and flushes in one transaction per batch, adapting
// the teacher's Redis-queue-to-Postgres historian
// (cmd/db/historian.go) from a single fixed action shape to an
// arbitrary subject/payload event row.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRecord is one durable-bus entry as stored in the audit table.
type EventRecord struct {
	EntryID     string
	Subject     string
	OperationID string
	Payload     []byte
}

// Store owns the Postgres connection pool and the batched-insert SQL.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pgx pool against dsn.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the events table if it doesn't already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS connection_hub_events (
			entry_id     TEXT PRIMARY KEY,
			subject      TEXT NOT NULL,
			operation_id TEXT NOT NULL,
			payload      JSONB NOT NULL,
			recorded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("history: ensure schema: %w", err)
	}
	return nil
}

// InsertBatch persists every record in one transaction, matching the
// teacher's beginTxFunc-wrapped batch flush. A record whose entry_id
// already exists (redelivery after a crash between commit and ack) is
// skipped rather than duplicated.
func (s *Store) InsertBatch(ctx context.Context, records []EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		const q = `
			INSERT INTO connection_hub_events (entry_id, subject, operation_id, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (entry_id) DO NOTHING
		`
		for _, rec := range records {
			if _, err := tx.Exec(ctx, q, rec.EntryID, rec.Subject, rec.OperationID, rec.Payload); err != nil {
				return fmt.Errorf("insert event %s: %w", rec.EntryID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("history: insert batch: %w", err)
	}
	return nil
}
