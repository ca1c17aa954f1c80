package history

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voidloop/connectionhub/internal/bus"
)

const consumerGroup = "connection_hub_history"

// Service drains the egress bus under its own durable consumer group
// and flushes accumulated events to Postgres on a batch-size-or-timer
// trigger, same shape as the teacher's HistorianService.
type Service struct {
	store      *Store
	consumer   *bus.Consumer
	log        *logrus.Logger
	batchSize  int
	flushEvery time.Duration

	mu       sync.Mutex
	pending  []EventRecord
	entryIDs []string
}

// NewService builds a Service that reads the egress stream through
// consumer, inserting records in batches of up to batchSize and flushing
// at least every flushEvery.
func NewService(store *Store, consumer *bus.Consumer, log *logrus.Logger, batchSize int, flushEvery time.Duration) *Service {
	return &Service{
		store:      store,
		consumer:   consumer,
		log:        log,
		batchSize:  batchSize,
		flushEvery: flushEvery,
	}
}

// Run polls the egress stream until ctx is cancelled, batching and
// flushing as records accumulate.
func (s *Service) Run(ctx context.Context) error {
	if err := s.consumer.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(ctx)
			return nil
		case <-ticker.C:
			s.flush(ctx)
		default:
			msgs, err := s.consumer.Fetch(ctx, int64(s.batchSize), 2*time.Second)
			if err != nil {
				s.log.WithError(err).Error("history: fetch failed")
				continue
			}
			for _, msg := range msgs {
				s.append(msg)
			}
			if s.len() >= s.batchSize {
				s.flush(ctx)
			}
		}
	}
}

func (s *Service) append(msg bus.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, EventRecord{
		EntryID:     msg.EntryID,
		Subject:     msg.Subject,
		OperationID: msg.OperationID.String(),
		Payload:     msg.Body,
	})
	s.entryIDs = append(s.entryIDs, msg.EntryID)
}

func (s *Service) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Service) flush(ctx context.Context) {
	s.mu.Lock()
	records := s.pending
	entryIDs := s.entryIDs
	s.pending = nil
	s.entryIDs = nil
	s.mu.Unlock()

	if len(records) == 0 {
		return
	}

	if err := s.store.InsertBatch(ctx, records); err != nil {
		s.log.WithError(err).Error("history: flush failed, leaving batch unacked")
		return
	}
	for _, id := range entryIDs {
		if err := s.consumer.Ack(ctx, id); err != nil {
			s.log.WithError(err).WithField("entry_id", id).Error("history: ack failed")
		}
	}
	s.log.WithField("count", len(records)).Info("history: flushed batch")
}
