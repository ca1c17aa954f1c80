package bus

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler processes one decoded ingress message. Returning an error
// leaves the entry unacknowledged in the consumer group's pending list;
// Fetch does not deliver it again.
type Handler func(ctx context.Context, msg Message) error

// Router dispatches ingress messages to the handler registered for
// their subject, per the §6.1 subject→command table.
type Router struct {
	handlers map[string]Handler
	log      *logrus.Logger
}

// NewRouter builds an empty Router.
func NewRouter(log *logrus.Logger) *Router {
	return &Router{handlers: make(map[string]Handler), log: log}
}

// Handle registers handler for subject.
func (r *Router) Handle(subject string, handler Handler) {
	r.handlers[subject] = handler
}

// Run polls consumer until ctx is cancelled, dispatching each fetched
// message and acknowledging it only once its handler succeeds.
func (r *Router) Run(ctx context.Context, consumer *Consumer, pollCount int64, pollBlock time.Duration) error {
	if err := consumer.EnsureGroup(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := consumer.Fetch(ctx, pollCount, pollBlock)
		if err != nil {
			r.log.WithError(err).Error("bus: fetch failed")
			continue
		}
		for _, msg := range msgs {
			handler, ok := r.handlers[msg.Subject]
			if !ok {
				r.log.WithField("subject", msg.Subject).Warn("bus: no handler registered, acking and dropping")
				consumer.Ack(ctx, msg.EntryID)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				r.log.WithError(err).WithField("subject", msg.Subject).Error("bus: handler failed, leaving entry unacked")
				continue
			}
			if err := consumer.Ack(ctx, msg.EntryID); err != nil {
				r.log.WithError(err).Error("bus: ack failed")
			}
		}
	}
}
