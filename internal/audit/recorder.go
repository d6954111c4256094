package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"bursar/internal/workflow"
)

// Recorder adapts the outbox to the coordinator's sink port. Each recorded
// event gets its identity here so retried deliveries stay deduplicable
// downstream.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, event workflow.AuditEvent) error {
	ev := Event{
		ID:         uuid.New(),
		EventType:  event.EventType,
		ActorID:    event.ActorID,
		ActorRole:  event.ActorRole,
		Entity:     event.Entity,
		EntityID:   event.EntityID,
		Details:    event.Details,
		Previous:   event.Previous,
		Next:       event.Next,
		OccurredAt: event.OccurredAt,
	}
	if err := r.store.Append(ctx, ev); err != nil {
		r.logger.Error("append audit event", "eventType", ev.EventType, "error", err)
		return err
	}
	return nil
}
