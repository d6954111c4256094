package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store is the outbox. Append runs in the caller's context so an event
// written by a post-commit recorder lands durably even if the broker is down;
// the worker drains unpublished rows in order.
type Store interface {
	Append(ctx context.Context, event Event) error

	// NextBatch returns up to limit unpublished events, oldest first.
	NextBatch(ctx context.Context, limit int) ([]Event, error)

	// MarkPublished stamps the given events as shipped.
	MarkPublished(ctx context.Context, ids []uuid.UUID) error

	// ListByEntity returns the trail of one record, oldest first.
	ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error)
}
