// Package audit persists the immutable trail of workflow events and ships it
// to the message broker through a transactional outbox. Writing to the outbox
// is the cheap, local part; a background worker drains it to Kafka so broker
// unavailability never blocks a transition.
package audit

import (
	"time"

	"github.com/google/uuid"

	"bursar/pkg/domain"
)

// Event is one trail entry. Previous and Next hold lifecycle states where the
// event is a transition; they are empty for reads and drafts.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	EventType  string         `json:"eventType"`
	ActorID    domain.ActorID `json:"actorId"`
	ActorRole  domain.Role    `json:"actorRole"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entityId"`
	Details    string         `json:"details,omitempty"`
	Previous   string         `json:"previous,omitempty"`
	Next       string         `json:"next,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}
