package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bursar/internal/workflow"
	"bursar/pkg/domain"
)

func TestRecorderAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := NewRecorder(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	actor := domain.NewActorID()
	err := rec.Record(ctx, workflow.AuditEvent{
		EventType:  "expenditure.verified",
		ActorID:    actor,
		ActorRole:  domain.RoleHOD,
		Entity:     "expenditure",
		EntityID:   domain.NewExpenditureID().String(),
		Previous:   "pending",
		Next:       "verified",
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	events := store.All()
	require.Len(t, events, 1)
	assert.NotEqual(t, uuid.Nil, events[0].ID, "every outbox row needs its own id for downstream dedup")
	assert.Equal(t, "expenditure.verified", events[0].EventType)
	assert.Equal(t, actor, events[0].ActorID)
}

func TestInMemoryStoreBatching(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ev := Event{ID: uuid.New(), EventType: "proposal.drafted", Entity: "proposal", EntityID: uuid.NewString()}
		require.NoError(t, store.Append(ctx, ev))
		ids = append(ids, ev.ID)
	}

	t.Run("NextBatch honors the limit in append order", func(t *testing.T) {
		batch, err := store.NextBatch(ctx, 3)
		require.NoError(t, err)
		require.Len(t, batch, 3)
		assert.Equal(t, ids[0], batch[0].ID)
		assert.Equal(t, ids[2], batch[2].ID)
	})

	t.Run("published events leave the queue", func(t *testing.T) {
		require.NoError(t, store.MarkPublished(ctx, ids[:3]))

		batch, err := store.NextBatch(ctx, 10)
		require.NoError(t, err)
		require.Len(t, batch, 2)
		assert.Equal(t, ids[3], batch[0].ID)
	})

	t.Run("marking twice is harmless", func(t *testing.T) {
		require.NoError(t, store.MarkPublished(ctx, ids))
		batch, err := store.NextBatch(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, batch)
	})
}

func TestListByEntity(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	target := uuid.NewString()
	require.NoError(t, store.Append(ctx, Event{ID: uuid.New(), Entity: "expenditure", EntityID: target, EventType: "expenditure.submitted"}))
	require.NoError(t, store.Append(ctx, Event{ID: uuid.New(), Entity: "expenditure", EntityID: uuid.NewString(), EventType: "expenditure.submitted"}))
	require.NoError(t, store.Append(ctx, Event{ID: uuid.New(), Entity: "proposal", EntityID: target, EventType: "proposal.drafted"}))

	events, err := store.ListByEntity(ctx, "expenditure", target)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "expenditure.submitted", events[0].EventType)
}
