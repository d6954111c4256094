package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the outbox in the same database as the workflow tables.
// Events are stored as JSONB so the row written here is byte-for-byte what
// the worker ships to the broker.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_outbox (id, event_type, payload)
		VALUES ($1, $2, $3)
	`, event.ID, event.EventType, payload)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) NextBatch(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load unpublished audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal audit event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE audit_outbox SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entity, entityID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM audit_outbox
		WHERE payload->>'entity' = $1 AND payload->>'entityId' = $2
		ORDER BY created_at
	`, entity, entityID)
	if err != nil {
		return nil, fmt.Errorf("load audit trail: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("unmarshal audit event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
