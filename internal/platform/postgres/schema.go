package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Statements are idempotent so repeated boots
// and test containers converge on the same layout.
//
// Constraints that carry workflow invariants:
//   - allocations unique key: CreateIfAbsent idempotency for proposal approval
//   - spent_amount is only ever touched by the conditional UPDATE in
//     internal/ledger, so the disallow-policy invariant holds row-locally
//   - unique original_* columns: at most one resubmission per record, enforced
//     by the database even under concurrent resubmit calls
//   - proposals partial unique index: at most one actionable proposal per
//     department and financial year
var schema = []string{
	`CREATE TABLE IF NOT EXISTS allocations (
		id                 UUID PRIMARY KEY,
		department_id      UUID NOT NULL,
		budget_head        TEXT NOT NULL,
		financial_year     TEXT NOT NULL,
		allocated_amount   NUMERIC(14,2) NOT NULL CHECK (allocated_amount >= 0),
		spent_amount       NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (spent_amount >= 0),
		status             TEXT NOT NULL DEFAULT 'active',
		source_proposal_id UUID,
		created_by         UUID NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (department_id, budget_head, financial_year)
	)`,

	`CREATE TABLE IF NOT EXISTS expenditures (
		id                      UUID PRIMARY KEY,
		department_id           UUID NOT NULL,
		budget_head             TEXT NOT NULL,
		financial_year          TEXT NOT NULL,
		event_date              DATE NOT NULL,
		purpose                 TEXT NOT NULL DEFAULT '',
		total_amount            NUMERIC(14,2) NOT NULL CHECK (total_amount >= 0),
		status                  TEXT NOT NULL,
		is_resubmission         BOOLEAN NOT NULL DEFAULT FALSE,
		original_expenditure_id UUID UNIQUE,
		submitted_by            UUID NOT NULL,
		created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS expenditure_items (
		id             BIGSERIAL PRIMARY KEY,
		expenditure_id UUID NOT NULL REFERENCES expenditures(id),
		position       INT NOT NULL,
		description    TEXT NOT NULL,
		amount         NUMERIC(14,2) NOT NULL CHECK (amount >= 0),
		attachment_ref TEXT NOT NULL DEFAULT '',
		UNIQUE (expenditure_id, position)
	)`,

	`CREATE TABLE IF NOT EXISTS proposals (
		id                   UUID PRIMARY KEY,
		department_id        UUID NOT NULL,
		financial_year       TEXT NOT NULL,
		total_proposed       NUMERIC(14,2) NOT NULL CHECK (total_proposed >= 0),
		status               TEXT NOT NULL,
		is_resubmission      BOOLEAN NOT NULL DEFAULT FALSE,
		original_proposal_id UUID UNIQUE,
		submitted_by         UUID NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS proposals_one_active_per_cycle
		ON proposals (department_id, financial_year)
		WHERE status NOT IN ('rejected', 'revised')`,

	`CREATE TABLE IF NOT EXISTS proposal_items (
		id              BIGSERIAL PRIMARY KEY,
		proposal_id     UUID NOT NULL REFERENCES proposals(id),
		position        INT NOT NULL,
		budget_head     TEXT NOT NULL,
		proposed_amount NUMERIC(14,2) NOT NULL CHECK (proposed_amount >= 0),
		justification   TEXT NOT NULL DEFAULT '',
		UNIQUE (proposal_id, position)
	)`,

	`CREATE TABLE IF NOT EXISTS proposal_reads (
		proposal_id UUID NOT NULL REFERENCES proposals(id),
		actor_id    UUID NOT NULL,
		read_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (proposal_id, actor_id)
	)`,

	`CREATE TABLE IF NOT EXISTS approval_steps (
		id          BIGSERIAL PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id   UUID NOT NULL,
		seq         INT NOT NULL,
		actor_id    UUID NOT NULL,
		actor_role  TEXT NOT NULL,
		decision    TEXT NOT NULL,
		remarks     TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (entity_type, entity_id, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS audit_outbox (
		id           UUID PRIMARY KEY,
		event_type   TEXT NOT NULL,
		payload      JSONB NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS audit_outbox_unpublished
		ON audit_outbox (created_at) WHERE published_at IS NULL`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
