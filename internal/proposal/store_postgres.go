package proposal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	platformpg "bursar/internal/platform/postgres"
	"bursar/pkg/domain"
	"bursar/pkg/platform/sentinel"
	txcontext "bursar/pkg/platform/tx"
)

const entityType = "proposal"

// PostgresStore persists proposals, their items, approval log, and read
// receipts. The partial unique index proposals_one_active_per_cycle carries
// the one-actionable-proposal invariant; the unique original_proposal_id
// column carries the depth-one resubmission invariant.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) db(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

func (s *PostgresStore) Create(ctx context.Context, p *Proposal) error {
	var originalID *uuid.UUID
	if p.OriginalID != nil {
		u := uuid.UUID(*p.OriginalID)
		originalID = &u
	}

	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO proposals (
			id, department_id, financial_year, total_proposed, status,
			is_resubmission, original_proposal_id, submitted_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(p.ID),
		uuid.UUID(p.Department),
		p.FinancialYear.String(),
		p.TotalProposed,
		string(p.Status),
		p.IsResubmission,
		originalID,
		uuid.UUID(p.SubmittedBy),
	)
	if err != nil {
		if platformpg.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert proposal: %w", err)
	}

	for i, item := range p.Items {
		_, err := s.db(ctx).Exec(ctx, `
			INSERT INTO proposal_items (proposal_id, position, budget_head, proposed_amount, justification)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.UUID(p.ID), i+1, item.BudgetHead.String(), item.ProposedAmount, item.Justification)
		if err != nil {
			return fmt.Errorf("insert proposal item: %w", err)
		}
	}

	for _, step := range p.Steps {
		if err := s.appendStep(ctx, p.ID, step); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ProposalID) (*Proposal, error) {
	var (
		p         Proposal
		rowID     uuid.UUID
		deptID    uuid.UUID
		fy        string
		status    string
		origID    *uuid.UUID
		submitted uuid.UUID
	)
	err := s.db(ctx).QueryRow(ctx, `
		SELECT id, department_id, financial_year, total_proposed, status,
		       is_resubmission, original_proposal_id, submitted_by, created_at, updated_at
		FROM proposals
		WHERE id = $1
	`, uuid.UUID(id)).Scan(
		&rowID, &deptID, &fy, &p.TotalProposed, &status,
		&p.IsResubmission, &origID, &submitted, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find proposal: %w", err)
	}
	p.ID = domain.ProposalID(rowID)
	p.Department = domain.DepartmentID(deptID)
	p.FinancialYear = domain.FinancialYear(fy)
	p.Status = Status(status)
	p.SubmittedBy = domain.ActorID(submitted)
	if origID != nil {
		oid := domain.ProposalID(*origID)
		p.OriginalID = &oid
	}

	if p.Items, err = s.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if p.Steps, err = s.loadSteps(ctx, id); err != nil {
		return nil, err
	}
	if p.ReadBy, err = s.loadReads(ctx, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.ProposalID, from, to Status, step domain.ApprovalStep) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE proposals SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, string(to), uuid.UUID(id), string(from))
	if err != nil {
		return fmt.Errorf("update proposal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM proposals WHERE id = $1)`, uuid.UUID(id),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check proposal existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return s.appendStep(ctx, id, step)
}

func (s *PostgresStore) MarkRead(ctx context.Context, id domain.ProposalID, actor domain.ActorID) error {
	var exists bool
	if err := s.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM proposals WHERE id = $1)`, uuid.UUID(id),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check proposal existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO proposal_reads (proposal_id, actor_id)
		VALUES ($1, $2)
		ON CONFLICT (proposal_id, actor_id) DO NOTHING
	`, uuid.UUID(id), uuid.UUID(actor))
	if err != nil {
		return fmt.Errorf("record proposal read: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasResubmission(ctx context.Context, id domain.ProposalID) (bool, error) {
	var exists bool
	err := s.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM proposals WHERE original_proposal_id = $1)`,
		uuid.UUID(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check resubmission: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByDepartment(ctx context.Context, dept domain.DepartmentID, fy domain.FinancialYear) ([]Proposal, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id FROM proposals
		WHERE department_id = $1 AND financial_year = $2
		ORDER BY created_at
	`, uuid.UUID(dept), fy.String())
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var ids []domain.ProposalID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan proposal id: %w", err)
		}
		ids = append(ids, domain.ProposalID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}

	out := make([]Proposal, 0, len(ids))
	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *PostgresStore) appendStep(ctx context.Context, id domain.ProposalID, step domain.ApprovalStep) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO approval_steps (entity_type, entity_id, seq, actor_id, actor_role, decision, remarks, created_at)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM approval_steps WHERE entity_type = $1 AND entity_id = $2),
			$3, $4, $5, $6, $7)
	`, entityType, uuid.UUID(id),
		uuid.UUID(step.ActorID), string(step.ActorRole), string(step.Decision), step.Remarks, step.Timestamp)
	if err != nil {
		return fmt.Errorf("append approval step: %w", err)
	}
	return nil
}

func (s *PostgresStore) loadItems(ctx context.Context, id domain.ProposalID) ([]Item, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT budget_head, proposed_amount, justification
		FROM proposal_items WHERE proposal_id = $1 ORDER BY position
	`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("load proposal items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			item Item
			head string
		)
		if err := rows.Scan(&head, &item.ProposedAmount, &item.Justification); err != nil {
			return nil, fmt.Errorf("scan proposal item: %w", err)
		}
		item.BudgetHead = domain.BudgetHead(head)
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) loadSteps(ctx context.Context, id domain.ProposalID) ([]domain.ApprovalStep, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT seq, actor_id, actor_role, decision, remarks, created_at
		FROM approval_steps
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY seq
	`, entityType, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("load approval steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.ApprovalStep
	for rows.Next() {
		var (
			step    domain.ApprovalStep
			actorID uuid.UUID
			role    string
			dec     string
		)
		if err := rows.Scan(&step.Seq, &actorID, &role, &dec, &step.Remarks, &step.Timestamp); err != nil {
			return nil, fmt.Errorf("scan approval step: %w", err)
		}
		step.ActorID = domain.ActorID(actorID)
		step.ActorRole = domain.Role(role)
		step.Decision = domain.Decision(dec)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (s *PostgresStore) loadReads(ctx context.Context, id domain.ProposalID) ([]domain.ActorID, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT actor_id FROM proposal_reads WHERE proposal_id = $1 ORDER BY read_at
	`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("load proposal reads: %w", err)
	}
	defer rows.Close()

	var readers []domain.ActorID
	for rows.Next() {
		var actorID uuid.UUID
		if err := rows.Scan(&actorID); err != nil {
			return nil, fmt.Errorf("scan proposal read: %w", err)
		}
		readers = append(readers, domain.ActorID(actorID))
	}
	return readers, rows.Err()
}
