package expenditure

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

const entityType = "expenditure"

// PostgresStore persists expenditures, their line items, and their approval
// log. Mutations are expected to run inside the coordinator's transaction.
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

func (s *PostgresStore) Create(ctx context.Context, e *Expenditure) error {
	var originalID *uuid.UUID
	if e.OriginalID != nil {
		u := uuid.UUID(*e.OriginalID)
		originalID = &u
	}

	const insertExpenditure = `
		INSERT INTO expenditures (
			id, department_id, budget_head, financial_year, event_date, purpose,
			total_amount, status, is_resubmission, original_expenditure_id, submitted_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db(ctx).Exec(ctx, insertExpenditure,
		uuid.UUID(e.ID),
		uuid.UUID(e.Department),
		e.BudgetHead.String(),
		e.FinancialYear.String(),
		e.EventDate,
		e.Purpose,
		e.TotalAmount,
		string(e.Status),
		e.IsResubmission,
		originalID,
		uuid.UUID(e.SubmittedBy),
	)
	if err != nil {
		// The unique index on original_expenditure_id is what makes two
		// concurrent resubmissions produce exactly one child.
		if platformpg.IsUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert expenditure: %w", err)
	}

	for i, item := range e.Items {
		_, err := s.db(ctx).Exec(ctx, `
			INSERT INTO expenditure_items (expenditure_id, position, description, amount, attachment_ref)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.UUID(e.ID), i+1, item.Description, item.Amount, item.AttachmentRef)
		if err != nil {
			return fmt.Errorf("insert expenditure item: %w", err)
		}
	}

	for _, step := range e.Steps {
		if err := s.appendStep(ctx, e.ID, step); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ExpenditureID) (*Expenditure, error) {
	const query = `
		SELECT id, department_id, budget_head, financial_year, event_date, purpose,
		       total_amount, status, is_resubmission, original_expenditure_id,
		       submitted_by, created_at, updated_at
		FROM expenditures
		WHERE id = $1
	`
	var (
		e          Expenditure
		rowID      uuid.UUID
		deptID     uuid.UUID
		budgetHead string
		fy         string
		status     string
		origID     *uuid.UUID
		submitted  uuid.UUID
	)
	err := s.db(ctx).QueryRow(ctx, query, uuid.UUID(id)).Scan(
		&rowID, &deptID, &budgetHead, &fy, &e.EventDate, &e.Purpose,
		&e.TotalAmount, &status, &e.IsResubmission, &origID,
		&submitted, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find expenditure: %w", err)
	}
	e.ID = domain.ExpenditureID(rowID)
	e.Department = domain.DepartmentID(deptID)
	e.BudgetHead = domain.BudgetHead(budgetHead)
	e.FinancialYear = domain.FinancialYear(fy)
	e.Status = Status(status)
	e.SubmittedBy = domain.ActorID(submitted)
	if origID != nil {
		oid := domain.ExpenditureID(*origID)
		e.OriginalID = &oid
	}

	if e.Items, err = s.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if e.Steps, err = s.loadSteps(ctx, id); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.ExpenditureID, from, to Status, step domain.ApprovalStep) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE expenditures SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, string(to), uuid.UUID(id), string(from))
	if err != nil {
		return fmt.Errorf("update expenditure status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM expenditures WHERE id = $1)`, uuid.UUID(id),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check expenditure existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return s.appendStep(ctx, id, step)
}

func (s *PostgresStore) HasResubmission(ctx context.Context, id domain.ExpenditureID) (bool, error) {
	var exists bool
	err := s.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM expenditures WHERE original_expenditure_id = $1)`,
		uuid.UUID(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check resubmission: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByDepartment(ctx context.Context, dept domain.DepartmentID, fy domain.FinancialYear) ([]Expenditure, error) {
	const query = `
		SELECT id FROM expenditures
		WHERE department_id = $1 AND financial_year = $2
		ORDER BY created_at
	`
	rows, err := s.db(ctx).Query(ctx, query, uuid.UUID(dept), fy.String())
	if err != nil {
		return nil, fmt.Errorf("list expenditures: %w", err)
	}
	defer rows.Close()

	var ids []domain.ExpenditureID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expenditure id: %w", err)
		}
		ids = append(ids, domain.ExpenditureID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenditures: %w", err)
	}

	out := make([]Expenditure, 0, len(ids))
	for _, id := range ids {
		e, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *PostgresStore) appendStep(ctx context.Context, id domain.ExpenditureID, step domain.ApprovalStep) error {
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

func (s *PostgresStore) loadItems(ctx context.Context, id domain.ExpenditureID) ([]LineItem, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT description, amount, attachment_ref
		FROM expenditure_items WHERE expenditure_id = $1 ORDER BY position
	`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("load expenditure items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.Description, &item.Amount, &item.AttachmentRef); err != nil {
			return nil, fmt.Errorf("scan expenditure item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) loadSteps(ctx context.Context, id domain.ExpenditureID) ([]domain.ApprovalStep, error) {
	return loadApprovalSteps(ctx, s.db(ctx), entityType, uuid.UUID(id))
}

// Both entity types keep their logs in the same append-only table, keyed by
// entity_type.
func loadApprovalSteps(ctx context.Context, db querier, entity string, id uuid.UUID) ([]domain.ApprovalStep, error) {
	rows, err := db.Query(ctx, `
		SELECT seq, actor_id, actor_role, decision, remarks, created_at
		FROM approval_steps
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY seq
	`, entity, id)
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
