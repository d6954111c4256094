package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"bursar/pkg/domain"
	"bursar/pkg/platform/sentinel"
	txcontext "bursar/pkg/platform/tx"
)

// PostgresStore persists allocations in PostgreSQL. TryDeduct is one
// conditional UPDATE so the overspend check and the increment happen in the
// same statement; two concurrent finalizations cannot both pass a stale read.
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

// db returns the transaction from context when the coordinator opened one,
// so the deduction commits or rolls back with the rest of the transition.
func (s *PostgresStore) db(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

func (s *PostgresStore) TryDeduct(ctx context.Context, key Key, amount decimal.Decimal, policy domain.OverspendPolicy) (*DeductResult, error) {
	const query = `
		UPDATE allocations
		SET spent_amount = spent_amount + $1, updated_at = now()
		WHERE department_id = $2 AND budget_head = $3 AND financial_year = $4
		  AND status = 'active'
		  AND ($5::bool OR spent_amount + $1 <= allocated_amount)
		RETURNING spent_amount, allocated_amount
	`
	allowOverspend := policy == domain.OverspendAllow

	var result DeductResult
	err := s.db(ctx).QueryRow(ctx, query,
		amount,
		uuid.UUID(key.Department),
		key.BudgetHead.String(),
		key.FinancialYear.String(),
		allowOverspend,
	).Scan(&result.NewSpent, &result.Allocated)
	if err == nil {
		return &result, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("deduct from allocation: %w", err)
	}

	// No row updated: either the allocation is missing/closed or the
	// condition failed. Distinguish for the error taxonomy.
	var exists bool
	err = s.db(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM allocations
			WHERE department_id = $1 AND budget_head = $2 AND financial_year = $3
			  AND status = 'active'
		)
	`, uuid.UUID(key.Department), key.BudgetHead.String(), key.FinancialYear.String()).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check allocation existence: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrDenied
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, alloc Allocation) (bool, error) {
	if alloc.ID.IsNil() {
		alloc.ID = domain.NewAllocationID()
	}
	if alloc.Status == "" {
		alloc.Status = AllocationActive
	}

	var sourceProposal *uuid.UUID
	if alloc.SourceProposalID != nil {
		u := uuid.UUID(*alloc.SourceProposalID)
		sourceProposal = &u
	}

	const query = `
		INSERT INTO allocations (
			id, department_id, budget_head, financial_year,
			allocated_amount, spent_amount, status, source_proposal_id, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (department_id, budget_head, financial_year) DO NOTHING
	`
	tag, err := s.db(ctx).Exec(ctx, query,
		uuid.UUID(alloc.ID),
		uuid.UUID(alloc.Key.Department),
		alloc.Key.BudgetHead.String(),
		alloc.Key.FinancialYear.String(),
		alloc.AllocatedAmount,
		alloc.SpentAmount,
		string(alloc.Status),
		sourceProposal,
		uuid.UUID(alloc.CreatedBy),
	)
	if err != nil {
		return false, fmt.Errorf("insert allocation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Find(ctx context.Context, key Key) (*Allocation, error) {
	const query = `
		SELECT id, department_id, budget_head, financial_year,
		       allocated_amount, spent_amount, status, source_proposal_id,
		       created_by, created_at, updated_at
		FROM allocations
		WHERE department_id = $1 AND budget_head = $2 AND financial_year = $3
	`
	row := s.db(ctx).QueryRow(ctx, query,
		uuid.UUID(key.Department), key.BudgetHead.String(), key.FinancialYear.String())
	alloc, err := scanAllocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find allocation: %w", err)
	}
	return alloc, nil
}

func (s *PostgresStore) ListByDepartment(ctx context.Context, dept domain.DepartmentID, fy domain.FinancialYear) ([]Allocation, error) {
	const query = `
		SELECT id, department_id, budget_head, financial_year,
		       allocated_amount, spent_amount, status, source_proposal_id,
		       created_by, created_at, updated_at
		FROM allocations
		WHERE department_id = $1 AND financial_year = $2
		ORDER BY budget_head
	`
	rows, err := s.db(ctx).Query(ctx, query, uuid.UUID(dept), fy.String())
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		alloc, err := scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		out = append(out, *alloc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocations: %w", err)
	}
	return out, nil
}

func scanAllocation(row pgx.Row) (*Allocation, error) {
	var (
		alloc          Allocation
		id             uuid.UUID
		deptID         uuid.UUID
		budgetHead     string
		financialYear  string
		status         string
		sourceProposal *uuid.UUID
		createdBy      uuid.UUID
	)
	err := row.Scan(
		&id, &deptID, &budgetHead, &financialYear,
		&alloc.AllocatedAmount, &alloc.SpentAmount, &status, &sourceProposal,
		&createdBy, &alloc.CreatedAt, &alloc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	alloc.ID = domain.AllocationID(id)
	alloc.Key = Key{
		Department:    domain.DepartmentID(deptID),
		BudgetHead:    domain.BudgetHead(budgetHead),
		FinancialYear: domain.FinancialYear(financialYear),
	}
	alloc.Status = AllocationStatus(status)
	alloc.CreatedBy = domain.ActorID(createdBy)
	if sourceProposal != nil {
		pid := domain.ProposalID(*sourceProposal)
		alloc.SourceProposalID = &pid
	}
	return &alloc, nil
}
