package proposal

import (
	"context"

	"bursar/pkg/domain"
)

// Store persists proposals, their items, approval logs, and read receipts.
//
// Sentinel contract (pkg/platform/sentinel):
//   - Get returns ErrNotFound for unknown ids.
//   - Create returns ErrAlreadyExists when another actionable proposal exists
//     for the same (department, financialYear), or when a resubmission for
//     the same original already exists.
//   - UpdateStatus returns ErrConflict when the row is no longer in `from`.
type Store interface {
	Create(ctx context.Context, p *Proposal) error
	Get(ctx context.Context, id domain.ProposalID) (*Proposal, error)
	UpdateStatus(ctx context.Context, id domain.ProposalID, from, to Status, step domain.ApprovalStep) error

	// MarkRead records that an approver opened the proposal. Idempotent.
	MarkRead(ctx context.Context, id domain.ProposalID, actor domain.ActorID) error

	// HasResubmission reports whether another proposal references id as its
	// original. Evaluated inside the resubmission transaction.
	HasResubmission(ctx context.Context, id domain.ProposalID) (bool, error)

	// ListByDepartment returns a department's proposals for a year.
	ListByDepartment(ctx context.Context, dept domain.DepartmentID, fy domain.FinancialYear) ([]Proposal, error)
}
