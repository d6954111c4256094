package expenditure

import (
	"context"

	"bursar/pkg/domain"
)

// Store persists expenditures and their approval logs.
//
// Sentinel contract (pkg/platform/sentinel):
//   - Get returns ErrNotFound for unknown ids.
//   - UpdateStatus returns ErrConflict when the row is no longer in `from`
//     (a concurrent transition won).
//   - Create returns ErrAlreadyExists when a resubmission for the same
//     original already exists.
type Store interface {
	// Create inserts a new expenditure together with its submission step.
	Create(ctx context.Context, e *Expenditure) error

	// Get loads an expenditure including its full approval log.
	Get(ctx context.Context, id domain.ExpenditureID) (*Expenditure, error)

	// UpdateStatus moves the expenditure from one status to another and
	// appends exactly one approval step, as a single conditional update.
	UpdateStatus(ctx context.Context, id domain.ExpenditureID, from, to Status, step domain.ApprovalStep) error

	// HasResubmission reports whether another record already references id as
	// its original. Evaluated inside the same transaction as the child
	// creation by the resubmission governor.
	HasResubmission(ctx context.Context, id domain.ExpenditureID) (bool, error)

	// ListByDepartment returns a department's expenditures for a year.
	ListByDepartment(ctx context.Context, dept domain.DepartmentID, fy domain.FinancialYear) ([]Expenditure, error)
}
