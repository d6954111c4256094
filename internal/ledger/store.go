package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"bursar/pkg/domain"
)

// Store holds allocation records. Implementations must make TryDeduct a
// single atomic conditional update — never a read-then-write pair — because
// concurrent finalizations from different approver sessions are expected.
//
// Sentinel contract (pkg/platform/sentinel):
//   - TryDeduct returns ErrNotFound when no active allocation exists for the
//     key, and ErrDenied when the overspend condition fails at the moment of
//     the update. Neither mutates anything.
//   - Find returns ErrNotFound when the key is absent.
type Store interface {
	// TryDeduct increments spent by amount only if, under the disallow
	// policy, spent+amount <= allocated holds at update time.
	TryDeduct(ctx context.Context, key Key, amount decimal.Decimal, policy domain.OverspendPolicy) (*DeductResult, error)

	// CreateIfAbsent inserts the allocation unless one already exists for its
	// key. Reports whether a row was created; idempotent per key.
	CreateIfAbsent(ctx context.Context, alloc Allocation) (created bool, err error)

	// Find returns the allocation for a key.
	Find(ctx context.Context, key Key) (*Allocation, error)

	// ListByDepartment returns a department's allocations for a year.
	ListByDepartment(ctx context.Context, dept domain.DepartmentID, fy domain.FinancialYear) ([]Allocation, error)
}
