package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"bursar/pkg/domain"
)

// AllocationStatus marks whether an allocation still accepts deductions.
type AllocationStatus string

const (
	AllocationActive AllocationStatus = "active"
	AllocationClosed AllocationStatus = "closed"
)

// Key identifies one allocation. Both state machines look allocations up by
// this key; it is the only coupling between expenditures and proposals.
type Key struct {
	Department    domain.DepartmentID
	BudgetHead    domain.BudgetHead
	FinancialYear domain.FinancialYear
}

// Allocation tracks allocated vs. spent funds for one department, budget
// head, and financial year. SpentAmount is mutated only by the store's
// atomic increment; it is monotonically non-decreasing. Allocations are never
// deleted, only superseded by the next financial year's record.
type Allocation struct {
	ID               domain.AllocationID
	Key              Key
	AllocatedAmount  decimal.Decimal
	SpentAmount      decimal.Decimal
	Status           AllocationStatus
	SourceProposalID *domain.ProposalID
	CreatedBy        domain.ActorID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Remaining returns allocated minus spent. Negative under the allow policy.
func (a Allocation) Remaining() decimal.Decimal {
	return a.AllocatedAmount.Sub(a.SpentAmount)
}

// DeductResult reports the ledger state immediately after a successful
// deduction, as observed inside the atomic update.
type DeductResult struct {
	NewSpent  decimal.Decimal
	Allocated decimal.Decimal
}

// Remaining returns the headroom left after the deduction.
func (r DeductResult) Remaining() decimal.Decimal {
	return r.Allocated.Sub(r.NewSpent)
}
