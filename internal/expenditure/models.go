package expenditure

import (
	"time"

	"github.com/shopspring/decimal"

	"bursar/internal/ledger"
	"bursar/pkg/domain"
)

// Status of an event-based spending request. Advances strictly forward except
// the reject exit; finalized is terminal and triggers the one ledger mutation
// in the expenditure's lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerified  Status = "verified"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusFinalized Status = "finalized"
)

// LineItem is one priced entry of an expenditure. AttachmentRef is an opaque
// blob reference; the engine never inspects contents, only that the reference
// resolves.
type LineItem struct {
	Description   string
	Amount        decimal.Decimal
	AttachmentRef string
}

// Expenditure is one event-based spending request. TotalAmount is recomputed
// from the line items at creation and immutable afterwards. Steps is the
// append-only approval log; Status is derivable from it (DeriveStatus) and
// persisted alongside for querying.
type Expenditure struct {
	ID             domain.ExpenditureID
	Department     domain.DepartmentID
	BudgetHead     domain.BudgetHead
	FinancialYear  domain.FinancialYear
	EventDate      time.Time
	Purpose        string
	Items          []LineItem
	TotalAmount    decimal.Decimal
	Status         Status
	Steps          []domain.ApprovalStep
	IsResubmission bool
	OriginalID     *domain.ExpenditureID
	SubmittedBy    domain.ActorID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LedgerKey is the allocation this expenditure charges against.
func (e *Expenditure) LedgerKey() ledger.Key {
	return ledger.Key{
		Department:    e.Department,
		BudgetHead:    e.BudgetHead,
		FinancialYear: e.FinancialYear,
	}
}

// TotalOf sums line-item amounts. Client-supplied totals are never trusted.
func TotalOf(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}

// DeriveStatus folds the approval log into the current status. The log is the
// source of truth; the stored status column is a projection of this fold.
func DeriveStatus(steps []domain.ApprovalStep) Status {
	status := StatusPending
	for _, step := range steps {
		switch step.Decision {
		case domain.DecisionSubmitted:
			status = StatusPending
		case domain.DecisionVerified:
			status = StatusVerified
		case domain.DecisionApproved:
			status = StatusApproved
		case domain.DecisionRejected:
			status = StatusRejected
		case domain.DecisionFinalized:
			status = StatusFinalized
		}
	}
	return status
}
