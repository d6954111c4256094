package workflow

import (
	"github.com/shopspring/decimal"

	"bursar/internal/expenditure"
	"bursar/internal/ledger"
	"bursar/internal/proposal"
	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
)

// EntityType names the two lifecycles the coordinator drives.
type EntityType string

const (
	EntityExpenditure EntityType = "expenditure"
	EntityProposal    EntityType = "proposal"
)

// ParseEntityType validates a path segment from the transport layer.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case EntityExpenditure, EntityProposal:
		return EntityType(s), nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown entity type "+s)
	}
}

// Payload carries the caller-supplied parts of a transition request beyond
// the action itself.
type Payload struct {
	// Remarks annotate the approval step. Mandatory for rejections.
	Remarks string

	// Overrides replaces proposed amounts per budget head when a proposal is
	// approved. Heads absent from the map keep their proposed amount.
	Overrides map[domain.BudgetHead]decimal.Decimal

	// Replacement content for resubmissions. Empty slices reuse the
	// original's items unchanged.
	ExpenditureItems []expenditure.LineItem
	ProposalItems    []proposal.Item
}

// LedgerEffect reports the one ledger mutation a finalization performed, as
// observed inside the atomic update.
type LedgerEffect struct {
	Key       ledger.Key
	Deducted  decimal.Decimal
	NewSpent  decimal.Decimal
	Remaining decimal.Decimal
}

// Advisory is the non-binding admissibility check run at expenditure
// submission. It informs the submitter; it never blocks the submission, and
// finalization re-checks atomically regardless of what it said.
type Advisory struct {
	AllocationFound bool
	Remaining       decimal.Decimal
	Admissible      bool
}

// Result describes a committed unit of work.
type Result struct {
	Entity EntityType
	ID     string
	Status string
	Step   *domain.ApprovalStep

	// LedgerEffect is set only by expenditure finalization.
	LedgerEffect *LedgerEffect

	// CreatedAllocations lists allocations a proposal approval opened.
	CreatedAllocations []ledger.Key

	// ChildID is the replacement record a resubmission created.
	ChildID string

	// Advisory is set only by expenditure submission.
	Advisory *Advisory

	Warnings []string

	intents []intent
}

type intentKind string

const (
	intentAudit                intentKind = "audit"
	intentNotifySubmission     intentKind = "notify_submission"
	intentNotifyDecision       intentKind = "notify_decision"
	intentNotifyNearExhaustion intentKind = "notify_near_exhaustion"
)

// intent is a side effect queued during the transaction and delivered only
// after commit. Failed transitions deliver nothing.
type intent struct {
	kind intentKind

	audit AuditEvent

	entity     EntityType
	entityID   string
	department domain.DepartmentID
	decision   domain.Decision
	remarks    string

	key       ledger.Key
	remaining decimal.Decimal
	allocated decimal.Decimal
}
