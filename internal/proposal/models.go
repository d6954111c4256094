package proposal

import (
	"time"

	"github.com/shopspring/decimal"

	"bursar/internal/ledger"
	"bursar/pkg/domain"
)

// Status of an annual department budget request. Approved is terminal and
// creates one allocation per item; revised is terminal and non-actionable
// (the record was superseded by its resubmission).
type Status string

const (
	StatusDraft               Status = "draft"
	StatusSubmitted           Status = "submitted"
	StatusVerifiedByHOD       Status = "verified_by_hod"
	StatusVerifiedByPrincipal Status = "verified_by_principal"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
	StatusRevised             Status = "revised"
)

// Item requests funds for one budget head.
type Item struct {
	BudgetHead     domain.BudgetHead
	ProposedAmount decimal.Decimal
	Justification  string
}

// Proposal is one department's budget request for a financial year. At most
// one non-rejected proposal exists per (department, financialYear); the store
// enforces it. ReadBy lists approvers who opened the proposal — a
// precondition for approval.
type Proposal struct {
	ID             domain.ProposalID
	Department     domain.DepartmentID
	FinancialYear  domain.FinancialYear
	Items          []Item
	TotalProposed  decimal.Decimal
	Status         Status
	Steps          []domain.ApprovalStep
	ReadBy         []domain.ActorID
	IsResubmission bool
	OriginalID     *domain.ProposalID
	SubmittedBy    domain.ActorID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LedgerKey returns the allocation key one item would create.
func (p *Proposal) LedgerKey(item Item) ledger.Key {
	return ledger.Key{
		Department:    p.Department,
		BudgetHead:    item.BudgetHead,
		FinancialYear: p.FinancialYear,
	}
}

// HasRead reports whether the actor has opened the proposal.
func (p *Proposal) HasRead(actor domain.ActorID) bool {
	for _, id := range p.ReadBy {
		if id == actor {
			return true
		}
	}
	return false
}

// VerifiedByPrincipalOrVP is the fold predicate for the "first one wins" rule
// on the principal verification stage: it asks the log, not a separate flag,
// so the answer cannot drift from the steps actually recorded.
func (p *Proposal) VerifiedByPrincipalOrVP() bool {
	for _, step := range p.Steps {
		if step.Decision != domain.DecisionVerified {
			continue
		}
		if step.ActorRole == domain.RolePrincipal || step.ActorRole == domain.RoleVicePrincipal {
			return true
		}
	}
	return false
}

// TotalOf sums proposed amounts; the stored total is always derived.
func TotalOf(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.ProposedAmount)
	}
	return total
}

// DeriveStatus folds the approval log into the current status. A proposal
// with no steps is a draft.
func DeriveStatus(steps []domain.ApprovalStep) Status {
	status := StatusDraft
	for _, step := range steps {
		switch step.Decision {
		case domain.DecisionSubmitted:
			status = StatusSubmitted
		case domain.DecisionVerified:
			switch step.ActorRole {
			case domain.RoleHOD:
				status = StatusVerifiedByHOD
			case domain.RolePrincipal, domain.RoleVicePrincipal:
				status = StatusVerifiedByPrincipal
			}
		case domain.DecisionApproved:
			status = StatusApproved
		case domain.DecisionRejected:
			status = StatusRejected
		case domain.DecisionRevised:
			status = StatusRevised
		}
	}
	return status
}
