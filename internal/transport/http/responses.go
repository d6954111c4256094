package transporthttp

import (
	"time"

	"bursar/internal/audit"
	"bursar/internal/expenditure"
	"bursar/internal/ledger"
	"bursar/internal/proposal"
	"bursar/internal/workflow"
	"bursar/pkg/domain"
)

type stepResponse struct {
	Seq       int       `json:"seq"`
	ActorID   string    `json:"actorId"`
	ActorRole string    `json:"actorRole"`
	Decision  string    `json:"decision"`
	Remarks   string    `json:"remarks,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func toStepResponse(s domain.ApprovalStep) stepResponse {
	return stepResponse{
		Seq:       s.Seq,
		ActorID:   s.ActorID.String(),
		ActorRole: string(s.ActorRole),
		Decision:  string(s.Decision),
		Remarks:   s.Remarks,
		Timestamp: s.Timestamp,
	}
}

func toStepResponses(steps []domain.ApprovalStep) []stepResponse {
	out := make([]stepResponse, 0, len(steps))
	for _, s := range steps {
		out = append(out, toStepResponse(s))
	}
	return out
}

type allocationKeyResponse struct {
	Department    string `json:"department"`
	BudgetHead    string `json:"budgetHead"`
	FinancialYear string `json:"financialYear"`
}

func toKeyResponse(k ledger.Key) allocationKeyResponse {
	return allocationKeyResponse{
		Department:    k.Department.String(),
		BudgetHead:    k.BudgetHead.String(),
		FinancialYear: k.FinancialYear.String(),
	}
}

type ledgerEffectResponse struct {
	Key       allocationKeyResponse `json:"key"`
	Deducted  string                `json:"deducted"`
	NewSpent  string                `json:"newSpent"`
	Remaining string                `json:"remaining"`
}

type advisoryResponse struct {
	AllocationFound bool   `json:"allocationFound"`
	Remaining       string `json:"remaining,omitempty"`
	Admissible      bool   `json:"admissible"`
}

type resultResponse struct {
	Entity             string                  `json:"entity"`
	ID                 string                  `json:"id"`
	Status             string                  `json:"status"`
	Step               *stepResponse           `json:"step,omitempty"`
	LedgerEffect       *ledgerEffectResponse   `json:"ledgerEffect,omitempty"`
	CreatedAllocations []allocationKeyResponse `json:"createdAllocations,omitempty"`
	ChildID            string                  `json:"childId,omitempty"`
	Advisory           *advisoryResponse       `json:"advisory,omitempty"`
	Warnings           []string                `json:"warnings,omitempty"`
}

func toResultResponse(res *workflow.Result) resultResponse {
	out := resultResponse{
		Entity:   string(res.Entity),
		ID:       res.ID,
		Status:   res.Status,
		ChildID:  res.ChildID,
		Warnings: res.Warnings,
	}
	if res.Step != nil {
		step := toStepResponse(*res.Step)
		out.Step = &step
	}
	if res.LedgerEffect != nil {
		out.LedgerEffect = &ledgerEffectResponse{
			Key:       toKeyResponse(res.LedgerEffect.Key),
			Deducted:  res.LedgerEffect.Deducted.String(),
			NewSpent:  res.LedgerEffect.NewSpent.String(),
			Remaining: res.LedgerEffect.Remaining.String(),
		}
	}
	for _, k := range res.CreatedAllocations {
		out.CreatedAllocations = append(out.CreatedAllocations, toKeyResponse(k))
	}
	if res.Advisory != nil {
		adv := &advisoryResponse{
			AllocationFound: res.Advisory.AllocationFound,
			Admissible:      res.Advisory.Admissible,
		}
		if res.Advisory.AllocationFound {
			adv.Remaining = res.Advisory.Remaining.String()
		}
		out.Advisory = adv
	}
	return out
}

type lineItemResponse struct {
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	AttachmentRef string `json:"attachmentRef,omitempty"`
}

type expenditureResponse struct {
	ID             string             `json:"id"`
	Department     string             `json:"department"`
	BudgetHead     string             `json:"budgetHead"`
	FinancialYear  string             `json:"financialYear"`
	EventDate      string             `json:"eventDate"`
	Purpose        string             `json:"purpose"`
	Items          []lineItemResponse `json:"items"`
	TotalAmount    string             `json:"totalAmount"`
	Status         string             `json:"status"`
	Steps          []stepResponse     `json:"steps"`
	IsResubmission bool               `json:"isResubmission"`
	OriginalID     string             `json:"originalId,omitempty"`
	SubmittedBy    string             `json:"submittedBy"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func toExpenditureResponse(e *expenditure.Expenditure) expenditureResponse {
	out := expenditureResponse{
		ID:             e.ID.String(),
		Department:     e.Department.String(),
		BudgetHead:     e.BudgetHead.String(),
		FinancialYear:  e.FinancialYear.String(),
		EventDate:      e.EventDate.Format("2006-01-02"),
		Purpose:        e.Purpose,
		TotalAmount:    e.TotalAmount.String(),
		Status:         string(e.Status),
		Steps:          toStepResponses(e.Steps),
		IsResubmission: e.IsResubmission,
		SubmittedBy:    e.SubmittedBy.String(),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
	if e.OriginalID != nil {
		out.OriginalID = e.OriginalID.String()
	}
	for _, item := range e.Items {
		out.Items = append(out.Items, lineItemResponse{
			Description:   item.Description,
			Amount:        item.Amount.String(),
			AttachmentRef: item.AttachmentRef,
		})
	}
	return out
}

type proposalItemResponse struct {
	BudgetHead     string `json:"budgetHead"`
	ProposedAmount string `json:"proposedAmount"`
	Justification  string `json:"justification,omitempty"`
}

type proposalResponse struct {
	ID             string                 `json:"id"`
	Department     string                 `json:"department"`
	FinancialYear  string                 `json:"financialYear"`
	Items          []proposalItemResponse `json:"items"`
	TotalProposed  string                 `json:"totalProposed"`
	Status         string                 `json:"status"`
	Steps          []stepResponse         `json:"steps"`
	ReadBy         []string               `json:"readBy,omitempty"`
	IsResubmission bool                   `json:"isResubmission"`
	OriginalID     string                 `json:"originalId,omitempty"`
	SubmittedBy    string                 `json:"submittedBy"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func toProposalResponse(p *proposal.Proposal) proposalResponse {
	out := proposalResponse{
		ID:             p.ID.String(),
		Department:     p.Department.String(),
		FinancialYear:  p.FinancialYear.String(),
		TotalProposed:  p.TotalProposed.String(),
		Status:         string(p.Status),
		Steps:          toStepResponses(p.Steps),
		IsResubmission: p.IsResubmission,
		SubmittedBy:    p.SubmittedBy.String(),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.OriginalID != nil {
		out.OriginalID = p.OriginalID.String()
	}
	for _, item := range p.Items {
		out.Items = append(out.Items, proposalItemResponse{
			BudgetHead:     item.BudgetHead.String(),
			ProposedAmount: item.ProposedAmount.String(),
			Justification:  item.Justification,
		})
	}
	for _, reader := range p.ReadBy {
		out.ReadBy = append(out.ReadBy, reader.String())
	}
	return out
}

type allocationResponse struct {
	ID               string    `json:"id"`
	Department       string    `json:"department"`
	BudgetHead       string    `json:"budgetHead"`
	FinancialYear    string    `json:"financialYear"`
	AllocatedAmount  string    `json:"allocatedAmount"`
	SpentAmount      string    `json:"spentAmount"`
	Remaining        string    `json:"remaining"`
	Status           string    `json:"status"`
	SourceProposalID string    `json:"sourceProposalId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toAllocationResponse(a ledger.Allocation) allocationResponse {
	out := allocationResponse{
		ID:              a.ID.String(),
		Department:      a.Key.Department.String(),
		BudgetHead:      a.Key.BudgetHead.String(),
		FinancialYear:   a.Key.FinancialYear.String(),
		AllocatedAmount: a.AllocatedAmount.String(),
		SpentAmount:     a.SpentAmount.String(),
		Remaining:       a.Remaining().String(),
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.SourceProposalID != nil {
		out.SourceProposalID = a.SourceProposalID.String()
	}
	return out
}

type auditEventResponse struct {
	ID         string    `json:"id"`
	EventType  string    `json:"eventType"`
	ActorID    string    `json:"actorId"`
	ActorRole  string    `json:"actorRole"`
	Entity     string    `json:"entity"`
	EntityID   string    `json:"entityId"`
	Details    string    `json:"details,omitempty"`
	Previous   string    `json:"previous,omitempty"`
	Next       string    `json:"next,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func toAuditEventResponses(events []audit.Event) []auditEventResponse {
	out := make([]auditEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, auditEventResponse{
			ID:         ev.ID.String(),
			EventType:  ev.EventType,
			ActorID:    ev.ActorID.String(),
			ActorRole:  string(ev.ActorRole),
			Entity:     ev.Entity,
			EntityID:   ev.EntityID,
			Details:    ev.Details,
			Previous:   ev.Previous,
			Next:       ev.Next,
			OccurredAt: ev.OccurredAt,
		})
	}
	return out
}
