package transporthttp

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bursar/internal/expenditure"
	"bursar/internal/proposal"
	"bursar/internal/workflow"
	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
)

// Amounts cross the wire as strings so no client-side float ever touches
// money.

type lineItemPayload struct {
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	AttachmentRef string `json:"attachmentRef,omitempty"`
}

type submitExpenditureRequest struct {
	BudgetHead string            `json:"budgetHead"`
	EventDate  string            `json:"eventDate"`
	Purpose    string            `json:"purpose"`
	Items      []lineItemPayload `json:"items"`
}

func (req submitExpenditureRequest) toInput() (workflow.SubmitExpenditureInput, error) {
	var in workflow.SubmitExpenditureInput

	head, err := domain.ParseBudgetHead(req.BudgetHead)
	if err != nil {
		return in, dErrors.Wrap(err, dErrors.CodeValidation, "invalid budget head")
	}
	date, err := time.Parse("2006-01-02", req.EventDate)
	if err != nil {
		return in, dErrors.New(dErrors.CodeValidation, "eventDate must be YYYY-MM-DD")
	}
	items, err := parseLineItems(req.Items)
	if err != nil {
		return in, err
	}

	in.BudgetHead = head
	in.EventDate = date
	in.Purpose = req.Purpose
	in.Items = items
	return in, nil
}

func parseLineItems(payloads []lineItemPayload) ([]expenditure.LineItem, error) {
	items := make([]expenditure.LineItem, 0, len(payloads))
	for i, p := range payloads {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("item %d: amount %q is not a number", i+1, p.Amount))
		}
		items = append(items, expenditure.LineItem{
			Description:   p.Description,
			Amount:        amount,
			AttachmentRef: p.AttachmentRef,
		})
	}
	return items, nil
}

type proposalItemPayload struct {
	BudgetHead     string `json:"budgetHead"`
	ProposedAmount string `json:"proposedAmount"`
	Justification  string `json:"justification,omitempty"`
}

type createProposalRequest struct {
	FinancialYear string                `json:"financialYear"`
	Items         []proposalItemPayload `json:"items"`
}

func (req createProposalRequest) toInput() (workflow.CreateProposalInput, error) {
	var in workflow.CreateProposalInput

	fy, err := domain.ParseFinancialYear(req.FinancialYear)
	if err != nil {
		return in, dErrors.Wrap(err, dErrors.CodeValidation, "invalid financial year")
	}
	items, err := parseProposalItems(req.Items)
	if err != nil {
		return in, err
	}

	in.FinancialYear = fy
	in.Items = items
	return in, nil
}

func parseProposalItems(payloads []proposalItemPayload) ([]proposal.Item, error) {
	items := make([]proposal.Item, 0, len(payloads))
	for i, p := range payloads {
		amount, err := decimal.NewFromString(p.ProposedAmount)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("item %d: proposedAmount %q is not a number", i+1, p.ProposedAmount))
		}
		items = append(items, proposal.Item{
			BudgetHead:     domain.BudgetHead(p.BudgetHead),
			ProposedAmount: amount,
			Justification:  p.Justification,
		})
	}
	return items, nil
}

type actionRequest struct {
	Remarks       string                `json:"remarks,omitempty"`
	Overrides     map[string]string     `json:"overrides,omitempty"`
	Items         []lineItemPayload     `json:"items,omitempty"`
	ProposalItems []proposalItemPayload `json:"proposalItems,omitempty"`
}

func (req actionRequest) toPayload() (workflow.Payload, error) {
	payload := workflow.Payload{Remarks: req.Remarks}

	if len(req.Overrides) > 0 {
		payload.Overrides = make(map[domain.BudgetHead]decimal.Decimal, len(req.Overrides))
		for head, raw := range req.Overrides {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return payload, dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("override for %q is not a number", head))
			}
			payload.Overrides[domain.BudgetHead(head)] = amount
		}
	}
	if len(req.Items) > 0 {
		items, err := parseLineItems(req.Items)
		if err != nil {
			return payload, err
		}
		payload.ExpenditureItems = items
	}
	if len(req.ProposalItems) > 0 {
		items, err := parseProposalItems(req.ProposalItems)
		if err != nil {
			return payload, err
		}
		payload.ProposalItems = items
	}
	return payload, nil
}
