package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bursar/internal/ledger"
	"bursar/internal/proposal"
	"bursar/internal/workflow/machine"
	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
)

// CreateProposalInput is the payload for drafting a budget proposal.
type CreateProposalInput struct {
	FinancialYear domain.FinancialYear
	Items         []proposal.Item
}

// CreateProposal drafts a proposal for the actor's department. At most one
// actionable proposal may exist per department and year; the store enforces
// it and a violation surfaces as Conflict.
func (c *Coordinator) CreateProposal(ctx context.Context, actor domain.Actor, in CreateProposalInput) (*Result, error) {
	start := time.Now()
	res, err := c.createProposal(ctx, actor, in)
	err = translate(err)
	c.observe(EntityProposal, "draft", err, start)
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, res.intents)
	return res, nil
}

func (c *Coordinator) createProposal(ctx context.Context, actor domain.Actor, in CreateProposalInput) (*Result, error) {
	if actor.Role != domain.RoleDepartment && actor.Role != domain.RoleHOD {
		return nil, dErrors.New(dErrors.CodeForbidden, "only department staff draft proposals")
	}
	if actor.Department.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "actor has no department")
	}
	if _, err := domain.ParseFinancialYear(in.FinancialYear.String()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid financial year")
	}
	if err := validateProposalItems(in.Items); err != nil {
		return nil, err
	}

	prop := &proposal.Proposal{
		ID:            domain.NewProposalID(),
		Department:    actor.Department,
		FinancialYear: in.FinancialYear,
		Items:         in.Items,
		TotalProposed: proposal.TotalOf(in.Items),
		Status:        proposal.StatusDraft,
		SubmittedBy:   actor.ID,
	}

	key := prop.Department.String() + "/" + prop.FinancialYear.String()
	err := c.runner.RunInTx(ctx, key, func(ctx context.Context) error {
		if err := c.proposals.Create(ctx, prop); err != nil {
			if isAlreadyExists(err) {
				return dErrors.New(dErrors.CodeConflict,
					"an actionable proposal already exists for this department and financial year")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Entity: EntityProposal, ID: prop.ID.String(), Status: string(prop.Status)}
	res.intents = append(res.intents,
		auditIntent(ctx, actor, EntityProposal, res.ID, "proposal.drafted",
			fmt.Sprintf("total %s for %s", prop.TotalProposed, prop.FinancialYear),
			"", string(proposal.StatusDraft)),
	)
	return res, nil
}

// MarkProposalRead records that an approver opened the proposal. Idempotent;
// approval requires at least one read by the approving actor.
func (c *Coordinator) MarkProposalRead(ctx context.Context, actor domain.Actor, id domain.ProposalID) error {
	if actor.Role == domain.RoleDepartment {
		return dErrors.New(dErrors.CodeForbidden, "only approvers record proposal reads")
	}
	if err := translate(c.proposals.MarkRead(ctx, id, actor.ID)); err != nil {
		return err
	}
	c.dispatch(ctx, []intent{
		auditIntent(ctx, actor, EntityProposal, id.String(), "proposal.read", "", "", ""),
	})
	return nil
}

func validateProposalItems(items []proposal.Item) error {
	if len(items) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one item is required")
	}
	seen := make(map[domain.BudgetHead]struct{}, len(items))
	for i, item := range items {
		if item.BudgetHead == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %d: budget head is required", i+1))
		}
		if !item.ProposedAmount.IsPositive() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %d: proposed amount must be positive", i+1))
		}
		if _, dup := seen[item.BudgetHead]; dup {
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("item %d: duplicate budget head %q", i+1, item.BudgetHead))
		}
		seen[item.BudgetHead] = struct{}{}
	}
	return nil
}

func validateOverrides(overrides map[domain.BudgetHead]decimal.Decimal) error {
	for head, amount := range overrides {
		if !amount.IsPositive() {
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("override for %q must be positive", head))
		}
	}
	return nil
}

// applyProposal handles one transition inside the caller's transaction.
func (c *Coordinator) applyProposal(ctx context.Context, actor domain.Actor, id domain.ProposalID, action machine.Action, payload Payload) (*Result, error) {
	prop, err := c.proposals.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rule, err := c.propMachine.Resolve(ctx, machine.State(prop.Status), action, actor,
		proposal.Change{Prop: prop, Remarks: payload.Remarks})
	if err != nil {
		return nil, err
	}

	if action == proposal.ActionResubmit {
		return c.resubmitProposal(ctx, actor, prop, payload)
	}

	res := &Result{Entity: EntityProposal, ID: prop.ID.String()}

	if action == proposal.ActionApprove {
		if err := validateOverrides(payload.Overrides); err != nil {
			return nil, err
		}
	}

	step := stepFor(ctx, actor, action, payload.Remarks)
	if err := c.proposals.UpdateStatus(ctx, id, prop.Status, proposal.Status(rule.To), step); err != nil {
		return nil, err
	}
	res.Status = string(rule.To)
	res.Step = &step

	if action == proposal.ActionApprove {
		if err := c.openAllocations(ctx, actor, prop, payload.Overrides, res); err != nil {
			return nil, err
		}
	}

	res.intents = append(res.intents,
		auditIntent(ctx, actor, EntityProposal, res.ID, "proposal."+string(step.Decision),
			payload.Remarks, string(prop.Status), res.Status),
	)
	switch action {
	case proposal.ActionSubmit:
		res.intents = append(res.intents,
			intent{kind: intentNotifySubmission, entity: EntityProposal, entityID: res.ID, department: prop.Department})
	default:
		res.intents = append(res.intents,
			intent{kind: intentNotifyDecision, entity: EntityProposal, entityID: res.ID, decision: step.Decision, remarks: payload.Remarks})
	}
	return res, nil
}

// openAllocations turns an approved proposal's items into ledger records,
// applying the office's per-head amount overrides. Creation is idempotent per
// key: an allocation that already exists is reported as a warning and left
// untouched, never overwritten.
func (c *Coordinator) openAllocations(ctx context.Context, actor domain.Actor, prop *proposal.Proposal, overrides map[domain.BudgetHead]decimal.Decimal, res *Result) error {
	byHead := make(map[domain.BudgetHead]struct{}, len(prop.Items))
	for _, item := range prop.Items {
		byHead[item.BudgetHead] = struct{}{}
	}
	for head := range overrides {
		if _, ok := byHead[head]; !ok {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("override for %q ignored: no such item on the proposal", head))
		}
	}

	for _, item := range prop.Items {
		amount := item.ProposedAmount
		if o, ok := overrides[item.BudgetHead]; ok {
			amount = o
		}

		key := prop.LedgerKey(item)
		created, err := c.ledger.CreateIfAbsent(ctx, ledger.Allocation{
			ID:               domain.NewAllocationID(),
			Key:              key,
			AllocatedAmount:  amount,
			Status:           ledger.AllocationActive,
			SourceProposalID: &prop.ID,
			CreatedBy:        actor.ID,
		})
		if err != nil {
			return err
		}
		if !created {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("allocation for %s in %s already exists; left unchanged", key.BudgetHead, key.FinancialYear))
			continue
		}
		res.CreatedAllocations = append(res.CreatedAllocations, key)
	}
	return nil
}

// resubmitProposal replaces a rejected proposal: the original is marked
// revised and a fresh draft is created, both in the same transaction. The
// unique original-id column makes the second concurrent resubmitter fail.
func (c *Coordinator) resubmitProposal(ctx context.Context, actor domain.Actor, prop *proposal.Proposal, payload Payload) (*Result, error) {
	if err := c.checkProposalResubmission(ctx, prop); err != nil {
		return nil, err
	}

	items := payload.ProposalItems
	if len(items) == 0 {
		items = prop.Items
	}
	if err := validateProposalItems(items); err != nil {
		return nil, err
	}

	step := stepFor(ctx, actor, proposal.ActionResubmit, payload.Remarks)
	if err := c.proposals.UpdateStatus(ctx, prop.ID, prop.Status, proposal.StatusRevised, step); err != nil {
		return nil, err
	}

	child := &proposal.Proposal{
		ID:             domain.NewProposalID(),
		Department:     prop.Department,
		FinancialYear:  prop.FinancialYear,
		Items:          items,
		TotalProposed:  proposal.TotalOf(items),
		Status:         proposal.StatusDraft,
		IsResubmission: true,
		OriginalID:     &prop.ID,
		SubmittedBy:    actor.ID,
	}
	if err := c.proposals.Create(ctx, child); err != nil {
		if isAlreadyExists(err) {
			return nil, dErrors.New(dErrors.CodeConflict,
				"proposal was already resubmitted, or another actionable proposal exists for this cycle")
		}
		return nil, err
	}

	res := &Result{
		Entity:  EntityProposal,
		ID:      prop.ID.String(),
		Status:  string(proposal.StatusRevised),
		Step:    &step,
		ChildID: child.ID.String(),
	}
	res.intents = append(res.intents,
		auditIntent(ctx, actor, EntityProposal, res.ID, "proposal.resubmitted",
			"replacement "+res.ChildID, string(prop.Status), string(proposal.StatusRevised)),
	)
	return res, nil
}
