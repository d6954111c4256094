package workflow

import (
	"context"
	"fmt"
	"time"

	"bursar/internal/expenditure"
	"bursar/internal/ledger"
	"bursar/internal/workflow/machine"
	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
)

// SubmitExpenditureInput is the payload for creating an expenditure.
type SubmitExpenditureInput struct {
	BudgetHead domain.BudgetHead
	EventDate  time.Time
	Purpose    string
	Items      []expenditure.LineItem
}

// SubmitExpenditure creates a pending expenditure for the actor's department.
// The total is recomputed from the line items; a client-supplied total is
// never trusted. The admissibility check against the ledger is advisory only:
// it reports headroom at submission time but blocks nothing, because the
// binding check happens atomically at finalization.
func (c *Coordinator) SubmitExpenditure(ctx context.Context, actor domain.Actor, in SubmitExpenditureInput) (*Result, error) {
	start := time.Now()
	res, err := c.submitExpenditure(ctx, actor, in)
	err = translate(err)
	c.observe(EntityExpenditure, "submit", err, start)
	if err != nil {
		return nil, err
	}
	c.dispatch(ctx, res.intents)
	return res, nil
}

func (c *Coordinator) submitExpenditure(ctx context.Context, actor domain.Actor, in SubmitExpenditureInput) (*Result, error) {
	if actor.Role != domain.RoleDepartment && actor.Role != domain.RoleHOD {
		return nil, dErrors.New(dErrors.CodeForbidden, "only department staff submit expenditures")
	}
	if actor.Department.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "actor has no department")
	}
	if in.Purpose == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose is required")
	}
	if in.BudgetHead == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "budget head is required")
	}
	if in.EventDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "event date is required")
	}
	if err := c.validateLineItems(ctx, in.Items); err != nil {
		return nil, err
	}

	exp := &expenditure.Expenditure{
		ID:            domain.NewExpenditureID(),
		Department:    actor.Department,
		BudgetHead:    in.BudgetHead,
		FinancialYear: domain.FinancialYearOf(in.EventDate),
		EventDate:     in.EventDate,
		Purpose:       in.Purpose,
		Items:         in.Items,
		TotalAmount:   expenditure.TotalOf(in.Items),
		Status:        expenditure.StatusPending,
		SubmittedBy:   actor.ID,
		Steps:         []domain.ApprovalStep{stepFor(ctx, actor, "submit", "")},
	}

	var res *Result
	err := c.runner.RunInTx(ctx, exp.ID.String(), func(ctx context.Context) error {
		if err := c.expenditures.Create(ctx, exp); err != nil {
			return err
		}
		res = &Result{
			Entity: EntityExpenditure,
			ID:     exp.ID.String(),
			Status: string(exp.Status),
			Step:   &exp.Steps[0],
		}
		res.Advisory = c.adviseOnHeadroom(ctx, exp, res)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.intents = append(res.intents,
		auditIntent(ctx, actor, EntityExpenditure, res.ID, "expenditure.submitted",
			fmt.Sprintf("total %s against %s/%s", exp.TotalAmount, exp.BudgetHead, exp.FinancialYear),
			"", string(expenditure.StatusPending)),
		intent{kind: intentNotifySubmission, entity: EntityExpenditure, entityID: res.ID, department: exp.Department},
	)
	return res, nil
}

// adviseOnHeadroom runs the non-binding submission check. Lookup errors are
// swallowed into a warning; an advisory must never fail a submission.
func (c *Coordinator) adviseOnHeadroom(ctx context.Context, exp *expenditure.Expenditure, res *Result) *Advisory {
	alloc, err := c.ledger.Find(ctx, exp.LedgerKey())
	if err != nil {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("no allocation found for %s in %s; finalization will fail until one exists",
				exp.BudgetHead, exp.FinancialYear))
		return &Advisory{AllocationFound: false}
	}
	adv := &Advisory{
		AllocationFound: true,
		Remaining:       alloc.Remaining(),
		Admissible:      ledger.IsAdmissible(alloc.Remaining(), exp.TotalAmount, c.policy),
	}
	if !adv.Admissible {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("total %s exceeds the remaining allocation %s; finalization will be denied under the current policy",
				exp.TotalAmount, adv.Remaining))
	}
	return adv
}

func (c *Coordinator) validateLineItems(ctx context.Context, items []expenditure.LineItem) error {
	if len(items) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one line item is required")
	}
	for i, item := range items {
		if item.Description == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %d: description is required", i+1))
		}
		if !item.Amount.IsPositive() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("item %d: amount must be positive", i+1))
		}
		if item.AttachmentRef != "" {
			ok, err := c.attachments.Exists(ctx, item.AttachmentRef)
			if err != nil {
				return err
			}
			if !ok {
				return dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("item %d: attachment %q does not resolve", i+1, item.AttachmentRef))
			}
		}
	}
	return nil
}

// applyExpenditure handles one transition inside the caller's transaction.
func (c *Coordinator) applyExpenditure(ctx context.Context, actor domain.Actor, id domain.ExpenditureID, action machine.Action, payload Payload) (*Result, error) {
	exp, err := c.expenditures.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rule, err := c.expMachine.Resolve(ctx, machine.State(exp.Status), action, actor,
		expenditure.Change{Exp: exp, Remarks: payload.Remarks})
	if err != nil {
		return nil, err
	}

	if action == expenditure.ActionResubmit {
		return c.resubmitExpenditure(ctx, actor, exp, payload)
	}

	res := &Result{Entity: EntityExpenditure, ID: exp.ID.String()}

	if action == expenditure.ActionFinalize {
		effect, nearIntent, err := c.deductForFinalization(ctx, exp)
		if err != nil {
			return nil, err
		}
		res.LedgerEffect = effect
		if nearIntent != nil {
			res.intents = append(res.intents, *nearIntent)
		}
	}

	step := stepFor(ctx, actor, action, payload.Remarks)
	if err := c.expenditures.UpdateStatus(ctx, id, exp.Status, expenditure.Status(rule.To), step); err != nil {
		return nil, err
	}
	res.Status = string(rule.To)
	res.Step = &step

	res.intents = append(res.intents,
		auditIntent(ctx, actor, EntityExpenditure, res.ID, "expenditure."+string(step.Decision),
			payload.Remarks, string(exp.Status), res.Status),
		intent{
			kind:     intentNotifyDecision,
			entity:   EntityExpenditure,
			entityID: res.ID,
			decision: step.Decision,
			remarks:  payload.Remarks,
		},
	)
	return res, nil
}

// deductForFinalization performs the single ledger mutation of an
// expenditure's lifecycle. The store's conditional update is the binding
// overspend check; by the time this returns a result, spent has already been
// incremented inside the surrounding transaction.
func (c *Coordinator) deductForFinalization(ctx context.Context, exp *expenditure.Expenditure) (*LedgerEffect, *intent, error) {
	key := exp.LedgerKey()
	ded, err := c.ledger.TryDeduct(ctx, key, exp.TotalAmount, c.policy)
	if err != nil {
		switch {
		case isNotFound(err):
			c.metrics.ObserveDeduction("not_found")
			return nil, nil, dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("no active allocation for %s in %s", key.BudgetHead, key.FinancialYear))
		case isDenied(err):
			c.metrics.ObserveDeduction("denied")
			return nil, nil, dErrors.New(dErrors.CodePolicyDenied,
				fmt.Sprintf("deducting %s would exceed the remaining allocation", exp.TotalAmount))
		}
		return nil, nil, err
	}
	c.metrics.ObserveDeduction("ok")

	effect := &LedgerEffect{
		Key:       key,
		Deducted:  exp.TotalAmount,
		NewSpent:  ded.NewSpent,
		Remaining: ded.Remaining(),
	}

	if c.nearExhaustionRatio.IsPositive() && ded.Allocated.IsPositive() &&
		ded.Remaining().LessThanOrEqual(ded.Allocated.Mul(c.nearExhaustionRatio)) {
		return effect, &intent{
			kind:      intentNotifyNearExhaustion,
			key:       key,
			remaining: ded.Remaining(),
			allocated: ded.Allocated,
		}, nil
	}
	return effect, nil, nil
}

// resubmitExpenditure creates the replacement record. The original stays
// rejected; linkage runs through the child's original-id column, whose
// uniqueness closes the two-concurrent-resubmitters race.
func (c *Coordinator) resubmitExpenditure(ctx context.Context, actor domain.Actor, exp *expenditure.Expenditure, payload Payload) (*Result, error) {
	if err := c.checkExpenditureResubmission(ctx, exp); err != nil {
		return nil, err
	}

	items := payload.ExpenditureItems
	if len(items) == 0 {
		items = exp.Items
	}
	if err := c.validateLineItems(ctx, items); err != nil {
		return nil, err
	}

	child := &expenditure.Expenditure{
		ID:             domain.NewExpenditureID(),
		Department:     exp.Department,
		BudgetHead:     exp.BudgetHead,
		FinancialYear:  exp.FinancialYear,
		EventDate:      exp.EventDate,
		Purpose:        exp.Purpose,
		Items:          items,
		TotalAmount:    expenditure.TotalOf(items),
		Status:         expenditure.StatusPending,
		IsResubmission: true,
		OriginalID:     &exp.ID,
		SubmittedBy:    actor.ID,
		Steps:          []domain.ApprovalStep{stepFor(ctx, actor, "submit", payload.Remarks)},
	}
	if err := c.expenditures.Create(ctx, child); err != nil {
		if isAlreadyExists(err) {
			return nil, dErrors.New(dErrors.CodeConflict, "expenditure has already been resubmitted")
		}
		return nil, err
	}

	res := &Result{
		Entity:  EntityExpenditure,
		ID:      exp.ID.String(),
		Status:  string(exp.Status),
		ChildID: child.ID.String(),
	}
	res.intents = append(res.intents,
		auditIntent(ctx, actor, EntityExpenditure, res.ID, "expenditure.resubmitted",
			"replacement "+res.ChildID, string(exp.Status), string(expenditure.StatusPending)),
		intent{kind: intentNotifySubmission, entity: EntityExpenditure, entityID: res.ChildID, department: child.Department},
	)
	return res, nil
}
