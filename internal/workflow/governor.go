package workflow

import (
	"context"

	"bursar/internal/expenditure"
	"bursar/internal/proposal"
	dErrors "bursar/pkg/domain-errors"
)

// Resubmission governor. Two rules, both checked inside the creating
// transaction so concurrent resubmitters cannot both pass:
//
//  1. depth one: a record that is itself a resubmission is never resubmitted
//     again; the chain ends at the child.
//  2. single child: a rejected record is resubmitted at most once. The check
//     here gives the clean error; the unique index on the original-id column
//     (and the per-entity lock in memory) closes the race when two callers
//     pass the check simultaneously.

func (c *Coordinator) checkExpenditureResubmission(ctx context.Context, exp *expenditure.Expenditure) error {
	if exp.IsResubmission {
		return dErrors.New(dErrors.CodeIllegalTransition, "a resubmitted expenditure cannot be resubmitted again")
	}
	has, err := c.expenditures.HasResubmission(ctx, exp.ID)
	if err != nil {
		return err
	}
	if has {
		return dErrors.New(dErrors.CodeConflict, "expenditure has already been resubmitted")
	}
	return nil
}

func (c *Coordinator) checkProposalResubmission(ctx context.Context, prop *proposal.Proposal) error {
	if prop.IsResubmission {
		return dErrors.New(dErrors.CodeIllegalTransition, "a resubmitted proposal cannot be resubmitted again")
	}
	has, err := c.proposals.HasResubmission(ctx, prop.ID)
	if err != nil {
		return err
	}
	if has {
		return dErrors.New(dErrors.CodeConflict, "proposal has already been resubmitted")
	}
	return nil
}
