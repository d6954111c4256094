package expenditure

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bursar/internal/workflow/machine"
	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
)

// Actions a caller can request on an expenditure. Submission is record
// creation, not a table row.
const (
	ActionVerify   machine.Action = "verify"
	ActionApprove  machine.Action = "approve"
	ActionReject   machine.Action = "reject"
	ActionFinalize machine.Action = "finalize"
	ActionResubmit machine.Action = "resubmit"
)

// Change is the guard view of a requested transition: the loaded entity plus
// the payload fields guards need (remarks for rejections).
type Change struct {
	Exp     *Expenditure
	Remarks string
}

// NewMachine builds the expenditure transition table. vpApprovalLimit is the
// fixed amount above which only the Principal may approve; attempting it as
// Vice-Principal is a permission error, not a state error.
func NewMachine(vpApprovalLimit decimal.Decimal) *machine.Machine[Change] {
	return machine.New("expenditure",
		machine.Rule[Change]{
			From:   machine.State(StatusPending),
			Action: ActionVerify,
			To:     machine.State(StatusVerified),
			Roles:  []domain.Role{domain.RoleHOD},
			Guard:  sameDepartment,
		},
		machine.Rule[Change]{
			From:   machine.State(StatusVerified),
			Action: ActionApprove,
			To:     machine.State(StatusApproved),
			Roles:  []domain.Role{domain.RolePrincipal, domain.RoleVicePrincipal},
			Guard:  vicePrincipalLimit(vpApprovalLimit),
		},
		machine.Rule[Change]{
			From:   machine.State(StatusApproved),
			Action: ActionFinalize,
			To:     machine.State(StatusFinalized),
			Roles:  []domain.Role{domain.RoleOffice},
		},

		// Reject exits: the role must match the stage the expenditure sits in.
		machine.Rule[Change]{
			From:   machine.State(StatusPending),
			Action: ActionReject,
			To:     machine.State(StatusRejected),
			Roles:  []domain.Role{domain.RoleHOD},
			Guard:  guards(sameDepartment, remarksRequired),
		},
		machine.Rule[Change]{
			From:   machine.State(StatusVerified),
			Action: ActionReject,
			To:     machine.State(StatusRejected),
			Roles:  []domain.Role{domain.RolePrincipal, domain.RoleVicePrincipal},
			Guard:  remarksRequired,
		},
		machine.Rule[Change]{
			From:   machine.State(StatusApproved),
			Action: ActionReject,
			To:     machine.State(StatusRejected),
			Roles:  []domain.Role{domain.RoleOffice},
			Guard:  remarksRequired,
		},

		// Resubmission does not move this record; the coordinator creates the
		// child. The rule still gates state and submitter identity.
		machine.Rule[Change]{
			From:   machine.State(StatusRejected),
			Action: ActionResubmit,
			To:     machine.State(StatusRejected),
			Roles:  []domain.Role{domain.RoleDepartment, domain.RoleHOD},
			Guard:  originalSubmitter,
		},
	)
}

func guards(gs ...machine.Guard[Change]) machine.Guard[Change] {
	return func(ctx context.Context, actor domain.Actor, ch Change) error {
		for _, g := range gs {
			if err := g(ctx, actor, ch); err != nil {
				return err
			}
		}
		return nil
	}
}

func sameDepartment(_ context.Context, actor domain.Actor, ch Change) error {
	if actor.Department != ch.Exp.Department {
		return dErrors.New(dErrors.CodeForbidden, "expenditure belongs to another department")
	}
	return nil
}

func vicePrincipalLimit(limit decimal.Decimal) machine.Guard[Change] {
	return func(_ context.Context, actor domain.Actor, ch Change) error {
		if actor.Role == domain.RoleVicePrincipal && ch.Exp.TotalAmount.GreaterThan(limit) {
			return dErrors.New(dErrors.CodeForbidden,
				fmt.Sprintf("amounts above %s require the principal's approval", limit))
		}
		return nil
	}
}

func remarksRequired(_ context.Context, _ domain.Actor, ch Change) error {
	if ch.Remarks == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection remarks are mandatory")
	}
	return nil
}

func originalSubmitter(_ context.Context, actor domain.Actor, ch Change) error {
	if actor.ID != ch.Exp.SubmittedBy {
		return dErrors.New(dErrors.CodeForbidden, "only the original submitter may resubmit")
	}
	return nil
}
