package proposal

import (
	"context"

	"bursar/internal/workflow/machine"
	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
)

// Actions a caller can request on a proposal. Draft creation is record
// creation, not a table row.
const (
	ActionSubmit   machine.Action = "submit"
	ActionVerify   machine.Action = "verify"
	ActionApprove  machine.Action = "approve"
	ActionReject   machine.Action = "reject"
	ActionResubmit machine.Action = "resubmit"
)

// Change is the guard view of a requested transition.
type Change struct {
	Prop    *Proposal
	Remarks string
}

var approverRoles = []domain.Role{
	domain.RoleHOD, domain.RolePrincipal, domain.RoleVicePrincipal,
	domain.RoleOffice, domain.RoleAdmin,
}

// NewMachine builds the proposal transition table.
func NewMachine() *machine.Machine[Change] {
	return machine.New("proposal",
		machine.Rule[Change]{
			From:   machine.State(StatusDraft),
			Action: ActionSubmit,
			To:     machine.State(StatusSubmitted),
			Roles:  []domain.Role{domain.RoleHOD, domain.RoleDepartment},
			Guard:  sameDepartment,
		},
		machine.Rule[Change]{
			From:   machine.State(StatusSubmitted),
			Action: ActionVerify,
			To:     machine.State(StatusVerifiedByHOD),
			Roles:  []domain.Role{domain.RoleHOD},
			Guard:  sameDepartment,
		},
		machine.Rule[Change]{
			From:   machine.State(StatusVerifiedByHOD),
			Action: ActionVerify,
			To:     machine.State(StatusVerifiedByPrincipal),
			Roles:  []domain.Role{domain.RolePrincipal, domain.RoleVicePrincipal},
			Guard:  notYetVerifiedByPrincipal,
		},
		// Explicit row so the second of Principal/VP gets "already verified"
		// rather than a generic illegal-transition message.
		machine.Rule[Change]{
			From:   machine.State(StatusVerifiedByPrincipal),
			Action: ActionVerify,
			To:     machine.State(StatusVerifiedByPrincipal),
			Guard:  alreadyVerified,
		},
		machine.Rule[Change]{
			From:   machine.State(StatusVerifiedByPrincipal),
			Action: ActionApprove,
			To:     machine.State(StatusApproved),
			Roles:  []domain.Role{domain.RoleOffice, domain.RoleAdmin},
			Guard:  approverHasRead,
		},

		machine.Rule[Change]{
			From:   machine.State(StatusSubmitted),
			Action: ActionReject,
			To:     machine.State(StatusRejected),
			Roles:  approverRoles,
			Guard:  reasonRequired,
		},
		machine.Rule[Change]{
			From:   machine.State(StatusVerifiedByHOD),
			Action: ActionReject,
			To:     machine.State(StatusRejected),
			Roles:  approverRoles,
			Guard:  reasonRequired,
		},
		machine.Rule[Change]{
			From:   machine.State(StatusVerifiedByPrincipal),
			Action: ActionReject,
			To:     machine.State(StatusRejected),
			Roles:  approverRoles,
			Guard:  reasonRequired,
		},

		// Resubmission replaces the record: the coordinator creates the new
		// draft and marks this one revised in the same transaction.
		machine.Rule[Change]{
			From:   machine.State(StatusRejected),
			Action: ActionResubmit,
			To:     machine.State(StatusRevised),
			Roles:  []domain.Role{domain.RoleHOD, domain.RoleDepartment},
			Guard:  sameDepartment,
		},
	)
}

func sameDepartment(_ context.Context, actor domain.Actor, ch Change) error {
	if actor.Department != ch.Prop.Department {
		return dErrors.New(dErrors.CodeForbidden, "proposal belongs to another department")
	}
	return nil
}

func notYetVerifiedByPrincipal(_ context.Context, _ domain.Actor, ch Change) error {
	if ch.Prop.VerifiedByPrincipalOrVP() {
		return dErrors.New(dErrors.CodeIllegalTransition, "proposal already verified")
	}
	return nil
}

func alreadyVerified(_ context.Context, _ domain.Actor, _ Change) error {
	return dErrors.New(dErrors.CodeIllegalTransition, "proposal already verified")
}

func approverHasRead(_ context.Context, actor domain.Actor, ch Change) error {
	if !ch.Prop.HasRead(actor.ID) {
		return dErrors.New(dErrors.CodeForbidden, "approver must read the proposal before approving")
	}
	return nil
}

func reasonRequired(_ context.Context, _ domain.Actor, ch Change) error {
	if ch.Remarks == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is mandatory")
	}
	return nil
}
