// Package machine provides the transition-table abstraction shared by the
// expenditure and proposal lifecycles. Both state machines are instances of
// one table type so role gating, illegal-transition detection, and guard
// evaluation cannot drift apart between the two entities.
package machine

import (
	"context"
	"fmt"
	"slices"

	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
)

// State is an entity lifecycle state ("pending", "verified_by_hod", ...).
type State string

// Action is a caller-requested transition ("verify", "finalize", ...).
type Action string

// Guard runs entity-specific preconditions after state and role checks pass.
// Guards return Forbidden for ownership/threshold violations and Validation
// for payload problems; their errors pass through Resolve unchanged.
type Guard[E any] func(ctx context.Context, actor domain.Actor, entity E) error

// Rule is one row of a transition table.
type Rule[E any] struct {
	From   State
	Action Action
	To     State
	Roles  []domain.Role
	Guard  Guard[E]
}

// Machine resolves (state, action, actor) against its table. It distinguishes
// IllegalTransition (the action is not valid from the current state, no
// matter who asks) from Forbidden (the transition exists but this role may
// not take it) because the two have different remediation.
type Machine[E any] struct {
	entity string
	rules  []Rule[E]
}

func New[E any](entity string, rules ...Rule[E]) *Machine[E] {
	return &Machine[E]{entity: entity, rules: rules}
}

// Resolve returns the rule to apply, or an error classifying why none can.
func (m *Machine[E]) Resolve(ctx context.Context, from State, action Action, actor domain.Actor, entity E) (*Rule[E], error) {
	var match *Rule[E]
	actionKnown := false
	for i := range m.rules {
		rule := &m.rules[i]
		if rule.Action != action {
			continue
		}
		actionKnown = true
		if rule.From == from {
			match = rule
			break
		}
	}
	if match == nil {
		if !actionKnown {
			return nil, dErrors.New(dErrors.CodeIllegalTransition,
				fmt.Sprintf("action %q is not defined for %s", action, m.entity))
		}
		return nil, dErrors.New(dErrors.CodeIllegalTransition,
			fmt.Sprintf("action %q is not valid for a %s in state %q", action, m.entity, from))
	}

	if len(match.Roles) > 0 && !slices.Contains(match.Roles, actor.Role) {
		return nil, dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("role %q may not %s a %s in state %q", actor.Role, action, m.entity, from))
	}

	if match.Guard != nil {
		if err := match.Guard(ctx, actor, entity); err != nil {
			return nil, err
		}
	}
	return match, nil
}
