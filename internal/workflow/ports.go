package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bursar/internal/ledger"
	"bursar/pkg/domain"
)

// TxRunner runs fn atomically. key names the entity (or allocation cycle)
// the unit of work centers on; SQL-backed runners ignore it, the in-memory
// runner uses it to serialize work on the same entity.
//
// Runners surface transaction aborts caused by concurrent writers as
// sentinel.ErrConflict so the coordinator can classify them uniformly.
type TxRunner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// AuditEvent is one immutable trail entry, emitted after commit.
type AuditEvent struct {
	EventType  string
	ActorID    domain.ActorID
	ActorRole  domain.Role
	Entity     string
	EntityID   string
	Details    string
	Previous   string
	Next       string
	OccurredAt time.Time
}

// AuditSink receives audit events. Delivery is best effort and happens after
// the transition committed; a sink error never rolls the transition back.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// Notifier fans transition outcomes out to interested parties. Same contract
// as AuditSink: post-commit, best effort.
type Notifier interface {
	SubmissionReceived(ctx context.Context, entity EntityType, id string, dept domain.DepartmentID) error
	DecisionTaken(ctx context.Context, entity EntityType, id string, decision domain.Decision, remarks string) error
	LedgerNearExhaustion(ctx context.Context, key ledger.Key, remaining, allocated decimal.Decimal) error
}

// NoopAuditSink drops events. Default when no sink is wired.
type NoopAuditSink struct{}

func (NoopAuditSink) Record(context.Context, AuditEvent) error { return nil }

// NoopNotifier drops notifications. Default when no notifier is wired.
type NoopNotifier struct{}

func (NoopNotifier) SubmissionReceived(context.Context, EntityType, string, domain.DepartmentID) error {
	return nil
}

func (NoopNotifier) DecisionTaken(context.Context, EntityType, string, domain.Decision, string) error {
	return nil
}

func (NoopNotifier) LedgerNearExhaustion(context.Context, ledger.Key, decimal.Decimal, decimal.Decimal) error {
	return nil
}
