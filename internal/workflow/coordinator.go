// Package workflow hosts the coordinator: the single entry point through
// which every lifecycle transition runs. It loads the entity, resolves the
// transition table, applies ledger effects and the approval step inside one
// transaction, and dispatches side effects only after the commit.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bursar/internal/attachment"
	"bursar/internal/expenditure"
	"bursar/internal/ledger"
	"bursar/internal/platform/metrics"
	"bursar/internal/proposal"
	"bursar/internal/workflow/machine"
	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
	"bursar/pkg/platform/sentinel"
	"bursar/pkg/requestcontext"
)

// Config wires the coordinator's collaborators and policy knobs.
type Config struct {
	Expenditures expenditure.Store
	Proposals    proposal.Store
	Ledger       ledger.Store
	Attachments  attachment.Store
	Runner       TxRunner

	OverspendPolicy domain.OverspendPolicy

	// VPApprovalLimit is the amount above which only the Principal may
	// approve an expenditure.
	VPApprovalLimit decimal.Decimal

	// NearExhaustionRatio triggers a notification when an allocation's
	// remaining share drops to or below this fraction of the allocated
	// amount. Zero disables the check.
	NearExhaustionRatio decimal.Decimal
}

// Coordinator drives both state machines and the ledger.
type Coordinator struct {
	expenditures expenditure.Store
	proposals    proposal.Store
	ledger       ledger.Store
	attachments  attachment.Store
	runner       TxRunner

	expMachine  *machine.Machine[expenditure.Change]
	propMachine *machine.Machine[proposal.Change]

	policy              domain.OverspendPolicy
	nearExhaustionRatio decimal.Decimal

	audit    AuditSink
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures optional collaborators.
type Option func(*Coordinator)

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func WithAuditSink(sink AuditSink) Option {
	return func(c *Coordinator) { c.audit = sink }
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func New(cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		expenditures:        cfg.Expenditures,
		proposals:           cfg.Proposals,
		ledger:              cfg.Ledger,
		attachments:         cfg.Attachments,
		runner:              cfg.Runner,
		expMachine:          expenditure.NewMachine(cfg.VPApprovalLimit),
		propMachine:         proposal.NewMachine(),
		policy:              cfg.OverspendPolicy,
		nearExhaustionRatio: cfg.NearExhaustionRatio,
		audit:               NoopAuditSink{},
		notifier:            NoopNotifier{},
		logger:              slog.Default(),
		tracer:              otel.Tracer("bursar/internal/workflow"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplyTransition runs one action against one entity: load, resolve the
// transition table, apply the ledger effect if the action carries one, append
// the approval step, commit. Side effects queued along the way are delivered
// only after the commit; a failed attempt mutates and notifies nothing.
func (c *Coordinator) ApplyTransition(ctx context.Context, actor domain.Actor, entity EntityType, rawID string, action machine.Action, payload Payload) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "workflow.transition", trace.WithAttributes(
		attribute.String("entity", string(entity)),
		attribute.String("action", string(action)),
		attribute.String("actor.role", string(actor.Role)),
	))
	defer span.End()
	start := time.Now()

	var (
		res *Result
		err error
	)
	switch entity {
	case EntityExpenditure:
		var id domain.ExpenditureID
		if id, err = domain.ParseExpenditureID(rawID); err != nil {
			err = dErrors.Wrap(err, dErrors.CodeValidation, "invalid expenditure id")
			break
		}
		err = c.runner.RunInTx(ctx, rawID, func(ctx context.Context) error {
			var txErr error
			res, txErr = c.applyExpenditure(ctx, actor, id, action, payload)
			return txErr
		})
	case EntityProposal:
		var id domain.ProposalID
		if id, err = domain.ParseProposalID(rawID); err != nil {
			err = dErrors.Wrap(err, dErrors.CodeValidation, "invalid proposal id")
			break
		}
		err = c.runner.RunInTx(ctx, rawID, func(ctx context.Context) error {
			var txErr error
			res, txErr = c.applyProposal(ctx, actor, id, action, payload)
			return txErr
		})
	default:
		err = dErrors.New(dErrors.CodeValidation, "unknown entity type "+string(entity))
	}

	err = translate(err)
	c.observe(entity, action, err, start)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	c.dispatch(ctx, res.intents)
	return res, nil
}

func (c *Coordinator) observe(entity EntityType, action machine.Action, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	c.metrics.ObserveTransition(string(entity), string(action), outcome, time.Since(start))
}

// decisionFor maps an action to the decision recorded in the approval log.
// Expenditures and proposals share action names, so one mapping serves both.
func decisionFor(action machine.Action) domain.Decision {
	switch action {
	case "submit":
		return domain.DecisionSubmitted
	case "verify":
		return domain.DecisionVerified
	case "approve":
		return domain.DecisionApproved
	case "reject":
		return domain.DecisionRejected
	case "finalize":
		return domain.DecisionFinalized
	case "resubmit":
		return domain.DecisionRevised
	default:
		return domain.Decision(action)
	}
}

func stepFor(ctx context.Context, actor domain.Actor, action machine.Action, remarks string) domain.ApprovalStep {
	return domain.ApprovalStep{
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Decision:  decisionFor(action),
		Remarks:   remarks,
		Timestamp: requestcontext.Now(ctx),
	}
}

func isNotFound(err error) bool      { return errors.Is(err, sentinel.ErrNotFound) }
func isDenied(err error) bool        { return errors.Is(err, sentinel.ErrDenied) }
func isAlreadyExists(err error) bool { return errors.Is(err, sentinel.ErrAlreadyExists) }

// translate lifts sentinel errors from stores and runners into the workflow
// taxonomy. Errors already carrying a code pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update, retry the request")
	case errors.Is(err, sentinel.ErrAlreadyExists):
		return dErrors.Wrap(err, dErrors.CodeConflict, "record already exists")
	case errors.Is(err, sentinel.ErrDenied):
		return dErrors.Wrap(err, dErrors.CodePolicyDenied, "denied by ledger policy")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
}

// dispatch delivers queued side effects after the commit. Best effort: a
// failing or panicking collaborator is logged and never propagates to the
// caller, whose transition already committed.
func (c *Coordinator) dispatch(ctx context.Context, intents []intent) {
	for _, it := range intents {
		c.deliver(ctx, it)
	}
}

func (c *Coordinator) deliver(ctx context.Context, it intent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("side-effect delivery panicked",
				"kind", string(it.kind), "panic", r)
		}
	}()

	var err error
	switch it.kind {
	case intentAudit:
		err = c.audit.Record(ctx, it.audit)
	case intentNotifySubmission:
		err = c.notifier.SubmissionReceived(ctx, it.entity, it.entityID, it.department)
	case intentNotifyDecision:
		err = c.notifier.DecisionTaken(ctx, it.entity, it.entityID, it.decision, it.remarks)
	case intentNotifyNearExhaustion:
		err = c.notifier.LedgerNearExhaustion(ctx, it.key, it.remaining, it.allocated)
	}
	if err != nil {
		c.logger.Warn("side-effect delivery failed",
			"kind", string(it.kind), "entity", string(it.entity), "id", it.entityID, "error", err)
		if it.kind != intentAudit {
			c.metrics.ObserveNotifyDelivery("error")
		}
		return
	}
	if it.kind != intentAudit {
		c.metrics.ObserveNotifyDelivery("ok")
	}
}

func auditIntent(ctx context.Context, actor domain.Actor, entity EntityType, id, eventType, details, previous, next string) intent {
	return intent{
		kind: intentAudit,
		audit: AuditEvent{
			EventType:  eventType,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Entity:     string(entity),
			EntityID:   id,
			Details:    details,
			Previous:   previous,
			Next:       next,
			OccurredAt: requestcontext.Now(ctx),
		},
	}
}

// GetExpenditure returns one expenditure. Department-role actors only see
// their own department's records.
func (c *Coordinator) GetExpenditure(ctx context.Context, actor domain.Actor, id domain.ExpenditureID) (*expenditure.Expenditure, error) {
	exp, err := c.expenditures.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if actor.Role == domain.RoleDepartment && actor.Department != exp.Department {
		return nil, dErrors.New(dErrors.CodeForbidden, "expenditure belongs to another department")
	}
	return exp, nil
}

// GetProposal returns one proposal under the same visibility rule.
func (c *Coordinator) GetProposal(ctx context.Context, actor domain.Actor, id domain.ProposalID) (*proposal.Proposal, error) {
	prop, err := c.proposals.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if actor.Role == domain.RoleDepartment && actor.Department != prop.Department {
		return nil, dErrors.New(dErrors.CodeForbidden, "proposal belongs to another department")
	}
	return prop, nil
}

// ListExpenditures returns a department's expenditures for a year.
// Department-role actors are pinned to their own department.
func (c *Coordinator) ListExpenditures(ctx context.Context, actor domain.Actor, dept domain.DepartmentID, fy domain.FinancialYear) ([]expenditure.Expenditure, error) {
	if actor.Role == domain.RoleDepartment {
		dept = actor.Department
	}
	out, err := c.expenditures.ListByDepartment(ctx, dept, fy)
	return out, translate(err)
}

// ListProposals returns a department's proposals for a year.
func (c *Coordinator) ListProposals(ctx context.Context, actor domain.Actor, dept domain.DepartmentID, fy domain.FinancialYear) ([]proposal.Proposal, error) {
	if actor.Role == domain.RoleDepartment {
		dept = actor.Department
	}
	out, err := c.proposals.ListByDepartment(ctx, dept, fy)
	return out, translate(err)
}

// ListAllocations returns a department's allocations for a year.
func (c *Coordinator) ListAllocations(ctx context.Context, actor domain.Actor, dept domain.DepartmentID, fy domain.FinancialYear) ([]ledger.Allocation, error) {
	if actor.Role == domain.RoleDepartment {
		dept = actor.Department
	}
	out, err := c.ledger.ListByDepartment(ctx, dept, fy)
	return out, translate(err)
}

// FindAllocation looks one allocation up by key.
func (c *Coordinator) FindAllocation(ctx context.Context, actor domain.Actor, key ledger.Key) (*ledger.Allocation, error) {
	if actor.Role == domain.RoleDepartment && actor.Department != key.Department {
		return nil, dErrors.New(dErrors.CodeForbidden, "allocation belongs to another department")
	}
	alloc, err := c.ledger.Find(ctx, key)
	return alloc, translate(err)
}
