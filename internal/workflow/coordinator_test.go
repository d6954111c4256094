package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"bursar/internal/attachment"
	"bursar/internal/expenditure"
	"bursar/internal/ledger"
	"bursar/internal/proposal"
	"bursar/internal/workflow/machine"
	"bursar/pkg/domain"
	dErrors "bursar/pkg/domain-errors"
)

// recordingSink and recordingNotifier capture post-commit side effects so
// tests can assert on what was (and was not) delivered.

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (r *recordingSink) Record(_ context.Context, ev AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) all() []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEvent(nil), r.events...)
}

type notification struct {
	kind     string
	entity   EntityType
	entityID string
	decision domain.Decision
	key      ledger.Key
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []notification
}

func (r *recordingNotifier) SubmissionReceived(_ context.Context, entity EntityType, id string, _ domain.DepartmentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notification{kind: "submission", entity: entity, entityID: id})
	return nil
}

func (r *recordingNotifier) DecisionTaken(_ context.Context, entity EntityType, id string, decision domain.Decision, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notification{kind: "decision", entity: entity, entityID: id, decision: decision})
	return nil
}

func (r *recordingNotifier) LedgerNearExhaustion(_ context.Context, key ledger.Key, _, _ decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notification{kind: "near_exhaustion", key: key})
	return nil
}

func (r *recordingNotifier) all() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.notes...)
}

type CoordinatorSuite struct {
	suite.Suite

	ctx         context.Context
	coordinator *Coordinator
	ledgerStore *ledger.InMemoryStore
	expStore    *expenditure.InMemoryStore
	propStore   *proposal.InMemoryStore
	attachments *attachment.InMemoryStore
	sink        *recordingSink
	notifier    *recordingNotifier

	dept      domain.DepartmentID
	submitter domain.Actor
	hod       domain.Actor
	otherHOD  domain.Actor
	principal domain.Actor
	vp        domain.Actor
	office    domain.Actor
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.ledgerStore = ledger.NewInMemoryStore()
	s.expStore = expenditure.NewInMemoryStore()
	s.propStore = proposal.NewInMemoryStore()
	s.attachments = attachment.NewInMemoryStore()
	s.sink = &recordingSink{}
	s.notifier = &recordingNotifier{}

	s.dept = domain.NewDepartmentID()
	s.submitter = domain.Actor{ID: domain.NewActorID(), Role: domain.RoleDepartment, Department: s.dept}
	s.hod = domain.Actor{ID: domain.NewActorID(), Role: domain.RoleHOD, Department: s.dept}
	s.otherHOD = domain.Actor{ID: domain.NewActorID(), Role: domain.RoleHOD, Department: domain.NewDepartmentID()}
	s.principal = domain.Actor{ID: domain.NewActorID(), Role: domain.RolePrincipal}
	s.vp = domain.Actor{ID: domain.NewActorID(), Role: domain.RoleVicePrincipal}
	s.office = domain.Actor{ID: domain.NewActorID(), Role: domain.RoleOffice}

	s.coordinator = New(Config{
		Expenditures:        s.expStore,
		Proposals:           s.propStore,
		Ledger:              s.ledgerStore,
		Attachments:         s.attachments,
		Runner:              NewInMemoryTxRunner(),
		OverspendPolicy:     domain.OverspendDisallow,
		VPApprovalLimit:     decimal.RequireFromString("50000"),
		NearExhaustionRatio: decimal.RequireFromString("0.1"),
	},
		WithAuditSink(s.sink),
		WithNotifier(s.notifier),
	)
}

func (s *CoordinatorSuite) seedAllocation(head string, amount string) ledger.Key {
	key := ledger.Key{
		Department:    s.dept,
		BudgetHead:    domain.BudgetHead(head),
		FinancialYear: "2025-2026",
	}
	created, err := s.ledgerStore.CreateIfAbsent(s.ctx, ledger.Allocation{
		Key:             key,
		AllocatedAmount: decimal.RequireFromString(amount),
		SpentAmount:     decimal.Zero,
		Status:          ledger.AllocationActive,
		CreatedBy:       s.office.ID,
	})
	s.Require().NoError(err)
	s.Require().True(created)
	return key
}

func (s *CoordinatorSuite) submitExpenditure(head, amount string) string {
	res, err := s.coordinator.SubmitExpenditure(s.ctx, s.submitter, SubmitExpenditureInput{
		BudgetHead: domain.BudgetHead(head),
		EventDate:  time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		Purpose:    "annual science fair",
		Items: []expenditure.LineItem{
			{Description: "venue and logistics", Amount: decimal.RequireFromString(amount)},
		},
	})
	s.Require().NoError(err)
	return res.ID
}

func (s *CoordinatorSuite) apply(actor domain.Actor, entity EntityType, id string, action string, payload Payload) (*Result, error) {
	return s.coordinator.ApplyTransition(s.ctx, actor, entity, id, machine.Action(action), payload)
}

func (s *CoordinatorSuite) mustApply(actor domain.Actor, entity EntityType, id string, action string, payload Payload) *Result {
	res, err := s.apply(actor, entity, id, action, payload)
	s.Require().NoError(err)
	return res
}

func (s *CoordinatorSuite) approveExpenditure(id string) {
	s.mustApply(s.hod, EntityExpenditure, id, "verify", Payload{})
	s.mustApply(s.principal, EntityExpenditure, id, "approve", Payload{})
}

func (s *CoordinatorSuite) expenditureStatus(id string) expenditure.Status {
	parsed, err := domain.ParseExpenditureID(id)
	s.Require().NoError(err)
	exp, err := s.expStore.Get(s.ctx, parsed)
	s.Require().NoError(err)
	return exp.Status
}

func (s *CoordinatorSuite) expenditureSteps(id string) []domain.ApprovalStep {
	parsed, err := domain.ParseExpenditureID(id)
	s.Require().NoError(err)
	exp, err := s.expStore.Get(s.ctx, parsed)
	s.Require().NoError(err)
	return exp.Steps
}

// ---------------------------------------------------------------------------
// Expenditure lifecycle
// ---------------------------------------------------------------------------

func (s *CoordinatorSuite) TestExpenditureHappyPath() {
	key := s.seedAllocation("science-fair", "10000.00")
	id := s.submitExpenditure("science-fair", "2500.00")

	s.Equal(expenditure.StatusPending, s.expenditureStatus(id))

	s.mustApply(s.hod, EntityExpenditure, id, "verify", Payload{})
	s.Equal(expenditure.StatusVerified, s.expenditureStatus(id))

	s.mustApply(s.principal, EntityExpenditure, id, "approve", Payload{})
	s.Equal(expenditure.StatusApproved, s.expenditureStatus(id))

	res := s.mustApply(s.office, EntityExpenditure, id, "finalize", Payload{})
	s.Equal(expenditure.StatusFinalized, s.expenditureStatus(id))

	s.Require().NotNil(res.LedgerEffect)
	s.Equal("2500", res.LedgerEffect.NewSpent.String())
	s.Equal("7500", res.LedgerEffect.Remaining.String())

	alloc, err := s.ledgerStore.Find(s.ctx, key)
	s.Require().NoError(err)
	s.Equal("2500", alloc.SpentAmount.String())

	steps := s.expenditureSteps(id)
	s.Require().Len(steps, 4)
	for i, step := range steps {
		s.Equal(i+1, step.Seq, "steps must be strictly ordered")
	}
	s.Equal(domain.DecisionFinalized, steps[3].Decision)
}

func (s *CoordinatorSuite) TestStrictSequencing() {
	s.seedAllocation("science-fair", "10000.00")
	id := s.submitExpenditure("science-fair", "100.00")

	s.Run("finalize on pending is illegal, not forbidden", func() {
		_, err := s.apply(s.office, EntityExpenditure, id, "finalize", Payload{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})

	s.Run("approve before verification is illegal", func() {
		_, err := s.apply(s.principal, EntityExpenditure, id, "approve", Payload{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})

	s.Run("verify by the wrong role is forbidden", func() {
		_, err := s.apply(s.principal, EntityExpenditure, id, "verify", Payload{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("verify by another department's hod is forbidden", func() {
		_, err := s.apply(s.otherHOD, EntityExpenditure, id, "verify", Payload{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("failed attempts append no step", func() {
		s.Require().Len(s.expenditureSteps(id), 1)
	})
}

func (s *CoordinatorSuite) TestVicePrincipalApprovalLimit() {
	s.seedAllocation("science-fair", "200000.00")
	id := s.submitExpenditure("science-fair", "60000.00")
	s.mustApply(s.hod, EntityExpenditure, id, "verify", Payload{})

	_, err := s.apply(s.vp, EntityExpenditure, id, "approve", Payload{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "over-limit vp approval is a permission error")

	s.mustApply(s.principal, EntityExpenditure, id, "approve", Payload{})

	small := s.submitExpenditure("science-fair", "40000.00")
	s.mustApply(s.hod, EntityExpenditure, small, "verify", Payload{})
	s.mustApply(s.vp, EntityExpenditure, small, "approve", Payload{})
}

func (s *CoordinatorSuite) TestRejectionRequiresRemarks() {
	s.seedAllocation("science-fair", "10000.00")
	id := s.submitExpenditure("science-fair", "100.00")

	_, err := s.apply(s.hod, EntityExpenditure, id, "reject", Payload{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(expenditure.StatusPending, s.expenditureStatus(id))

	res := s.mustApply(s.hod, EntityExpenditure, id, "reject", Payload{Remarks: "no quotes attached"})
	s.Equal(string(expenditure.StatusRejected), res.Status)
	s.Equal("no quotes attached", res.Step.Remarks)
}

func (s *CoordinatorSuite) TestFinalizationPolicyDenied() {
	s.seedAllocation("science-fair", "1000.00")
	id := s.submitExpenditure("science-fair", "1500.00")
	s.approveExpenditure(id)

	_, err := s.apply(s.office, EntityExpenditure, id, "finalize", Payload{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePolicyDenied))

	s.Equal(expenditure.StatusApproved, s.expenditureStatus(id), "denied finalization must not move the record")

	alloc, err := s.ledgerStore.Find(s.ctx, ledger.Key{
		Department: s.dept, BudgetHead: "science-fair", FinancialYear: "2025-2026",
	})
	s.Require().NoError(err)
	s.True(alloc.SpentAmount.IsZero(), "denied finalization must not touch the ledger")
}

func (s *CoordinatorSuite) TestFinalizationWithoutAllocation() {
	id := s.submitExpenditure("unbudgeted-head", "100.00")
	s.approveExpenditure(id)

	_, err := s.apply(s.office, EntityExpenditure, id, "finalize", Payload{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// Two approved expenditures that individually fit but jointly overspend the
// same allocation: concurrent finalization must land exactly one.
func (s *CoordinatorSuite) TestConcurrentFinalizationExactlyOneWins() {
	s.seedAllocation("science-fair", "1000.00")
	first := s.submitExpenditure("science-fair", "600.00")
	second := s.submitExpenditure("science-fair", "600.00")
	s.approveExpenditure(first)
	s.approveExpenditure(second)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, id := range []string{first, second} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, results[i] = s.apply(s.office, EntityExpenditure, id, "finalize", Payload{})
		}(i, id)
	}
	wg.Wait()

	var ok, denied int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case dErrors.HasCode(err, dErrors.CodePolicyDenied):
			denied++
		default:
			s.FailNowf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(1, denied)

	alloc, err := s.ledgerStore.Find(s.ctx, ledger.Key{
		Department: s.dept, BudgetHead: "science-fair", FinancialYear: "2025-2026",
	})
	s.Require().NoError(err)
	s.Equal("600", alloc.SpentAmount.String())
}

func (s *CoordinatorSuite) TestNearExhaustionNotification() {
	s.seedAllocation("science-fair", "1000.00")
	id := s.submitExpenditure("science-fair", "950.00")
	s.approveExpenditure(id)
	s.mustApply(s.office, EntityExpenditure, id, "finalize", Payload{})

	var seen bool
	for _, n := range s.notifier.all() {
		if n.kind == "near_exhaustion" && n.key.BudgetHead == "science-fair" {
			seen = true
		}
	}
	s.True(seen, "remaining 50 of 1000 must trip the 0.1 ratio")
}

// ---------------------------------------------------------------------------
// Submission advisory
// ---------------------------------------------------------------------------

func (s *CoordinatorSuite) TestSubmissionAdvisory() {
	s.Run("no allocation yields a warning, not an error", func() {
		s.SetupTest()
		res, err := s.coordinator.SubmitExpenditure(s.ctx, s.submitter, SubmitExpenditureInput{
			BudgetHead: "unbudgeted",
			EventDate:  time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
			Purpose:    "guest lecture",
			Items:      []expenditure.LineItem{{Description: "honorarium", Amount: decimal.RequireFromString("500.00")}},
		})
		s.Require().NoError(err)
		s.Require().NotNil(res.Advisory)
		s.False(res.Advisory.AllocationFound)
		s.NotEmpty(res.Warnings)
	})

	s.Run("inadmissible total still submits", func() {
		s.SetupTest()
		s.seedAllocation("science-fair", "100.00")
		res, err := s.coordinator.SubmitExpenditure(s.ctx, s.submitter, SubmitExpenditureInput{
			BudgetHead: "science-fair",
			EventDate:  time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
			Purpose:    "science fair",
			Items:      []expenditure.LineItem{{Description: "venue", Amount: decimal.RequireFromString("500.00")}},
		})
		s.Require().NoError(err)
		s.Require().NotNil(res.Advisory)
		s.True(res.Advisory.AllocationFound)
		s.False(res.Advisory.Admissible)
		s.Equal(expenditure.StatusPending, s.expenditureStatus(res.ID))
	})

	s.Run("unknown attachment reference fails validation", func() {
		s.SetupTest()
		_, err := s.coordinator.SubmitExpenditure(s.ctx, s.submitter, SubmitExpenditureInput{
			BudgetHead: "science-fair",
			EventDate:  time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
			Purpose:    "science fair",
			Items: []expenditure.LineItem{
				{Description: "venue", Amount: decimal.RequireFromString("500.00"), AttachmentRef: "missing-ref"},
			},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("known attachment reference passes", func() {
		s.SetupTest()
		s.attachments.Put("quote-123")
		_, err := s.coordinator.SubmitExpenditure(s.ctx, s.submitter, SubmitExpenditureInput{
			BudgetHead: "science-fair",
			EventDate:  time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
			Purpose:    "science fair",
			Items: []expenditure.LineItem{
				{Description: "venue", Amount: decimal.RequireFromString("500.00"), AttachmentRef: "quote-123"},
			},
		})
		s.NoError(err)
	})
}

// ---------------------------------------------------------------------------
// Expenditure resubmission
// ---------------------------------------------------------------------------

func (s *CoordinatorSuite) rejectedExpenditure() string {
	s.seedAllocation("science-fair", "10000.00")
	id := s.submitExpenditure("science-fair", "100.00")
	s.mustApply(s.hod, EntityExpenditure, id, "reject", Payload{Remarks: "missing quotes"})
	return id
}

func (s *CoordinatorSuite) TestExpenditureResubmission() {
	id := s.rejectedExpenditure()

	res := s.mustApply(s.submitter, EntityExpenditure, id, "resubmit", Payload{})
	s.Require().NotEmpty(res.ChildID)

	childID, err := domain.ParseExpenditureID(res.ChildID)
	s.Require().NoError(err)
	child, err := s.expStore.Get(s.ctx, childID)
	s.Require().NoError(err)
	s.True(child.IsResubmission)
	s.Equal(id, child.OriginalID.String())
	s.Equal(expenditure.StatusPending, child.Status)

	s.Equal(expenditure.StatusRejected, s.expenditureStatus(id), "original stays rejected")
}

func (s *CoordinatorSuite) TestResubmissionGovernor() {
	s.Run("only the original submitter may resubmit", func() {
		s.SetupTest()
		id := s.rejectedExpenditure()
		_, err := s.apply(s.hod, EntityExpenditure, id, "resubmit", Payload{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("second resubmission conflicts", func() {
		s.SetupTest()
		id := s.rejectedExpenditure()
		s.mustApply(s.submitter, EntityExpenditure, id, "resubmit", Payload{})

		_, err := s.apply(s.submitter, EntityExpenditure, id, "resubmit", Payload{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("a rejected resubmission cannot be resubmitted again", func() {
		s.SetupTest()
		id := s.rejectedExpenditure()
		res := s.mustApply(s.submitter, EntityExpenditure, id, "resubmit", Payload{})
		s.mustApply(s.hod, EntityExpenditure, res.ChildID, "reject", Payload{Remarks: "still missing quotes"})

		_, err := s.apply(s.submitter, EntityExpenditure, res.ChildID, "resubmit", Payload{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	})

	s.Run("concurrent resubmissions create exactly one child", func() {
		s.SetupTest()
		id := s.rejectedExpenditure()

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = s.apply(s.submitter, EntityExpenditure, id, "resubmit", Payload{})
			}(i)
		}
		wg.Wait()

		var ok, conflict int
		for _, err := range results {
			switch {
			case err == nil:
				ok++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflict++
			default:
				s.FailNowf("unexpected error", "%v", err)
			}
		}
		s.Equal(1, ok)
		s.Equal(1, conflict)
	})
}

// ---------------------------------------------------------------------------
// Proposal lifecycle
// ---------------------------------------------------------------------------

func (s *CoordinatorSuite) createProposal(heads ...string) string {
	items := make([]proposal.Item, 0, len(heads))
	for _, head := range heads {
		items = append(items, proposal.Item{
			BudgetHead:     domain.BudgetHead(head),
			ProposedAmount: decimal.RequireFromString("10000.00"),
			Justification:  "projected departmental need",
		})
	}
	res, err := s.coordinator.CreateProposal(s.ctx, s.hod, CreateProposalInput{
		FinancialYear: "2026-2027",
		Items:         items,
	})
	s.Require().NoError(err)
	return res.ID
}

func (s *CoordinatorSuite) proposalToPrincipalStage(heads ...string) string {
	id := s.createProposal(heads...)
	s.mustApply(s.hod, EntityProposal, id, "submit", Payload{})
	s.mustApply(s.hod, EntityProposal, id, "verify", Payload{})
	s.mustApply(s.principal, EntityProposal, id, "verify", Payload{})
	return id
}

func (s *CoordinatorSuite) proposalStatus(id string) proposal.Status {
	parsed, err := domain.ParseProposalID(id)
	s.Require().NoError(err)
	prop, err := s.propStore.Get(s.ctx, parsed)
	s.Require().NoError(err)
	return prop.Status
}

func (s *CoordinatorSuite) TestProposalHappyPath() {
	id := s.proposalToPrincipalStage("lab-equipment", "library-books")
	s.Equal(proposal.StatusVerifiedByPrincipal, s.proposalStatus(id))

	parsed, err := domain.ParseProposalID(id)
	s.Require().NoError(err)
	s.Require().NoError(s.coordinator.MarkProposalRead(s.ctx, s.office, parsed))

	res := s.mustApply(s.office, EntityProposal, id, "approve", Payload{})
	s.Equal(proposal.StatusApproved, s.proposalStatus(id))
	s.Len(res.CreatedAllocations, 2)

	alloc, err := s.ledgerStore.Find(s.ctx, ledger.Key{
		Department: s.dept, BudgetHead: "lab-equipment", FinancialYear: "2026-2027",
	})
	s.Require().NoError(err)
	s.Equal("10000", alloc.AllocatedAmount.String())
	s.Equal(id, alloc.SourceProposalID.String())
}

func (s *CoordinatorSuite) TestFirstPrincipalVerificationWins() {
	id := s.createProposal("lab-equipment")
	s.mustApply(s.hod, EntityProposal, id, "submit", Payload{})
	s.mustApply(s.hod, EntityProposal, id, "verify", Payload{})
	s.mustApply(s.vp, EntityProposal, id, "verify", Payload{})

	_, err := s.apply(s.principal, EntityProposal, id, "verify", Payload{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
	s.Contains(err.Error(), "already verified")
}

func (s *CoordinatorSuite) TestApprovalRequiresRead() {
	id := s.proposalToPrincipalStage("lab-equipment")

	_, err := s.apply(s.office, EntityProposal, id, "approve", Payload{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	parsed, perr := domain.ParseProposalID(id)
	s.Require().NoError(perr)
	s.Require().NoError(s.coordinator.MarkProposalRead(s.ctx, s.office, parsed))
	s.Require().NoError(s.coordinator.MarkProposalRead(s.ctx, s.office, parsed), "reads are idempotent")

	s.mustApply(s.office, EntityProposal, id, "approve", Payload{})
}

func (s *CoordinatorSuite) TestApprovalWithOverridesAndExistingAllocation() {
	// The office already holds an allocation for one of the heads.
	created, err := s.ledgerStore.CreateIfAbsent(s.ctx, ledger.Allocation{
		Key: ledger.Key{
			Department: s.dept, BudgetHead: "lab-equipment", FinancialYear: "2026-2027",
		},
		AllocatedAmount: decimal.RequireFromString("5000.00"),
		Status:          ledger.AllocationActive,
	})
	s.Require().NoError(err)
	s.Require().True(created)

	id := s.proposalToPrincipalStage("lab-equipment", "library-books")
	parsed, perr := domain.ParseProposalID(id)
	s.Require().NoError(perr)
	s.Require().NoError(s.coordinator.MarkProposalRead(s.ctx, s.office, parsed))

	res := s.mustApply(s.office, EntityProposal, id, "approve", Payload{
		Overrides: map[domain.BudgetHead]decimal.Decimal{
			"library-books": decimal.RequireFromString("7500.00"),
		},
	})

	s.Len(res.CreatedAllocations, 1, "existing allocation is skipped")
	s.NotEmpty(res.Warnings)

	books, err := s.ledgerStore.Find(s.ctx, ledger.Key{
		Department: s.dept, BudgetHead: "library-books", FinancialYear: "2026-2027",
	})
	s.Require().NoError(err)
	s.Equal("7500", books.AllocatedAmount.String(), "override replaces the proposed amount")

	lab, err := s.ledgerStore.Find(s.ctx, ledger.Key{
		Department: s.dept, BudgetHead: "lab-equipment", FinancialYear: "2026-2027",
	})
	s.Require().NoError(err)
	s.Equal("5000", lab.AllocatedAmount.String(), "existing allocation is never overwritten")
}

func (s *CoordinatorSuite) TestOneActionableProposalPerCycle() {
	s.createProposal("lab-equipment")

	_, err := s.coordinator.CreateProposal(s.ctx, s.hod, CreateProposalInput{
		FinancialYear: "2026-2027",
		Items: []proposal.Item{
			{BudgetHead: "sports", ProposedAmount: decimal.RequireFromString("100.00")},
		},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *CoordinatorSuite) TestProposalResubmission() {
	id := s.createProposal("lab-equipment")
	s.mustApply(s.hod, EntityProposal, id, "submit", Payload{})
	s.mustApply(s.hod, EntityProposal, id, "verify", Payload{})
	s.mustApply(s.principal, EntityProposal, id, "reject", Payload{Remarks: "inflate-free estimates please"})
	s.Equal(proposal.StatusRejected, s.proposalStatus(id))

	res := s.mustApply(s.hod, EntityProposal, id, "resubmit", Payload{
		ProposalItems: []proposal.Item{
			{BudgetHead: "lab-equipment", ProposedAmount: decimal.RequireFromString("8000.00")},
		},
	})
	s.Equal(proposal.StatusRevised, s.proposalStatus(id), "original is terminally revised")
	s.Require().NotEmpty(res.ChildID)

	childID, err := domain.ParseProposalID(res.ChildID)
	s.Require().NoError(err)
	child, err := s.propStore.Get(s.ctx, childID)
	s.Require().NoError(err)
	s.Equal(proposal.StatusDraft, child.Status)
	s.True(child.IsResubmission)
	s.Equal("8000", child.TotalProposed.String())

	// The revised original is not actionable anymore.
	_, err = s.apply(s.hod, EntityProposal, id, "submit", Payload{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

	// And it cannot be resubmitted a second time.
	_, err = s.apply(s.hod, EntityProposal, id, "resubmit", Payload{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

// ---------------------------------------------------------------------------
// Side effects
// ---------------------------------------------------------------------------

func (s *CoordinatorSuite) TestSideEffectsOnlyAfterCommit() {
	s.seedAllocation("science-fair", "10000.00")
	id := s.submitExpenditure("science-fair", "100.00")

	before := len(s.sink.all())
	_, err := s.apply(s.office, EntityExpenditure, id, "finalize", Payload{})
	s.Require().Error(err)
	s.Len(s.sink.all(), before, "failed transitions must deliver nothing")
	s.Empty(s.notifierDecisions())

	s.mustApply(s.hod, EntityExpenditure, id, "verify", Payload{})
	events := s.sink.all()
	s.Require().NotEmpty(events)
	last := events[len(events)-1]
	s.Equal("expenditure.verified", last.EventType)
	s.Equal(string(expenditure.StatusPending), last.Previous)
	s.Equal(string(expenditure.StatusVerified), last.Next)
	s.Equal(s.hod.ID, last.ActorID)
}

func (s *CoordinatorSuite) notifierDecisions() []notification {
	var out []notification
	for _, n := range s.notifier.all() {
		if n.kind == "decision" {
			out = append(out, n)
		}
	}
	return out
}
