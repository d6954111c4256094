package domain

import "time"

// Decision is the outcome recorded by one approval step.
type Decision string

const (
	DecisionSubmitted Decision = "submitted"
	DecisionVerified  Decision = "verified"
	DecisionApproved  Decision = "approved"
	DecisionRejected  Decision = "rejected"
	DecisionFinalized Decision = "finalized"
	// DecisionRevised is recorded on a rejected proposal when its
	// resubmission is created; the original becomes terminal.
	DecisionRevised Decision = "revised"
)

// ApprovalStep is one immutable entry in an entity's approval log. The log is
// append-only and never reordered; entity status is a fold over it. Remarks
// may be empty except on rejection.
type ApprovalStep struct {
	Seq       int
	ActorID   ActorID
	ActorRole Role
	Decision  Decision
	Remarks   string
	Timestamp time.Time
}
