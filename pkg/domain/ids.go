package domain

import (
	"github.com/google/uuid"

	dErrors "bursar/pkg/domain-errors"
)

// Typed IDs wrap uuid.UUID so entity references cannot be swapped across
// types by accident. Parse functions enforce validity at trust boundaries.
type (
	ActorID       uuid.UUID
	DepartmentID  uuid.UUID
	ExpenditureID uuid.UUID
	ProposalID    uuid.UUID
	AllocationID  uuid.UUID
)

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must not be empty")
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeValidation, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must not be the nil UUID")
	}
	return u, nil
}

func ParseActorID(raw string) (ActorID, error) {
	u, err := parseUUID(raw)
	return ActorID(u), err
}

func ParseDepartmentID(raw string) (DepartmentID, error) {
	u, err := parseUUID(raw)
	return DepartmentID(u), err
}

func ParseExpenditureID(raw string) (ExpenditureID, error) {
	u, err := parseUUID(raw)
	return ExpenditureID(u), err
}

func ParseProposalID(raw string) (ProposalID, error) {
	u, err := parseUUID(raw)
	return ProposalID(u), err
}

func NewActorID() ActorID             { return ActorID(uuid.New()) }
func NewDepartmentID() DepartmentID   { return DepartmentID(uuid.New()) }
func NewExpenditureID() ExpenditureID { return ExpenditureID(uuid.New()) }
func NewProposalID() ProposalID       { return ProposalID(uuid.New()) }
func NewAllocationID() AllocationID   { return AllocationID(uuid.New()) }

func (id ActorID) String() string       { return uuid.UUID(id).String() }
func (id DepartmentID) String() string  { return uuid.UUID(id).String() }
func (id ExpenditureID) String() string { return uuid.UUID(id).String() }
func (id ProposalID) String() string    { return uuid.UUID(id).String() }
func (id AllocationID) String() string  { return uuid.UUID(id).String() }

func (id ActorID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id DepartmentID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ExpenditureID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ProposalID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AllocationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps the JSON form the canonical UUID string rather than
// the raw byte array a wrapped [16]byte would otherwise encode to.

func (id ActorID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id DepartmentID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id ExpenditureID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ProposalID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id AllocationID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *ActorID) UnmarshalText(b []byte) error {
	parsed, err := ParseActorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DepartmentID) UnmarshalText(b []byte) error {
	parsed, err := ParseDepartmentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ExpenditureID) UnmarshalText(b []byte) error {
	parsed, err := ParseExpenditureID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ProposalID) UnmarshalText(b []byte) error {
	parsed, err := ParseProposalID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
