package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the coordinator can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity/allocation does not exist in store
// - ErrConflict: transaction aborted on a concurrent write; retry as a fresh attempt
// - ErrDenied: atomic conditional update refused by the overspend condition
// - ErrAlreadyExists: insert refused because the key is already present
// - ErrInvalidState: entity in wrong state for requested operation
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrDenied        = errors.New("denied")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidState  = errors.New("invalid state")
)
