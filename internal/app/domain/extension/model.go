package extension

import (
	"errors"
	"time"
)

// Status of an extension request. PENDING is the only non-terminal state;
// APPROVED and REJECTED are final.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further transition is valid.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision requested by the resolving party.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Request asks to push a program's end date out by DaysRequested days. The
// token is the sole external handle: generated at creation, never reused,
// never mutated.
type Request struct {
	Token         string
	ProgramID     string
	DaysRequested int
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResolvedAt    time.Time
}

// Approval is the result of an approved request: the updated request plus
// the program end date before and after the extension.
type Approval struct {
	Request    Request
	OldEndDate time.Time
	NewEndDate time.Time
}

// Resolution is what a resolve call yields. AlreadyResolved marks the
// idempotent case where the request had reached a terminal state before this
// call; nothing was mutated then and the date fields are zero.
type Resolution struct {
	Request         Request
	OldEndDate      time.Time
	NewEndDate      time.Time
	AlreadyResolved bool
}

var (
	// ErrNotFound signals an unknown token.
	ErrNotFound = errors.New("extension request not found")
	// ErrProgramNotFound signals that the referenced program does not exist.
	ErrProgramNotFound = errors.New("program not found")
	// ErrInvalidInput signals a malformed request, e.g. non-positive days.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyResolved signals that the request is in a terminal state.
	ErrAlreadyResolved = errors.New("extension request already resolved")
)
