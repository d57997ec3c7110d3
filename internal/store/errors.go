package store

import (
	"errors"

	"goalplanner/internal/log"
)

// Op is the user-facing name of a store operation.
type Op string

const (
	OpFetch   Op = "fetching goals"
	OpAdd     Op = "adding goal"
	OpUpdate  Op = "updating goal"
	OpDelete  Op = "deleting goal"
	OpDeposit Op = "making deposit"
)

// Kind separates local precondition failures from backend failures.
type Kind int

const (
	KindRemote Kind = iota
	KindNotFound
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	default:
		return "remote"
	}
}

func (k Kind) logType() string {
	switch k {
	case KindNotFound:
		return log.ErrorTypeNotFound
	case KindInvalid:
		return log.ErrorTypeValidation
	default:
		return log.ErrorTypeRemote
	}
}

var (
	ErrGoalNotFound  = errors.New("Goal not found")
	ErrInvalidAmount = errors.New("Amount must be greater than 0")
	ErrMissingID     = errors.New("Goal id is required")
)

// Error is the failure result of every store operation.
type Error struct {
	Op   Op
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return "Error " + string(e.Op) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a store error, or KindRemote for anything else.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindRemote
}
