package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies a ledger error.
type ErrorKind string

const (
	KindBudgetExceeded     ErrorKind = "BudgetExceeded"
	KindInsufficientPoints ErrorKind = "InsufficientPoints"
	KindNoActiveSession    ErrorKind = "NoActiveSession"
	KindPersistence        ErrorKind = "PersistenceFailure"
	KindInvalidTransaction ErrorKind = "InvalidTransaction"
)

// Error is the typed result of a refused or failed ledger operation. Callers
// match on Kind with errors.Is against the Err* sentinels and render the
// message themselves.
type Error struct {
	Kind ErrorKind

	// BudgetExceeded context.
	Period   Period
	Current  decimal.Decimal
	Proposed decimal.Decimal
	Limit    decimal.Decimal

	// InsufficientPoints context.
	Action    string
	Required  int64
	Available int64

	Detail string
	Err    error
}

var (
	ErrBudgetExceeded     = &Error{Kind: KindBudgetExceeded}
	ErrInsufficientPoints = &Error{Kind: KindInsufficientPoints}
	ErrNoActiveSession    = &Error{Kind: KindNoActiveSession}
	ErrPersistence        = &Error{Kind: KindPersistence}
	ErrInvalidTransaction = &Error{Kind: KindInvalidTransaction}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindBudgetExceeded:
		return fmt.Sprintf("budget exceeded: %s total %s + %s > %s", e.Period, e.Current, e.Proposed, e.Limit)
	case KindInsufficientPoints:
		return fmt.Sprintf("insufficient points to %s: need %d, have %d", e.Action, e.Required, e.Available)
	case KindNoActiveSession:
		return "no active session"
	case KindPersistence:
		if e.Err != nil {
			return fmt.Sprintf("persistence failure: %s: %v", e.Detail, e.Err)
		}
		return "persistence failure: " + e.Detail
	case KindInvalidTransaction:
		return "invalid transaction: " + e.Detail
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Message is the text shown in the dashboard's error slot.
func (e *Error) Message() string {
	switch e.Kind {
	case KindBudgetExceeded:
		return "Adding this expense will exceed your budget."
	case KindInsufficientPoints:
		return fmt.Sprintf("You need at least %d points to %s.", e.Required, e.Action)
	case KindNoActiveSession:
		return "Please sign in to continue."
	case KindPersistence:
		return "Something went wrong saving your changes. Please try again."
	case KindInvalidTransaction:
		return "Please check the values you entered."
	}
	return e.Error()
}

// BudgetExceeded builds the refusal for an expense that would overrun the
// active period's budget.
func BudgetExceeded(p Period, current, proposed, limit decimal.Decimal) *Error {
	return &Error{Kind: KindBudgetExceeded, Period: p, Current: current, Proposed: proposed, Limit: limit}
}

// InsufficientPoints builds the refusal for a points spend the balance
// cannot cover.
func InsufficientPoints(action string, required, available int64) *Error {
	return &Error{Kind: KindInsufficientPoints, Action: action, Required: required, Available: available}
}

// NoActiveSession is returned when an operation has no resolved identity.
func NoActiveSession() *Error {
	return &Error{Kind: KindNoActiveSession}
}

// NoActiveSessionCause is NoActiveSession for an identity that was
// presented but rejected.
func NoActiveSessionCause(err error) *Error {
	return &Error{Kind: KindNoActiveSession, Err: err}
}

// Persistence wraps a store failure.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Detail: op, Err: err}
}

// InvalidTransaction reports a data contract violation.
func InvalidTransaction(detail string) *Error {
	return &Error{Kind: KindInvalidTransaction, Detail: detail}
}

// AsError extracts the *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}
