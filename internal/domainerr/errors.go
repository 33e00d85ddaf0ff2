// Package domainerr holds the error taxonomy shared by the triage packages.
//
// Every rejection is a *RuleError that names the failing rule and wraps one
// of the Kind sentinels, so callers can branch on the kind with errors.Is
// and still show the user which rule failed.
package domainerr

import (
	"errors"
	"fmt"
)

// Kind sentinels. Match with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrSchedulingConflict     = errors.New("scheduling conflict")
	ErrOutOfEligibilityWindow = errors.New("out of eligibility window")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrPersistenceFailure     = errors.New("persistence failure")
)

// RuleError is a rejection tied to one named rule.
type RuleError struct {
	Kind    error
	Rule    string
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RuleError) Unwrap() error { return e.Kind }

// New builds a RuleError of the given kind.
func New(kind error, rule, message string) *RuleError {
	return &RuleError{Kind: kind, Rule: rule, Message: message}
}

// Newf is New with a formatted message.
func Newf(kind error, rule, format string, args ...any) *RuleError {
	return &RuleError{Kind: kind, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// Rule returns the rule name carried by err, or "" when err is not a RuleError.
func Rule(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Rule
	}
	return ""
}

// Persistence wraps a backing-store failure. The cause stays reachable
// through errors.Unwrap chains for logging.
func Persistence(op string, cause error) error {
	return &persistenceError{op: op, cause: cause}
}

type persistenceError struct {
	op    string
	cause error
}

func (e *persistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistenceFailure, e.op, e.cause)
}

func (e *persistenceError) Unwrap() []error { return []error{ErrPersistenceFailure, e.cause} }
