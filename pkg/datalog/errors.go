package datalog

import "fmt"

// ValidationErrorKind enumerates the Validator's rejection reasons. These
// are the only engine errors a caller is expected to recover from: fix
// the program and call Init again.
type ValidationErrorKind int

const (
	UnsafeVariable ValidationErrorKind = iota
	Unstratified
	UselessUnification
	UnknownPredicate
	ArityMismatch
	DisallowedFeature
)

func (k ValidationErrorKind) String() string {
	switch k {
	case UnsafeVariable:
		return "unsafe-variable"
	case Unstratified:
		return "unstratified"
	case UselessUnification:
		return "useless-unification"
	case UnknownPredicate:
		return "unknown-predicate"
	case ArityMismatch:
		return "arity-mismatch"
	case DisallowedFeature:
		return "disallowed-feature"
	default:
		return "unknown"
	}
}

// ValidationError reports why a clause was rejected during validation. It
// carries the offending clause so a caller (or the CLI) can point at the
// exact source of the problem.
type ValidationError struct {
	Kind    ValidationErrorKind
	Clause  *Clause
	Message string
}

func (e *ValidationError) Error() string {
	clause := "<nil>"
	if e.Clause != nil {
		clause = e.Clause.String()
	}
	return fmt.Sprintf("validation error (%s): %s: %s", e.Kind, e.Message, clause)
}

// EvaluationInvariantError signals an internal assertion failure: a term
// the validator should have guaranteed to be ground at disunification
// time was not. It is never user-recoverable.
type EvaluationInvariantError struct {
	Message string
}

func (e *EvaluationInvariantError) Error() string {
	return "evaluation invariant violation: " + e.Message
}

// ResourceExhaustionError reports that the saturator's executor cannot
// accept further work. No code path in this package returns it.
type ResourceExhaustionError struct {
	Message string
}

func (e *ResourceExhaustionError) Error() string {
	return "resource exhaustion: " + e.Message
}
