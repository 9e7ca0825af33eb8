/*
errors.go - Centralized error types for the progression engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP boundary maps these onto status codes, so the three user-facing
  classes stay distinct all the way out:
    - "your input was invalid"      (IsClientError)
    - "you are not allowed yet"     (IsNotAllowed)
    - "the system failed"           (IsRetryable / persistence)

ERROR CATEGORIES:
  1. Validation errors - Bad parameters, rejected before any mutation
  2. Lookup errors     - Member does not exist
  3. Rule errors       - Promotion not permitted in the current state
  4. Store errors      - Save/append failures, partial batch failures

USAGE:
  result, err := svc.Approve(ctx, id, actor, reason)
  var ne *progression.NotEligibleError
  if errors.As(err, &ne) {
      fmt.Println(ne.State, ne.Reason)
  }

SEE ALSO:
  - service.go: Produces PersistenceError and BatchError
  - promotion.go: Produces NotEligibleError
  - api/handlers.go: Maps errors to HTTP status
*/
package progression

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed or out-of-range parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMemberNotFound is returned when an operation addresses a missing member.
	ErrMemberNotFound = errors.New("member not found")

	// ErrNotEligible is returned when an approval is attempted outside the
	// Eligible / ready-but-locked states.
	ErrNotEligible = errors.New("member not eligible for promotion")

	// ErrAlreadyAtMaxRank is returned when there is no next rank. Not retryable.
	ErrAlreadyAtMaxRank = errors.New("member already at maximum rank")

	// ErrPersistence is returned when the member store or event log fails.
	ErrPersistence = errors.New("persistence failure")

	// ErrPartialBatch is returned when a bulk operation had per-record failures.
	ErrPartialBatch = errors.New("partial batch failure")

	// ErrInvalidConfig is returned when a ladder or point table fails validation.
	ErrInvalidConfig = errors.New("invalid progression config")

	// ErrInvalidRecord is returned when a command would save a member that
	// breaks a record invariant. Nothing is written. It is a server fault,
	// not a client error.
	ErrInvalidRecord = errors.New("invalid member record")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotEligibleError carries the computed state so the caller can render why.
type NotEligibleError struct {
	MemberID MemberID
	State    EligibilityState
	Reason   string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("member %s not eligible (%s): %s", e.MemberID, e.State, e.Reason)
}

func (e *NotEligibleError) Unwrap() error { return ErrNotEligible }

// PersistenceError wraps a store or log failure with the attempted operation.
//
// Committed is true when the member record was saved but the paired event
// append failed. The state change is durable; retrying would apply it twice.
type PersistenceError struct {
	MemberID  MemberID
	Op        string
	Committed bool
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s for member %s: %v", e.Op, e.MemberID, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// RecordFailure is one failed member inside a bulk operation.
type RecordFailure struct {
	MemberID MemberID
	Err      error
}

// BatchError aggregates per-record failures. The batch itself kept going.
type BatchError struct {
	Op       string
	Total    int
	Failures []RecordFailure
}

func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, string(f.MemberID))
	}
	return fmt.Sprintf("%s: %d of %d records failed [%s]", e.Op, len(e.Failures), e.Total, strings.Join(ids, ", "))
}

func (e *BatchError) Unwrap() error { return ErrPartialBatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing member.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound)
}

// IsNotAllowed returns true for rule rejections ("not yet" / "never").
func IsNotAllowed(err error) bool {
	return errors.Is(err, ErrNotEligible) || errors.Is(err, ErrAlreadyAtMaxRank)
}

// IsRetryable returns true if retrying with the same input is safe.
func IsRetryable(err error) bool {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return !pe.Committed
	}
	return false
}
