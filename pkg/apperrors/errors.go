package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a missing or malformed field. Shown to the user as-is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IllegalTransitionError reports an action that is not permitted from the
// brief's current status. It indicates a UI or programming bug.
type IllegalTransitionError struct {
	Action string
	Status string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: action %q is not allowed from status %q", e.Action, e.Status)
}

// PersistenceError wraps a failed gateway call. Local state is kept so the
// caller can retry the same operation.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// NewPersistenceError wraps err unless it is already a PersistenceError.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Cause: err}
}

// SuggestionUnavailableError reports a failed suggestion or summary request.
// Non-fatal: authoring continues without the suggestion.
type SuggestionUnavailableError struct {
	QuestionID string // empty for whole-brief summaries
	Cause      error
}

func (e *SuggestionUnavailableError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("summary unavailable: %v", e.Cause)
	}
	return fmt.Sprintf("suggestion unavailable for %s: %v", e.QuestionID, e.Cause)
}

func (e *SuggestionUnavailableError) Unwrap() error {
	return e.Cause
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsIllegalTransition reports whether err is an IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var it *IllegalTransitionError
	return errors.As(err, &it)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsSuggestionUnavailable reports whether err is a SuggestionUnavailableError.
func IsSuggestionUnavailable(err error) bool {
	var se *SuggestionUnavailableError
	return errors.As(err, &se)
}
