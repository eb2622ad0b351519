package errors

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline errors for retry/abort decisions and for the
// structured error payload returned to callers.
type Kind string

const (
	KindGeneration    Kind = "generation"
	KindInvalidQuery  Kind = "invalid_verdict"
	KindSafety        Kind = "safety_violation"
	KindExecution     Kind = "execution"
	KindRetryBudget   Kind = "retry_budget_exceeded"
	KindCancelled     Kind = "cancelled"
	KindCatalog       Kind = "catalog"
	KindTemplateStore Kind = "template_store"
	KindConfig        Kind = "config"
	KindValidation    Kind = "validation"
	KindInternal      Kind = "internal"
)

// Error is a structured error carrying its classification and the pipeline
// stage at which it occurred.
type Error struct {
	Kind        Kind
	Stage       string
	Message     string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	switch {
	case e.Stage != "" && e.Cause != nil:
		return fmt.Sprintf("%s [%s]: %s (caused by: %v)", e.Kind, e.Stage, e.Message, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	case e.Stage != "":
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Stage, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// AtStage records the pipeline stage where the error occurred.
func (e *Error) AtStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithSuggestion adds a hint for resolving the error.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// New creates a new structured error.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Newf creates a new structured error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a kind and additional context.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Kind == kind
	}

	return false
}

// GetKind returns the classification of err, or KindInternal for plain errors.
func GetKind(err error) Kind {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Kind
	}

	return KindInternal
}

// GetStage returns the stage recorded on err, or an empty string.
func GetStage(err error) string {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Stage
	}

	return ""
}

// Fatal reports whether errors of this kind abort the pipeline without
// another regeneration round.
func (k Kind) Fatal() bool {
	switch k {
	case KindSafety, KindRetryBudget, KindCancelled:
		return true
	default:
		return false
	}
}
