package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Common domain errors raised while validating and answering a query.
var (
	// ErrEmptyQuestion indicates that the submitted question had no content.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrQuestionTooLong indicates that the question exceeded the length limit.
	ErrQuestionTooLong = errors.New("question too long")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrSynthesisFormat is the sentinel matched by SynthesisFormatError.
	ErrSynthesisFormat = errors.New("invalid response format from synthesis model")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string

	// Cause is an optional sentinel such as ErrEmptyQuestion.
	Cause error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap returns the sentinel cause, if any.
func (e *ValidationError) Unwrap() error { return e.Cause }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// SynthesisFormatError reports model output that could not be parsed into
// the four-field contract, even after repair. It is fatal for the request.
type SynthesisFormatError struct {
	// Reason describes which stage rejected the output.
	Reason string

	// Excerpt holds the beginning of the raw output for diagnostics.
	Excerpt string

	// Err is the underlying parse error, if any.
	Err error
}

// maxExcerpt bounds how much raw model output is kept on the error.
const maxExcerpt = 200

// NewSynthesisFormatError creates a SynthesisFormatError, truncating raw to a
// short excerpt.
func NewSynthesisFormatError(reason, raw string, err error) *SynthesisFormatError {
	excerpt := raw
	if len(excerpt) > maxExcerpt {
		cut := maxExcerpt
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut] + "..."
	}
	return &SynthesisFormatError{Reason: reason, Excerpt: excerpt, Err: err}
}

// Error implements the error interface for SynthesisFormatError.
func (e *SynthesisFormatError) Error() string {
	msg := fmt.Sprintf("%v: %s", ErrSynthesisFormat, e.Reason)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying parse error.
func (e *SynthesisFormatError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSynthesisFormat.
func (e *SynthesisFormatError) Is(target error) bool { return target == ErrSynthesisFormat }

// AdmissionDeniedError is returned when the rate limiter rejects a request.
// It is not an application failure; callers surface the retry hint.
type AdmissionDeniedError struct {
	Key               string
	RetryAfterSeconds int
}

// Error implements the error interface for AdmissionDeniedError.
func (e *AdmissionDeniedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry after %ds", e.Key, e.RetryAfterSeconds)
}
