package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// LLMError represents an error from an embedding or completion provider.
// It includes details about the model and operation.
type LLMError struct {
	// Model is the identifier of the model that generated the error.
	Model string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for LLMError.
func (e *LLMError) Error() string {
	return fmt.Sprintf("LLM error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *LLMError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is temporary. The query pipeline
// never retries on its own; this only informs callers.
func (e *LLMError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewLLMError creates a new LLMError with the given details.
func NewLLMError(model, operation string, err error) *LLMError {
	return &LLMError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}

// IndexError represents a failed call to the vector index.
type IndexError struct {
	// Index names the index or collection that was queried.
	Index string

	// Operation is the name of the index operation that failed.
	Operation string

	// StatusCode is the HTTP status returned by the index, if any.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for IndexError.
func (e *IndexError) Error() string {
	msg := fmt.Sprintf("index error: operation=%s, index=%s", e.Operation, e.Index)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(", status=%d", e.StatusCode)
	}
	return msg + fmt.Sprintf(", err=%v", e.Err)
}

// Unwrap returns the underlying error.
func (e *IndexError) Unwrap() error { return e.Err }

// NewIndexError creates a new IndexError with the given details.
func NewIndexError(index, operation string, statusCode int, err error) *IndexError {
	return &IndexError{
		Index:      index,
		Operation:  operation,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ConfigError represents an error from configuration operations, such as a
// provider credential that was never supplied.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}

// MissingCredential returns a ConfigError for an absent credential.
func MissingCredential(key string) *ConfigError {
	return NewConfigError(key, ErrConfigNotFound)
}
