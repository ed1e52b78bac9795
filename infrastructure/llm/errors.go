package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahrav/go-dossier/internal/ports"
)

// Common errors returned by the providers.
var (
	// ErrEmptyResponse indicates that the provider returned no text.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice indicates that the provider's response contained no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrNoEmbedding indicates that an embedding response carried no vector.
	ErrNoEmbedding = errors.New("no embedding returned")
)

// ErrorType classifies a provider failure.
type ErrorType int

const (
	// ErrorTypeUnknown indicates an error of an undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication indicates a rejected or missing credential.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit indicates that the provider throttled the request.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest indicates a malformed request or invalid parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates an unknown model or endpoint.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a failure on the provider's side.
	ErrorTypeServerError
	// ErrorTypeContentPolicy indicates that a safety filter blocked the request.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork indicates a transport problem or a canceled request.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates that the request deadline passed.
	ErrorTypeTimeout
)

// String returns the label used in error messages and metrics.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeServerError:
		return "server_error"
	case ErrorTypeContentPolicy:
		return "content_policy"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProviderError is a provider failure normalized across SDKs. It unwraps to
// both the SDK error and the matching ports sentinel, so callers can test
// for ports.ErrRateLimited and friends without knowing the provider.
type ProviderError struct {
	Type         ErrorType
	Provider     string
	StatusCode   int
	Message      string
	WrappedError error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	base := fmt.Sprintf("%s error", e.Provider)
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Type != ErrorTypeUnknown {
		base += fmt.Sprintf(" [%s]", e.Type)
	}
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.WrappedError != nil {
		base += fmt.Sprintf(": %v", e.WrappedError)
	}
	return base
}

// Unwrap exposes the SDK error and the ports sentinel for the error type.
func (e *ProviderError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.WrappedError != nil {
		errs = append(errs, e.WrappedError)
	}
	if s := e.sentinel(); s != nil {
		errs = append(errs, s)
	}
	return errs
}

// IsRetryable reports whether the failure is transient. Nothing in this
// module retries automatically; callers may use this to decide.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

func (e *ProviderError) sentinel() error {
	switch e.Type {
	case ErrorTypeAuthentication:
		return ports.ErrAuthenticationFailed
	case ErrorTypeRateLimit:
		return ports.ErrRateLimited
	case ErrorTypeServerError:
		return ports.ErrServiceUnavailable
	case ErrorTypeTimeout:
		return ports.ErrTimeout
	case ErrorTypeBadRequest, ErrorTypeNotFound, ErrorTypeContentPolicy:
		return ports.ErrInvalidResponse
	default:
		return nil
	}
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// ErrorClassifier turns SDK failures into ProviderErrors for one provider.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError classifies by HTTP status code.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	var errType ErrorType

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = ErrorTypeAuthentication
		message = fmt.Sprintf("%s authentication failed", ec.Provider)
	case http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
		message = fmt.Sprintf("%s rate limit exceeded", ec.Provider)
	case http.StatusNotFound:
		errType = ErrorTypeNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		errType = ErrorTypeTimeout
	default:
		switch {
		case statusCode >= 500:
			errType = ErrorTypeServerError
		case statusCode >= 400:
			errType = ErrorTypeBadRequest
		default:
			errType = ErrorTypeUnknown
		}
	}

	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError classifies cancellation and deadline errors.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
