package unifiedllm

import (
	"errors"
	"fmt"
)

// SDKError is the base of every error this package returns.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError is a failure reported by a provider backend. StatusCode is
// the HTTP status when the backend exposed or implied one.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("[%s] %s (retryable=%v)", e.Provider, e.Message, e.Retryable)
	}
	return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
}

// Provider failures that end a run.
type (
	AuthenticationError struct{ ProviderError }
	AccessDeniedError   struct{ ProviderError }
	NotFoundError       struct{ ProviderError }
	ContentFilterError  struct{ ProviderError }
	ContextLengthError  struct{ ProviderError }
)

// Provider failures worth retrying.
type (
	RateLimitError struct {
		ProviderError
		RetryAfter *float64 // seconds
	}
	ServerError struct{ ProviderError }
)

// Failures that happen outside the provider.
type (
	RequestTimeoutError struct{ SDKError }
	AbortError          struct{ SDKError }
	NetworkError        struct{ SDKError }
	ConfigurationError  struct{ SDKError }
)

// IsRetryable reports whether err (or an error it wraps) is safe to retry.
// Unknown errors default to retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var (
		authErr    *AuthenticationError
		deniedErr  *AccessDeniedError
		notFound   *NotFoundError
		ctxLen     *ContextLengthError
		filtered   *ContentFilterError
		configErr  *ConfigurationError
		abortErr   *AbortError
		rateErr    *RateLimitError
		serverErr  *ServerError
		netErr     *NetworkError
		timeoutErr *RequestTimeoutError
		provErr    *ProviderError
	)

	switch {
	case errors.As(err, &authErr), errors.As(err, &deniedErr), errors.As(err, &notFound),
		errors.As(err, &ctxLen), errors.As(err, &filtered),
		errors.As(err, &configErr), errors.As(err, &abortErr):
		return false
	case errors.As(err, &rateErr), errors.As(err, &serverErr), errors.As(err, &netErr),
		errors.As(err, &timeoutErr):
		return true
	case errors.As(err, &provErr):
		return provErr.Retryable
	default:
		return true
	}
}
