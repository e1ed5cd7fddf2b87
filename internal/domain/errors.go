package domain

import "fmt"

// ValidationError reports malformed caller input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransientError reports a transport failure (timeout, connection reset,
// HTTP 429) that persisted through every retry attempt.
type TransientError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ClientError reports a non-retryable HTTP error response (4xx other than
// 429, or a 5xx the provider treats as final).
type ClientError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}
