package domain

import "errors"

// Sentinel errors forming the client-facing failure taxonomy. Cancellation is
// deliberately absent: adapters return ctx.Err() unwrapped and the boundaries
// filter it before it can reach user-visible error handling.
var (
	// ErrMissingCredential means the selected provider's credential is not
	// configured. It is raised before any network I/O and is not retryable
	// without operator action.
	ErrMissingCredential = errors.New("geocoding: provider credential not configured")

	// ErrRateLimited is the free provider's HTTP 429, surfaced distinctly so
	// callers can advise waiting instead of retrying immediately.
	ErrRateLimited = errors.New("geocoding: provider rate limit exceeded, retry later")
)

// StatusError is a non-OK application status from the commercial provider,
// translated to a human-readable cause. Status keeps the raw provider value
// for logs.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}
