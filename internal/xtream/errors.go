package xtream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Failure taxonomy surfaced to callers. Timeout and network failures are the
// only retryable classes; everything else propagates immediately.
var (
	ErrTimeout            = errors.New("request timed out")
	ErrNetwork            = errors.New("network failure")
	ErrMalformed          = errors.New("malformed response")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account not active")
)

// HTTPError is a non-2xx response from the panel. Never retried: the panel
// answered, it just said no.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// classifyTransport maps a transport-level error onto the taxonomy.
// Caller cancellation passes through untouched so context.Canceled checks
// keep working up the stack.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Keep the context error in the chain: callers distinguish their
		// own expired deadline from a provider-side timeout.
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// outcomeLabel maps an error to the metrics outcome label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	default:
		var he *HTTPError
		if errors.As(err, &he) {
			return "http_error"
		}
		return "error"
	}
}
