package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/iptvdeck/iptv-deck/internal/metrics"
)

// RetryPolicy controls how transport-level failures are retried.
// Only timeout/network-class failures are retried: an HTTP response with any
// status code is handed back to the caller untouched, and malformed payloads
// are the caller's concern. Retries use a fixed delay, not backoff — catalog
// panels that time out once usually answer the second attempt promptly or not
// at all.
type RetryPolicy struct {
	Retries int           // attempts after the first try
	Delay   time.Duration // fixed wait between attempts
}

// DefaultRetryPolicy matches normal catalog calls: two retries, 1s apart.
var DefaultRetryPolicy = RetryPolicy{Retries: 2, Delay: 1 * time.Second}

// ProbeRetryPolicy is for connectivity tests: same retry count, shorter delay.
var ProbeRetryPolicy = RetryPolicy{Retries: 2, Delay: 500 * time.Millisecond}

// Response is a fully materialized HTTP response: status plus complete body.
// GetWithRetry only returns one once the body has been read in full, so a
// timeout or connection drop mid-body counts as a retryable transport failure
// just like one that strikes before headers arrive.
type Response struct {
	StatusCode int
	Body       []byte
}

// GetWithRetry performs a GET against url and reads the whole body, retrying
// transport failures per policy. Header may be nil. Cancelling ctx aborts the
// in-flight request and any pending retry wait.
func GetWithRetry(ctx context.Context, client *http.Client, url string, header http.Header, policy RetryPolicy) (*Response, error) {
	if client == nil {
		client = Default()
	}
	var lastErr error
	for attempt := 0; attempt <= policy.Retries; attempt++ {
		if attempt > 0 {
			metrics.APIRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(policy.Delay):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err := client.Do(req)
		if err == nil {
			var body []byte
			body, err = io.ReadAll(resp.Body)
			resp.Body.Close()
			if err == nil {
				// Any HTTP status is a definitive answer; never retried here.
				return &Response{StatusCode: resp.StatusCode, Body: body}, nil
			}
			// A stalled or dropped body is a transport failure like any
			// other; fall through to the retry path.
		}
		lastErr = err
		// Caller cancellation is not a transient failure.
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}
