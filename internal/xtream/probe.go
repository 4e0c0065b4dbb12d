package xtream

import (
	"context"
	"errors"
	"time"

	"github.com/iptvdeck/iptv-deck/internal/httpclient"
)

// ProbeStatus classifies a connectivity test outcome.
type ProbeStatus string

const (
	ProbeOK         ProbeStatus = "ok"
	ProbeAuthFailed ProbeStatus = "auth_failed"
	ProbeInactive   ProbeStatus = "inactive"
	ProbeTimeout    ProbeStatus = "timeout"
	ProbeError      ProbeStatus = "error"
)

// ProbeResult is the outcome of probing one panel.
type ProbeResult struct {
	Status    ProbeStatus
	LatencyMs int64
	Auth      *AuthInfo // set when Status == ProbeOK
	Err       error     // underlying error for non-OK statuses
}

// Probe runs a connectivity test: authenticate under the short probe timeout
// (15s) with the probe retry policy (500ms between attempts) and classify the
// result. The normal client policy is untouched.
func (c *Client) Probe(ctx context.Context) ProbeResult {
	probe := *c
	probe.HTTPClient = httpclient.WithTimeout(httpclient.ProbeTimeout)
	probe.Retry = httpclient.ProbeRetryPolicy

	start := time.Now()
	auth, err := probe.Authenticate(ctx)
	latency := time.Since(start).Milliseconds()
	if err == nil {
		return ProbeResult{Status: ProbeOK, LatencyMs: latency, Auth: auth}
	}
	switch {
	case errors.Is(err, ErrAccountInactive):
		return ProbeResult{Status: ProbeInactive, LatencyMs: latency, Err: err}
	case errors.Is(err, ErrInvalidCredentials):
		return ProbeResult{Status: ProbeAuthFailed, LatencyMs: latency, Err: err}
	case errors.Is(err, ErrTimeout):
		return ProbeResult{Status: ProbeTimeout, LatencyMs: latency, Err: err}
	default:
		return ProbeResult{Status: ProbeError, LatencyMs: latency, Err: err}
	}
}
