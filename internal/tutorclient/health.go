package tutorclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coursekit/tutorstream/internal/reliability"
)

// HealthServices reports per-dependency health as seen by the server.
type HealthServices struct {
	Database string `json:"database"`
	AI       string `json:"ai"`
}

// HealthStatus is the client view of GET /v1/health. Status carries the
// server's healthy|degraded|unhealthy, or a client-assigned
// timeout|unreachable|error_<code> when the check itself failed.
type HealthStatus struct {
	Status             string         `json:"status"`
	Available          bool           `json:"available"`
	Timestamp          string         `json:"timestamp"`
	Env                string         `json:"env"`
	DeepSeekConfigured bool           `json:"deepSeekConfigured"`
	Services           HealthServices `json:"services"`
}

// Health returns the cached status while it is fresh; forceRefresh bypasses
// the cache. Never returns an error: failures are encoded in Status so a UI
// can render them directly.
func (c *Client) Health(ctx context.Context, forceRefresh bool) HealthStatus {
	c.healthMu.Lock()
	if !forceRefresh && c.cachedHealth != nil && time.Since(c.cachedAt) < c.healthTTL {
		cached := *c.cachedHealth
		c.healthMu.Unlock()
		return cached
	}
	c.healthMu.Unlock()

	status := c.checkHealth(ctx)

	c.healthMu.Lock()
	c.cachedHealth = &status
	c.cachedAt = time.Now()
	c.healthMu.Unlock()
	return status
}

// checkHealth runs the bounded retry loop: retryable statuses and transport
// failures get another attempt after a fixed delay, everything else is final.
func (c *Client) checkHealth(ctx context.Context) HealthStatus {
	var last HealthStatus
	for attempt := 0; attempt <= c.healthRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return last
			case <-time.After(c.healthRetryDelay):
			}
		}

		status, retryable := c.healthAttempt(ctx)
		if !retryable {
			return status
		}
		last = status
		c.logger.Warn("health check attempt failed", "attempt", attempt+1, "status", status.Status)
	}
	return last
}

func (c *Client) healthAttempt(ctx context.Context) (status HealthStatus, retryable bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return HealthStatus{Status: "unreachable"}, false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if reliability.IsTimeout(err) {
			return HealthStatus{Status: "timeout"}, true
		}
		return HealthStatus{Status: "unreachable"}, true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return HealthStatus{Status: fmt.Sprintf("error_%d", resp.StatusCode)},
			reliability.IsRetryableHTTPStatus(resp.StatusCode)
	}

	var parsed HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return HealthStatus{Status: "error_decode"}, false
	}
	return parsed, false
}
