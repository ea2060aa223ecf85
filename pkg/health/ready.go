package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// readyBody is the part of a /ready answer the checker reports
type readyBody struct {
	Status  string            `json:"status"`
	Role    string            `json:"role"`
	Checks  map[string]string `json:"checks"`
	Message string            `json:"message"`
}

// ReadyChecker reads the /ready endpoint of a node's admin server. The node
// is healthy on a 200 answer; the role and the reason it is not ready are
// carried in the result message.
type ReadyChecker struct {
	URL    string
	Client *http.Client
}

// NewReadyChecker checks http://addr/ready
func NewReadyChecker(addr string) *ReadyChecker {
	return &ReadyChecker{
		URL:    fmt.Sprintf("http://%s/ready", addr),
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Check fetches the readiness document
func (r *ReadyChecker) Check(ctx context.Context) Result {
	start := time.Now()
	result := func(healthy bool, format string, args ...any) Result {
		return Result{
			Healthy:   healthy,
			Message:   fmt.Sprintf(format, args...),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return result(false, "invalid url: %v", err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return result(false, "unreachable: %v", err)
	}
	defer resp.Body.Close()

	var body readyBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil {
		body.Status = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		reason := body.Message
		if reason == "" {
			reason = body.Status
		}
		return result(false, "%s not ready: %s", roleOr(body.Role), reason)
	}
	return result(true, "%s ready", roleOr(body.Role))
}

// Type returns the health check type
func (r *ReadyChecker) Type() CheckType {
	return CheckTypeHTTP
}

func roleOr(role string) string {
	if role == "" {
		return "node"
	}
	return role
}
