package health

import (
	"context"
	"fmt"
	"time"
)

// ProbeFunc calls a remote liveness method
type ProbeFunc func(ctx context.Context) error

// ProbeChecker turns a remote call into a health check. The gateway uses
// it with a barrel's IsActive.
type ProbeChecker struct {
	Name  string
	Probe ProbeFunc
}

// NewProbeChecker creates a probe checker
func NewProbeChecker(name string, probe ProbeFunc) *ProbeChecker {
	return &ProbeChecker{Name: name, Probe: probe}
}

// Check runs the probe
func (p *ProbeChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := p.Probe(ctx); err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("%s probe failed: %v", p.Name, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("%s responded", p.Name),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (p *ProbeChecker) Type() CheckType {
	return CheckTypeProbe
}
