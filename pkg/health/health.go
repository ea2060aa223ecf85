package health

import (
	"context"
	"time"
)

// CheckType names the kind of probe a Checker runs
type CheckType string

const (
	CheckTypeProbe CheckType = "probe"
	CheckTypeHTTP  CheckType = "http"
	CheckTypeTCP   CheckType = "tcp"
)

// Result is the outcome of one Check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker probes one target
type Checker interface {
	Check(ctx context.Context) Result
	Type() CheckType
}

// Config controls how often and how patiently a target is probed
type Config struct {
	Interval time.Duration `yaml:"interval"`
	// Timeout bounds a single Check
	Timeout time.Duration `yaml:"timeout"`
	// Retries is how many failures in a row make a target unhealthy
	Retries int `yaml:"retries"`
}

// DefaultConfig probes every three seconds and gives up on the first failure
func DefaultConfig() Config {
	return Config{
		Interval: 3 * time.Second,
		Timeout:  2 * time.Second,
		Retries:  1,
	}
}

// Status folds probe results for one peer. A peer starts healthy and turns
// unhealthy after Config.Retries failures in a row; one success resets it.
type Status struct {
	Healthy    bool
	Failures   int
	LastResult Result
}

// NewStatus returns a healthy status
func NewStatus() *Status {
	return &Status{Healthy: true}
}

// Update records result and reports whether the peer is still healthy
func (s *Status) Update(result Result, config Config) bool {
	s.LastResult = result
	if result.Healthy {
		s.Failures = 0
		s.Healthy = true
		return true
	}

	s.Failures++
	if s.Failures >= max(config.Retries, 1) {
		s.Healthy = false
	}
	return s.Healthy
}

// Run performs check with the configured timeout
func Run(ctx context.Context, check Checker, config Config) Result {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}
	return check.Check(ctx)
}

// WaitHealthy runs check every interval until it passes or ctx is done
func WaitHealthy(ctx context.Context, check Checker, config Config) error {
	interval := config.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}

	for {
		if Run(ctx, check, config).Healthy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
