package framework

import (
	"context"
	"fmt"
	"time"
)

// WaitForCondition polls condition until it holds or timeout elapses
func WaitForCondition(timeout, interval time.Duration, condition func() bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if condition() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("condition not met within %s", timeout)
		case <-ticker.C:
		}
	}
}

// WaitForCrawl waits until the queue is drained and idle for a few polls
func (c *Cluster) WaitForCrawl(timeout time.Duration) error {
	quiet := 0
	return WaitForCondition(timeout, 50*time.Millisecond, func() bool {
		pending, registered, idle := c.Queue.Status()
		if pending == 0 && registered > 0 && idle == registered {
			quiet++
		} else {
			quiet = 0
		}
		return quiet >= 5
	})
}
