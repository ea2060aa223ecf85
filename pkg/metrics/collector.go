package metrics

import (
	"time"
)

// Sampler refreshes gauges from a component's current state
type Sampler interface {
	CollectMetrics()
}

// Collector periodically samples registered components
type Collector struct {
	samplers []Sampler
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a collector sampling every interval
func NewCollector(interval time.Duration, samplers ...Sampler) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		samplers: samplers,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for _, s := range c.samplers {
		s.CollectMetrics()
	}
}
