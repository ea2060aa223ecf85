package gateway

import (
	"context"
	"time"

	"github.com/cuemby/googol/pkg/health"
	"github.com/cuemby/googol/pkg/metrics"
	"github.com/cuemby/googol/pkg/types"
	"golang.org/x/sync/errgroup"
)

func (g *Gateway) heartbeatLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.config.Heartbeat.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Heartbeat(context.Background())
		case <-g.stopCh:
			return
		}
	}
}

type probeResult struct {
	n      *node
	result health.Result
	active bool
}

// Heartbeat probes every barrel with IsActive concurrently. Barrels whose
// probe fails are evicted; the rest get their status label refreshed. It
// returns the number of evicted barrels.
func (g *Gateway) Heartbeat(ctx context.Context) int {
	g.mu.Lock()
	targets := make([]*node, 0, len(g.nodes))
	services := make([]types.BarrelService, 0, len(g.nodes))
	names := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		targets = append(targets, n)
		services = append(services, n.svc)
		names = append(names, n.handle.Name)
	}
	g.mu.Unlock()

	results := make([]probeResult, len(targets))
	var probes errgroup.Group
	for i, n := range targets {
		probes.Go(func() error {
			r := &results[i]
			r.n = n
			checker := health.NewProbeChecker(names[i], func(ctx context.Context) error {
				a, err := services[i].IsActive(ctx)
				r.active = a
				return err
			})
			r.result = health.Run(ctx, checker, g.config.Heartbeat)
			return nil
		})
	}
	_ = probes.Wait()

	var dead []types.Handle
	changed := false

	g.mu.Lock()
	for _, r := range results {
		current, ok := g.nodes[r.n.handle.Name]
		if !ok || current != r.n {
			continue
		}
		if !r.n.health.Update(r.result, g.config.Heartbeat) {
			delete(g.nodes, r.n.handle.Name)
			dead = append(dead, r.n.handle)
			continue
		}
		if r.n.active != r.active {
			r.n.active = r.active
			changed = true
		}
	}
	g.mu.Unlock()

	for _, h := range dead {
		metrics.GatewayEvictionsTotal.WithLabelValues(evictHeartbeat).Inc()
		g.logger.Warn().Str("barrel", h.Name).Msg("Heartbeat failed, barrel evicted")
		g.forget(ctx, h)
	}

	if len(dead) > 0 || changed {
		g.refresh(ctx)
	}
	return len(dead)
}
