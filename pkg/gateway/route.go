package gateway

import (
	"context"
	"sort"
	"time"

	"github.com/cuemby/googol/pkg/metrics"
	"github.com/cuemby/googol/pkg/retry"
	"github.com/cuemby/googol/pkg/types"
)

const (
	evictRouting   = "connection_refused"
	evictHeartbeat = "heartbeat"
)

// route runs call against the selected barrel with retry and reconnection.
// A barrel that refuses the connection is evicted and the next one tried;
// any other error is returned. ErrNoBarrels means nothing was left to try.
func route[T any](ctx context.Context, g *Gateway, method string, call func(context.Context, types.BarrelService) (T, error)) (T, error) {
	g.routeMu.Lock()
	defer g.routeMu.Unlock()

	var zero T
	for {
		n, name := g.acquire()
		if n == nil {
			return zero, types.ErrNoBarrels
		}

		timer := metrics.NewTimer()
		v, err := retry.Do(ctx, g.config.Retry, g.reconnectBarrel(name), func(ctx context.Context) (T, error) {
			return call(ctx, g.service(n))
		})
		if err != nil {
			if retry.IsConnectionRefused(err) {
				g.logger.Warn().Err(err).Str("barrel", name).Str("method", method).Msg("Barrel unreachable")
				g.evict(ctx, g.handleOf(n), evictRouting)
				continue
			}
			return zero, err
		}

		timer.ObserveDurationVec(metrics.GatewayRouteDuration, method)
		g.recordSample(n, max(timer.Duration(), time.Millisecond))
		return v, nil
	}
}

// acquire selects a barrel and marks it used
func (g *Gateway) acquire() (*node, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.selectNode()
	if n == nil {
		return nil, ""
	}
	n.lastUsed = time.Now()
	return n, n.handle.Name
}

// selectNode picks the barrel with the lowest average response time once
// every candidate has a sample. Before that it picks at random among
// barrels never used, and as a last resort any barrel. Candidates are the
// barrels known to be active, or all barrels if none is. Caller holds mu.
func (g *Gateway) selectNode() *node {
	if len(g.nodes) == 0 {
		return nil
	}

	var active, all []*node
	for _, n := range g.nodes {
		all = append(all, n)
		if n.active {
			active = append(active, n)
		}
	}
	candidates := active
	if len(candidates) == 0 {
		candidates = all
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].handle.Name < candidates[j].handle.Name
	})

	allSampled := true
	for _, n := range candidates {
		if n.samples == 0 {
			allSampled = false
			break
		}
	}
	if allSampled {
		best := candidates[0]
		for _, n := range candidates[1:] {
			if n.average() < best.average() {
				best = n
			}
		}
		return best
	}

	var neverUsed []*node
	for _, n := range candidates {
		if n.lastUsed.IsZero() {
			neverUsed = append(neverUsed, n)
		}
	}
	if len(neverUsed) > 0 {
		return neverUsed[g.pickRand(len(neverUsed))]
	}

	return candidates[0]
}

// service returns the node's current client, which reconnection may replace
func (g *Gateway) service(n *node) types.BarrelService {
	g.mu.Lock()
	defer g.mu.Unlock()
	return n.svc
}

func (g *Gateway) handleOf(n *node) types.Handle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return n.handle
}

// reconnectBarrel looks the barrel up again by name and swaps in a fresh client
func (g *Gateway) reconnectBarrel(name string) retry.ReconnectFunc {
	return func(ctx context.Context) error {
		h, err := g.directory.Resolve(ctx, name)
		if err != nil {
			return err
		}
		svc, err := g.dialer.DialBarrel(h)
		if err != nil {
			return err
		}

		g.mu.Lock()
		defer g.mu.Unlock()
		if n, ok := g.nodes[name]; ok {
			n.handle = h
			n.svc = svc
		}
		g.logger.Info().Str("barrel", name).Str("addr", h.Addr).Msg("Reconnected to barrel")
		return nil
	}
}

func (g *Gateway) recordSample(n *node, elapsed time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n.total += elapsed
	n.samples++
}
