package gateway

import (
	"context"
	"sort"
	"time"

	"github.com/cuemby/googol/pkg/types"
)

// refresh recomputes the statistics snapshot and pushes it to subscribers
func (g *Gateway) refresh(ctx context.Context) {
	g.mu.Lock()
	stats := g.buildStatistics()
	g.current = stats
	g.pubMu.Lock()
	g.mu.Unlock()
	defer g.pubMu.Unlock()

	if failed := g.broker.Publish(context.WithoutCancel(ctx), stats); len(failed) > 0 {
		g.logger.Info().Strs("subscribers", failed).Msg("Dropped unreachable subscribers")
	}
}

// buildStatistics snapshots counters and per-barrel detail. Caller holds mu.
func (g *Gateway) buildStatistics() *types.Statistics {
	stats := &types.Statistics{
		TopSearchTerms:   make(map[string]int, len(g.terms)),
		TopConsultedURLs: make(map[string]int, len(g.urls)),
		Barrels:          make([]types.BarrelStats, 0, len(g.nodes)),
		GeneratedAt:      time.Now(),
	}
	for t, c := range g.terms {
		stats.TopSearchTerms[t] = c
	}
	for u, c := range g.urls {
		stats.TopConsultedURLs[u] = c
	}

	for _, n := range g.nodes {
		status := types.BarrelStatusSynching
		if n.active {
			status = types.BarrelStatusActive
		}
		stats.Barrels = append(stats.Barrels, types.BarrelStats{
			Name:               n.handle.Name,
			Status:             status,
			AvgResponseTimeMs:  float64(n.average()) / float64(time.Millisecond),
			RequestCount:       n.samples,
			InvertedIndexCount: n.inverted,
			IncomingLinksCount: n.incoming,
		})
	}
	sort.Slice(stats.Barrels, func(i, j int) bool {
		return stats.Barrels[i].Name < stats.Barrels[j].Name
	})
	return stats
}
