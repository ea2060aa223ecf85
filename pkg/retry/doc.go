// Package retry implements the bounded retry-with-reconnect wrapper used for
// every cross-component call, and the failure classification that decides
// between eviction, re-queueing and propagation.
//
// A call is tried Config.Attempts times with a fixed Config.Delay. When all
// tries fail, an optional ReconnectFunc re-resolves the peer (typically a
// directory lookup by name) and the call is tried once more:
//
//	results, err := retry.Do(ctx, cfg, reconnect, func(ctx context.Context) ([]types.SearchResult, error) {
//		return node.Search(ctx, terms)
//	})
package retry
