/*
Package metrics provides Prometheus metrics and the component health registry
for every Googol role.

All metrics are package-level vectors registered in init() and exposed by
Handler() on the role's HTTP admin listener (/metrics):

	Queue:       googol_queue_pending_urls, googol_queue_idle_downloaders,
	             googol_queue_assignments_total{result}
	Barrel:      googol_barrel_index_terms{barrel}, googol_barrel_link_targets{barrel},
	             googol_barrel_pages_total{barrel,outcome}
	Multicast:   googol_multicast_rounds_total, googol_multicast_failed_targets_total
	Downloader:  googol_downloader_pages_total{outcome}, googol_fetch_duration_seconds
	Gateway:     googol_gateway_barrels, googol_gateway_subscribers,
	             googol_gateway_evictions_total{reason},
	             googol_gateway_route_duration_seconds{method}
	API:         googol_api_requests_total{method,status},
	             googol_api_request_duration_seconds{method}

Gauges that mirror component state are refreshed by a Collector, which calls
CollectMetrics on every registered Sampler on a ticker.

# Health

SetComponent records the state of named components. Readiness requires
every component named by SetCriticalComponents to be registered and healthy;
the api package serves the result on /ready.
Roles add their own checks on top, so a barrel stays not-ready until its join
protocol finishes.

# Timing

	timer := metrics.NewTimer()
	pages, err := fetch(ctx, url)
	timer.ObserveDuration(metrics.FetchDuration)
*/
package metrics
