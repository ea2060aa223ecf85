package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics
	QueuePendingURLs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "googol_queue_pending_urls",
			Help: "Number of URLs waiting for a downloader",
		},
	)

	QueueIdleDownloaders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "googol_queue_idle_downloaders",
			Help: "Number of downloaders waiting for a URL",
		},
	)

	QueueAssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "googol_queue_assignments_total",
			Help: "URL assignments by result",
		},
		[]string{"result"},
	)

	// Barrel metrics
	BarrelIndexTerms = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "googol_barrel_index_terms",
			Help: "Number of terms in the barrel inverted index",
		},
		[]string{"barrel"},
	)

	BarrelLinkTargets = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "googol_barrel_link_targets",
			Help: "Number of URLs with at least one incoming link",
		},
		[]string{"barrel"},
	)

	BarrelPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "googol_barrel_pages_total",
			Help: "Pages received by a barrel, by outcome (stored or dropped)",
		},
		[]string{"barrel", "outcome"},
	)

	// Broadcast metrics
	MulticastRoundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "googol_multicast_rounds_total",
			Help: "Total number of delivery rounds",
		},
	)

	MulticastFailedTargetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "googol_multicast_failed_targets_total",
			Help: "Targets that failed every delivery round",
		},
	)

	// Downloader metrics
	DownloaderPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "googol_downloader_pages_total",
			Help: "URLs processed by downloaders, by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "googol_fetch_duration_seconds",
			Help:    "Time taken to fetch and parse a page",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Gateway metrics
	GatewayBarrels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "googol_gateway_barrels",
			Help: "Number of barrels registered with the gateway",
		},
	)

	GatewaySubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "googol_gateway_subscribers",
			Help: "Number of statistics subscribers",
		},
	)

	GatewayEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "googol_gateway_evictions_total",
			Help: "Barrels evicted by the gateway, by reason",
		},
		[]string{"reason"},
	)

	GatewayRouteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "googol_gateway_route_duration_seconds",
			Help:    "Time taken by a routed barrel call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "googol_api_requests_total",
			Help: "Total number of RPC requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "googol_api_request_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(QueuePendingURLs)
	prometheus.MustRegister(QueueIdleDownloaders)
	prometheus.MustRegister(QueueAssignmentsTotal)
	prometheus.MustRegister(BarrelIndexTerms)
	prometheus.MustRegister(BarrelLinkTargets)
	prometheus.MustRegister(BarrelPagesTotal)
	prometheus.MustRegister(MulticastRoundsTotal)
	prometheus.MustRegister(MulticastFailedTargetsTotal)
	prometheus.MustRegister(DownloaderPagesTotal)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(GatewayBarrels)
	prometheus.MustRegister(GatewaySubscribers)
	prometheus.MustRegister(GatewayEvictionsTotal)
	prometheus.MustRegister(GatewayRouteDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
