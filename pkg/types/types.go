package types

import (
	"time"
)

// Handle identifies a remote service instance. Handles are comparable and are
// what the directory stores under a name.
type Handle struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// String returns name@addr
func (h Handle) String() string {
	return h.Name + "@" + h.Addr
}

// IsZero reports whether the handle is unset
func (h Handle) IsZero() bool {
	return h.Name == "" && h.Addr == ""
}

// CrawledPage is the indexable data a downloader extracts from one fetched URL.
// It is immutable once built and discarded after broadcast.
type CrawledPage struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Words         []string `json:"words"`
	OutgoingLinks []string `json:"outgoing_links"`
}

// URLMetadata is what a barrel remembers about an indexed URL
type URLMetadata struct {
	Title    string `json:"title"`
	Citation string `json:"citation"`
}

// SearchResult is one entry of an ordered search answer
type SearchResult struct {
	URL      string      `json:"url"`
	Metadata URLMetadata `json:"metadata"`
}

// NodeState is the activation state of a barrel
type NodeState string

const (
	NodeStateSynching NodeState = "SYNCHING"
	NodeStateActive   NodeState = "ACTIVE"
)

// Status labels shown in statistics snapshots
const (
	BarrelStatusActive   = "Active"
	BarrelStatusSynching = "Synching"
)

// BarrelStats is the per-barrel detail of a statistics snapshot
type BarrelStats struct {
	Name               string  `json:"name"`
	Status             string  `json:"status"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
	RequestCount       int     `json:"request_count"`
	InvertedIndexCount int     `json:"inverted_index_count"`
	IncomingLinksCount int     `json:"incoming_links_count"`
}

// Statistics is the snapshot pushed to gateway subscribers.
// Frequency maps hold raw counters; they are never trimmed.
type Statistics struct {
	TopSearchTerms   map[string]int `json:"top_search_terms"`
	TopConsultedURLs map[string]int `json:"top_consulted_urls"`
	Barrels          []BarrelStats  `json:"barrels"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// Clone returns a deep copy of the snapshot
func (s *Statistics) Clone() *Statistics {
	if s == nil {
		return nil
	}
	out := &Statistics{
		TopSearchTerms:   make(map[string]int, len(s.TopSearchTerms)),
		TopConsultedURLs: make(map[string]int, len(s.TopConsultedURLs)),
		Barrels:          make([]BarrelStats, len(s.Barrels)),
		GeneratedAt:      s.GeneratedAt,
	}
	for k, v := range s.TopSearchTerms {
		out.TopSearchTerms[k] = v
	}
	for k, v := range s.TopConsultedURLs {
		out.TopConsultedURLs[k] = v
	}
	copy(out.Barrels, s.Barrels)
	return out
}

// Well-known directory names
const (
	QueueName        = "Queue"
	GatewayName      = "Gateway"
	StopWordsName    = "StopWords"
	BarrelPrefix     = "Barrel-"
	DownloaderPrefix = "Downloader-"
)

// BarrelName returns the directory name of a barrel
func BarrelName(id string) string {
	return BarrelPrefix + id
}

// DownloaderName returns the directory name of a downloader
func DownloaderName(id string) string {
	return DownloaderPrefix + id
}
