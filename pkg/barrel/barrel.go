package barrel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/metrics"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
)

const (
	citationWords   = 20
	noTitle         = "no title"
	noDescription   = "no description"
	reportTimeout   = 5 * time.Second
	defaultWaitPoll = 2 * time.Second
)

// Reporter receives index size reports. The gateway implements it.
type Reporter interface {
	RegisterBarrel(ctx context.Context, handle types.Handle) error
	UpdateBarrelIndexSize(ctx context.Context, handle types.Handle, invertedSize, incomingSize int) error
}

// Dialer connects to the peers a barrel talks to during startup
type Dialer interface {
	DialBarrel(handle types.Handle) (types.BarrelService, error)
	DialDownloader(handle types.Handle) (types.DownloaderService, error)
	DialGateway(handle types.Handle) (types.GatewayService, error)
}

// Config holds barrel configuration
type Config struct {
	// Handle is the name and advertised address of this barrel
	Handle types.Handle
	// GatewayPoll is how often startup retries reaching the gateway
	GatewayPoll time.Duration
}

type urlSet map[string]struct{}

// Barrel is a storage node holding a full replica of the inverted index,
// the incoming link graph and page metadata.
type Barrel struct {
	mu      sync.Mutex
	state   types.NodeState
	index   map[string]urlSet
	links   map[string]urlSet
	sources urlSet
	pages   map[string]types.URLMetadata

	handle    types.Handle
	config    Config
	directory types.DirectoryService
	dialer    Dialer

	reportMu sync.Mutex
	gateway  Reporter
	reportCh chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	logger zerolog.Logger
}

// New creates a barrel in the SYNCHING state
func New(cfg Config, directory types.DirectoryService, dialer Dialer) *Barrel {
	if cfg.GatewayPoll <= 0 {
		cfg.GatewayPoll = defaultWaitPoll
	}
	return &Barrel{
		state:     types.NodeStateSynching,
		index:     make(map[string]urlSet),
		links:     make(map[string]urlSet),
		sources:   make(urlSet),
		pages:     make(map[string]types.URLMetadata),
		handle:    cfg.Handle,
		config:    cfg,
		directory: directory,
		dialer:    dialer,
		reportCh:  make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		logger:    log.WithNodeName("barrel", cfg.Handle.Name),
	}
}

// SetGateway sets the reporter that receives index sizes
func (b *Barrel) SetGateway(gw Reporter) {
	b.reportMu.Lock()
	defer b.reportMu.Unlock()
	b.gateway = gw
}

// StorePage indexes page. Pages received while SYNCHING are dropped.
func (b *Barrel) StorePage(ctx context.Context, page *types.CrawledPage) error {
	if page == nil || page.URL == "" {
		return fmt.Errorf("page with url is required")
	}

	b.mu.Lock()
	if b.state != types.NodeStateActive {
		b.mu.Unlock()
		metrics.BarrelPagesTotal.WithLabelValues(b.handle.Name, "dropped").Inc()
		b.logger.Debug().Str("url", page.URL).Msg("Dropped page while synching")
		return nil
	}

	for _, w := range page.Words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		add(b.index, w, page.URL)
	}
	for _, link := range page.OutgoingLinks {
		if link == "" {
			continue
		}
		add(b.links, link, page.URL)
		b.sources[page.URL] = struct{}{}
	}
	b.pages[page.URL] = types.URLMetadata{
		Title:    page.Title,
		Citation: Citation(page.Words),
	}
	b.mu.Unlock()

	metrics.BarrelPagesTotal.WithLabelValues(b.handle.Name, "stored").Inc()
	b.requestReport()
	return nil
}

// Search returns the union of URLs matching any term, ordered by term and
// then by URL. A [PAGE:N] directive on a term ranks the union by incoming
// link count and returns page N.
func (b *Barrel) Search(ctx context.Context, terms []string) ([]types.SearchResult, error) {
	clean, page, paged := types.StripPageDirectives(terms)

	b.mu.Lock()
	defer b.mu.Unlock()

	results := []types.SearchResult{}
	if b.state != types.NodeStateActive {
		return results, nil
	}

	seen := make(map[string]bool)
	var urls []string
	for _, term := range clean {
		for _, u := range sortedKeys(b.index[strings.ToLower(term)]) {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}

	if paged {
		sort.SliceStable(urls, func(i, j int) bool {
			return len(b.links[urls[i]]) > len(b.links[urls[j]])
		})
		urls = pageOf(urls, page)
	}

	for _, u := range urls {
		results = append(results, types.SearchResult{URL: u, Metadata: b.metadataFor(u)})
	}
	return results, nil
}

// IsURLInBarrel reports whether url is the source of any stored link,
// meaning a page at url was crawled and indexed with outgoing links.
func (b *Barrel) IsURLInBarrel(ctx context.Context, url string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sources[url]
	return ok, nil
}

// GetIncomingLinks returns the URLs linking to url, sorted
func (b *Barrel) GetIncomingLinks(ctx context.Context, url string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedKeys(b.links[url]), nil
}

// GetInvertedIndex returns a deep copy of the inverted index
func (b *Barrel) GetInvertedIndex(ctx context.Context) (map[string][]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.index), nil
}

// GetIncomingLinksMap returns a deep copy of the link graph
func (b *Barrel) GetIncomingLinksMap(ctx context.Context) (map[string][]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.links), nil
}

// GetPageMetadata returns a copy of the page metadata
func (b *Barrel) GetPageMetadata(ctx context.Context) (map[string]types.URLMetadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]types.URLMetadata, len(b.pages))
	for k, v := range b.pages {
		out[k] = v
	}
	return out, nil
}

// GetName returns the barrel's directory name
func (b *Barrel) GetName(ctx context.Context) (string, error) {
	return b.handle.Name, nil
}

// IsActive reports whether the barrel finished joining
func (b *Barrel) IsActive(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == types.NodeStateActive, nil
}

// GetIndexSize returns the number of indexed terms
func (b *Barrel) GetIndexSize(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.index), nil
}

// Merge folds peer snapshots into the local maps: set union per key,
// metadata overwritten by incoming values. Merging twice equals merging once.
func (b *Barrel) Merge(index, links map[string][]string, pages map[string]types.URLMetadata) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for term, urls := range index {
		for _, u := range urls {
			add(b.index, term, u)
		}
	}
	for target, srcs := range links {
		for _, src := range srcs {
			add(b.links, target, src)
			b.sources[src] = struct{}{}
		}
	}
	for u, meta := range pages {
		b.pages[u] = meta
	}
}

// State returns the activation state
func (b *Barrel) State() types.NodeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Sizes returns the number of terms and link targets held
func (b *Barrel) Sizes() (terms, targets int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.index), len(b.links)
}

// ReportedSizes returns what the barrel tells the gateway: zero while SYNCHING
func (b *Barrel) ReportedSizes() (terms, targets int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != types.NodeStateActive {
		return 0, 0
	}
	return len(b.index), len(b.links)
}

// CollectMetrics implements metrics.Sampler
func (b *Barrel) CollectMetrics() {
	terms, targets := b.Sizes()
	metrics.BarrelIndexTerms.WithLabelValues(b.handle.Name).Set(float64(terms))
	metrics.BarrelLinkTargets.WithLabelValues(b.handle.Name).Set(float64(targets))
}

func (b *Barrel) metadataFor(url string) types.URLMetadata {
	meta, ok := b.pages[url]
	if !ok {
		return types.URLMetadata{Title: noTitle, Citation: noDescription}
	}
	if meta.Title == "" {
		meta.Title = noTitle
	}
	if meta.Citation == "" {
		meta.Citation = noDescription
	}
	return meta
}

// Citation joins the first 20 words, adding an ellipsis when truncated
func Citation(words []string) string {
	if len(words) == 0 {
		return noDescription
	}
	if len(words) <= citationWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:citationWords], " ") + "..."
}

func add(m map[string]urlSet, key, url string) {
	set, ok := m[key]
	if !ok {
		set = make(urlSet)
		m[key] = set
	}
	set[url] = struct{}{}
}

func sortedKeys(set urlSet) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func snapshot(m map[string]urlSet) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, set := range m {
		out[k] = sortedKeys(set)
	}
	return out
}

func pageOf(urls []string, page int) []string {
	start := (page - 1) * types.PageSize
	if start >= len(urls) {
		return nil
	}
	end := start + types.PageSize
	if end > len(urls) {
		end = len(urls)
	}
	return urls[start:end]
}
