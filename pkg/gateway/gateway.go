package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/googol/pkg/directory"
	"github.com/cuemby/googol/pkg/events"
	"github.com/cuemby/googol/pkg/health"
	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/metrics"
	"github.com/cuemby/googol/pkg/retry"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
)

// Messages returned by IndexURL
const (
	MsgQueued           = "URL queued for indexing."
	MsgQueueUnavailable = "Error: queue unavailable."
)

const probeTimeout = 2 * time.Second

// Dialer connects to the services the gateway calls
type Dialer interface {
	DialQueue(handle types.Handle) (types.QueueService, error)
	DialBarrel(handle types.Handle) (types.BarrelService, error)
}

// Config holds gateway configuration
type Config struct {
	// Retry wraps every routed barrel call and every queue call
	Retry retry.Config `yaml:"retry"`
	// Heartbeat controls the barrel failure detector
	Heartbeat health.Config `yaml:"heartbeat"`
	// SubscriberTimeout bounds one statistics delivery
	SubscriberTimeout time.Duration `yaml:"subscriber_timeout"`
}

// DefaultConfig returns the default gateway configuration
func DefaultConfig() Config {
	return Config{
		Retry:             retry.DefaultConfig(),
		Heartbeat:         health.DefaultConfig(),
		SubscriberTimeout: 5 * time.Second,
	}
}

// node is everything the gateway tracks about one barrel
type node struct {
	handle   types.Handle
	svc      types.BarrelService
	lastUsed time.Time
	total    time.Duration
	samples  int
	inverted int
	incoming int
	active   bool
	health   *health.Status
}

func (n *node) average() time.Duration {
	if n.samples == 0 {
		return 0
	}
	return n.total / time.Duration(n.samples)
}

// Gateway is the client front end. It routes reads to one barrel chosen by
// observed latency, evicts barrels that stop answering, counts search terms
// and consulted URLs, and pushes statistics snapshots to subscribers.
type Gateway struct {
	mu       sync.Mutex
	nodes    map[string]*node
	terms    map[string]int
	urls     map[string]int
	current  *types.Statistics
	queue    types.QueueService
	pickRand func(n int) int

	// routeMu serializes routed calls, retries included
	routeMu sync.Mutex
	// pubMu orders snapshot delivery; it is always taken after mu
	pubMu  sync.Mutex
	broker *events.Broker

	directory types.DirectoryService
	dialer    Dialer
	config    Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger zerolog.Logger
}

// New creates a gateway. Zero config fields take defaults.
func New(cfg Config, dir types.DirectoryService, dialer Dialer) *Gateway {
	def := DefaultConfig()
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.Heartbeat.Interval <= 0 {
		cfg.Heartbeat = def.Heartbeat
	}
	if cfg.SubscriberTimeout <= 0 {
		cfg.SubscriberTimeout = def.SubscriberTimeout
	}

	return &Gateway{
		nodes:     make(map[string]*node),
		terms:     make(map[string]int),
		urls:      make(map[string]int),
		pickRand:  rand.IntN,
		broker:    events.NewBroker(cfg.SubscriberTimeout),
		directory: dir,
		dialer:    dialer,
		config:    cfg,
		stopCh:    make(chan struct{}),
		logger:    log.WithComponent("gateway"),
	}
}

// Start connects to the queue, registers every barrel already in the
// directory and starts the heartbeat. A missing queue is fatal.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.reconnectQueue(ctx); err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}

	peers, err := directory.Peers(ctx, g.directory, types.BarrelPrefix, "")
	if err != nil {
		g.logger.Warn().Err(err).Msg("Failed to enumerate barrels")
	}
	for _, h := range peers {
		if err := g.RegisterBarrel(ctx, h); err != nil {
			g.logger.Warn().Err(err).Str("barrel", h.Name).Msg("Failed to register known barrel")
		}
	}

	g.wg.Add(1)
	go g.heartbeatLoop()

	g.logger.Info().Int("barrels", len(peers)).Msg("Gateway started")
	return nil
}

// Stop ends the heartbeat
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
	g.wg.Wait()
}

// IndexURL hands url to the queue. It never returns a transport error;
// failures are described in the returned message.
func (g *Gateway) IndexURL(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Sprintf("Error: invalid URL %q, expected http or https.", rawURL), nil
	}

	g.mu.Lock()
	q := g.queue
	g.mu.Unlock()
	if q == nil {
		return MsgQueueUnavailable, nil
	}

	err = retry.Run(ctx, g.config.Retry, g.reconnectQueue, func(ctx context.Context) error {
		g.mu.Lock()
		q := g.queue
		g.mu.Unlock()
		return q.AddURL(ctx, rawURL)
	})
	if err != nil {
		g.logger.Error().Err(err).Str("url", rawURL).Msg("Failed to queue URL")
		return fmt.Sprintf("Error: failed to queue URL: %v", err), nil
	}

	g.logger.Info().Str("url", rawURL).Msg("URL queued")
	return MsgQueued, nil
}

// Search routes terms to one barrel and returns its answer. Terms are passed
// through unchanged, pagination directives included. With no barrel able to
// answer the result is empty.
func (g *Gateway) Search(ctx context.Context, terms []string) ([]types.SearchResult, error) {
	results, err := route(ctx, g, "search", func(ctx context.Context, svc types.BarrelService) ([]types.SearchResult, error) {
		return svc.Search(ctx, terms)
	})
	if errors.Is(err, types.ErrNoBarrels) {
		return []types.SearchResult{}, nil
	}
	if err != nil {
		return nil, err
	}

	clean, _, _ := types.StripPageDirectives(terms)
	g.mu.Lock()
	for _, t := range clean {
		g.terms[t]++
	}
	g.mu.Unlock()

	g.refresh(ctx)
	if results == nil {
		results = []types.SearchResult{}
	}
	return results, nil
}

// GetIncomingLinks routes a backlink lookup to one barrel. Links are
// returned longest first.
func (g *Gateway) GetIncomingLinks(ctx context.Context, target string) ([]string, error) {
	links, err := route(ctx, g, "incoming_links", func(ctx context.Context, svc types.BarrelService) ([]string, error) {
		return svc.GetIncomingLinks(ctx, target)
	})
	if errors.Is(err, types.ErrNoBarrels) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := append([]string{}, links...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })

	g.mu.Lock()
	g.urls[target]++
	g.mu.Unlock()

	g.refresh(ctx)
	return out, nil
}

// RegisterBarrel starts tracking a barrel. Registering a known name on the
// same address keeps its latency history; a new address starts fresh.
func (g *Gateway) RegisterBarrel(ctx context.Context, handle types.Handle) error {
	if handle.Name == "" || handle.Addr == "" {
		return fmt.Errorf("barrel handle requires name and address")
	}

	svc, err := g.dialer.DialBarrel(handle)
	if err != nil {
		return fmt.Errorf("failed to connect to barrel %s: %w", handle.Name, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	active, err := svc.IsActive(probeCtx)
	cancel()
	if err != nil {
		g.logger.Debug().Err(err).Str("barrel", handle.Name).Msg("Registration probe failed")
	}

	g.upsert(handle, svc, &active)
	g.logger.Info().Str("barrel", handle.Name).Str("addr", handle.Addr).Bool("active", active).Msg("Barrel registered")

	g.refresh(ctx)
	return nil
}

// UpdateBarrelIndexSize records the sizes a barrel reports. An unknown
// barrel is registered on the spot.
func (g *Gateway) UpdateBarrelIndexSize(ctx context.Context, handle types.Handle, invertedSize, incomingSize int) error {
	g.mu.Lock()
	n, ok := g.nodes[handle.Name]
	g.mu.Unlock()

	if !ok || n.handle != handle {
		svc, err := g.dialer.DialBarrel(handle)
		if err != nil {
			return fmt.Errorf("failed to connect to barrel %s: %w", handle.Name, err)
		}
		g.upsert(handle, svc, nil)
	}

	g.mu.Lock()
	if n, ok := g.nodes[handle.Name]; ok {
		n.inverted = invertedSize
		n.incoming = incomingSize
		if invertedSize > 0 || incomingSize > 0 {
			n.active = true
		}
	}
	g.mu.Unlock()

	g.refresh(ctx)
	return nil
}

// Subscribe adds a statistics subscriber. If a snapshot exists it is
// delivered before Subscribe returns; a subscriber that fails that first
// delivery is dropped and the error returned.
func (g *Gateway) Subscribe(ctx context.Context, sub types.StatisticsSubscriber) error {
	added, err := g.broker.Subscribe(sub)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	g.logger.Info().Str("subscriber", sub.SubscriberID()).Msg("Subscriber added")

	g.mu.Lock()
	current := g.current
	g.pubMu.Lock()
	g.mu.Unlock()
	defer g.pubMu.Unlock()

	if current != nil {
		if err := g.broker.Deliver(context.WithoutCancel(ctx), sub, current); err != nil {
			g.broker.Unsubscribe(sub.SubscriberID())
			return fmt.Errorf("failed to deliver initial statistics: %w", err)
		}
	}
	return nil
}

// Unsubscribe removes a subscriber by id
func (g *Gateway) Unsubscribe(ctx context.Context, id string) error {
	g.broker.Unsubscribe(id)
	g.logger.Info().Str("subscriber", id).Msg("Subscriber removed")
	return nil
}

// Statistics returns a copy of the latest snapshot, or nil before the first one
func (g *Gateway) Statistics() *types.Statistics {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current.Clone()
}

// Barrels returns the names of tracked barrels, sorted
func (g *Gateway) Barrels() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectMetrics implements metrics.Sampler
func (g *Gateway) CollectMetrics() {
	g.mu.Lock()
	n := len(g.nodes)
	g.mu.Unlock()

	metrics.GatewayBarrels.Set(float64(n))
	metrics.GatewaySubscribers.Set(float64(g.broker.SubscriberCount()))
}

// upsert adds or refreshes a node. A nil active leaves the flag untouched.
func (g *Gateway) upsert(handle types.Handle, svc types.BarrelService, active *bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[handle.Name]
	if !ok || n.handle.Addr != handle.Addr {
		n = &node{handle: handle, health: health.NewStatus()}
		g.nodes[handle.Name] = n
	}
	n.handle = handle
	n.svc = svc
	if active != nil {
		n.active = *active
	}
}

// evict drops a barrel from every tracking map and from the directory,
// then pushes a fresh snapshot.
func (g *Gateway) evict(ctx context.Context, handle types.Handle, reason string) {
	g.mu.Lock()
	delete(g.nodes, handle.Name)
	g.mu.Unlock()

	metrics.GatewayEvictionsTotal.WithLabelValues(reason).Inc()
	g.logger.Warn().Str("barrel", handle.Name).Str("reason", reason).Msg("Barrel evicted")

	g.forget(ctx, handle)
	g.refresh(ctx)
}

// forget removes the directory binding if it still points at handle
func (g *Gateway) forget(ctx context.Context, handle types.Handle) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
	defer cancel()

	bound, err := g.directory.Resolve(ctx, handle.Name)
	if err != nil || bound != handle {
		return
	}
	if err := g.directory.Unregister(ctx, handle.Name); err != nil {
		g.logger.Debug().Err(err).Str("barrel", handle.Name).Msg("Failed to unbind evicted barrel")
	}
}

func (g *Gateway) reconnectQueue(ctx context.Context) error {
	h, err := g.directory.Resolve(ctx, types.QueueName)
	if err != nil {
		return err
	}
	q, err := g.dialer.DialQueue(h)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.queue = q
	g.mu.Unlock()
	return nil
}
