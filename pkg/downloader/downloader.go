package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/googol/pkg/directory"
	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/metrics"
	"github.com/cuemby/googol/pkg/multicast"
	"github.com/cuemby/googol/pkg/retry"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
)

const stopWordsTimeout = 5 * time.Second

// Pipeline outcomes, used as metric labels
const (
	OutcomeIndexed     = "indexed"
	OutcomeBlacklisted = "blacklisted"
	OutcomeDuplicate   = "duplicate"
	OutcomeDedupFailed = "dedup_failed"
	OutcomeTimeout     = "timeout"
	OutcomeRejected    = "rejected"
	OutcomeFailed      = "failed"
	OutcomeNoWords     = "no_words"
	OutcomeNoBarrels   = "no_barrels"
)

// Dialer connects to the services a downloader calls
type Dialer interface {
	DialQueue(handle types.Handle) (types.QueueService, error)
	DialBarrel(handle types.Handle) (types.BarrelService, error)
	DialStopWords(handle types.Handle) (types.StopWordsService, error)
}

// PageFetcher fetches and extracts one page
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Document, error)
}

// Config holds downloader configuration
type Config struct {
	ID         string
	Handle     types.Handle
	Fetch      FetchConfig
	Multicast  multicast.Config
	QueueRetry retry.Config
}

// barrelTarget is a known barrel; it is the multicast target for that barrel
type barrelTarget struct {
	handle types.Handle
	svc    types.BarrelService
}

func (t *barrelTarget) StorePage(ctx context.Context, page *types.CrawledPage) error {
	return t.svc.StorePage(ctx, page)
}

// Downloader is a crawl worker. The queue pushes one URL at a time through
// TakeURL; the pipeline runs on its own goroutine and always ends by telling
// the queue the worker is idle again.
type Downloader struct {
	id     string
	handle types.Handle
	config Config

	directory   types.DirectoryService
	dialer      Dialer
	fetcher     PageFetcher
	broadcaster *multicast.Broadcaster

	queueMu sync.Mutex
	queue   types.QueueService

	barrelsMu sync.Mutex
	barrels   []*barrelTarget

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// New creates a downloader. A nil fetcher uses an HTTP Fetcher built from cfg.Fetch.
func New(cfg Config, dir types.DirectoryService, dialer Dialer, fetcher PageFetcher) *Downloader {
	if cfg.QueueRetry.Attempts <= 0 {
		cfg.QueueRetry = retry.DefaultConfig()
	}
	if fetcher == nil {
		fetcher = NewFetcher(cfg.Fetch)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Downloader{
		id:          cfg.ID,
		handle:      cfg.Handle,
		config:      cfg,
		directory:   dir,
		dialer:      dialer,
		fetcher:     fetcher,
		broadcaster: multicast.New(cfg.Multicast),
		ctx:         ctx,
		cancel:      cancel,
		logger:      log.WithDownloader(cfg.ID),
	}
}

// Start connects to the queue, picks up already active barrels and registers
// with the queue as idle. A missing queue is fatal.
func (d *Downloader) Start(ctx context.Context) error {
	if err := retry.Run(ctx, d.config.QueueRetry, nil, d.reconnectQueue); err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}

	peers, err := directory.Peers(ctx, d.directory, types.BarrelPrefix, "")
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to enumerate barrels")
	}
	for _, h := range peers {
		if err := d.AddBarrel(ctx, h); err != nil {
			d.logger.Debug().Err(err).Str("barrel", h.Name).Msg("Skipping barrel")
		}
	}

	err = retry.Run(ctx, d.config.QueueRetry, d.reconnectQueue, func(ctx context.Context) error {
		return d.getQueue().RegisterDownloader(ctx, d.handle, d.id)
	})
	if err != nil {
		return fmt.Errorf("failed to register with queue: %w", err)
	}

	d.logger.Info().Int("barrels", d.BarrelCount()).Msg("Downloader registered with queue")
	return nil
}

// Stop abandons in-flight crawls and waits for their goroutines to return
func (d *Downloader) Stop() {
	d.cancel()
	d.wg.Wait()
}

// TakeURL starts the pipeline for url and returns immediately
func (d *Downloader) TakeURL(ctx context.Context, url string) error {
	if d.ctx.Err() != nil {
		return fmt.Errorf("downloader %s is stopping", d.id)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.process(d.ctx, url)
	}()
	return nil
}

// NotifyFinished tells the queue this worker is idle
func (d *Downloader) NotifyFinished(ctx context.Context) error {
	return retry.Run(ctx, d.config.QueueRetry, d.reconnectQueue, func(ctx context.Context) error {
		return d.getQueue().NotifyDownloaderAvailable(ctx, d.handle)
	})
}

// AddBarrel adds an ACTIVE barrel to the delivery targets. Inactive barrels
// and barrels already known under the same handle are ignored.
func (d *Downloader) AddBarrel(ctx context.Context, handle types.Handle) error {
	d.barrelsMu.Lock()
	for _, b := range d.barrels {
		if b.handle == handle {
			d.barrelsMu.Unlock()
			return nil
		}
	}
	d.barrelsMu.Unlock()

	svc, err := d.dialer.DialBarrel(handle)
	if err != nil {
		return fmt.Errorf("failed to connect to barrel %s: %w", handle.Name, err)
	}
	active, err := svc.IsActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe barrel %s: %w", handle.Name, err)
	}
	if !active {
		return nil
	}

	d.barrelsMu.Lock()
	defer d.barrelsMu.Unlock()

	for _, b := range d.barrels {
		if b.handle == handle {
			return nil
		}
	}

	// a barrel that restarted on a new address replaces its old entry
	kept := d.barrels[:0]
	for _, b := range d.barrels {
		if b.handle.Name != handle.Name {
			kept = append(kept, b)
		}
	}
	d.barrels = append(kept, &barrelTarget{handle: handle, svc: svc})
	d.logger.Info().Str("barrel", handle.Name).Int("barrels", len(d.barrels)).Msg("Barrel added")
	return nil
}

// BarrelCount returns the number of known barrels
func (d *Downloader) BarrelCount() int {
	d.barrelsMu.Lock()
	defer d.barrelsMu.Unlock()
	return len(d.barrels)
}

// process runs the pipeline for one URL. Whatever happens, the URL is
// re-queued if the failure was transient and the queue is told we are idle.
func (d *Downloader) process(ctx context.Context, url string) {
	outcome := OutcomeFailed
	defer func() {
		metrics.DownloaderPagesTotal.WithLabelValues(outcome).Inc()
		if requeue(outcome) {
			d.addURLs(ctx, []string{url})
		}
		if err := d.NotifyFinished(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Failed to report availability to queue")
		}
	}()

	outcome = d.crawl(ctx, url)
	d.logger.Debug().Str("url", url).Str("outcome", outcome).Msg("URL processed")
}

func requeue(outcome string) bool {
	switch outcome {
	case OutcomeDedupFailed, OutcomeTimeout, OutcomeNoBarrels:
		return true
	}
	return false
}

func (d *Downloader) crawl(ctx context.Context, url string) string {
	if Blacklisted(url) {
		return OutcomeBlacklisted
	}

	if first := d.firstBarrel(); first != nil {
		seen, err := first.svc.IsURLInBarrel(ctx, url)
		if err != nil {
			d.logger.Warn().Err(err).Str("barrel", first.handle.Name).Msg("Dedup check failed")
			if retry.IsConnectionRefused(err) {
				d.removeBarrels([]multicast.Target{first})
			}
			return OutcomeDedupFailed
		}
		if seen {
			return OutcomeDuplicate
		}
	}

	timer := metrics.NewTimer()
	doc, err := d.fetcher.Fetch(ctx, url)
	timer.ObserveDuration(metrics.FetchDuration)
	if err != nil {
		var statusErr *StatusError
		switch {
		case retry.IsTimeout(err):
			d.logger.Warn().Str("url", url).Msg("Fetch timed out")
			return OutcomeTimeout
		case errors.As(err, &statusErr), errors.Is(err, ErrNotHTML), errors.Is(err, ErrEmptyBody):
			d.logger.Debug().Err(err).Str("url", url).Msg("Page rejected")
			return OutcomeRejected
		default:
			d.logger.Warn().Err(err).Str("url", url).Msg("Fetch failed")
			return OutcomeFailed
		}
	}

	words := Tokenize(doc.Text)
	if len(words) == 0 {
		return OutcomeNoWords
	}

	d.learnStopWords(url, UniqueWords(words))

	targets := d.targets()
	if len(targets) == 0 {
		d.logger.Warn().Str("url", url).Msg("No barrels known, re-queueing")
		return OutcomeNoBarrels
	}

	page := &types.CrawledPage{
		URL:           url,
		Title:         doc.Title,
		Words:         words,
		OutgoingLinks: doc.Links,
	}
	if failed := d.broadcaster.Deliver(ctx, targets, page); len(failed) > 0 {
		d.removeBarrels(failed)
	}

	if len(doc.Links) > 0 {
		d.addURLs(ctx, doc.Links)
	}
	return OutcomeIndexed
}

func (d *Downloader) firstBarrel() *barrelTarget {
	d.barrelsMu.Lock()
	defer d.barrelsMu.Unlock()
	if len(d.barrels) == 0 {
		return nil
	}
	return d.barrels[0]
}

func (d *Downloader) targets() []multicast.Target {
	d.barrelsMu.Lock()
	defer d.barrelsMu.Unlock()

	out := make([]multicast.Target, 0, len(d.barrels))
	for _, b := range d.barrels {
		out = append(out, b)
	}
	return out
}

func (d *Downloader) removeBarrels(failed []multicast.Target) {
	gone := make(map[multicast.Target]bool, len(failed))
	for _, t := range failed {
		gone[t] = true
	}

	d.barrelsMu.Lock()
	defer d.barrelsMu.Unlock()

	kept := d.barrels[:0]
	for _, b := range d.barrels {
		if gone[b] {
			d.logger.Warn().Str("barrel", b.handle.Name).Msg("Removing unreachable barrel")
			continue
		}
		kept = append(kept, b)
	}
	d.barrels = kept
}

// addURLs re-queues urls with retry and queue reconnection. Failures are logged.
func (d *Downloader) addURLs(ctx context.Context, urls []string) {
	err := retry.Run(ctx, d.config.QueueRetry, d.reconnectQueue, func(ctx context.Context) error {
		q := d.getQueue()
		if len(urls) == 1 {
			return q.AddURL(ctx, urls[0])
		}
		return q.AddURLs(ctx, urls)
	})
	if err != nil {
		d.logger.Error().Err(err).Int("urls", len(urls)).Msg("Failed to queue URLs")
	}
}

// learnStopWords forwards the word set to the stop-word service, best effort
func (d *Downloader) learnStopWords(url string, words []string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(d.ctx, stopWordsTimeout)
		defer cancel()

		h, err := d.directory.Resolve(ctx, types.StopWordsName)
		if err != nil {
			return
		}
		svc, err := d.dialer.DialStopWords(h)
		if err == nil {
			err = svc.ProcessDoc(ctx, url, words)
		}
		if err != nil {
			d.logger.Debug().Err(err).Msg("Stop-word service unavailable")
		}
	}()
}

func (d *Downloader) getQueue() types.QueueService {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	if d.queue == nil {
		return unavailableQueue{}
	}
	return d.queue
}

// reconnectQueue re-resolves the queue by name
func (d *Downloader) reconnectQueue(ctx context.Context) error {
	h, err := d.directory.Resolve(ctx, types.QueueName)
	if err != nil {
		return err
	}
	q, err := d.dialer.DialQueue(h)
	if err != nil {
		return err
	}

	d.queueMu.Lock()
	d.queue = q
	d.queueMu.Unlock()
	return nil
}

// unavailableQueue stands in until the queue is first resolved
type unavailableQueue struct{}

func (unavailableQueue) AddURL(context.Context, string) error {
	return types.ErrUnavailable
}

func (unavailableQueue) AddURLs(context.Context, []string) error {
	return types.ErrUnavailable
}

func (unavailableQueue) GetQueueSize(context.Context) (int, error) {
	return 0, types.ErrUnavailable
}

func (unavailableQueue) RegisterDownloader(context.Context, types.Handle, string) error {
	return types.ErrUnavailable
}

func (unavailableQueue) NotifyDownloaderAvailable(context.Context, types.Handle) error {
	return types.ErrUnavailable
}
