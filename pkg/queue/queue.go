package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/metrics"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
)

// DownloaderDialer connects to a registered downloader
type DownloaderDialer interface {
	DialDownloader(handle types.Handle) (types.DownloaderService, error)
}

// Config holds queue configuration
type Config struct {
	// DeliveryTimeout bounds one TakeURL push to a downloader
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

type downloader struct {
	id     string
	handle types.Handle
	svc    types.DownloaderService
}

// Queue matches pending URLs with idle downloaders. Every operation runs under
// one mutex, including the assignment pass, so a URL is never handed to two
// downloaders and a downloader never holds two URLs.
type Queue struct {
	mu          sync.Mutex
	urls        []string
	downloaders map[string]*downloader
	available   []string
	idle        map[string]bool

	dialer DownloaderDialer
	config Config
	logger zerolog.Logger
}

// New creates an empty queue
func New(dialer DownloaderDialer, cfg Config) *Queue {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	return &Queue{
		downloaders: make(map[string]*downloader),
		idle:        make(map[string]bool),
		dialer:      dialer,
		config:      cfg,
		logger:      log.WithComponent("queue"),
	}
}

// AddURL appends url and attempts assignment
func (q *Queue) AddURL(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("url is required")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.urls = append(q.urls, url)
	q.logger.Debug().Str("url", url).Int("pending", len(q.urls)).Msg("URL added")
	q.assignWork(ctx)
	return nil
}

// AddURLs appends every non-empty url and attempts assignment
func (q *Queue) AddURLs(ctx context.Context, urls []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, u := range urls {
		if u != "" {
			q.urls = append(q.urls, u)
		}
	}
	q.logger.Debug().Int("added", len(urls)).Int("pending", len(q.urls)).Msg("URLs added")
	q.assignWork(ctx)
	return nil
}

// GetQueueSize returns the number of pending URLs
func (q *Queue) GetQueueSize(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.urls), nil
}

// RegisterDownloader records a downloader as idle and attempts assignment.
// Registering a known id again at the same address only refreshes the
// connection: a worker that may still hold a URL is not made idle again.
// A different address means a new process took over the id, and it starts idle.
func (q *Queue) RegisterDownloader(ctx context.Context, handle types.Handle, id string) error {
	if id == "" {
		return fmt.Errorf("downloader id is required")
	}

	svc, err := q.dialer.DialDownloader(handle)
	if err != nil {
		return fmt.Errorf("failed to connect to downloader %s: %w", id, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	prev, known := q.downloaders[id]
	q.downloaders[id] = &downloader{id: id, handle: handle, svc: svc}
	if known && prev.handle == handle {
		q.logger.Debug().Str("downloader_id", id).Msg("Downloader registered again")
		return nil
	}

	q.markIdle(id)
	q.logger.Info().Str("downloader_id", id).Str("addr", handle.Addr).Msg("Downloader registered")
	q.assignWork(ctx)
	return nil
}

// NotifyDownloaderAvailable returns the downloader behind handle to the idle pool.
// Unknown handles are logged and ignored.
func (q *Queue) NotifyDownloaderAvailable(ctx context.Context, handle types.Handle) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var id string
	for _, d := range q.downloaders {
		if d.handle == handle {
			id = d.id
			break
		}
	}
	if id == "" {
		q.logger.Warn().Str("handle", handle.String()).Msg("Availability notice from unknown downloader")
		return nil
	}

	q.markIdle(id)
	q.assignWork(ctx)
	return nil
}

// Status returns pending URLs, registered downloaders and idle downloaders
func (q *Queue) Status() (pending, registered, idle int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.urls), len(q.downloaders), len(q.available)
}

// CollectMetrics implements metrics.Sampler
func (q *Queue) CollectMetrics() {
	pending, _, idle := q.Status()
	metrics.QueuePendingURLs.Set(float64(pending))
	metrics.QueueIdleDownloaders.Set(float64(idle))
}

// markIdle must be called with q.mu held
func (q *Queue) markIdle(id string) {
	if q.idle[id] {
		return
	}
	q.idle[id] = true
	q.available = append(q.available, id)
}

// assignWork pairs URLs with idle downloaders until one side runs out.
// A failed push puts the URL back at the front and leaves the downloader
// out of the idle pool until it reports in again. Must be called with q.mu held.
func (q *Queue) assignWork(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	for len(q.urls) > 0 && len(q.available) > 0 {
		id := q.available[0]
		q.available = q.available[1:]
		delete(q.idle, id)

		url := q.urls[0]
		q.urls = q.urls[1:]

		d, ok := q.downloaders[id]
		if !ok {
			q.urls = append([]string{url}, q.urls...)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, q.config.DeliveryTimeout)
		err := d.svc.TakeURL(callCtx, url)
		cancel()

		if err != nil {
			q.urls = append([]string{url}, q.urls...)
			metrics.QueueAssignmentsTotal.WithLabelValues("failed").Inc()
			q.logger.Warn().Err(err).Str("downloader_id", id).Str("url", url).Msg("Failed to assign URL, re-queued")
			continue
		}

		metrics.QueueAssignmentsTotal.WithLabelValues("assigned").Inc()
		q.logger.Debug().Str("downloader_id", id).Str("url", url).Msg("URL assigned")
	}

	metrics.QueuePendingURLs.Set(float64(len(q.urls)))
	metrics.QueueIdleDownloaders.Set(float64(len(q.available)))
}
