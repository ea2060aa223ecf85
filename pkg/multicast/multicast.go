package multicast

import (
	"context"
	"math"
	"time"

	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/metrics"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Target is anything a page can be delivered to
type Target interface {
	StorePage(ctx context.Context, page *types.CrawledPage) error
}

// Config controls delivery rounds
type Config struct {
	MaxRetries    int           `yaml:"max_retries"`
	AckTimeout    time.Duration `yaml:"ack_timeout"`
	MaxWorkers    int           `yaml:"max_workers"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// DefaultConfig returns 3 rounds, 2s acks, 10 workers and doubling backoff
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		AckTimeout:    2 * time.Second,
		MaxWorkers:    10,
		BackoffFactor: 2,
	}
}

// Broadcaster delivers pages to every target with bounded retries
type Broadcaster struct {
	config Config
	logger zerolog.Logger
}

// New creates a broadcaster, filling unset fields from DefaultConfig
func New(cfg Config) *Broadcaster {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = def.AckTimeout
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	return &Broadcaster{
		config: cfg,
		logger: log.WithComponent("multicast"),
	}
}

// Deliver sends page to every target and returns the targets that failed
// every round. Each round tries the still-pending targets concurrently, waits
// at most AckTimeout per attempt, then sleeps BackoffFactor^round * AckTimeout
// before the next round if anything failed.
func (b *Broadcaster) Deliver(ctx context.Context, targets []Target, page *types.CrawledPage) []Target {
	pending := append([]Target(nil), targets...)

	for round := 1; round <= b.config.MaxRetries && len(pending) > 0; round++ {
		metrics.MulticastRoundsTotal.Inc()
		pending = b.attempt(ctx, pending, page)

		if len(pending) == 0 || round == b.config.MaxRetries {
			break
		}

		backoff := time.Duration(math.Pow(b.config.BackoffFactor, float64(round)) * float64(b.config.AckTimeout))
		b.logger.Debug().
			Str("url", page.URL).
			Int("round", round).
			Int("failed", len(pending)).
			Dur("backoff", backoff).
			Msg("Delivery round incomplete")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			metrics.MulticastFailedTargetsTotal.Add(float64(len(pending)))
			return pending
		case <-t.C:
		}
	}

	if len(pending) > 0 {
		metrics.MulticastFailedTargetsTotal.Add(float64(len(pending)))
		b.logger.Warn().Str("url", page.URL).Int("failed", len(pending)).Msg("Delivery failed permanently")
	}
	return pending
}

// attempt runs one round and returns the targets that failed it
func (b *Broadcaster) attempt(ctx context.Context, targets []Target, page *types.CrawledPage) []Target {
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(b.config.MaxWorkers)
	for i, t := range targets {
		g.Go(func() error {
			errs[i] = b.deliverOne(ctx, t, page)
			return nil
		})
	}
	_ = g.Wait()

	var failed []Target
	for i, err := range errs {
		if err != nil {
			failed = append(failed, targets[i])
		}
	}
	return failed
}

// deliverOne waits at most AckTimeout even if the target ignores cancellation
func (b *Broadcaster) deliverOne(ctx context.Context, t Target, page *types.CrawledPage) error {
	ctx, cancel := context.WithTimeout(ctx, b.config.AckTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- t.StorePage(ctx, page)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
