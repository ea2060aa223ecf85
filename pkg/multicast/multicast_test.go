package multicast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/googol/pkg/types"
	"github.com/stretchr/testify/assert"
)

type target struct {
	name      string
	failUntil int32
	hang      bool
	calls     atomic.Int32
	inFlight  *atomic.Int32
	maxFlight *atomic.Int32
}

func (t *target) StorePage(ctx context.Context, page *types.CrawledPage) error {
	n := t.calls.Add(1)
	if t.inFlight != nil {
		cur := t.inFlight.Add(1)
		defer t.inFlight.Add(-1)
		for {
			old := t.maxFlight.Load()
			if cur <= old || t.maxFlight.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if t.hang {
		select {}
	}
	if n <= t.failUntil {
		return errors.New("connection refused")
	}
	return nil
}

func fastConfig() Config {
	return Config{MaxRetries: 3, AckTimeout: 20 * time.Millisecond, MaxWorkers: 10, BackoffFactor: 2}
}

var testPage = &types.CrawledPage{URL: "http://example.com", Words: []string{"example"}}

func TestDeliverAllSucceed(t *testing.T) {
	a, b := &target{name: "a"}, &target{name: "b"}

	failed := New(fastConfig()).Deliver(context.Background(), []Target{a, b}, testPage)

	assert.Empty(t, failed)
	assert.EqualValues(t, 1, a.calls.Load())
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestDeliverReturnsPermanentFailures(t *testing.T) {
	ok := &target{name: "ok"}
	flaky := &target{name: "flaky", failUntil: 1}
	dead := &target{name: "dead", failUntil: 100}
	hung := &target{name: "hung", hang: true}

	start := time.Now()
	failed := New(fastConfig()).Deliver(context.Background(), []Target{ok, flaky, dead, hung}, testPage)
	elapsed := time.Since(start)

	assert.ElementsMatch(t, []Target{dead, hung}, failed)
	assert.NotContains(t, failed, flaky)

	// successful targets are not retried
	assert.EqualValues(t, 1, ok.calls.Load())
	assert.EqualValues(t, 2, flaky.calls.Load())
	assert.EqualValues(t, 3, dead.calls.Load())

	// backoff: 2^1*20ms + 2^2*20ms between three rounds, none after the last
	assert.GreaterOrEqual(t, elapsed, 120*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestDeliverNoTargets(t *testing.T) {
	assert.Empty(t, New(fastConfig()).Deliver(context.Background(), nil, testPage))
}

func TestDeliverBoundedPool(t *testing.T) {
	var inFlight, maxFlight atomic.Int32
	var targets []Target
	for i := 0; i < 8; i++ {
		targets = append(targets, &target{inFlight: &inFlight, maxFlight: &maxFlight})
	}

	cfg := fastConfig()
	cfg.MaxWorkers = 2
	cfg.AckTimeout = time.Second
	failed := New(cfg).Deliver(context.Background(), targets, testPage)

	assert.Empty(t, failed)
	assert.LessOrEqual(t, maxFlight.Load(), int32(2))
}

func TestDeliverCancelled(t *testing.T) {
	dead := &target{failUntil: 100}
	cfg := fastConfig()
	cfg.AckTimeout = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(60 * time.Millisecond)
		cancel()
	}()

	failed := New(cfg).Deliver(ctx, []Target{dead}, testPage)
	wg.Wait()

	assert.Equal(t, []Target{dead}, failed)
	assert.EqualValues(t, 1, dead.calls.Load())
}

func TestNewAppliesDefaults(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, DefaultConfig(), b.config)
}
