package downloader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/googol/pkg/directory"
	"github.com/cuemby/googol/pkg/multicast"
	"github.com/cuemby/googol/pkg/retry"
	"github.com/cuemby/googol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu         sync.Mutex
	added      []string
	registered []string
	notified   chan types.Handle
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{notified: make(chan types.Handle, 16)}
}

func (q *fakeQueue) AddURL(ctx context.Context, url string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.added = append(q.added, url)
	return nil
}

func (q *fakeQueue) AddURLs(ctx context.Context, urls []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.added = append(q.added, urls...)
	return nil
}

func (q *fakeQueue) GetQueueSize(ctx context.Context) (int, error) { return 0, nil }

func (q *fakeQueue) RegisterDownloader(ctx context.Context, h types.Handle, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.registered = append(q.registered, id)
	return nil
}

func (q *fakeQueue) NotifyDownloaderAvailable(ctx context.Context, h types.Handle) error {
	q.notified <- h
	return nil
}

func (q *fakeQueue) addedURLs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.added...)
}

type fakeBarrel struct {
	types.BarrelService

	mu       sync.Mutex
	active   bool
	known    map[string]bool
	stored   []*types.CrawledPage
	storeErr error
	dedupErr error
}

func newFakeBarrel() *fakeBarrel {
	return &fakeBarrel{active: true, known: make(map[string]bool)}
}

func (b *fakeBarrel) StorePage(ctx context.Context, p *types.CrawledPage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.storeErr != nil {
		return b.storeErr
	}
	b.stored = append(b.stored, p)
	return nil
}

func (b *fakeBarrel) IsURLInBarrel(ctx context.Context, url string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dedupErr != nil {
		return false, b.dedupErr
	}
	return b.known[url], nil
}

func (b *fakeBarrel) IsActive(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, nil
}

func (b *fakeBarrel) storedPages() []*types.CrawledPage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.CrawledPage(nil), b.stored...)
}

type fakeStopWords struct {
	docs chan string
}

func (s *fakeStopWords) ProcessDoc(ctx context.Context, url string, words []string) error {
	s.docs <- url
	return nil
}

func (s *fakeStopWords) GetStopWords(ctx context.Context) ([]string, error) { return nil, nil }

type fakeDialer struct {
	queue     *fakeQueue
	barrels   map[string]*fakeBarrel
	stopWords *fakeStopWords
}

func (d *fakeDialer) DialQueue(h types.Handle) (types.QueueService, error) { return d.queue, nil }

func (d *fakeDialer) DialBarrel(h types.Handle) (types.BarrelService, error) {
	b, ok := d.barrels[h.Addr]
	if !ok {
		return nil, types.ErrUnavailable
	}
	return b, nil
}

func (d *fakeDialer) DialStopWords(h types.Handle) (types.StopWordsService, error) {
	if d.stopWords == nil {
		return nil, types.ErrUnavailable
	}
	return d.stopWords, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]*Document
	errs  map[string]error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if doc, ok := f.pages[rawURL]; ok {
		return doc, nil
	}
	return nil, errors.New("no such host")
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

type harness struct {
	dir     *directory.Directory
	dialer  *fakeDialer
	queue   *fakeQueue
	fetcher *fakeFetcher
	d       *Downloader
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	h := &harness{
		dir:     directory.New(),
		queue:   newFakeQueue(),
		fetcher: &fakeFetcher{pages: make(map[string]*Document), errs: make(map[string]error)},
	}
	h.dialer = &fakeDialer{queue: h.queue, barrels: make(map[string]*fakeBarrel)}
	require.NoError(t, h.dir.Register(ctx, types.QueueName, types.Handle{Name: types.QueueName, Addr: "queue"}))

	h.d = New(Config{
		ID:         "w1",
		Handle:     types.Handle{Name: types.DownloaderName("w1"), Addr: "w1"},
		Multicast:  multicast.Config{MaxRetries: 2, AckTimeout: 20 * time.Millisecond, MaxWorkers: 4, BackoffFactor: 1},
		QueueRetry: retry.Config{Attempts: 2, Delay: time.Millisecond},
	}, h.dir, h.dialer, h.fetcher)
	t.Cleanup(h.d.Stop)
	return h
}

func (h *harness) addBarrel(t *testing.T, id string) *fakeBarrel {
	t.Helper()
	b := newFakeBarrel()
	handle := types.Handle{Name: types.BarrelName(id), Addr: "barrel-" + id}
	h.dialer.barrels[handle.Addr] = b
	require.NoError(t, h.dir.Register(context.Background(), handle.Name, handle))
	return b
}

// crawl pushes url and waits for the worker to report idle
func (h *harness) crawl(t *testing.T, url string) {
	t.Helper()
	require.NoError(t, h.d.TakeURL(context.Background(), url))
	select {
	case <-h.queue.notified:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker never reported idle after %s", url)
	}
}

func (h *harness) assertNoExtraNotify(t *testing.T) {
	t.Helper()
	select {
	case <-h.queue.notified:
		t.Fatal("worker reported idle twice")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStartRegistersAndLoadsBarrels(t *testing.T) {
	h := newHarness(t)
	h.addBarrel(t, "a")
	inactive := h.addBarrel(t, "b")
	inactive.active = false

	require.NoError(t, h.d.Start(context.Background()))

	assert.Equal(t, 1, h.d.BarrelCount())
	assert.Equal(t, []string{"w1"}, h.queue.registered)
}

func TestStartFailsWithoutQueue(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.dir.Unregister(context.Background(), types.QueueName))

	err := h.d.Start(context.Background())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCrawlIndexesAndQueuesLinks(t *testing.T) {
	h := newHarness(t)
	b1, b2 := h.addBarrel(t, "a"), h.addBarrel(t, "b")
	sw := &fakeStopWords{docs: make(chan string, 1)}
	h.dialer.stopWords = sw
	require.NoError(t, h.dir.Register(context.Background(), types.StopWordsName, types.Handle{Name: types.StopWordsName, Addr: "sw"}))
	require.NoError(t, h.d.Start(context.Background()))

	h.fetcher.pages["http://site/"] = &Document{
		URL:   "http://site/",
		Title: "Site",
		Text:  "Hello, distributed World! hello",
		Links: []string{"http://site/a", "http://site/b"},
	}

	h.crawl(t, "http://site/")
	h.assertNoExtraNotify(t)

	for _, b := range []*fakeBarrel{b1, b2} {
		pages := b.storedPages()
		require.Len(t, pages, 1)
		assert.Equal(t, "Site", pages[0].Title)
		assert.Equal(t, []string{"hello", "distributed", "world", "hello"}, pages[0].Words)
		assert.Equal(t, []string{"http://site/a", "http://site/b"}, pages[0].OutgoingLinks)
	}
	assert.Equal(t, []string{"http://site/a", "http://site/b"}, h.queue.addedURLs())

	select {
	case url := <-sw.docs:
		assert.Equal(t, "http://site/", url)
	case <-time.After(time.Second):
		t.Fatal("stop-word learner not called")
	}
}

func TestCrawlNotFoundIsDropped(t *testing.T) {
	h := newHarness(t)
	h.addBarrel(t, "a")
	require.NoError(t, h.d.Start(context.Background()))

	h.fetcher.errs["http://site/missing"] = &StatusError{Code: 404}

	h.crawl(t, "http://site/missing")
	h.assertNoExtraNotify(t)

	assert.Empty(t, h.queue.addedURLs())
}

func TestCrawlTimeoutIsRequeuedOnce(t *testing.T) {
	h := newHarness(t)
	h.addBarrel(t, "a")
	require.NoError(t, h.d.Start(context.Background()))

	h.fetcher.errs["http://site/slow"] = fmt.Errorf("get: %w", timeoutErr{})

	h.crawl(t, "http://site/slow")
	h.assertNoExtraNotify(t)

	assert.Equal(t, []string{"http://site/slow"}, h.queue.addedURLs())
}

func TestCrawlPermanentDrops(t *testing.T) {
	tests := []struct {
		name string
		url  string
		err  error
		doc  *Document
	}{
		{"blacklisted", "http://site/file.pdf", nil, nil},
		{"not html", "http://site/data", ErrNotHTML, nil},
		{"empty body", "http://site/blank", ErrEmptyBody, nil},
		{"dns failure", "http://nowhere/", errors.New("no such host"), nil},
		{"no words", "http://site/digits", nil, &Document{Text: "123 456"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			b := h.addBarrel(t, "a")
			require.NoError(t, h.d.Start(context.Background()))

			if tt.err != nil {
				h.fetcher.errs[tt.url] = tt.err
			}
			if tt.doc != nil {
				h.fetcher.pages[tt.url] = tt.doc
			}

			h.crawl(t, tt.url)
			h.assertNoExtraNotify(t)

			assert.Empty(t, h.queue.addedURLs())
			assert.Empty(t, b.storedPages())
		})
	}
}

func TestCrawlSkipsKnownURL(t *testing.T) {
	h := newHarness(t)
	b := h.addBarrel(t, "a")
	b.known["http://site/"] = true
	require.NoError(t, h.d.Start(context.Background()))

	h.crawl(t, "http://site/")

	assert.Zero(t, h.fetcher.calls)
	assert.Empty(t, h.queue.addedURLs())
}

func TestCrawlDedupFailureRequeues(t *testing.T) {
	h := newHarness(t)
	b := h.addBarrel(t, "a")
	require.NoError(t, h.d.Start(context.Background()))
	b.dedupErr = errors.New("barrel busy")

	h.crawl(t, "http://site/")

	assert.Equal(t, []string{"http://site/"}, h.queue.addedURLs())
	assert.Zero(t, h.fetcher.calls)
	assert.Equal(t, 1, h.d.BarrelCount())

	// an unreachable barrel is also dropped from the targets
	b.dedupErr = fmt.Errorf("search: %w", types.ErrUnavailable)
	h.crawl(t, "http://site/")
	assert.Zero(t, h.d.BarrelCount())
}

func TestCrawlWithoutBarrelsRequeues(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.d.Start(context.Background()))

	h.fetcher.pages["http://site/"] = &Document{Text: "words", Links: []string{"http://site/a"}}

	h.crawl(t, "http://site/")

	assert.Equal(t, []string{"http://site/"}, h.queue.addedURLs())
}

func TestCrawlRemovesFailedBarrels(t *testing.T) {
	h := newHarness(t)
	good := h.addBarrel(t, "a")
	bad := h.addBarrel(t, "b")
	bad.storeErr = errors.New("connection refused")
	require.NoError(t, h.d.Start(context.Background()))
	require.Equal(t, 2, h.d.BarrelCount())

	h.fetcher.pages["http://site/"] = &Document{Text: "words"}
	h.crawl(t, "http://site/")

	assert.Len(t, good.storedPages(), 1)
	assert.Equal(t, 1, h.d.BarrelCount())
}

func TestAddBarrel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.addBarrel(t, "a")
	inactive := h.addBarrel(t, "b")
	inactive.active = false

	a := types.Handle{Name: types.BarrelName("a"), Addr: "barrel-a"}
	require.NoError(t, h.d.AddBarrel(ctx, a))
	require.NoError(t, h.d.AddBarrel(ctx, a))
	assert.Equal(t, 1, h.d.BarrelCount())

	require.NoError(t, h.d.AddBarrel(ctx, types.Handle{Name: types.BarrelName("b"), Addr: "barrel-b"}))
	assert.Equal(t, 1, h.d.BarrelCount())

	assert.Error(t, h.d.AddBarrel(ctx, types.Handle{Name: types.BarrelName("c"), Addr: "barrel-c"}))

	// same barrel on a new address replaces the old entry
	h.dialer.barrels["barrel-a2"] = newFakeBarrel()
	require.NoError(t, h.d.AddBarrel(ctx, types.Handle{Name: types.BarrelName("a"), Addr: "barrel-a2"}))
	assert.Equal(t, 1, h.d.BarrelCount())
}

func TestTakeURLAfterStop(t *testing.T) {
	h := newHarness(t)
	h.d.Stop()
	assert.Error(t, h.d.TakeURL(context.Background(), "http://site/"))
}
