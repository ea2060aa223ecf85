package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/googol/pkg/api"
	"github.com/cuemby/googol/pkg/barrel"
	"github.com/cuemby/googol/pkg/directory"
	"github.com/cuemby/googol/pkg/retry"
	"github.com/cuemby/googol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway records calls and lets tests push statistics to subscribers
type fakeGateway struct {
	mu           sync.Mutex
	subs         map[string]types.StatisticsSubscriber
	unsubscribed []string
	indexed      []string
	snapshot     *types.Statistics
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subs:     make(map[string]types.StatisticsSubscriber),
		snapshot: &types.Statistics{TopSearchTerms: map[string]int{"go": 1}},
	}
}

func (f *fakeGateway) IndexURL(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, url)
	return "URL queued for indexing.", nil
}

func (f *fakeGateway) Search(ctx context.Context, terms []string) ([]types.SearchResult, error) {
	return nil, types.ErrNoBarrels
}

func (f *fakeGateway) GetIncomingLinks(ctx context.Context, url string) ([]string, error) {
	return []string{"http://b.example/long", "http://a.example"}, nil
}

func (f *fakeGateway) RegisterBarrel(ctx context.Context, handle types.Handle) error {
	return nil
}

func (f *fakeGateway) UpdateBarrelIndexSize(ctx context.Context, handle types.Handle, invertedSize, incomingSize int) error {
	return nil
}

func (f *fakeGateway) Subscribe(ctx context.Context, sub types.StatisticsSubscriber) error {
	f.mu.Lock()
	f.subs[sub.SubscriberID()] = sub
	snap := f.snapshot
	f.mu.Unlock()
	return sub.OnStatisticsUpdated(ctx, snap)
}

func (f *fakeGateway) Unsubscribe(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
	f.unsubscribed = append(f.unsubscribed, id)
	return nil
}

func (f *fakeGateway) push(id string, stats *types.Statistics) error {
	f.mu.Lock()
	sub, ok := f.subs[id]
	f.mu.Unlock()
	if !ok {
		return types.ErrNotFound
	}
	return sub.OnStatisticsUpdated(context.Background(), stats)
}

func (f *fakeGateway) wasUnsubscribed(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.unsubscribed {
		if u == id {
			return true
		}
	}
	return false
}

type chanSubscriber struct {
	id string
	ch chan *types.Statistics
}

func (c *chanSubscriber) SubscriberID() string { return c.id }

func (c *chanSubscriber) OnStatisticsUpdated(ctx context.Context, stats *types.Statistics) error {
	c.ch <- stats
	return nil
}

type testEnv struct {
	addr    string
	pool    *Pool
	dir     *directory.Directory
	barrel  *barrel.Barrel
	gateway *fakeGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		pool:    NewPool(),
		dir:     directory.New(),
		gateway: newFakeGateway(),
	}
	env.barrel = barrel.New(barrel.Config{Handle: types.Handle{Name: types.BarrelName("1"), Addr: "127.0.0.1:1"}}, env.dir, env.pool)

	srv := api.NewServer()
	srv.RegisterDirectory(env.dir)
	srv.RegisterBarrel(env.barrel)
	srv.RegisterGateway(env.gateway)

	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	env.addr = addr

	t.Cleanup(func() {
		_ = env.pool.Close()
		srv.Stop()
	})
	return env
}

func (e *testEnv) handle(name string) types.Handle {
	return types.Handle{Name: name, Addr: e.addr}
}

func TestDirectoryClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dir, err := env.pool.DialDirectory(env.addr)
	require.NoError(t, err)

	h := types.Handle{Name: types.QueueName, Addr: "127.0.0.1:7100"}
	require.NoError(t, dir.Register(ctx, types.QueueName, h))
	require.NoError(t, dir.Register(ctx, types.BarrelName("a"), types.Handle{Name: types.BarrelName("a"), Addr: "127.0.0.1:7101"}))

	got, err := dir.Resolve(ctx, types.QueueName)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	names, err := dir.List(ctx, types.BarrelPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{types.BarrelName("a")}, names)

	require.NoError(t, dir.Unregister(ctx, types.QueueName))
	_, err = dir.Resolve(ctx, types.QueueName)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestBarrelClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	b, err := env.pool.DialBarrel(env.handle(types.BarrelName("1")))
	require.NoError(t, err)

	active, err := b.IsActive(ctx)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, env.barrel.Join(ctx))

	page := &types.CrawledPage{
		URL:           "http://a.example",
		Title:         "A",
		Words:         []string{"distributed", "search"},
		OutgoingLinks: []string{"http://b.example"},
	}
	require.NoError(t, b.StorePage(ctx, page))

	results, err := b.Search(ctx, []string{"search"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "http://a.example", results[0].URL)
	assert.Equal(t, "A", results[0].Metadata.Title)
	assert.Equal(t, "distributed search", results[0].Metadata.Citation)

	results, err = b.Search(ctx, []string{"missing"})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	ok, err := b.IsURLInBarrel(ctx, "http://a.example")
	require.NoError(t, err)
	assert.True(t, ok)

	links, err := b.GetIncomingLinks(ctx, "http://b.example")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example"}, links)

	index, err := b.GetInvertedIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example"}, index["distributed"])

	pages, err := b.GetPageMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", pages["http://a.example"].Title)

	name, err := b.GetName(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.BarrelName("1"), name)

	size, err := b.GetIndexSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestGatewayClientUnary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	gw, err := env.pool.DialGateway(env.handle(types.GatewayName))
	require.NoError(t, err)

	msg, err := gw.IndexURL(ctx, "http://a.example")
	require.NoError(t, err)
	assert.Equal(t, "URL queued for indexing.", msg)

	links, err := gw.GetIncomingLinks(ctx, "http://c.example")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://b.example/long", "http://a.example"}, links)

	_, err = gw.Search(ctx, []string{"go"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnavailable))
}

func TestGatewaySubscribe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	svc, err := env.pool.DialGateway(env.handle(types.GatewayName))
	require.NoError(t, err)

	sub := &chanSubscriber{id: "console-1", ch: make(chan *types.Statistics, 4)}
	require.NoError(t, svc.Subscribe(ctx, sub))

	select {
	case stats := <-sub.ch:
		assert.Equal(t, 1, stats.TopSearchTerms["go"])
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot on subscribe")
	}

	require.NoError(t, env.gateway.push("console-1", &types.Statistics{TopSearchTerms: map[string]int{"go": 2}}))
	select {
	case stats := <-sub.ch:
		assert.Equal(t, 2, stats.TopSearchTerms["go"])
	case <-time.After(5 * time.Second):
		t.Fatal("no pushed snapshot")
	}

	require.NoError(t, svc.Unsubscribe(ctx, "console-1"))
	assert.True(t, env.gateway.wasUnsubscribed("console-1"))
	assert.Error(t, env.gateway.push("console-1", &types.Statistics{}))
}

func TestGatewayOpenAssignsID(t *testing.T) {
	env := newTestEnv(t)

	svc, err := env.pool.DialGateway(env.handle(types.GatewayName))
	require.NoError(t, err)
	gw := svc.(*Gateway)

	received := make(chan struct{}, 1)
	id, done, err := gw.Open(context.Background(), "", func(ctx context.Context, stats *types.Statistics) error {
		received <- struct{}{}
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot")
	}

	gw.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end on Close")
	}
	assert.Eventually(t, func() bool { return env.gateway.wasUnsubscribed(id) }, 5*time.Second, 10*time.Millisecond)
}

func TestUnreachablePeer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	pool := NewPool()
	defer pool.Close()

	b, err := pool.DialBarrel(types.Handle{Name: types.BarrelName("gone"), Addr: addr})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = b.IsActive(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnavailable))
	assert.True(t, retry.IsConnectionRefused(err))
}

func TestPoolReusesConnections(t *testing.T) {
	pool := NewPool()

	c1, err := pool.Conn("127.0.0.1:7000")
	require.NoError(t, err)
	c2, err := pool.Conn("127.0.0.1:7000")
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	_, err = pool.Conn("")
	assert.Error(t, err)

	require.NoError(t, pool.Close())
	_, err = pool.Conn("127.0.0.1:7000")
	assert.Error(t, err)
}
