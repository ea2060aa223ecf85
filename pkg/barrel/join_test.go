package barrel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/googol/pkg/directory"
	"github.com/cuemby/googol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableBarrel fails every call like a dead peer would
type unreachableBarrel struct {
	types.BarrelService
}

func (unreachableBarrel) IsActive(ctx context.Context) (bool, error) {
	return false, errors.New("connection refused")
}

func TestJoinSyncsFromActivePeer(t *testing.T) {
	ctx := context.Background()
	c := newCluster()

	a := activeBarrel(t, c, "a")
	require.NoError(t, a.StorePage(ctx, page("http://x", "X", "alpha beta", "http://y")))
	require.NoError(t, a.StorePage(ctx, page("http://y", "Y", "gamma", "http://x")))

	b := c.newBarrel("b")
	require.NoError(t, b.Join(ctx))
	assert.Equal(t, types.NodeStateActive, b.State())

	aIndex, _ := a.GetInvertedIndex(ctx)
	bIndex, _ := b.GetInvertedIndex(ctx)
	for term, urls := range aIndex {
		assert.Subset(t, bIndex[term], urls)
	}

	aLinks, _ := a.GetIncomingLinksMap(ctx)
	bLinks, _ := b.GetIncomingLinksMap(ctx)
	for target, srcs := range aLinks {
		assert.Subset(t, bLinks[target], srcs)
	}

	bMeta, _ := b.GetPageMetadata(ctx)
	assert.Equal(t, "Y", bMeta["http://y"].Title)

	results, err := b.Search(ctx, []string{"gamma"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "http://y", results[0].URL)
}

func TestJoinReportsZeroThenRealSizes(t *testing.T) {
	ctx := context.Background()
	c := newCluster()

	a := activeBarrel(t, c, "a")
	require.NoError(t, a.StorePage(ctx, page("http://x", "X", "alpha beta", "http://y")))

	b := c.newBarrel("b")
	before := len(c.gw.snapshot())
	require.NoError(t, b.Join(ctx))

	reports := c.gw.snapshot()[before:]
	require.Len(t, reports, 2)
	assert.Equal(t, sizeReport{b.handle, 0, 0}, reports[0])
	assert.Equal(t, sizeReport{b.handle, 2, 1}, reports[1])
}

func TestJoinSkipsInactiveAndUnreachablePeers(t *testing.T) {
	ctx := context.Background()
	c := newCluster()

	// Barrel-a: bound but dead
	dead := types.Handle{Name: types.BarrelName("a"), Addr: "addr-dead"}
	c.dialer.barrels[dead.Addr] = unreachableBarrel{}
	require.NoError(t, c.dir.Register(ctx, dead.Name, dead))

	// Barrel-b: bound but nothing listening
	gone := types.Handle{Name: types.BarrelName("b"), Addr: "addr-gone"}
	require.NoError(t, c.dir.Register(ctx, gone.Name, gone))

	// Barrel-c: reachable but still synching
	synching := c.newBarrel("c")
	synching.Merge(map[string][]string{"hidden": {"http://h"}}, nil, nil)

	// Barrel-d: active with data
	d := activeBarrel(t, c, "d")
	require.NoError(t, d.StorePage(ctx, page("http://d", "D", "delta")))

	e := c.newBarrel("e")
	require.NoError(t, e.Join(ctx))

	index, _ := e.GetInvertedIndex(ctx)
	assert.Contains(t, index, "delta")
	assert.NotContains(t, index, "hidden")
}

func TestJoinWithoutPeersSelfPromotes(t *testing.T) {
	ctx := context.Background()
	c := newCluster()

	gone := types.Handle{Name: types.BarrelName("old"), Addr: "addr-gone"}
	require.NoError(t, c.dir.Register(ctx, gone.Name, gone))

	b := c.newBarrel("new")
	require.NoError(t, b.Join(ctx))
	assert.Equal(t, types.NodeStateActive, b.State())

	size, err := b.GetIndexSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)

	// joining again is a no-op
	require.NoError(t, b.Join(ctx))
	assert.Equal(t, types.NodeStateActive, b.State())
}

func TestJoinNotifiesDownloaders(t *testing.T) {
	ctx := context.Background()
	c := newCluster()

	w1 := &fakeDownloader{}
	h1 := types.Handle{Name: types.DownloaderName("1"), Addr: "addr-w1"}
	c.dialer.downloaders[h1.Addr] = w1
	require.NoError(t, c.dir.Register(ctx, h1.Name, h1))

	// unreachable downloader is ignored
	h2 := types.Handle{Name: types.DownloaderName("2"), Addr: "addr-w2"}
	require.NoError(t, c.dir.Register(ctx, h2.Name, h2))

	b := c.newBarrel("1")
	require.NoError(t, b.Join(ctx))

	w1.mu.Lock()
	defer w1.mu.Unlock()
	assert.Equal(t, []types.Handle{b.handle}, w1.barrels)
}

func TestStartRegistersAndReports(t *testing.T) {
	ctx := context.Background()
	c := newCluster()

	h := types.Handle{Name: types.BarrelName("1"), Addr: "addr-1"}
	b := New(Config{Handle: h, GatewayPoll: 5 * time.Millisecond}, c.dir, c.dialer)
	defer b.Stop()

	require.NoError(t, b.Start(ctx))
	assert.Equal(t, []types.Handle{h}, c.gw.registered)

	require.NoError(t, b.StorePage(ctx, page("http://a", "A", "one two", "http://b")))

	assert.Eventually(t, func() bool {
		reports := c.gw.snapshot()
		last := reports[len(reports)-1]
		return last.inverted == 2 && last.incoming == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStartWithoutGatewayTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	h := types.Handle{Name: types.BarrelName("1"), Addr: "addr-1"}
	b := New(Config{Handle: h, GatewayPoll: 5 * time.Millisecond}, directory.New(), newFakeDialer())

	err := b.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.NodeStateSynching, b.State())
}
