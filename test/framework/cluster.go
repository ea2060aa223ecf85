package framework

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/googol/pkg/api"
	"github.com/cuemby/googol/pkg/barrel"
	"github.com/cuemby/googol/pkg/client"
	"github.com/cuemby/googol/pkg/directory"
	"github.com/cuemby/googol/pkg/downloader"
	"github.com/cuemby/googol/pkg/gateway"
	"github.com/cuemby/googol/pkg/health"
	"github.com/cuemby/googol/pkg/multicast"
	"github.com/cuemby/googol/pkg/queue"
	"github.com/cuemby/googol/pkg/retry"
	"github.com/cuemby/googol/pkg/stopwords"
	"github.com/cuemby/googol/pkg/types"
)

// ClusterConfig sizes an in-process cluster
type ClusterConfig struct {
	NumBarrels     int
	NumDownloaders int
	Gateway        gateway.Config
	Downloader     downloader.Config
	GatewayPoll    time.Duration
}

// DefaultClusterConfig returns a small cluster with timings tuned for tests
func DefaultClusterConfig() *ClusterConfig {
	fetch := downloader.DefaultFetchConfig()
	fetch.Timeout = 2 * time.Second

	return &ClusterConfig{
		NumBarrels:     2,
		NumDownloaders: 1,
		Gateway: gateway.Config{
			Retry:             retry.Config{Attempts: 2, Delay: 10 * time.Millisecond},
			Heartbeat:         health.Config{Interval: 100 * time.Millisecond, Timeout: 500 * time.Millisecond, Retries: 1},
			SubscriberTimeout: time.Second,
		},
		Downloader: downloader.Config{
			Fetch:      fetch,
			Multicast:  multicast.Config{MaxRetries: 2, AckTimeout: 500 * time.Millisecond, MaxWorkers: 4, BackoffFactor: 1},
			QueueRetry: retry.Config{Attempts: 2, Delay: 10 * time.Millisecond},
		},
		GatewayPoll: 20 * time.Millisecond,
	}
}

// Node is one running process of the cluster
type Node struct {
	Handle types.Handle
	server *api.Server
	stop   func()
	once   sync.Once
}

// Kill stops serving without unregistering, as a crash would
func (n *Node) Kill() {
	n.once.Do(func() {
		if n.stop != nil {
			n.stop()
		}
		if n.server != nil {
			n.server.Stop()
		}
	})
}

// Cluster runs every role in this process, each behind its own gRPC server
type Cluster struct {
	Config *ClusterConfig

	RegistryAddr string
	Pool         *client.Pool
	Directory    *client.Directory

	Queue     *queue.Queue
	StopWords *stopwords.Learner
	Gateway   *gateway.Gateway

	mu          sync.Mutex
	barrels     map[string]*barrel.Barrel
	downloaders []*downloader.Downloader
	nodes       []*Node
}

// NewCluster creates a cluster with the given configuration
func NewCluster(config *ClusterConfig) *Cluster {
	if config == nil {
		config = DefaultClusterConfig()
	}
	return &Cluster{
		Config:  config,
		Pool:    client.NewPool(),
		barrels: make(map[string]*barrel.Barrel),
	}
}

// Start brings up registry, queue, stop-word learner, gateway, barrels and
// downloaders, in that order.
func (c *Cluster) Start(ctx context.Context) error {
	if err := c.startRegistry(); err != nil {
		return fmt.Errorf("failed to start registry: %w", err)
	}

	c.Queue = queue.New(c.Pool, queue.Config{DeliveryTimeout: 2 * time.Second})
	if _, err := c.serve(ctx, types.QueueName, func(s *api.Server, _ types.Handle) { s.RegisterQueue(c.Queue) }); err != nil {
		return fmt.Errorf("failed to start queue: %w", err)
	}

	c.StopWords = stopwords.New(stopwords.DefaultConfig())
	if _, err := c.serve(ctx, types.StopWordsName, func(s *api.Server, _ types.Handle) { s.RegisterStopWords(c.StopWords) }); err != nil {
		return fmt.Errorf("failed to start stop-word learner: %w", err)
	}

	c.Gateway = gateway.New(c.Config.Gateway, c.Directory, c.Pool)
	node, err := c.serve(ctx, types.GatewayName, func(s *api.Server, _ types.Handle) { s.RegisterGateway(c.Gateway) })
	if err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	node.stop = c.Gateway.Stop
	if err := c.Gateway.Start(ctx); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	for i := 0; i < c.Config.NumBarrels; i++ {
		if _, err := c.AddBarrel(ctx, fmt.Sprintf("%d", i+1)); err != nil {
			return err
		}
	}
	for i := 0; i < c.Config.NumDownloaders; i++ {
		if _, err := c.AddDownloader(ctx, fmt.Sprintf("%d", i+1)); err != nil {
			return err
		}
	}
	return nil
}

// AddBarrel starts a barrel and waits until it has joined
func (c *Cluster) AddBarrel(ctx context.Context, id string) (*Node, error) {
	var b *barrel.Barrel
	node, err := c.serve(ctx, types.BarrelName(id), func(s *api.Server, h types.Handle) {
		b = barrel.New(barrel.Config{Handle: h, GatewayPoll: c.Config.GatewayPoll}, c.Directory, c.Pool)
		s.RegisterBarrel(b)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start barrel %s: %w", id, err)
	}
	node.stop = b.Stop

	if err := b.Start(ctx); err != nil {
		return nil, fmt.Errorf("barrel %s failed to join: %w", id, err)
	}

	c.mu.Lock()
	c.barrels[node.Handle.Name] = b
	c.mu.Unlock()
	return node, nil
}

// AddDownloader starts a downloader and registers it with the queue
func (c *Cluster) AddDownloader(ctx context.Context, id string) (*Node, error) {
	var d *downloader.Downloader
	node, err := c.serve(ctx, types.DownloaderName(id), func(s *api.Server, h types.Handle) {
		cfg := c.Config.Downloader
		cfg.ID = id
		cfg.Handle = h
		d = downloader.New(cfg, c.Directory, c.Pool, nil)
		s.RegisterDownloader(d)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start downloader %s: %w", id, err)
	}
	node.stop = d.Stop

	if err := d.Start(ctx); err != nil {
		return nil, fmt.Errorf("downloader %s failed to start: %w", id, err)
	}

	c.mu.Lock()
	c.downloaders = append(c.downloaders, d)
	c.mu.Unlock()
	return node, nil
}

// Barrel returns the in-process barrel registered under name
func (c *Cluster) Barrel(name string) *barrel.Barrel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.barrels[name]
}

// GatewayClient dials the gateway over gRPC, as an end user would
func (c *Cluster) GatewayClient(ctx context.Context) (*client.Gateway, error) {
	h, err := c.Directory.Resolve(ctx, types.GatewayName)
	if err != nil {
		return nil, err
	}
	svc, err := c.Pool.DialGateway(h)
	if err != nil {
		return nil, err
	}
	return svc.(*client.Gateway), nil
}

// Stop kills every node, newest first
func (c *Cluster) Stop() {
	c.mu.Lock()
	nodes := c.nodes
	c.nodes = nil
	c.mu.Unlock()

	for i := len(nodes) - 1; i >= 0; i-- {
		nodes[i].Kill()
	}
	_ = c.Pool.Close()
}

func (c *Cluster) startRegistry() error {
	srv := api.NewServer()
	srv.RegisterDirectory(directory.New())
	addr, err := srv.Start("127.0.0.1:0")
	if err != nil {
		return err
	}
	c.track(&Node{Handle: types.Handle{Name: "Directory", Addr: addr}, server: srv})

	dir, err := c.Pool.DialDirectory(addr)
	if err != nil {
		return err
	}
	c.RegistryAddr = addr
	c.Directory = dir
	return nil
}

// serve listens on a free port, lets register build the service for the
// resulting handle, starts serving and binds name in the directory.
func (c *Cluster) serve(ctx context.Context, name string, register func(*api.Server, types.Handle)) (*Node, error) {
	srv := api.NewServer()
	addr, err := srv.Listen("127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	node := &Node{Handle: types.Handle{Name: name, Addr: addr}, server: srv}
	register(srv, node.Handle)

	go func() { _ = srv.Serve() }()
	c.track(node)

	if err := c.Directory.Register(ctx, name, node.Handle); err != nil {
		return nil, err
	}
	return node, nil
}

func (c *Cluster) track(n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = append(c.nodes, n)
}
