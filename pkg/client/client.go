package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/googol/pkg/api"
	"github.com/cuemby/googol/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultTimeout bounds a call whose context carries no deadline
const DefaultTimeout = 10 * time.Second

// Pool dials Googol services over gRPC, keeping one connection per address.
// It implements types.Dialer.
type Pool struct {
	mu      sync.Mutex
	conns   map[string]*grpc.ClientConn
	timeout time.Duration
	closed  bool
}

// NewPool creates an empty connection pool
func NewPool() *Pool {
	return &Pool{
		conns:   make(map[string]*grpc.ClientConn),
		timeout: DefaultTimeout,
	}
}

// SetTimeout changes the per-call timeout used when a context has no deadline
func (p *Pool) SetTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d > 0 {
		p.timeout = d
	}
}

// Conn returns the shared connection to addr, creating it on first use.
// Connections are lazy: an unreachable peer surfaces on the first call.
func (p *Pool) Conn(addr string) (*grpc.ClientConn, error) {
	if addr == "" {
		return nil, fmt.Errorf("address is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("client pool is closed")
	}
	if cc, ok := p.conns[addr]; ok {
		return cc, nil
	}

	cc, err := dial(addr)
	if err != nil {
		return nil, err
	}
	p.conns[addr] = cc
	return cc, nil
}

// Close closes every pooled connection
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for addr, cc := range p.conns {
		if err := cc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, addr)
	}
	p.closed = true
	return firstErr
}

func (p *Pool) caller(handle types.Handle) (caller, error) {
	cc, err := p.Conn(handle.Addr)
	if err != nil {
		return caller{}, fmt.Errorf("failed to dial %s: %w", handle, err)
	}
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()
	return caller{cc: cc, timeout: timeout}, nil
}

// DialQueue returns a queue client
func (p *Pool) DialQueue(handle types.Handle) (types.QueueService, error) {
	c, err := p.caller(handle)
	if err != nil {
		return nil, err
	}
	return &Queue{caller: c}, nil
}

// DialBarrel returns a barrel client
func (p *Pool) DialBarrel(handle types.Handle) (types.BarrelService, error) {
	c, err := p.caller(handle)
	if err != nil {
		return nil, err
	}
	return &Barrel{caller: c}, nil
}

// DialDownloader returns a downloader client
func (p *Pool) DialDownloader(handle types.Handle) (types.DownloaderService, error) {
	c, err := p.caller(handle)
	if err != nil {
		return nil, err
	}
	return &Downloader{caller: c}, nil
}

// DialGateway returns a gateway client
func (p *Pool) DialGateway(handle types.Handle) (types.GatewayService, error) {
	c, err := p.caller(handle)
	if err != nil {
		return nil, err
	}
	return newGateway(c), nil
}

// DialStopWords returns a stop-word learner client
func (p *Pool) DialStopWords(handle types.Handle) (types.StopWordsService, error) {
	c, err := p.caller(handle)
	if err != nil {
		return nil, err
	}
	return &StopWords{caller: c}, nil
}

// DialDirectory returns a directory client
func (p *Pool) DialDirectory(addr string) (*Directory, error) {
	c, err := p.caller(types.Handle{Name: "Directory", Addr: addr})
	if err != nil {
		return nil, err
	}
	return &Directory{caller: c}, nil
}

func dial(addr string) (*grpc.ClientConn, error) {
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}
	return cc, nil
}

// caller issues unary calls on a shared connection
type caller struct {
	cc      grpc.ClientConnInterface
	timeout time.Duration
}

func (c caller) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// invoke calls method and decodes the reply into a new Resp
func invoke[Resp any](ctx context.Context, c caller, method string, req any) (*Resp, error) {
	ctx, cancel := c.context(ctx)
	defer cancel()

	resp := new(Resp)
	if err := c.cc.Invoke(ctx, method, req, resp); err != nil {
		return nil, api.FromStatus(err)
	}
	return resp, nil
}
