/*
Package client provides gRPC-backed implementations of the Googol service
interfaces.

Every role talks to its peers through the interfaces in pkg/types. Inside a
process those are satisfied by the role packages directly; across processes
they are satisfied by the clients in this package, so a barrel cannot tell
whether the gateway it reports to is local or remote.

# Architecture

	┌──────────────────── CALLING ROLE ──────────────────────────┐
	│                                                            │
	│  dir.Resolve(ctx, types.QueueName) ──► Handle{Name, Addr}  │
	│  pool.DialQueue(handle)            ──► types.QueueService  │
	│                                                            │
	└──────────────────┬─────────────────────────────────────────┘
	                   │
	┌──────────────────▼──── pkg/client ─────────────────────────┐
	│                                                            │
	│  Pool                                                      │
	│   - one *grpc.ClientConn per address, created lazily       │
	│   - JSON content subtype on every call                     │
	│   - DefaultTimeout when the context has no deadline        │
	│                                                            │
	│  Directory  Queue  Barrel  Downloader  Gateway  StopWords  │
	│   - unary calls decoded into api message structs          │
	│   - gRPC status mapped back to types.ErrNotFound,         │
	│     types.ErrUnavailable, context errors                  │
	└──────────────────┬─────────────────────────────────────────┘
	                   │ gRPC (insecure, content-subtype json)
	                   ▼
	            api.Server of the peer

# Errors

Connections are lazy. A peer that is down shows up on the first call as a
codes.Unavailable status, which errors.Is reports as types.ErrUnavailable
and retry.IsConnectionRefused treats as a connection refusal. That is the
signal the gateway and downloaders use to evict a barrel.

# Statistics streams

Gateway.Subscribe opens a server stream, sends the subscriber id, and runs
a goroutine that hands every received snapshot to the local subscriber:

	client                           gateway
	  │  Subscribe{ID}                  │
	  │────────────────────────────────►│
	  │  header subscription-id         │
	  │◄────────────────────────────────│
	  │  Statistics (current snapshot)  │
	  │◄────────────────────────────────│
	  │  Statistics (on every change)   │
	  │◄────────────────────────────────│
	  │  Unsubscribe{ID}                │
	  │────────────────────────────────►│ stream ends

The stream outlives the context passed to Subscribe; it ends on
Unsubscribe, on Close, when the subscriber returns an error, or when the
gateway goes away.

# Usage

	pool := client.NewPool()
	defer pool.Close()

	dir, err := pool.DialDirectory("127.0.0.1:7000")
	if err != nil {
		return err
	}
	handle, err := dir.Resolve(ctx, types.GatewayName)
	if err != nil {
		return err
	}
	gw, err := pool.DialGateway(handle)
	if err != nil {
		return err
	}
	results, err := gw.Search(ctx, []string{"distributed", "systems"})
*/
package client
