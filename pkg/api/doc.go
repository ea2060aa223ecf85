/*
Package api implements the gRPC transport every Googol process serves.

Each role (directory, queue, barrel, downloader, gateway, stop-word
learner) is exposed as one gRPC service whose descriptor is built from
the matching interface in pkg/types. Messages are plain Go structs carried
with a JSON codec, so there is no generated code: a service descriptor is a
list of method closures that decode a request struct, call the interface
and encode the reply.

# Architecture

	┌──────────────────── PEER (pkg/client) ─────────────────────┐
	│  Invoke("/googol.Barrel/Search", SearchRequest)            │
	└──────────────────┬─────────────────────────────────────────┘
	                   │ gRPC, content-subtype json
	┌──────────────────▼──── api.Server ─────────────────────────┐
	│                                                            │
	│  ┌──────────────────────────────────────────────┐          │
	│  │  Interceptors                                │          │
	│  │   - domain error ──► gRPC status             │          │
	│  │   - request count and latency metrics        │          │
	│  │   - debug request log                        │          │
	│  └──────────────────┬───────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │  Service descriptors                         │          │
	│  │   googol.Directory  googol.Queue             │          │
	│  │   googol.Barrel     googol.Downloader        │          │
	│  │   googol.Gateway    googol.StopWords         │          │
	│  └──────────────────┬───────────────────────────┘          │
	└─────────────────────┼──────────────────────────────────────┘
	                      ▼
	            types.BarrelService (pkg/barrel)

# Errors

Handlers return domain errors. The unary interceptor maps them with
ToStatus:

	types.ErrNotFound                     codes.NotFound
	types.ErrUnavailable, ErrNoBarrels    codes.Unavailable
	context.DeadlineExceeded              codes.DeadlineExceeded
	context.Canceled                      codes.Canceled
	anything else                         codes.Unknown

FromStatus reverses the mapping on the client side, so errors.Is keeps
working across the wire.

# Statistics streams

googol.Gateway/Subscribe is server-streaming. The first client message
carries the subscriber id (the server assigns one when empty) and the id is
returned in the subscription-id response header. The stream is registered
with the gateway as a StatisticsSubscriber; every snapshot the gateway
publishes is sent down the stream. The stream ends when the client
disconnects, when Unsubscribe is called for its id, or when a send fails
and the gateway drops the subscriber.

# Health

HealthServer runs next to the gRPC listener on a separate HTTP port:

	/health    liveness, always 200 while the process runs
	/ready     200 once critical components and role checks pass, else 503
	/metrics   Prometheus exposition

A barrel adds a "join" check that fails while it is SYNCHING.

# Usage

	srv := api.NewServer()
	srv.RegisterBarrel(b)
	addr, err := srv.Start("0.0.0.0:7101")
	if err != nil {
		return err
	}
	defer srv.Stop()
*/
package api
