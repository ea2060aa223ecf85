package api

import (
	"context"
	"errors"
	"sync"

	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
)

var errStreamClosed = errors.New("subscription stream closed")

// streamSubscriber pushes snapshots down one Subscribe stream. A send that
// outlives the delivery context ends the stream, so a client that stopped
// reading cannot hold up the gateway.
type streamSubscriber struct {
	id      string
	stream  grpc.ServerStream
	done    chan struct{}
	once    sync.Once
	sending sync.Mutex
}

func (s *streamSubscriber) SubscriberID() string {
	return s.id
}

func (s *streamSubscriber) OnStatisticsUpdated(ctx context.Context, stats *types.Statistics) error {
	select {
	case <-s.done:
		return errStreamClosed
	case <-s.stream.Context().Done():
		return s.stream.Context().Err()
	default:
	}

	// a send still stuck from an earlier delivery means the client is gone
	if !s.sending.TryLock() {
		s.close()
		return errStreamClosed
	}

	sent := make(chan error, 1)
	go func() {
		defer s.sending.Unlock()
		sent <- s.stream.SendMsg(stats)
	}()

	select {
	case err := <-sent:
		if err != nil {
			s.close()
		}
		return err
	case <-ctx.Done():
		s.close()
		return ctx.Err()
	case <-s.done:
		return errStreamClosed
	}
}

func (s *streamSubscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// gatewayServer adapts a GatewayService to gRPC, turning each Subscribe
// stream into a subscriber the gateway can push to.
type gatewayServer struct {
	svc     types.GatewayService
	mu      sync.Mutex
	streams map[string]*streamSubscriber
	logger  zerolog.Logger
}

func newGatewayServer(svc types.GatewayService) *gatewayServer {
	return &gatewayServer{
		svc:     svc,
		streams: make(map[string]*streamSubscriber),
		logger:  log.WithComponent("api"),
	}
}

func (g *gatewayServer) desc() *grpc.ServiceDesc {
	svc := g.svc
	return &grpc.ServiceDesc{
		ServiceName: GatewayServiceName,
		HandlerType: (*types.GatewayService)(nil),
		Methods: []grpc.MethodDesc{
			method(GatewayServiceName, "IndexURL", func(ctx context.Context, req *URLRequest) (*MessageResponse, error) {
				msg, err := svc.IndexURL(ctx, req.URL)
				return &MessageResponse{Message: msg}, err
			}),
			method(GatewayServiceName, "Search", func(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
				results, err := svc.Search(ctx, req.Terms)
				return &SearchResponse{Results: results}, err
			}),
			method(GatewayServiceName, "GetIncomingLinks", func(ctx context.Context, req *URLRequest) (*LinksResponse, error) {
				links, err := svc.GetIncomingLinks(ctx, req.URL)
				return &LinksResponse{Links: links}, err
			}),
			method(GatewayServiceName, "RegisterBarrel", func(ctx context.Context, req *HandleRequest) (*emptypb.Empty, error) {
				return empty, svc.RegisterBarrel(ctx, req.Handle)
			}),
			method(GatewayServiceName, "UpdateBarrelIndexSize", func(ctx context.Context, req *IndexSizeRequest) (*emptypb.Empty, error) {
				return empty, svc.UpdateBarrelIndexSize(ctx, req.Handle, req.Inverted, req.Incoming)
			}),
			method(GatewayServiceName, "Unsubscribe", func(ctx context.Context, req *UnsubscribeRequest) (*emptypb.Empty, error) {
				return empty, g.unsubscribe(ctx, req.ID)
			}),
		},
		Streams: []grpc.StreamDesc{
			{
				StreamName:    SubscribeStreamDesc.StreamName,
				ServerStreams: true,
				Handler:       g.subscribe,
			},
		},
	}
}

// subscribe holds the stream open until the client goes away, Unsubscribe
// is called for its id, or the gateway drops it after a failed delivery.
func (g *gatewayServer) subscribe(_ any, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	if err := stream.SendHeader(metadata.Pairs(SubscriptionIDHeader, id)); err != nil {
		return err
	}

	sub := &streamSubscriber{id: id, stream: stream, done: make(chan struct{})}

	// a client reconnecting under the same id replaces its old stream
	g.mu.Lock()
	old := g.streams[id]
	g.streams[id] = sub
	g.mu.Unlock()
	if old != nil {
		old.close()
		_ = g.svc.Unsubscribe(stream.Context(), id)
	}

	if err := g.svc.Subscribe(stream.Context(), sub); err != nil {
		g.release(sub)
		return err
	}
	g.logger.Debug().Str("subscriber", id).Msg("Statistics stream opened")

	select {
	case <-stream.Context().Done():
	case <-sub.done:
	}

	g.release(sub)
	return nil
}

// release forgets sub unless a newer stream took over its id
func (g *gatewayServer) release(sub *streamSubscriber) {
	sub.close()

	g.mu.Lock()
	current := g.streams[sub.id] == sub
	if current {
		delete(g.streams, sub.id)
	}
	g.mu.Unlock()

	if current {
		_ = g.svc.Unsubscribe(context.Background(), sub.id)
	}
}

func (g *gatewayServer) unsubscribe(ctx context.Context, id string) error {
	if err := g.svc.Unsubscribe(ctx, id); err != nil {
		return err
	}

	g.mu.Lock()
	sub := g.streams[id]
	delete(g.streams, id)
	g.mu.Unlock()

	if sub != nil {
		sub.close()
	}
	return nil
}

func (g *gatewayServer) closeAll() {
	g.mu.Lock()
	subs := make([]*streamSubscriber, 0, len(g.streams))
	for _, s := range g.streams {
		subs = append(subs, s)
	}
	g.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}
