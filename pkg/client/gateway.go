package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/googol/pkg/api"
	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Gateway is a gateway client. Subscribe opens a statistics stream and
// feeds every snapshot to the local subscriber until Unsubscribe.
type Gateway struct {
	caller
	mu     sync.Mutex
	subs   map[string]*subscription
	logger zerolog.Logger
}

func newGateway(c caller) *Gateway {
	return &Gateway{
		caller: c,
		subs:   make(map[string]*subscription),
		logger: log.WithComponent("client"),
	}
}

func (g *Gateway) IndexURL(ctx context.Context, url string) (string, error) {
	resp, err := invoke[api.MessageResponse](ctx, g.caller, api.MethodIndexURL, &api.URLRequest{URL: url})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (g *Gateway) Search(ctx context.Context, terms []string) ([]types.SearchResult, error) {
	resp, err := invoke[api.SearchResponse](ctx, g.caller, api.MethodGatewaySearch, &api.SearchRequest{Terms: terms})
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Results), nil
}

func (g *Gateway) GetIncomingLinks(ctx context.Context, url string) ([]string, error) {
	resp, err := invoke[api.LinksResponse](ctx, g.caller, api.MethodGatewayIncomingLinks, &api.URLRequest{URL: url})
	if err != nil {
		return nil, err
	}
	return nonNil(resp.Links), nil
}

func (g *Gateway) RegisterBarrel(ctx context.Context, handle types.Handle) error {
	_, err := invoke[emptypb.Empty](ctx, g.caller, api.MethodRegisterBarrel, &api.HandleRequest{Handle: handle})
	return err
}

func (g *Gateway) UpdateBarrelIndexSize(ctx context.Context, handle types.Handle, invertedSize, incomingSize int) error {
	req := &api.IndexSizeRequest{Handle: handle, Inverted: invertedSize, Incoming: incomingSize}
	_, err := invoke[emptypb.Empty](ctx, g.caller, api.MethodUpdateBarrelIndexSize, req)
	return err
}

// Subscribe opens a statistics stream for sub. ctx bounds only the setup;
// the stream stays open until Unsubscribe, a delivery error in sub, or the
// gateway ending it.
func (g *Gateway) Subscribe(ctx context.Context, sub types.StatisticsSubscriber) error {
	id, _, err := g.Open(ctx, sub.SubscriberID(), sub.OnStatisticsUpdated)
	if err != nil {
		return err
	}
	if sub.SubscriberID() != "" && id != sub.SubscriberID() {
		return fmt.Errorf("gateway assigned subscription id %q, want %q", id, sub.SubscriberID())
	}
	return nil
}

// Open starts a statistics stream and calls fn for every snapshot. An empty
// id lets the gateway assign one. The returned channel closes when the
// stream ends.
func (g *Gateway) Open(ctx context.Context, id string, fn func(context.Context, *types.Statistics) error) (string, <-chan struct{}, error) {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	stream, err := g.cc.NewStream(streamCtx, &api.SubscribeStreamDesc, api.MethodSubscribe)
	if err != nil {
		cancel()
		return "", nil, api.FromStatus(err)
	}
	if err := stream.SendMsg(&api.SubscribeRequest{ID: id}); err != nil {
		cancel()
		return "", nil, api.FromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return "", nil, api.FromStatus(err)
	}

	header, err := waitHeader(ctx, stream.Header)
	if err != nil {
		cancel()
		return "", nil, api.FromStatus(err)
	}
	if ids := header.Get(api.SubscriptionIDHeader); len(ids) > 0 {
		id = ids[0]
	}

	s := &subscription{cancel: cancel}
	g.mu.Lock()
	if prev, ok := g.subs[id]; ok {
		prev.cancel()
	}
	g.subs[id] = s
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer g.forget(id, s)

		for {
			stats := new(types.Statistics)
			if err := stream.RecvMsg(stats); err != nil {
				g.logger.Debug().Err(err).Str("subscriber", id).Msg("Statistics stream ended")
				return
			}
			if err := fn(streamCtx, stats); err != nil {
				g.logger.Warn().Err(err).Str("subscriber", id).Msg("Subscriber rejected statistics")
				return
			}
		}
	}()

	return id, done, nil
}

// Unsubscribe removes the subscription on the gateway and ends the local stream
func (g *Gateway) Unsubscribe(ctx context.Context, id string) error {
	_, err := invoke[emptypb.Empty](ctx, g.caller, api.MethodUnsubscribe, &api.UnsubscribeRequest{ID: id})

	g.mu.Lock()
	s, ok := g.subs[id]
	delete(g.subs, id)
	g.mu.Unlock()
	if ok {
		s.cancel()
	}
	return err
}

// Close ends every stream opened through this client
func (g *Gateway) Close() {
	g.mu.Lock()
	subs := g.subs
	g.subs = make(map[string]*subscription)
	g.mu.Unlock()

	for _, s := range subs {
		s.cancel()
	}
}

type subscription struct {
	cancel context.CancelFunc
}

// forget cancels s and drops it unless a newer stream took over id
func (g *Gateway) forget(id string, s *subscription) {
	s.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.subs[id] == s {
		delete(g.subs, id)
	}
}

// waitHeader waits for the response header, giving up when ctx ends
func waitHeader(ctx context.Context, header func() (metadata.MD, error)) (metadata.MD, error) {
	type result struct {
		md  metadata.MD
		err error
	}
	ch := make(chan result, 1)
	go func() {
		md, err := header()
		ch <- result{md, err}
	}()

	select {
	case r := <-ch:
		return r.md, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
var _ types.GatewayService = (*Gateway)(nil)
