package api

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cuemby/googol/pkg/events"
	"github.com/cuemby/googol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// brokerGateway serves only the subscription side of a gateway
type brokerGateway struct {
	types.GatewayService
	broker *events.Broker
}

func (g *brokerGateway) Subscribe(ctx context.Context, sub types.StatisticsSubscriber) error {
	_, err := g.broker.Subscribe(sub)
	return err
}

func (g *brokerGateway) Unsubscribe(ctx context.Context, id string) error {
	g.broker.Unsubscribe(id)
	return nil
}

// bulkyStatistics is large enough to exhaust HTTP/2 flow-control windows
// after a few sends to a client that does not read.
func bulkyStatistics() *types.Statistics {
	terms := make(map[string]int, 40000)
	for i := range 40000 {
		terms[fmt.Sprintf("term-%06d", i)] = i
	}
	return &types.Statistics{TopSearchTerms: terms}
}

func TestStalledSubscriberIsDropped(t *testing.T) {
	broker := events.NewBroker(100 * time.Millisecond)
	gw := &brokerGateway{broker: broker}

	srv := NewServer()
	srv.RegisterGateway(gw)
	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// open the stream, read the header, then never receive
	stream, err := conn.NewStream(ctx, &SubscribeStreamDesc, MethodSubscribe)
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&SubscribeRequest{ID: "dashboard"}))
	require.NoError(t, stream.CloseSend())
	header, err := stream.Header()
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard"}, header.Get(SubscriptionIDHeader))

	require.Eventually(t, func() bool { return broker.SubscriberCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	stats := bulkyStatistics()
	var dropped []string
	require.Eventually(t, func() bool {
		start := time.Now()
		dropped = broker.Publish(context.Background(), stats)
		assert.Less(t, time.Since(start), 2*time.Second, "publish must not wait on a stalled client")
		return len(dropped) > 0
	}, 20*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"dashboard"}, dropped)
	assert.Zero(t, broker.SubscriberCount())

	// the handler returns once the subscriber is dropped
	require.Eventually(t, func() bool {
		srv.gateway.mu.Lock()
		defer srv.gateway.mu.Unlock()
		return len(srv.gateway.streams) == 0
	}, 5*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(StopTimeout + 5*time.Second):
		t.Fatal("server did not stop")
	}
}
