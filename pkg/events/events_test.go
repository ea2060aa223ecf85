package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/googol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	id  string
	err error

	mu       sync.Mutex
	received []*types.Statistics
}

func (s *recordingSubscriber) SubscriberID() string { return s.id }

func (s *recordingSubscriber) OnStatisticsUpdated(ctx context.Context, stats *types.Statistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.received = append(s.received, stats)
	return nil
}

func (s *recordingSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

type blockingSubscriber struct{}

func (blockingSubscriber) SubscriberID() string { return "slow" }

func (blockingSubscriber) OnStatisticsUpdated(ctx context.Context, _ *types.Statistics) error {
	<-ctx.Done()
	return ctx.Err()
}

func snapshot() *types.Statistics {
	return &types.Statistics{
		TopSearchTerms:   map[string]int{"go": 1},
		TopConsultedURLs: map[string]int{},
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	b := NewBroker(0)
	sub := &recordingSubscriber{id: "a"}

	added, err := b.Subscribe(sub)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = b.Subscribe(sub)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(context.Background(), snapshot())
	assert.Equal(t, 1, sub.count())
}

func TestSubscribeRequiresID(t *testing.T) {
	b := NewBroker(0)
	_, err := b.Subscribe(&recordingSubscriber{})
	assert.Error(t, err)
}

func TestPublishRemovesFailingSubscribers(t *testing.T) {
	b := NewBroker(0)
	good := &recordingSubscriber{id: "good"}
	bad := &recordingSubscriber{id: "bad", err: errors.New("connection refused")}
	_, _ = b.Subscribe(good)
	_, _ = b.Subscribe(bad)

	failed := b.Publish(context.Background(), snapshot())

	assert.Equal(t, []string{"bad"}, failed)
	assert.Equal(t, 1, b.SubscriberCount())

	failed = b.Publish(context.Background(), snapshot())
	assert.Empty(t, failed)
	assert.Equal(t, 2, good.count())
}

func TestPublishTimesOutSlowSubscribers(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	_, _ = b.Subscribe(blockingSubscriber{})

	failed := b.Publish(context.Background(), snapshot())
	assert.Equal(t, []string{"slow"}, failed)
	assert.Zero(t, b.SubscriberCount())
}

func TestPublishSendsCopies(t *testing.T) {
	b := NewBroker(0)
	sub := &recordingSubscriber{id: "a"}
	_, _ = b.Subscribe(sub)

	stats := snapshot()
	b.Publish(context.Background(), stats)
	sub.received[0].TopSearchTerms["go"] = 42

	assert.Equal(t, 1, stats.TopSearchTerms["go"])
}

func TestUnsubscribe(t *testing.T) {
	b := NewBroker(0)
	sub := &recordingSubscriber{id: "a"}
	_, _ = b.Subscribe(sub)

	b.Unsubscribe("a")
	b.Unsubscribe("missing")

	b.Publish(context.Background(), snapshot())
	assert.Zero(t, sub.count())
	assert.Zero(t, b.SubscriberCount())
}
