package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
)

const defaultDeliveryTimeout = 5 * time.Second

// Broker fans statistics snapshots out to subscribers. Delivery is
// synchronous; a subscriber whose callback fails is dropped.
type Broker struct {
	subscribers map[string]types.StatisticsSubscriber
	mu          sync.RWMutex
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewBroker creates a new broker. A zero timeout uses five seconds per callback.
func NewBroker(timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &Broker{
		subscribers: make(map[string]types.StatisticsSubscriber),
		timeout:     timeout,
		logger:      log.WithComponent("events"),
	}
}

// Subscribe adds sub. It returns false if a subscriber with the same id
// is already present, in which case nothing changes.
func (b *Broker) Subscribe(sub types.StatisticsSubscriber) (bool, error) {
	id := sub.SubscriberID()
	if id == "" {
		return false, fmt.Errorf("subscriber id is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[id]; ok {
		return false, nil
	}
	b.subscribers[id] = sub
	return true, nil
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Publish delivers stats to every subscriber in id order and returns the
// ids that failed and were removed.
func (b *Broker) Publish(ctx context.Context, stats *types.Statistics) []string {
	b.mu.RLock()
	ids := make([]string, 0, len(b.subscribers))
	subs := make(map[string]types.StatisticsSubscriber, len(b.subscribers))
	for id, sub := range b.subscribers {
		ids = append(ids, id)
		subs[id] = sub
	}
	b.mu.RUnlock()
	sort.Strings(ids)

	var failed []string
	for _, id := range ids {
		if err := b.Deliver(ctx, subs[id], stats); err != nil {
			b.logger.Warn().Err(err).Str("subscriber", id).Msg("Removing unreachable subscriber")
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		b.mu.Lock()
		for _, id := range failed {
			// a re-subscription under the same id since the snapshot stays
			if b.subscribers[id] == subs[id] {
				delete(b.subscribers, id)
			}
		}
		b.mu.Unlock()
	}
	return failed
}

// Deliver sends one snapshot to one subscriber with the broker's timeout
func (b *Broker) Deliver(ctx context.Context, sub types.StatisticsSubscriber, stats *types.Statistics) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return sub.OnStatisticsUpdated(ctx, stats.Clone())
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
