package devserver

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

const (
	defaultShards = 4
	shardBuffer   = 64
)

// DealEvent is a committed status change pushed to subscribers, the dev
// server's stand-in for the production websocket fanout.
type DealEvent struct {
	DealID    string
	ChatID    int64
	OldStatus *domain.DealStatus
	NewStatus domain.DealStatus
	ActorID   string
}

// Notifier fans out deal events to subscribers through a fixed set of shards,
// hashing on the deal id so each deal's events are delivered in commit order.
type Notifier struct {
	shards []chan DealEvent
	log    zerolog.Logger

	mu   sync.RWMutex
	subs []chan<- DealEvent
}

func NewNotifier(numShards int, log zerolog.Logger) *Notifier {
	if numShards <= 0 {
		numShards = defaultShards
	}
	n := &Notifier{
		shards: make([]chan DealEvent, numShards),
		log:    log,
	}
	for i := range n.shards {
		n.shards[i] = make(chan DealEvent, shardBuffer)
	}
	return n
}

// Start launches the shard workers. Workers stop when ctx is cancelled.
func (n *Notifier) Start(ctx context.Context) {
	for i, ch := range n.shards {
		go n.runShard(ctx, i, ch)
	}
}

// Subscribe registers a channel to receive all future deal events.
func (n *Notifier) Subscribe(ch chan<- DealEvent) {
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
}

// Publish routes an event to the shard owning its deal.
func (n *Notifier) Publish(ev DealEvent) {
	n.shards[n.shardIndex(ev.DealID)] <- ev
}

func (n *Notifier) runShard(ctx context.Context, id int, ch <-chan DealEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			n.mu.RLock()
			subs := n.subs
			n.mu.RUnlock()
			for _, sub := range subs {
				select {
				case sub <- ev:
				default:
					n.log.Warn().Str("deal_id", ev.DealID).Int("shard", id).Msg("subscriber backlog full, event dropped")
				}
			}
		}
	}
}

// shardIndex maps a deal id deterministically to a shard.
func (n *Notifier) shardIndex(dealID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(dealID))
	return int(h.Sum32()) % len(n.shards)
}
