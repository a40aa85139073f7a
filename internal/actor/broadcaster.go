package actor

import (
	"sync"
	"time"

	"github.com/quadra-systems/hlquad/internal/eventbus"
)

// subscriberBuffer is the per-subscriber broadcast channel capacity
// (SPEC_FULL §4.8 / §5 backpressure: "bounded at 1000 per subscriber").
const subscriberBuffer = 1000

// broadcaster fans one bot's events out to any number of subscribers,
// non-blockingly. A subscriber whose channel is full has its oldest buffered
// event dropped and receives a synthetic BotEventLagged marker in its place,
// instead of blocking the actor's hot loop. Adapted
// from the teacher's websocket Hub register/unregister/broadcast-map
// pattern (internal/api/websocket.go) since no broadcast/pubsub library
// appears anywhere in the retrieved example pack (see DESIGN.md).
type broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan eventbus.BotEvent]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: make(map[chan eventbus.BotEvent]struct{})}
}

// Subscribe registers a new observer channel.
func (b *broadcaster) Subscribe() chan eventbus.BotEvent {
	ch := make(chan eventbus.BotEvent, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a previously registered observer channel.
func (b *broadcaster) Unsubscribe(ch chan eventbus.BotEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Publish sends ev to every subscriber, non-blockingly. For a full subscriber
// channel, the oldest buffered event is dropped to make room and a
// BotEventLagged marker is sent in place of ev, best-effort.
func (b *broadcaster) Publish(ev eventbus.BotEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- eventbus.BotEvent{Kind: eventbus.BotEventLagged, Timestamp: time.Now().UTC()}:
			default:
				// Subscriber is backed up even for the lag marker; drop it.
			}
		}
	}
}

// CloseAll tears down every subscriber channel, used during actor shutdown.
func (b *broadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
