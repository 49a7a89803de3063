package docstore

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event is a committed write, delivered to subscribers of its collection.
type Event struct {
	Op         Op
	Collection string
	ID         string
	// Doc is the document after the write; nil for deletes.
	Doc Doc
}

// Subscription receives events for one collection until Close.
type Subscription struct {
	C <-chan Event

	once  sync.Once
	close func()
}

// Close stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

const subscriberBuffer = 32

type broker struct {
	mu     sync.Mutex
	next   int
	subs   map[string]map[int]chan Event
	logger zerolog.Logger
}

func newBroker(logger zerolog.Logger) *broker {
	return &broker{subs: make(map[string]map[int]chan Event), logger: logger}
}

func (b *broker) subscribe(collection string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	id := b.next
	b.next++
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[int]chan Event)
	}
	b.subs[collection][id] = ch

	return &Subscription{
		C: ch,
		close: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[collection]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					close(ch)
				}
				if len(subs) == 0 {
					delete(b.subs, collection)
				}
			}
		},
	}
}

// publish never blocks: a subscriber whose buffer is full misses the event.
func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.Collection] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn().Str("collection", ev.Collection).Str("id", ev.ID).Msg("subscriber buffer full, event dropped")
		}
	}
}

func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for collection, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, collection)
	}
}
