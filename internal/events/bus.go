// Package events fans playlist engine lifecycle events out to subscribers.
package events

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/genricoloni/wallcycle/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrBusClosed        = errors.New("event bus is closed")
	ErrSubscriberExists = errors.New("subscriber already registered")
)

type subscriber struct {
	ch      chan domain.Event
	dropped atomic.Uint64
}

// Bus is a non-blocking publish/subscribe hub. A slow subscriber loses
// events instead of stalling the engine that published them.
type Bus struct {
	logger      *zap.Logger
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	published   atomic.Uint64
	closed      bool
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		logger:      logger,
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers id and returns the channel its events arrive on
func (b *Bus) Subscribe(id string, buffer int) (<-chan domain.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	sub := &subscriber{ch: make(chan domain.Event, buffer)}
	b.subscribers[id] = sub
	return sub.ch, nil
}

// Unsubscribe removes id and closes its channel
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Publish delivers event to every subscriber with room for it
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for id, sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			if sub.dropped.Add(1) == 1 {
				b.logger.Warn("Subscriber is not keeping up, dropping events",
					zap.String("subscriber", id),
					zap.String("kind", string(event.Kind)))
			}
		}
	}
}

// Published returns the number of events accepted by the bus
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Dropped returns how many events id has missed
func (b *Bus) Dropped(id string) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sub, ok := b.subscribers[id]; ok {
		return sub.dropped.Load()
	}
	return 0
}

// Close stops delivery and closes every subscriber channel
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
