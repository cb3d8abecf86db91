// Package stream provides the typed-topic event bus that carries state
// change notifications from the market core to the presentation layer.
// It replaces ambient shared state with explicit fan-out: producers
// publish to a topic, consumers read from buffered channels.
package stream

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topic names a bus channel.
type Topic string

const (
	TopicQuotesUpdated    Topic = "quotes-updated"
	TopicOrdersChanged    Topic = "orders-changed"
	TopicPositionsChanged Topic = "positions-changed"
	TopicWatchlistChanged Topic = "watchlist-changed"
	TopicNewsUpdated      Topic = "news-updated"
	TopicHealthChanged    Topic = "health-changed"
	TopicLatencyUpdated   Topic = "latency-updated"
)

// Event is one bus message. Payload contents depend on the topic; the
// presentation layer re-reads the relevant snapshot accessor rather than
// consuming payloads as state.
type Event struct {
	Topic   Topic
	Payload interface{}
	At      time.Time
}

// BusConfig holds configuration for the event bus.
type BusConfig struct {
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultBusConfig returns the default bus configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		SubscriberBufferSize: 100,
	}
}

// Subscriber represents a channel subscriber with metadata.
type Subscriber struct {
	dropped uint64 // accessed atomically

	ID        string
	Channel   chan Event
	CreatedAt time.Time
}

// Dropped returns the number of events this subscriber missed because
// its buffer was full.
func (s *Subscriber) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// Bus fans events out to per-topic subscribers. Publishing never blocks:
// slow consumers drop events instead of stalling producers.
type Bus struct {
	config      BusConfig
	mu          sync.RWMutex
	subscribers map[Topic][]*Subscriber
	closed      bool

	// Metrics, accessed atomically.
	eventsPublished uint64
	eventsDropped   uint64
}

// NewBus creates an event bus with default configuration.
func NewBus() *Bus {
	return NewBusWithConfig(DefaultBusConfig())
}

// NewBusWithConfig creates an event bus with custom configuration.
func NewBusWithConfig(config BusConfig) *Bus {
	return &Bus{
		config:      config,
		subscribers: make(map[Topic][]*Subscriber),
	}
}

// Subscribe adds a subscriber for a topic and returns its channel.
func (b *Bus) Subscribe(topic Topic) <-chan Event {
	return b.SubscribeWithID(topic, "")
}

// SubscribeWithID adds a subscriber with a specific ID for a topic.
func (b *Bus) SubscribeWithID(topic Topic, id string) <-chan Event {
	ch := make(chan Event, b.config.SubscriberBufferSize)
	sub := &Subscriber{
		ID:        id,
		Channel:   ch,
		CreatedAt: time.Now(),
	}

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	b.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel for a topic.
func (b *Bus) Unsubscribe(topic Topic, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[topic]
	for i, sub := range subs {
		if sub.Channel == ch {
			close(sub.Channel)
			b.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[topic]) == 0 {
		delete(b.subscribers, topic)
	}
}

// Publish sends an event to all subscribers of its topic. Non-blocking:
// events to full subscriber buffers are dropped and counted.
func (b *Bus) Publish(topic Topic, payload interface{}) {
	ev := Event{Topic: topic, Payload: payload, At: time.Now()}

	// The sends stay under the read lock: Unsubscribe and Close only
	// close channels under the write lock, so a send can never overlap
	// a close. Sends are non-blocking, so the lock is held briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	atomic.AddUint64(&b.eventsPublished, 1)

	for _, sub := range b.subscribers[topic] {
		select {
		case sub.Channel <- ev:
		default:
			// Skip slow consumers - non-blocking
			atomic.AddUint64(&sub.dropped, 1)
			atomic.AddUint64(&b.eventsDropped, 1)
		}
	}
}

// Close closes all subscriber channels and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for topic, subs := range b.subscribers {
		for _, sub := range subs {
			close(sub.Channel)
		}
		delete(b.subscribers, topic)
	}
}

// SubscriberCount returns the number of subscribers for a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Stats returns the published and dropped event counts.
func (b *Bus) Stats() (published, dropped uint64) {
	return atomic.LoadUint64(&b.eventsPublished), atomic.LoadUint64(&b.eventsDropped)
}
