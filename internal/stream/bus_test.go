package stream

import (
	"sync"
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch := b.Subscribe(TopicQuotesUpdated)
	b.Publish(TopicQuotesUpdated, 42)

	select {
	case ev := <-ch:
		if ev.Topic != TopicQuotesUpdated {
			t.Errorf("topic = %s", ev.Topic)
		}
		if ev.Payload != 42 {
			t.Errorf("payload = %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusTopicIsolation(t *testing.T) {
	b := NewBus()
	defer b.Close()

	quotes := b.Subscribe(TopicQuotesUpdated)
	b.Publish(TopicNewsUpdated, nil)

	select {
	case ev := <-quotes:
		t.Errorf("unexpected cross-topic delivery: %+v", ev)
	default:
	}
}

func TestBusFanOut(t *testing.T) {
	b := NewBus()
	defer b.Close()

	a := b.Subscribe(TopicHealthChanged)
	c := b.Subscribe(TopicHealthChanged)
	if b.SubscriberCount(TopicHealthChanged) != 2 {
		t.Fatalf("subscriber count = %d", b.SubscriberCount(TopicHealthChanged))
	}

	b.Publish(TopicHealthChanged, nil)
	for _, ch := range []<-chan Event{a, c} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("fan-out delivery missing")
		}
	}
}

func TestBusDropsOnFullBuffer(t *testing.T) {
	b := NewBusWithConfig(BusConfig{SubscriberBufferSize: 1})
	defer b.Close()

	b.Subscribe(TopicLatencyUpdated)
	b.Publish(TopicLatencyUpdated, 1)
	b.Publish(TopicLatencyUpdated, 2) // buffer full, dropped

	published, dropped := b.Stats()
	if published != 2 {
		t.Errorf("published = %d, want 2", published)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch := b.Subscribe(TopicOrdersChanged)
	b.Unsubscribe(TopicOrdersChanged, ch)

	if b.SubscriberCount(TopicOrdersChanged) != 0 {
		t.Error("subscriber should be removed")
	}
	if _, open := <-ch; open {
		t.Error("channel should be closed on unsubscribe")
	}
}

func TestBusCloseRejectsPublish(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe(TopicQuotesUpdated)
	b.Close()

	if _, open := <-ch; open {
		t.Error("channel should be closed")
	}

	// Publishing after close must not panic or deliver.
	b.Publish(TopicQuotesUpdated, nil)
}

func TestBusPublishDuringCloseAndUnsubscribe(t *testing.T) {
	// Publishers must never hit a closed channel, whichever of Close or
	// Unsubscribe wins the race.
	for i := 0; i < 50; i++ {
		b := NewBusWithConfig(BusConfig{SubscriberBufferSize: 1})
		first := b.Subscribe(TopicPositionsChanged)
		for j := 0; j < 3; j++ {
			b.Subscribe(TopicPositionsChanged)
		}

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < 100; k++ {
					b.Publish(TopicPositionsChanged, k)
				}
			}()
		}
		b.Unsubscribe(TopicPositionsChanged, first)
		b.Close()
		wg.Wait()
	}
}
