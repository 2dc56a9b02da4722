// Package events implements the control plane's in-process publish/subscribe
// bus. Delivery is synchronous and FIFO within a topic; a subscriber that
// errors is isolated so the rest of the fan-out still runs, and wildcard
// topics of the form "*.<suffix>" match any leading segment.
package events

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

type (
	// Event is a single publish on the bus.
	Event struct {
		Topic   string
		Payload any
	}

	// Handler reacts to a published Event. A Handler that panics is recovered,
	// logged and isolated; it never stops delivery to the other subscribers
	// of the same event.
	Handler func(ctx context.Context, evt Event)

	// Unsubscribe removes a previously registered handler. Calling it more
	// than once is safe and a no-op after the first call.
	Unsubscribe func()

	subscriber struct {
		id      uint64
		topic   string
		handler Handler
	}

	// Bus is the process-local topic-based pub/sub contract consumed by every
	// controller, the scheduler, and the workflow/network executors.
	Bus struct {
		mu     sync.RWMutex
		nextID uint64
		subs   []*subscriber
		logger *slog.Logger
	}
)

// New constructs a ready-to-use Bus. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers handler for topic (which may be a wildcard of the form
// "*.<suffix>") and returns a function that unsubscribes it. Subscribers are
// invoked in subscription order for topics they match.
func (b *Bus) Subscribe(topic string, handler Handler) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	sub := &subscriber{id: id, topic: topic, handler: handler}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers payload to every subscriber currently matching topic, in
// subscription order. The subscriber list is snapshotted before dispatch
// begins so a handler that unsubscribes itself mid-delivery still receives
// the in-flight event but none after; handlers subscribed during Publish do
// not receive this event.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	b.mu.RLock()
	matched := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if topicMatches(s.topic, topic) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	evt := Event{Topic: topic, Payload: payload}
	for _, s := range matched {
		b.dispatch(ctx, s, evt)
	}
}

// dispatch invokes a single subscriber, recovering from panics and logging
// any failure so that one misbehaving subscriber never prevents delivery to
// the rest of the fan-out.
func (b *Bus) dispatch(ctx context.Context, s *subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked", "topic", evt.Topic, "subscription_topic", s.topic, "panic", r)
		}
	}()
	s.handler(ctx, evt)
}

// topicMatches reports whether a subscription pattern matches a published
// topic. A pattern of the form "*.<suffix>" matches any topic ending in
// ".<suffix>"; any other pattern must match exactly.
func topicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // keep leading "."
		return strings.HasSuffix(topic, suffix)
	}
	return false
}
