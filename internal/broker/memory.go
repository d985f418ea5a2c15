package broker

import (
	"context"
	"sync"
)

var _ Broker = (*Memory)(nil)

// Memory is an in-process Broker that fans published messages out to every
// subscriber of the topic. It backs tests and brokerless local runs; handlers
// run synchronously in the publisher's goroutine.
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// NewMemory creates an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]Handler)}
}

// Publish delivers the message to all handlers currently subscribed to topic.
// A topic with no subscribers drops the message, matching the at-least-once
// transport contract ("eventually delivered, or not at all").
func (m *Memory) Publish(ctx context.Context, topic string, _, value []byte) error {
	m.mu.RLock()
	handlers := make([]Handler, len(m.subs[topic]))
	copy(handlers, m.subs[topic])
	m.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, value)
	}
	return nil
}

// Subscribe registers h for topic and blocks until ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, topic string, h Handler) error {
	m.mu.Lock()
	m.subs[topic] = append(m.subs[topic], h)
	m.mu.Unlock()

	<-ctx.Done()
	return nil
}

// Close is a no-op; subscriptions end with their contexts.
func (m *Memory) Close() {}
