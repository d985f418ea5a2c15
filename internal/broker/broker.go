// Package broker defines the messaging transport used to hand orders to the
// fulfillment worker and to receive its completion events. The transport is
// at-least-once: a published message is eventually delivered to every
// subscriber of its topic, or not at all, with no ordering guarantees.
package broker

import "context"

// Handler processes a single message received from a topic.
type Handler func(ctx context.Context, value []byte)

// Publisher sends messages to a named topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Subscriber consumes messages from a named topic. Subscribe blocks, invoking
// the handler once per message, until ctx is cancelled or the underlying
// transport fails.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, h Handler) error
}

// Broker combines both sides of the transport.
type Broker interface {
	Publisher
	Subscriber
	Close()
}
