package order

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/acmeshop/storefront/internal/broker"
	"github.com/acmeshop/storefront/internal/codec"
)

// Subscriber owns the single process-wide subscription to the fulfillment
// completion topic and merges every received completion into the correlation
// store. One shared subscription serves all in-flight orders: the broker
// delivers every completion to every subscriber of the topic, so per-request
// subscriptions would each see the full stream anyway.
type Subscriber struct {
	store  *Store
	broker broker.Subscriber
	topic  string
}

// NewSubscriber creates a Subscriber over the given store and transport.
func NewSubscriber(store *Store, b broker.Subscriber, topic string) *Subscriber {
	return &Subscriber{
		store:  store,
		broker: b,
		topic:  topic,
	}
}

// Run consumes the completion topic until ctx is cancelled. A failure here is
// terminal for the subscription only, never for the rest of the service;
// submissions then simply time out to the pending path.
func (s *Subscriber) Run(ctx context.Context) error {
	return s.broker.Subscribe(ctx, s.topic, s.handle)
}

// handle merges one completion message. Malformed messages are logged and
// dropped; completions for unknown or already-terminal orders are no-ops.
// Nothing here may block subsequent messages except the store mutex.
func (s *Subscriber) handle(ctx context.Context, value []byte) {
	lg := zctx.From(ctx)

	c, err := codec.DecodeCompletion(value)
	if err != nil {
		lg.Warn("dropping malformed completion message", zap.Error(err))
		return
	}

	if !s.store.Merge(c) {
		lg.Debug("completion for unknown or settled order",
			zap.String("order_id", c.OrderID),
		)
		return
	}

	lg.Info("order settled",
		zap.String("order_id", c.OrderID),
		zap.Bool("failed", c.Failed),
	)
}
