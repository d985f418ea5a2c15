package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/acmeshop/storefront/internal/broker"
	"github.com/acmeshop/storefront/internal/codec"
	"github.com/acmeshop/storefront/internal/domain/product"
)

// DefaultWaitTimeout bounds how long a submission waits inline for the
// fulfillment worker before returning the pending handle.
const DefaultWaitTimeout = 30 * time.Second

// SubmitRequest holds the input for placing an order. Username is the opaque
// requester identity; it is recorded, never interpreted.
type SubmitRequest struct {
	Username   string
	ProductIDs []string
}

// SubmitResult holds the outcome of a submission. Pending means the deadline
// elapsed before a completion was observed; Record then carries the pending
// snapshot whose ID the caller uses for out-of-band status polling.
type SubmitResult struct {
	Record  Record
	Pending bool
}

// Service implements order submission and status lookup over the correlation
// store, the catalog, and the broker.
type Service struct {
	catalog      product.Repository
	publisher    broker.Publisher
	store        *Store
	requestTopic string
	waitTimeout  time.Duration
	tracer       trace.Tracer
}

// NewService creates a Service. waitTimeout <= 0 selects DefaultWaitTimeout.
func NewService(
	catalog product.Repository,
	publisher broker.Publisher,
	store *Store,
	requestTopic string,
	waitTimeout time.Duration,
) *Service {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &Service{
		catalog:      catalog,
		publisher:    publisher,
		store:        store,
		requestTopic: requestTopic,
		waitTimeout:  waitTimeout,
		tracer:       otel.Tracer("storefront/order"),
	}
}

// Submit places an order: it resolves the requested products against the
// catalog, inserts a pending record, publishes the fulfillment request, and
// waits up to the configured deadline for the completion subscriber to settle
// the record.
//
// The record insertion happens before the publish, so a completion arriving
// immediately after the publish can never race ahead of the record's
// existence. Validation and catalog resolution happen before either, so a
// failed submission mutates nothing.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.Submit")
	defer span.End()

	if len(req.ProductIDs) == 0 {
		return nil, ErrEmptyOrder
	}

	// Ids resolving to zero rows still proceed: the worker decides what an
	// order with missing products means.
	products, err := s.catalog.GetByIDs(ctx, req.ProductIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve products")
	}

	rec := Record{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Username:  req.Username,
		Products:  products,
		CreatedAt: time.Now(),
	}
	span.SetAttributes(
		attribute.String("order.id", rec.ID),
		attribute.Int("order.products", len(products)),
	)

	done := s.store.Put(rec)

	payload, err := codec.EncodeRequest(codec.Request{
		OrderID:  rec.ID,
		Username: rec.Username,
		Products: rec.Products,
	})
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, s.requestTopic, []byte(rec.ID), payload); err != nil {
		// The pending record stays behind; a completion arriving through
		// some other path can still settle it. No retry here.
		span.RecordError(err)
		return nil, errors.Wrap(err, "publish fulfillment request")
	}

	timer := time.NewTimer(s.waitTimeout)
	defer timer.Stop()

	select {
	case <-done:
		final, ok := s.store.Get(rec.ID)
		if !ok {
			// Settled and already evicted; hand back the polling handle.
			return &SubmitResult{Record: rec, Pending: true}, nil
		}
		return &SubmitResult{Record: final}, nil
	case <-timer.C:
		return &SubmitResult{Record: rec, Pending: true}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns the current record for id, whatever its status, or
// ErrNotFound. It is read-only and never blocks on pending completion.
func (s *Service) Status(ctx context.Context, id string) (Record, error) {
	_, span := s.tracer.Start(ctx, "order.Status",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer span.End()

	rec, ok := s.store.Get(id)
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}
