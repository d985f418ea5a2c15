// Package order implements the order fulfillment coordinator: an in-memory
// correlation store shared between the HTTP submission flow and the broker
// completion subscriber, plus the bounded-wait submission protocol itself.
package order

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	"github.com/acmeshop/storefront/internal/domain/product"
)

// Status is the lifecycle state of an order record.
type Status string

const (
	// StatusPending means the fulfillment request was published and no
	// completion has been observed yet.
	StatusPending Status = "pending"
	// StatusCompleted means the fulfillment worker reported success.
	StatusCompleted Status = "completed"
	// StatusFailed means the fulfillment worker reported failure.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is a terminal state. A record
// transitions out of pending at most once and never back.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Sentinel errors for the submission and status flows.
var (
	// ErrEmptyOrder is returned when an order is submitted with no product ids.
	ErrEmptyOrder = errors.New("product ids required")
	// ErrNotFound is returned when no record exists for an order id.
	ErrNotFound = errors.New("order not found")
)

// Record is the tracked state of one order placement. Products and Result are
// treated as immutable once set; Merge replaces them wholesale rather than
// mutating in place, so snapshots handed out by the store stay valid.
type Record struct {
	ID          string
	Status      Status
	Username    string
	Products    []product.Product
	Result      map[string]json.RawMessage
	CreatedAt   time.Time
	CompletedAt time.Time
}
