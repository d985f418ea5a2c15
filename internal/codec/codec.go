// Package codec defines the wire format of fulfillment messages exchanged
// with the downstream worker over the broker.
package codec

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/acmeshop/storefront/internal/domain/product"
)

// ErrMissingOrderID indicates a completion message without an order identifier.
var ErrMissingOrderID = errors.New("completion message has no orderId")

// Request is the fulfillment request published when an order is placed.
type Request struct {
	OrderID  string            `json:"orderId"`
	Username string            `json:"username"`
	Products []product.Product `json:"products"`
}

// EncodeRequest serializes a fulfillment request.
func EncodeRequest(r Request) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "encode fulfillment request")
	}
	return data, nil
}

// Completion is a fulfillment completion event. Beyond the order identifier
// and the optional status, the worker may attach arbitrary fields (final
// product snapshot, totals, fulfillment metadata); those are carried raw in
// Fields and merged into the order record verbatim.
type Completion struct {
	OrderID string
	// Failed reports whether the worker marked the order as failed rather
	// than completed.
	Failed bool
	Fields map[string]json.RawMessage
}

// DecodeCompletion parses a completion message. The orderId and status keys
// are interpreted; every other top-level field is captured as raw JSON so
// unknown worker fields survive the round trip into the order record.
func DecodeCompletion(data []byte) (Completion, error) {
	c := Completion{Fields: make(map[string]json.RawMessage)}

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "orderId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "orderId")
			}
			c.OrderID = v
		case "status":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "status")
			}
			c.Failed = v == "failed"
		default:
			raw, err := d.Raw()
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			// Copied: the transport may reuse the source buffer, and the
			// record holds these bytes for its lifetime.
			c.Fields[key] = json.RawMessage(append([]byte(nil), raw...))
		}
		return nil
	}); err != nil {
		return Completion{}, errors.Wrap(err, "decode completion")
	}

	if c.OrderID == "" {
		return Completion{}, ErrMissingOrderID
	}
	return c, nil
}
