//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"testing"
	"time"
)

const testToken = "integration"

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestPlaceOrder_NoAuth(t *testing.T) {
	resp := doPost(t, "/api/products/buy", buyRequest{IDs: []string{"p-espresso-cup"}}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Message != "Unauthorized" {
		t.Errorf("message: got %q, want %q", errResp.Message, "Unauthorized")
	}
}

func TestPlaceOrder_EmptyIDs(t *testing.T) {
	resp := doPost(t, "/api/products/buy", buyRequest{IDs: []string{}}, testToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_Completed(t *testing.T) {
	resp := doPost(t, "/api/products/buy", buyRequest{IDs: []string{"p-espresso-cup"}}, testToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	if !uuidPattern.MatchString(order.OrderID) {
		t.Errorf("order ID %q is not a valid UUID", order.OrderID)
	}
	if order.Status != "completed" {
		t.Errorf("status: got %q, want %q", order.Status, "completed")
	}
	if order.Username != testToken {
		t.Errorf("username: got %q, want %q", order.Username, testToken)
	}
	if order.Total != 19.98 {
		t.Errorf("total: got %v, want 19.98", order.Total)
	}
	if len(order.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(order.Products))
	}
	if order.Products[0].ID != "p-espresso-cup" {
		t.Errorf("product id: got %q, want %q", order.Products[0].ID, "p-espresso-cup")
	}
}

func TestPlaceOrder_MultipleProducts(t *testing.T) {
	resp := doPost(t, "/api/products/buy",
		buyRequest{IDs: []string{"p-beans-house", "p-beans-single"}}, testToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	order := decodeJSON[orderResponse](t, resp)
	// 9.99 + 13.49
	if order.Total != 23.48 {
		t.Errorf("total: got %v, want 23.48", order.Total)
	}
	if len(order.Products) != 2 {
		t.Errorf("expected 2 products, got %d", len(order.Products))
	}
}

func TestPlaceOrder_PendingThenPoll(t *testing.T) {
	// The worker ignores this username, so the inline wait times out.
	resp := doPost(t, "/api/products/buy", buyRequest{IDs: []string{"p-grinder"}}, stallUsername)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	pending := decodeJSON[orderResponse](t, resp)
	if pending.Status != "pending" {
		t.Errorf("status: got %q, want %q", pending.Status, "pending")
	}
	if pending.Message != "Order pending" {
		t.Errorf("message: got %q, want %q", pending.Message, "Order pending")
	}
	if !uuidPattern.MatchString(pending.OrderID) {
		t.Fatalf("order ID %q is not a valid UUID", pending.OrderID)
	}

	// The handle keeps answering status polls with the same pending record.
	for range 2 {
		poll := doGet(t, "/api/products/order/"+pending.OrderID, testToken)
		order := decodeJSON[orderResponse](t, poll)
		poll.Body.Close()

		if poll.StatusCode != http.StatusOK {
			t.Fatalf("poll: expected 200, got %d", poll.StatusCode)
		}
		if order.Status != "pending" {
			t.Errorf("poll status: got %q, want %q", order.Status, "pending")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestOrderStatus_NotFound(t *testing.T) {
	resp := doGet(t, "/api/products/order/00000000-0000-0000-0000-000000000000", testToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Message != "Order not found" {
		t.Errorf("message: got %q, want %q", errResp.Message, "Order not found")
	}
}

func TestOrderStatus_CompletedStaysVisible(t *testing.T) {
	resp := doPost(t, "/api/products/buy", buyRequest{IDs: []string{"p-pour-over"}}, testToken)
	order := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	poll := doGet(t, "/api/products/order/"+order.OrderID, testToken)
	defer poll.Body.Close()

	if poll.StatusCode != http.StatusOK {
		t.Fatalf("poll: expected 200, got %d", poll.StatusCode)
	}
	polled := decodeJSON[orderResponse](t, poll)
	if polled.Status != "completed" {
		t.Errorf("status: got %q, want %q", polled.Status, "completed")
	}
	if polled.Total != order.Total {
		t.Errorf("total changed between responses: %v vs %v", polled.Total, order.Total)
	}
}
