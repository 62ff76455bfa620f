package printer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/lumehaus/liveshop-backend/pkg/errors"
	"github.com/lumehaus/liveshop-backend/pkg/outbox/payloads"
)

func testJob() payloads.LabelPrintRequestedEvent {
	return payloads.LabelPrintRequestedEvent{
		CartID:         uuid.New(),
		LiveEventID:    uuid.New(),
		BagNumber:      12,
		ShopName:       "LiveShop",
		CustomerHandle: "@maria.compras",
		Lines:          []payloads.LabelLine{{ProductName: "Vestido Midi", Qty: 2}},
		TotalUnits:     2,
		Subtotal:       "180.00",
	}
}

func TestDispatchPostsJob(t *testing.T) {
	var received payloads.LabelPrintRequestedEvent
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode job: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	job := testJob()
	if err := client.Dispatch(context.Background(), job); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if received.BagNumber != job.BagNumber {
		t.Fatalf("bag number mismatch: %d", received.BagNumber)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
}

func TestDispatchSurfacesGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "printer offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = client.Dispatch(context.Background(), testJob())
	if err == nil {
		t.Fatal("expected error")
	}
	domainErr := pkgerrors.As(err)
	if domainErr == nil || domainErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient("  ", ""); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
