package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientInitialize(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody InitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"data":{"authorization_url":"https://checkout.test/x"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_key", 2*time.Second)
	resp, err := c.Initialize(context.Background(), InitRequest{
		Email:     "a@b.com",
		Amount:    5000,
		Reference: "EPC_ref001",
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if gotPath != "/transaction/initialize" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer sk_test_key" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if gotBody.Email != "a@b.com" || gotBody.Amount != 5000 || gotBody.Reference != "EPC_ref001" {
		t.Fatalf("unexpected forwarded body: %+v", gotBody)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp, &payload); err != nil {
		t.Fatalf("response not passed through verbatim: %v", err)
	}
	if payload["status"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestClientInitializeUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":false}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_key", 2*time.Second)
	if _, err := c.Initialize(context.Background(), InitRequest{Email: "a@b.com", Amount: 1}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestClientInitializeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed before use: connection refused

	c := NewClient(srv.URL, "sk_test_key", time.Second)
	if _, err := c.Initialize(context.Background(), InitRequest{Email: "a@b.com", Amount: 1}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
