package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Quotes(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/quotes" {
			t.Errorf("path = %q, want /api/v1/quotes", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		w.Write([]byte(`{"status":"success","data":{"ltp":24537.45,"bid":24537.1,"ask":24537.8}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	quote, err := client.Quotes(context.Background(), "NIFTY", "NSE_INDEX")
	if err != nil {
		t.Fatalf("Quotes failed: %v", err)
	}

	if gotBody["apikey"] != "test-key" {
		t.Errorf("apikey = %v, want test-key", gotBody["apikey"])
	}
	if gotBody["symbol"] != "NIFTY" || gotBody["exchange"] != "NSE_INDEX" {
		t.Errorf("request body = %v", gotBody)
	}

	if quote.LTP.String() != "24537.45" {
		t.Errorf("LTP = %s, want 24537.45", quote.LTP)
	}
	if quote.Bid.String() != "24537.1" || quote.Ask.String() != "24537.8" {
		t.Errorf("Bid/Ask = %s/%s", quote.Bid, quote.Ask)
	}
}

func TestClient_Quotes_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"invalid symbol"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.Quotes(context.Background(), "BOGUS", "NSE_INDEX")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Status != "error" || statusErr.Message != "invalid symbol" {
		t.Errorf("StatusError = %+v", statusErr)
	}
}

func TestClient_Expiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["instrumenttype"] != "options" {
			t.Errorf("instrumenttype = %v, want options", body["instrumenttype"])
		}
		w.Write([]byte(`{"status":"success","data":["28-AUG-25","04-SEP-25"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	expiries, err := client.Expiry(context.Background(), "NIFTY", "NFO", "options")
	if err != nil {
		t.Fatalf("Expiry failed: %v", err)
	}

	if len(expiries) != 2 || expiries[0] != "28-AUG-25" {
		t.Errorf("expiries = %v", expiries)
	}
}

func TestClient_RetryOn500(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"success","data":{"ltp":100}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", WithRetries(3, time.Millisecond))
	quote, err := client.Quotes(context.Background(), "NIFTY", "NSE_INDEX")
	if err != nil {
		t.Fatalf("Quotes failed after retries: %v", err)
	}
	if quote.LTP.String() != "100" {
		t.Errorf("LTP = %s, want 100", quote.LTP)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_NoRetryOn400(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", WithRetries(3, time.Millisecond))
	_, err := client.Quotes(context.Background(), "NIFTY", "NSE_INDEX")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 400)", calls.Load())
	}
}
