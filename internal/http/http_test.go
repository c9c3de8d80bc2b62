package http_test

import (
	"context"
	gohttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/odev-ai/pdfproc/internal/http"
)

func TestRequestDecodesResponse(t *testing.T) {
	ts := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		w.Write([]byte(`{"name":"idx","dimension":1536}`))
	}))
	defer ts.Close()

	c := http.NewClient(ts.URL)
	res, err := c.Request(context.Background(), http.MethodGet, "/indexes/idx", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res["name"] != "idx" {
		t.Errorf("expected name 'idx', got '%v'", res["name"])
	}
}

func TestRequestKeepsErrorDetailAfterRetryExhaustion(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		calls += 1
		w.WriteHeader(429)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer ts.Close()

	c := http.NewClient(ts.URL, http.WithMaxRetries(2))
	_, err := c.Request(context.Background(), http.MethodPost, "/vectors/upsert", map[string]any{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected error to carry the response body, got '%v'", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestRequestDefaultsToSingleAttempt(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		calls += 1
		w.WriteHeader(500)
		w.Write([]byte("boom"))
	}))
	defer ts.Close()

	c := http.NewClient(ts.URL)
	_, err := c.Request(context.Background(), http.MethodPost, "/query", map[string]any{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected error to carry the response body, got '%v'", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}
