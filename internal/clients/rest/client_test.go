package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

var fastRetry = RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("expected page=2, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New("test", srv.URL, WithRetry(fastRetry))
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.GetJSON(context.Background(), "/things", url.Values{"page": {"2"}}, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !out.OK || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected success on third call, calls=%d", calls)
	}
}

func TestGetJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("test", srv.URL, WithRetry(fastRetry))
	err := c.GetJSON(context.Background(), "/missing", nil, &struct{}{})
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestGetJSONSendsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "ShippoToken abc" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New("test", srv.URL, WithAuth(func(r *http.Request) { r.Header.Set("Authorization", "ShippoToken abc") }))
	if err := c.GetJSON(context.Background(), "x", nil, &struct{}{}); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetry
	want := map[int]time.Duration{2: 250 * time.Millisecond, 3: 500 * time.Millisecond, 6: 4 * time.Second, 10: 4 * time.Second}
	for n, d := range want {
		if got := p.Delay(n); got != d {
			t.Fatalf("Delay(%d) = %s, want %s", n, got, d)
		}
	}
}
