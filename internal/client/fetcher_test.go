package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kjstillabower/infoboard/internal/observability"
)

func TestFetcher_Get_Success(t *testing.T) {
	var gotAuth, gotCorr, gotKey, gotNode string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCorr = r.Header.Get("X-Correlation-ID")
		gotKey = r.URL.Query().Get("serviceKey")
		gotNode = r.URL.Query().Get("nodeId")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<response/>`))
	}))
	defer server.Close()

	before := testutil.ToFloat64(observability.UpstreamCallsTotal.WithLabelValues("fetch-success", "success"))

	f := NewFetcher(time.Second, BreakerSettings{}, nil)
	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	body, err := f.Get(ctx, Request{
		Source:      "fetch-success",
		URL:         server.URL,
		Query:       map[string]string{"serviceKey": "k+y/=", "nodeId": "DJB8001793"},
		BearerToken: "tok",
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != "<response/>" {
		t.Errorf("Get() body = %q", body)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", gotAuth)
	}
	if gotCorr != "corr-1" {
		t.Errorf("X-Correlation-ID = %q, want corr-1", gotCorr)
	}
	if gotKey != "k+y/=" || gotNode != "DJB8001793" {
		t.Errorf("query = (%q, %q), want encoded round trip", gotKey, gotNode)
	}

	after := testutil.ToFloat64(observability.UpstreamCallsTotal.WithLabelValues("fetch-success", "success"))
	if after-before != 1 {
		t.Errorf("upstreamCallsTotal{success} delta = %v, want 1", after-before)
	}
}

func TestFetcher_Get_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrInvalidCredential},
		{"forbidden", http.StatusForbidden, ErrUpstreamUnavailable},
		{"not found", http.StatusNotFound, ErrUpstreamUnavailable},
		{"rate limited", http.StatusTooManyRequests, ErrUpstreamUnavailable},
		{"server error", http.StatusInternalServerError, ErrUpstreamUnavailable},
		{"bad gateway", http.StatusBadGateway, ErrUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			f := NewFetcher(time.Second, BreakerSettings{}, nil)
			_, err := f.Get(context.Background(), Request{Source: "status-" + tt.name, URL: server.URL})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Get() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestFetcher_Get_Timeout verifies a slow upstream fails as unavailable, the same as a transport error.
func TestFetcher_Get_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := NewFetcher(50*time.Millisecond, BreakerSettings{}, nil)
	start := time.Now()
	_, err := f.Get(context.Background(), Request{Source: "timeout", URL: server.URL})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Get() error = %v, want ErrUpstreamUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Get() took %v, timeout not enforced", elapsed)
	}
}

func TestFetcher_Get_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	f := NewFetcher(time.Second, BreakerSettings{}, nil)
	_, err := f.Get(context.Background(), Request{Source: "transport", URL: url})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Get() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestFetcher_Get_CallerCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(time.Second, BreakerSettings{}, nil)
	_, err := f.Get(ctx, Request{Source: "canceled", URL: server.URL})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Get() error = %v, caller cancellation should not be reported as unavailable", err)
	}
}

// TestFetcher_Get_CallerDeadline verifies an expired caller deadline is reported
// as unavailable, like any other timeout, and leaves the breaker closed.
func TestFetcher_Get_CallerDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := NewFetcher(5*time.Second, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Hour}, nil)
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := f.Get(ctx, Request{Source: "caller-deadline", URL: server.URL})
		cancel()
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("call %d error = %v, want ErrUpstreamUnavailable", i, err)
		}
		if got := CategorizeError(err); got != ErrorCategoryUpstreamUnavailable {
			t.Errorf("call %d CategorizeError() = %q, want %q", i, got, ErrorCategoryUpstreamUnavailable)
		}
	}
	if got := f.States()["caller-deadline"]; got != "closed" {
		t.Errorf("States()[caller-deadline] = %q, want closed", got)
	}
}

// TestFetcher_Breaker_CountsOwnTimeout verifies the fetcher's own timeout is
// an upstream failure for the breaker.
func TestFetcher_Breaker_CountsOwnTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := NewFetcher(50*time.Millisecond, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Hour}, nil)
	if _, err := f.Get(context.Background(), Request{Source: "own-timeout", URL: server.URL}); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Get() error = %v, want ErrUpstreamUnavailable", err)
	}
	if got := f.States()["own-timeout"]; got != "open" {
		t.Errorf("States()[own-timeout] = %q, want open", got)
	}
}

// TestFetcher_Breaker_OpensAndFailsFast verifies consecutive failures open the
// breaker and later calls fail without reaching upstream.
func TestFetcher_Breaker_OpensAndFailsFast(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(time.Second, BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: time.Hour}, nil)
	req := Request{Source: "breaker-open", URL: server.URL}
	for i := 0; i < 3; i++ {
		if _, err := f.Get(context.Background(), req); !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("call %d error = %v, want ErrUpstreamUnavailable", i, err)
		}
	}

	_, err := f.Get(context.Background(), req)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Get() with open breaker error = %v, want ErrUpstreamUnavailable", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("upstream hits = %d, want 3 (open breaker must not call upstream)", n)
	}
	if got := f.States()["breaker-open"]; got != "open" {
		t.Errorf("States()[breaker-open] = %q, want open", got)
	}
	if got := testutil.ToFloat64(observability.UpstreamBreakerState.WithLabelValues("breaker-open")); got != 2 {
		t.Errorf("upstreamBreakerState = %v, want 2", got)
	}
}

// TestFetcher_Breaker_IgnoresInvalidCredential verifies a rejected credential
// never trips the breaker.
func TestFetcher_Breaker_IgnoresInvalidCredential(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	f := NewFetcher(time.Second, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Hour}, nil)
	for i := 0; i < 5; i++ {
		if _, err := f.Get(context.Background(), Request{Source: "breaker-401", URL: server.URL}); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("call %d error = %v, want ErrInvalidCredential", i, err)
		}
	}
	if n := hits.Load(); n != 5 {
		t.Errorf("upstream hits = %d, want 5", n)
	}
}

// TestFetcher_Breaker_PerSource verifies one failing source does not open another's breaker.
func TestFetcher_Breaker_PerSource(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer good.Close()

	f := NewFetcher(time.Second, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Hour}, nil)
	_, _ = f.Get(context.Background(), Request{Source: "per-source-bad", URL: bad.URL})
	if _, err := f.Get(context.Background(), Request{Source: "per-source-good", URL: good.URL}); err != nil {
		t.Errorf("Get(good) error = %v, want nil", err)
	}
}

// TestFetcher_Get_NoRetry verifies each call makes exactly one request.
func TestFetcher_Get_NoRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(time.Second, BreakerSettings{ConsecutiveFailures: 100}, nil)
	_, _ = f.Get(context.Background(), Request{Source: "no-retry", URL: server.URL})
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hits = %d, want 1", n)
	}
}

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "success"},
		{204, "success"},
		{401, "unauthorized"},
		{404, "client_error"},
		{429, "rate_limited"},
		{503, "server_error"},
		{302, "error"},
	}
	for _, tt := range tests {
		if got := statusLabel(tt.code); got != tt.want {
			t.Errorf("statusLabel(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestFetcher_Get_RequestTimeoutShortens(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := NewFetcher(time.Minute, BreakerSettings{}, nil)
	start := time.Now()
	_, err := f.Get(context.Background(), Request{Source: "req-timeout", URL: server.URL, Timeout: 50 * time.Millisecond})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Get() error = %v, want ErrUpstreamUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Get() took %v, request timeout not applied", elapsed)
	}
}
