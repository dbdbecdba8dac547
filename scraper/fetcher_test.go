package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/jarcoal/httpmock"
)

const productURL = models.Target("http://shop.test/p/coffee-grinder")

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.calls))
	copy(out, s.calls)
	return out
}

func newTestFetcher(t *testing.T, mutate func(*config.Config)) (*Fetcher, *httpmock.MockTransport, *sleepRecorder) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Delay = 0
	cfg.RandomDelay = 0
	if mutate != nil {
		mutate(cfg)
	}

	f, err := NewFetcher(cfg)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)

	recorder := &sleepRecorder{}
	f.sleep = recorder.sleep
	return f, transport, recorder
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

// sequenceResponder answers with statuses in order, then keeps repeating the last one.
func sequenceResponder(body string, statuses ...int) (httpmock.Responder, func() int) {
	var mu sync.Mutex
	calls := 0
	responder := func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		idx := calls
		calls++
		mu.Unlock()
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		resp := httpmock.NewStringResponse(statuses[idx], body)
		resp.Header.Set("Content-Type", "text/html")
		return resp, nil
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
	return responder, count
}

func TestFetchSuccessSendsBrowserHeaders(t *testing.T) {
	f, transport, _ := newTestFetcher(t, nil)

	var got http.Header
	transport.RegisterResponder(http.MethodGet, productURL.String(), func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		resp := httpmock.NewStringResponse(http.StatusOK, "<html>ok</html>")
		resp.Header.Set("Content-Type", "text/html")
		return resp, nil
	})

	body, err := f.Fetch(context.Background(), productURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "<html>ok</html>" {
		t.Fatalf("body = %q", body)
	}

	ua := got.Get("User-Agent")
	found := false
	for _, candidate := range config.DefaultUserAgents {
		if ua == candidate {
			found = true
		}
	}
	if !found {
		t.Fatalf("user agent %q not from pool", ua)
	}
	if got.Get("Referer") != "https://www.google.com/" {
		t.Fatalf("referer = %q", got.Get("Referer"))
	}
	if got.Get("DNT") != "1" {
		t.Fatalf("dnt = %q", got.Get("DNT"))
	}
	if !strings.HasPrefix(got.Get("Accept"), "text/html") {
		t.Fatalf("accept = %q", got.Get("Accept"))
	}
	if got.Get("Accept-Language") == "" {
		t.Fatalf("accept-language missing")
	}

	requests, retries := f.Stats()
	if requests != 1 || retries != 0 {
		t.Fatalf("stats = %d requests, %d retries; want 1, 0", requests, retries)
	}
}

func TestFetchPausesBeforeRequest(t *testing.T) {
	f, transport, recorder := newTestFetcher(t, func(cfg *config.Config) {
		cfg.Delay = time.Second
		cfg.RandomDelay = time.Second
	})
	f.jitter = func(max time.Duration) time.Duration { return max / 2 }
	transport.RegisterResponder(http.MethodGet, productURL.String(), htmlResponder("<html></html>"))

	if _, err := f.Fetch(context.Background(), productURL); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	want := []time.Duration{1500 * time.Millisecond}
	if got := recorder.durations(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
}

func TestFetchRetriesTransientStatus(t *testing.T) {
	f, transport, recorder := newTestFetcher(t, nil)
	responder, calls := sequenceResponder("<html>ok</html>", http.StatusServiceUnavailable, http.StatusForbidden, http.StatusOK)
	transport.RegisterResponder(http.MethodGet, productURL.String(), responder)

	body, err := f.Fetch(context.Background(), productURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "<html>ok</html>" {
		t.Fatalf("body = %q", body)
	}
	if got := calls(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}

	want := []time.Duration{0, time.Second, 2 * time.Second}
	if got := recorder.durations(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	if _, retries := f.Stats(); retries != 2 {
		t.Fatalf("retries = %d, want 2", retries)
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	f, transport, recorder := newTestFetcher(t, nil)
	responder, calls := sequenceResponder("", http.StatusServiceUnavailable)
	transport.RegisterResponder(http.MethodGet, productURL.String(), responder)

	_, err := f.Fetch(context.Background(), productURL)
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *FetchFailure, got %T %v", err, err)
	}
	if failure.Attempts != 4 || calls() != 4 {
		t.Fatalf("attempts = %d calls = %d, want 4", failure.Attempts, calls())
	}
	if failure.Status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", failure.Status)
	}
	if failure.Kind() != "server" {
		t.Fatalf("kind = %q, want server", failure.Kind())
	}
	if failure.URL != productURL {
		t.Fatalf("url = %q", failure.URL)
	}

	want := []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second}
	if got := recorder.durations(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	if got := f.ErrorsByType()["server"]; got != 4 {
		t.Fatalf("server errors = %d, want 4", got)
	}
}

func TestFetchDoesNotRetryPermanentStatus(t *testing.T) {
	f, transport, _ := newTestFetcher(t, nil)
	responder, calls := sequenceResponder("", http.StatusNotFound)
	transport.RegisterResponder(http.MethodGet, productURL.String(), responder)

	_, err := f.Fetch(context.Background(), productURL)
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *FetchFailure, got %v", err)
	}
	if calls() != 1 {
		t.Fatalf("calls = %d, want 1", calls())
	}
	if failure.Kind() != "not_found" {
		t.Fatalf("kind = %q, want not_found", failure.Kind())
	}
}

func TestFetchRetriesConnectionErrors(t *testing.T) {
	f, transport, _ := newTestFetcher(t, func(cfg *config.Config) {
		cfg.MaxRetries = 2
	})
	transport.RegisterResponder(http.MethodGet, productURL.String(),
		httpmock.NewErrorResponder(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))

	_, err := f.Fetch(context.Background(), productURL)
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *FetchFailure, got %v", err)
	}
	if failure.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", failure.Attempts)
	}
	if failure.Kind() != "connection" {
		t.Fatalf("kind = %q, want connection", failure.Kind())
	}
	if !strings.Contains(failure.Error(), "connection refused") {
		t.Fatalf("error %q should carry the cause", failure.Error())
	}
	if got := transport.GetTotalCallCount(); got != 3 {
		t.Fatalf("transport calls = %d, want 3", got)
	}
}

func TestFetchHonoursCancellation(t *testing.T) {
	f, transport, _ := newTestFetcher(t, nil)
	transport.RegisterResponder(http.MethodGet, productURL.String(), htmlResponder("<html></html>"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, productURL)
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *FetchFailure, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if failure.Kind() != "canceled" {
		t.Fatalf("kind = %q, want canceled", failure.Kind())
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("transport calls = %d, want 0", got)
	}
}

func TestFetcherBackoffCapped(t *testing.T) {
	f, _, _ := newTestFetcher(t, func(cfg *config.Config) {
		cfg.RetryBackoff = 200 * time.Millisecond
		cfg.RetryBackoffMax = 500 * time.Millisecond
	})

	if got := f.backoff(1); got != 200*time.Millisecond {
		t.Fatalf("backoff(1) = %v, want 200ms", got)
	}
	if got := f.backoff(2); got != 400*time.Millisecond {
		t.Fatalf("backoff(2) = %v, want 400ms", got)
	}
	if got := f.backoff(4); got != 500*time.Millisecond {
		t.Fatalf("backoff(4) = %v, want capped 500ms", got)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "bad gateway", err: errors.New("Bad Gateway"), statusCode: http.StatusBadGateway, expected: "server"},
		{name: "teapot", err: nil, statusCode: http.StatusTeapot, expected: "other"},
		{name: "canceled", err: context.Canceled, statusCode: 0, expected: "canceled"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestTransient(t *testing.T) {
	retryStatus := map[int]bool{http.StatusForbidden: true, http.StatusServiceUnavailable: true}
	tests := []struct {
		name   string
		err    error
		status int
		want   bool
	}{
		{name: "listed status", err: errors.New("Forbidden"), status: http.StatusForbidden, want: true},
		{name: "unlisted status", err: errors.New("Not Found"), status: http.StatusNotFound, want: false},
		{name: "timeout", err: ErrTimeout{Err: context.DeadlineExceeded}, want: true},
		{name: "connection", err: ErrConnection{Err: errors.New("reset")}, want: true},
		{name: "other", err: errors.New("bad url"), want: false},
	}
	for _, tt := range tests {
		if got := transient(tt.err, tt.status, retryStatus); got != tt.want {
			t.Errorf("%s: transient = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHeaderRotatorRotates(t *testing.T) {
	rotator := NewHeaderRotator([]string{"ua-a", "ua-b", "ua-c"}, "et-EE", "https://ref.test/")
	next := 0
	rotator.pick = func(n int) int {
		i := next % n
		next++
		return i
	}

	var seen []string
	for i := 0; i < 4; i++ {
		seen = append(seen, rotator.Next().Get("User-Agent"))
	}
	want := []string{"ua-a", "ua-b", "ua-c", "ua-a"}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("user agents = %v, want %v", seen, want)
	}

	hdr := rotator.Next()
	hdr.Set("Referer", "mutated")
	if rotator.Next().Get("Referer") != "https://ref.test/" {
		t.Fatalf("Next must return an independent header set")
	}
	if hdr.Get("Accept-Language") != "et-EE" {
		t.Fatalf("accept-language = %q", hdr.Get("Accept-Language"))
	}
}
