// Package scraper fetches product pages politely: one request at a time,
// randomized pauses and browser identities, and bounded retries.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/gocolly/colly/v2"
)

// Fetcher wraps a synchronous colly collector with the retry policy.
type Fetcher struct {
	cfg         *config.Config
	collector   *colly.Collector
	headers     *HeaderRotator
	retryStatus map[int]bool
	Metrics     *Metrics

	// sleep and jitter are swapped out by tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration

	requestCount int64
	retryCount   int64

	mu           sync.Mutex
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config) (*Fetcher, error) {
	if len(cfg.UserAgents) == 0 {
		return nil, fmt.Errorf("user agent pool cannot be empty")
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgents[0]),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	// One request in flight at most; pauses are handled in Fetch so they
	// happen before a call rather than after it.
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	retryStatus := make(map[int]bool, len(cfg.RetryStatusCodes))
	for _, code := range cfg.RetryStatusCodes {
		retryStatus[code] = true
	}

	f := &Fetcher{
		cfg:          cfg,
		collector:    collector,
		headers:      NewHeaderRotator(cfg.UserAgents, cfg.AcceptLanguage, cfg.Referer),
		retryStatus:  retryStatus,
		Metrics:      NewMetrics(),
		sleep:        sleepContext,
		jitter:       randomDuration,
		errorsByType: make(map[string]int),
	}
	f.configureHandlers()
	return f, nil
}

// Fetch downloads the markup of target. Transient failures are retried
// with exponential backoff; the returned error, when non-nil, is always
// a *FetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, target models.Target) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	pause := f.cfg.Delay + f.jitter(f.cfg.RandomDelay)
	if err := f.sleep(ctx, pause); err != nil {
		return "", &FetchFailure{URL: target, Err: err}
	}

	hdr := f.headers.Next()

	var (
		lastErr    error
		lastStatus int
		attempts   int
	)
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			atomic.AddInt64(&f.retryCount, 1)
			f.Metrics.IncRetries()
			delay := f.backoff(attempt)
			slog.Debug("retrying product page",
				slog.String("url", target.String()),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay),
			)
			if err := f.sleep(ctx, delay); err != nil {
				return "", &FetchFailure{URL: target, Status: lastStatus, Attempts: attempts, Err: err}
			}
		}

		attempts++
		body, status, err := f.do(target, hdr)
		if err == nil {
			f.Metrics.IncRequest("succeeded")
			return body, nil
		}

		classified := classifyError(err, status)
		category := errorTypeLabel(classified)
		f.recordError(category)
		slog.Warn("product page request failed",
			slog.String("url", target.String()),
			slog.Int("attempt", attempts),
			slog.Int("status", status),
			slog.String("category", category),
			slog.Any("error", err),
		)

		lastErr, lastStatus = classified, status
		if !transient(classified, status, f.retryStatus) {
			break
		}
	}

	f.Metrics.IncRequest("failed")
	return "", &FetchFailure{URL: target, Status: lastStatus, Attempts: attempts, Err: lastErr}
}

// WithTransport replaces the HTTP transport used by the collector.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Stats returns the number of HTTP requests and retries issued so far.
func (f *Fetcher) Stats() (requests, retries int) {
	return int(atomic.LoadInt64(&f.requestCount)), int(atomic.LoadInt64(&f.retryCount))
}

// ErrorsByType returns a snapshot of failed attempts per category.
func (f *Fetcher) ErrorsByType() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.errorsByType))
	for k, v := range f.errorsByType {
		out[k] = v
	}
	return out
}

// do issues a single GET. Body and status travel back through the
// request context because the collector runs synchronously.
func (f *Fetcher) do(target models.Target, hdr http.Header) (string, int, error) {
	ctx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, target.String(), nil, ctx, hdr.Clone())
	status, _ := ctx.GetAny("status").(int)
	if err != nil {
		return "", status, err
	}
	body, _ := ctx.GetAny("body").(string)
	return body, status, nil
}

func (f *Fetcher) configureHandlers() {
	f.handlersOnce.Do(func() {
		f.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			atomic.AddInt64(&f.requestCount, 1)
			f.Metrics.IncRequest("started")
		})

		f.collector.OnResponse(func(r *colly.Response) {
			r.Ctx.Put("status", r.StatusCode)
			r.Ctx.Put("body", string(r.Body))
			f.observe(r)
		})

		f.collector.OnError(func(r *colly.Response, err error) {
			if r == nil || r.Ctx == nil {
				return
			}
			r.Ctx.Put("status", r.StatusCode)
			f.observe(r)
		})
	})
}

func (f *Fetcher) observe(r *colly.Response) {
	if r.Request == nil || r.Request.Ctx == nil {
		return
	}
	if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
		f.Metrics.ObserveDuration(time.Since(start))
	}
}

func (f *Fetcher) recordError(category string) {
	f.mu.Lock()
	f.errorsByType[category]++
	f.mu.Unlock()
	f.Metrics.IncError(category)
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}
