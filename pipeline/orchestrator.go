// Package pipeline runs batches of price checks and writes their results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/extractor"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/parser"
	"github.com/aluiziolira/go-price-tracker/scraper"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CanceledDetail is the error detail of targets skipped by cancellation.
const CanceledDetail = "batch canceled"

var (
	// ErrOrchestration marks a failure that halts the whole batch.
	ErrOrchestration = errors.New("orchestration failed")
	// ErrBatchRunning is returned when Run is called during another run.
	ErrBatchRunning = errors.New("a batch is already running")
)

// Fetcher downloads the markup of one target.
type Fetcher interface {
	Fetch(ctx context.Context, target models.Target) (string, error)
}

// MetricsRecorder receives per-record and per-batch measurements.
type MetricsRecorder interface {
	IncRecord(status string)
	ObserveBatch(d time.Duration)
}

type fetchStats interface {
	Stats() (requests, retries int)
}

// Orchestrator checks targets one after another, appending each result
// to the report file as soon as it is known.
type Orchestrator struct {
	cfg      *config.Config
	fetcher  Fetcher
	observer Observer
	pages    *lru.Cache[models.Target, string]

	// Metrics is optional.
	Metrics MetricsRecorder

	mu      sync.Mutex
	running bool
}

// NewOrchestrator wires an orchestrator. A nil observer discards events.
func NewOrchestrator(cfg *config.Config, fetcher Fetcher, observer Observer) (*Orchestrator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if observer == nil {
		observer = NopObserver{}
	}

	o := &Orchestrator{
		cfg:      cfg,
		fetcher:  fetcher,
		observer: observer,
	}
	if cfg.PageCacheSize > 0 {
		pages, err := lru.New[models.Target, string](cfg.PageCacheSize)
		if err != nil {
			return nil, fmt.Errorf("create page cache: %w", err)
		}
		o.pages = pages
	}
	return o, nil
}

// Run checks every target in order and returns one record per target.
// Per-target failures become error records; only a report file failure
// stops the batch, in which case the error wraps ErrOrchestration and the
// result holds the records produced so far.
func (o *Orchestrator) Run(ctx context.Context, targets []models.Target) (*models.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !o.begin() {
		return nil, ErrBatchRunning
	}
	defer o.end()

	result := &models.BatchResult{
		Records:      make([]models.ProductRecord, 0, len(targets)),
		StartTime:    time.Now(),
		TotalCount:   len(targets),
		ErrorsByType: make(map[string]int),
	}
	requestsBefore, retriesBefore := o.fetchStats()

	o.observer.OnStatus("Preparing...")
	report, err := NewReportWriter(o.cfg.ReportFile)
	if err != nil {
		return o.fail(result, err, requestsBefore, retriesBefore)
	}
	defer report.Close()

	if o.pages != nil {
		o.pages.Purge()
	}

	slog.Info("Starting batch",
		slog.Int("targets", len(targets)),
		slog.String("report", o.cfg.ReportFile),
	)

	total := len(targets)
	canceledLogged := false
	for i, target := range targets {
		var rec models.ProductRecord
		if ctx.Err() != nil {
			if !canceledLogged {
				slog.Warn("Batch canceled, recording remaining targets", slog.Int("remaining", total-i))
				canceledLogged = true
			}
			rec = models.ErrorRecord(target, CanceledDetail)
			result.ErrorsByType["canceled"]++
		} else {
			o.observer.OnStatus(fmt.Sprintf("Processing %d/%d", i+1, total))
			rec = o.check(ctx, target, result.ErrorsByType)
		}

		result.Records = append(result.Records, rec)
		if err := report.WriteRecord(rec); err != nil {
			return o.fail(result, err, requestsBefore, retriesBefore)
		}
		if o.Metrics != nil {
			o.Metrics.IncRecord(string(rec.Status))
		}
		o.observer.OnProgress(i+1, total)
	}

	if err := report.Close(); err != nil {
		return o.fail(result, err, requestsBefore, retriesBefore)
	}

	o.finish(result, requestsBefore, retriesBefore)
	slog.Info("Batch finished",
		slog.Int("total", result.TotalCount),
		slog.Int("succeeded", result.SuccessCount),
		slog.Int("failed", result.ErrorCount),
		slog.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)
	o.observer.OnDone(len(result.Records))
	return result, nil
}

// check produces the record for one target. It never fails.
func (o *Orchestrator) check(ctx context.Context, target models.Target, errorsByType map[string]int) models.ProductRecord {
	markup, cached := o.cachedPage(target)
	if !cached {
		body, err := o.fetcher.Fetch(ctx, target)
		if err != nil {
			errorsByType[scraper.ErrorType(err)]++
			slog.Warn("Fetch failed",
				slog.String("url", target.String()),
				slog.Any("error", err),
			)
			return models.ErrorRecord(target, err.Error())
		}
		markup = body
		if o.pages != nil {
			o.pages.Add(target, markup)
		}
	}

	rec, err := extractor.Extract(markup, target)
	if err != nil {
		errorsByType["parse"]++
		slog.Warn("Extraction failed",
			slog.String("url", target.String()),
			slog.Any("error", err),
		)
		return models.ErrorRecord(target, err.Error())
	}
	if err := parser.ValidateRecord(&rec); err != nil {
		errorsByType["invalid"]++
		return models.ErrorRecord(target, err.Error())
	}

	slog.Debug("Checked product",
		slog.String("url", target.String()),
		slog.String("name", rec.Name),
		slog.String("price", rec.Price),
	)
	return rec
}

func (o *Orchestrator) cachedPage(target models.Target) (string, bool) {
	if o.pages == nil {
		return "", false
	}
	return o.pages.Get(target)
}

func (o *Orchestrator) fail(result *models.BatchResult, cause error, requestsBefore, retriesBefore int) (*models.BatchResult, error) {
	err := fmt.Errorf("%w: %w", ErrOrchestration, cause)
	slog.Error("Batch halted", slog.Any("error", err))
	o.finish(result, requestsBefore, retriesBefore)
	o.observer.OnFatal(err.Error())
	return result, err
}

func (o *Orchestrator) finish(result *models.BatchResult, requestsBefore, retriesBefore int) {
	result.EndTime = time.Now()
	result.SuccessCount, result.ErrorCount = 0, 0
	result.FailedURLs = result.FailedURLs[:0]
	for _, rec := range result.Records {
		if rec.Failed() {
			result.ErrorCount++
			result.FailedURLs = append(result.FailedURLs, rec.URL.String())
			continue
		}
		result.SuccessCount++
	}
	requests, retries := o.fetchStats()
	result.RequestCount = max(requests-requestsBefore, 0)
	result.RetryCount = max(retries-retriesBefore, 0)
	if o.Metrics != nil {
		o.Metrics.ObserveBatch(result.EndTime.Sub(result.StartTime))
	}
}

func (o *Orchestrator) fetchStats() (requests, retries int) {
	if s, ok := o.fetcher.(fetchStats); ok {
		return s.Stats()
	}
	return 0, 0
}

func (o *Orchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}
