// Package models defines data structures shared by the price tracker.
package models

import "time"

// Sentinel values substituted when extraction finds nothing.
const (
	UnknownName    = "unknown"
	UndefinedPrice = "not determined"
)

// Target is a single product-page URL to be checked.
type Target string

func (t Target) String() string {
	return string(t)
}

// Status is the outcome of checking one target.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ProductRecord holds the extracted data for one target.
type ProductRecord struct {
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	OldPrice  string    `json:"old_price"`
	URL       Target    `json:"url"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// NewRecord returns a record for target filled with sentinel values.
func NewRecord(target Target) ProductRecord {
	return ProductRecord{
		Name:      UnknownName,
		Price:     UndefinedPrice,
		URL:       target,
		Status:    StatusSuccess,
		CheckedAt: time.Now(),
	}
}

// ErrorRecord returns a sentinel record for target downgraded to error status.
func ErrorRecord(target Target, detail string) ProductRecord {
	rec := NewRecord(target)
	rec.Status = StatusError
	rec.Error = detail
	return rec
}

// Failed reports whether the record carries an error status.
func (r ProductRecord) Failed() bool {
	return r.Status == StatusError
}

// BatchResult holds the overall result of one batch run.
type BatchResult struct {
	Records      []ProductRecord
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	SuccessCount int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
}
