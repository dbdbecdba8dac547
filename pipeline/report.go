package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/aluiziolira/go-price-tracker/models"
)

// ReportHeader opens every report.
const ReportHeader = "=== Price check results ==="

// ReportWriter appends human-readable result blocks to a text file.
// Every block is flushed to disk before WriteRecord returns so a crash
// keeps the results written so far.
type ReportWriter struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
	closed bool
}

// NewReportWriter truncates filename and writes the report header.
func NewReportWriter(filename string) (*ReportWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create report file: %w", err)
	}

	rw := &ReportWriter{
		file:   f,
		writer: bufio.NewWriter(f),
	}
	if _, err := rw.writer.WriteString(ReportHeader + "\n\n"); err != nil {
		f.Close()
		return nil, fmt.Errorf("write report header: %w", err)
	}
	if err := rw.flush(); err != nil {
		f.Close()
		return nil, err
	}
	return rw, nil
}

// WriteRecord appends the block for rec.
func (rw *ReportWriter) WriteRecord(rec models.ProductRecord) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.closed {
		return fmt.Errorf("report writer closed")
	}
	if _, err := rw.writer.WriteString(FormatBlock(rec)); err != nil {
		return fmt.Errorf("write report block: %w", err)
	}
	return rw.flush()
}

// Close flushes and closes the file handle. It is safe to call twice.
func (rw *ReportWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.closed {
		return nil
	}
	rw.closed = true
	if err := rw.writer.Flush(); err != nil {
		rw.file.Close()
		return fmt.Errorf("flush report: %w", err)
	}
	return rw.file.Close()
}

func (rw *ReportWriter) flush() error {
	if err := rw.writer.Flush(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	if err := rw.file.Sync(); err != nil {
		return fmt.Errorf("sync report: %w", err)
	}
	return nil
}

// FormatBlock renders the report block for one record.
func FormatBlock(rec models.ProductRecord) string {
	if rec.Failed() {
		return fmt.Sprintf("Error: %s\nURL: %s\n\n", rec.Error, rec.URL)
	}
	block := fmt.Sprintf("%s\nPrice: %s\n", rec.Name, rec.Price)
	if rec.OldPrice != "" {
		block += fmt.Sprintf("Old price: %s\n", rec.OldPrice)
	}
	return block + fmt.Sprintf("URL: %s\n\n", rec.URL)
}
