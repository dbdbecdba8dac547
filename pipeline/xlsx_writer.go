package pipeline

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding exported prices.
const SheetName = "Prices"

const maxColumnWidth = 255

// XLSXWriter buffers rows in an in-memory workbook and saves it on Close.
// Column widths follow the longest value in each column.
type XLSXWriter struct {
	path   string
	file   *excelize.File
	row    int
	widths []int
	saved  bool
	mu     sync.Mutex
}

// NewXLSXWriter creates a workbook with the header row in place.
func NewXLSXWriter(filename string) (*XLSXWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	xw := &XLSXWriter{
		path:   filename,
		file:   f,
		widths: make([]int, len(ExportColumns)),
	}
	if err := xw.appendRow(ExportColumns); err != nil {
		f.Close()
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	return xw, nil
}

// Write appends records below the existing rows.
func (xw *XLSXWriter) Write(records []models.ProductRecord) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.saved {
		return fmt.Errorf("xlsx writer closed")
	}
	for _, rec := range records {
		if err := xw.appendRow(exportRow(rec)); err != nil {
			return fmt.Errorf("write xlsx record: %w", err)
		}
	}
	return nil
}

// Close sizes the columns and saves the workbook.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.saved {
		return nil
	}
	xw.saved = true
	defer xw.file.Close()

	for i, n := range xw.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := xw.file.SetColWidth(SheetName, col, col, columnWidth(n)); err != nil {
			return fmt.Errorf("set width of column %s: %w", col, err)
		}
	}
	if err := xw.file.SaveAs(xw.path); err != nil {
		return fmt.Errorf("save xlsx file: %w", err)
	}
	return nil
}

// Validate ensures at least one record follows the header.
func (xw *XLSXWriter) Validate() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.row <= 1 {
		return fmt.Errorf("xlsx sheet has no records")
	}
	return nil
}

func (xw *XLSXWriter) appendRow(values []string) error {
	xw.row++
	cell, err := excelize.CoordinatesToCellName(1, xw.row)
	if err != nil {
		return err
	}

	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
		if n := utf8.RuneCountInString(v); i < len(xw.widths) && n > xw.widths[i] {
			xw.widths[i] = n
		}
	}
	return xw.file.SetSheetRow(SheetName, cell, &row)
}

func columnWidth(longest int) float64 {
	w := float64(longest+2) * 1.2
	if w > maxColumnWidth {
		return maxColumnWidth
	}
	return w
}
