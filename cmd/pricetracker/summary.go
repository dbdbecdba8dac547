package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/aluiziolira/go-price-tracker/config"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/pipeline"
	"github.com/olekukonko/tablewriter"
)

// renderEvents draws batch progress until the channel closes.
func renderEvents(w io.Writer, events <-chan pipeline.Event) {
	for ev := range events {
		switch ev.Kind {
		case pipeline.EventProgress:
			fmt.Fprintf(w, "\r%s", progressLine(ev.Current, ev.Total))
		case pipeline.EventStatus:
			slog.Debug(ev.Message)
		case pipeline.EventDone:
			fmt.Fprintf(w, "\nChecked %d product(s)\n", ev.Count)
		case pipeline.EventFatal:
			fmt.Fprintf(w, "\nBatch stopped: %s\n", ev.Message)
		}
	}
}

func progressLine(current, total int) string {
	const width = 30
	if total <= 0 {
		return fmt.Sprintf("[%s] 0/0", strings.Repeat("-", width))
	}
	filled := current * width / total
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat("-", width-filled), current, total)
}

func printSummary(w io.Writer, result *models.BatchResult, cfg *config.Config) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Price", "Old Price", "Status", "URL"})
	table.SetAutoWrapText(false)
	for _, rec := range result.Records {
		name := rec.Name
		if rec.Failed() {
			name = "Error: " + rec.Error
		}
		table.Append([]string{name, rec.Price, rec.OldPrice, string(rec.Status), rec.URL.String()})
	}
	table.Render()

	separator := "--------------------------------------------------"
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "Price check complete")
	fmt.Fprintf(w, "  Targets:       %d\n", result.TotalCount)
	fmt.Fprintf(w, "  Succeeded:     %d\n", result.SuccessCount)
	fmt.Fprintf(w, "  Errors:        %d\n", result.ErrorCount)
	fmt.Fprintf(w, "  Requests:      %d\n", result.RequestCount)
	fmt.Fprintf(w, "  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %s\n", formatCounts(result.ErrorsByType))
	}
	fmt.Fprintf(w, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Fprintf(w, "  Report file:   %s\n", cfg.ReportFile)
	if cfg.ExportFile != "" {
		fmt.Fprintf(w, "  Export file:   %s\n", cfg.ExportFile)
	}
	fmt.Fprintln(w, separator)
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
