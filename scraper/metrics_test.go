package scraper

import (
	"testing"
	"time"
)

// counterValue sums the samples of the named counter family, optionally
// filtered by one label value.
func counterValue(t *testing.T, m *Metrics, name, label, value string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if label != "" {
				matched := false
				for _, lp := range metric.GetLabel() {
					if lp.GetName() == label && lp.GetValue() == value {
						matched = true
					}
				}
				if !matched {
					continue
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.IncRequest("started")
	m.IncRequest("started")
	m.IncRecord("success")
	m.IncRecord("error")
	m.IncRetries()
	m.IncError("timeout")
	m.ObserveDuration(120 * time.Millisecond)
	m.ObserveBatch(3 * time.Second)

	if got := counterValue(t, m, "pricetracker_requests_total", "phase", "started"); got != 2 {
		t.Fatalf("requests started=%v, want 2", got)
	}
	if got := counterValue(t, m, "pricetracker_records_total", "status", "error"); got != 1 {
		t.Fatalf("error records=%v, want 1", got)
	}
	if got := counterValue(t, m, "pricetracker_retries_total", "", ""); got != 1 {
		t.Fatalf("retries=%v, want 1", got)
	}
	if got := counterValue(t, m, "pricetracker_errors_total", "error_type", "timeout"); got != 1 {
		t.Fatalf("timeout errors=%v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.IncRequest("started")
	m.IncRecord("success")
	m.IncRetries()
	m.IncError("timeout")
	m.ObserveDuration(time.Second)
	m.ObserveBatch(time.Second)
}
