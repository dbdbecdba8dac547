package parser

import (
	"regexp"
	"testing"
)

var canonicalPrice = regexp.MustCompile(`^\d+\.\d{2}€$`)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: "0.00€"},
		{name: "only separators", input: ".,.", expected: "0.00€"},
		{name: "single period", input: ".", expected: "0.00€"},
		{name: "no digits", input: "Price on request", expected: "0.00€"},
		{name: "one digit cents", input: "5", expected: "0.05€"},
		{name: "two digit cents", input: "99", expected: "0.99€"},
		{name: "minor units", input: "1999", expected: "19.99€"},
		{name: "minor units five digits", input: "12345", expected: "123.45€"},
		{name: "trailing currency", input: "19.99 €", expected: "19.99€"},
		{name: "leading currency", input: "€ 7,50", expected: "7.50€"},
		{name: "comma decimal", input: "249,9", expected: "249.90€"},
		{name: "leading separator", input: ".99", expected: "0.99€"},
		{name: "trailing separator", input: "5.", expected: "5.00€"},
		{name: "long fraction truncated", input: "3.14159", expected: "3.14€"},
		{name: "comma thousands then period", input: "1,234.56", expected: "1.23€"},
		{name: "period thousands then comma", input: "1.234,56", expected: "1.23€"},
		{name: "space thousands", input: "1 299,00 €", expected: "1299.00€"},
		{name: "html noise", input: "\n  12,99 €  ", expected: "12.99€"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePrice(tt.input); got != tt.expected {
				t.Errorf("NormalizePrice(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizePriceAlwaysCanonical(t *testing.T) {
	inputs := []string{
		"", " ", ",", "..", "0", "00", "000", "1", "10", "100", "1.2.3.4",
		"€", "EUR 15", "15 EUR", "1,2,3", ",5", "5,", "9.999,99 €", "abc1def2",
		"0,01", "1000000", "€€€", "--12.50--", "12.5.", "٣٤",
	}
	for _, in := range inputs {
		if got := NormalizePrice(in); !canonicalPrice.MatchString(got) {
			t.Errorf("NormalizePrice(%q) = %q, not canonical", in, got)
		}
	}
}

func TestNormalizePriceIdempotent(t *testing.T) {
	inputs := []string{"0.00", "0.99", "19.99", "1234.50", "7.05"}
	for _, in := range inputs {
		once := NormalizePrice(in)
		twice := NormalizePrice(StripCurrency(once))
		if once != twice {
			t.Errorf("NormalizePrice not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestStripCurrency(t *testing.T) {
	if got := StripCurrency("19.99€"); got != "19.99" {
		t.Fatalf("StripCurrency = %q, want %q", got, "19.99")
	}
	if got := StripCurrency("19.99"); got != "19.99" {
		t.Fatalf("StripCurrency without glyph = %q, want %q", got, "19.99")
	}
}
