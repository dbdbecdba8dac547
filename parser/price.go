// Package parser normalizes raw text pulled out of product pages.
package parser

import "strings"

// Currency is the glyph appended to every canonical price.
const Currency = "€"

// ZeroPrice is returned for empty or unparseable input.
const ZeroPrice = "0.00" + Currency

// NormalizePrice converts raw price text into the canonical D.DD€ form.
// It never fails: anything without usable digits becomes ZeroPrice.
//
// Comma and period are both treated as a decimal separator, so
// "1.234,56" yields "1.23€". Values without any separator are read
// as minor units ("1999" -> "19.99€", "5" -> "0.05€").
func NormalizePrice(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',':
			b.WriteByte('.')
		}
	}
	cleaned := b.String()

	if !strings.Contains(cleaned, ".") {
		if len(cleaned) < 3 {
			cleaned = "0." + strings.Repeat("0", 2-len(cleaned)) + cleaned
		} else {
			cleaned = cleaned[:len(cleaned)-2] + "." + cleaned[len(cleaned)-2:]
		}
	}

	// Only the first period separates; later groups are folded into the fraction.
	intPart, fracPart, _ := strings.Cut(cleaned, ".")
	fracPart = strings.ReplaceAll(fracPart, ".", "")
	if len(fracPart) > 2 {
		fracPart = fracPart[:2]
	}
	fracPart += strings.Repeat("0", 2-len(fracPart))
	if intPart == "" {
		intPart = "0"
	}

	return intPart + "." + fracPart + Currency
}

// StripCurrency removes the trailing currency glyph from a canonical price.
func StripCurrency(price string) string {
	return strings.TrimSpace(strings.TrimSuffix(price, Currency))
}
