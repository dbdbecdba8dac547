// Package extractor pulls product name and prices out of product-page markup.
package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-price-tracker/models"
	"github.com/aluiziolira/go-price-tracker/parser"
)

// ParseFailure indicates the markup for a target could not be processed.
type ParseFailure struct {
	URL models.Target
	Err error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseFailure) Unwrap() error {
	return e.Err
}

// Extract parses markup fetched from target into a record. Missing
// fields keep their sentinel values; only a failure to process the
// document at all is reported as a *ParseFailure.
func Extract(markup string, target models.Target) (rec models.ProductRecord, err error) {
	rec = models.NewRecord(target)

	defer func() {
		if r := recover(); r != nil {
			rec = models.NewRecord(target)
			err = &ParseFailure{URL: target, Err: fmt.Errorf("panic during extraction: %v", r)}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return rec, &ParseFailure{URL: target, Err: err}
	}

	rules := RulesFor(DetectSite(string(target)))

	if s, ok := rules.Name.Find(doc.Selection); ok {
		if name := parser.NormalizeText(s.Text()); name != "" {
			rec.Name = name
		}
	}
	if s, ok := FirstMatch(doc.Selection, rules.Current); ok {
		rec.Price = parser.NormalizePrice(strings.TrimSpace(s.Text()))
	}
	if s, ok := FirstMatch(doc.Selection, rules.Old); ok {
		rec.OldPrice = parser.NormalizePrice(strings.TrimSpace(s.Text()))
	}

	return rec, nil
}

// ExtractRecord is Extract for callers that must always get a record:
// a parse failure becomes an error-status record with sentinel prices.
func ExtractRecord(markup string, target models.Target) models.ProductRecord {
	rec, err := Extract(markup, target)
	if err != nil {
		return models.ErrorRecord(target, err.Error())
	}
	return rec
}
