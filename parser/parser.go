package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-price-tracker/models"
)

// ValidateRecord ensures a successful record carries the fields the report needs.
func ValidateRecord(r *models.ProductRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(string(r.URL)) == "" {
		return fmt.Errorf("record missing url")
	}
	if r.Failed() {
		if strings.TrimSpace(r.Error) == "" {
			return fmt.Errorf("error record missing detail for %s", r.URL)
		}
		return nil
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("record missing name for %s", r.URL)
	}
	if strings.TrimSpace(r.Price) == "" {
		return fmt.Errorf("record missing price for %s", r.URL)
	}
	return nil
}

// NormalizeText collapses runs of whitespace in extracted element text.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
