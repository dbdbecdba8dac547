// Package targets validates and persists the list of product URLs.
package targets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-price-tracker/models"
)

// maxReportedIssues caps how many offending lines a ValidationError shows.
const maxReportedIssues = 5

var (
	// ErrNoTargets is returned when input holds no valid URL at all.
	ErrNoTargets = errors.New("no valid URLs found")

	urlInLine  = regexp.MustCompile(`https?://\S+`)
	wellFormed = regexp.MustCompile(`^https?://(?:www\.)?[-a-zA-Z0-9@:%._\+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b(?:[-a-zA-Z0-9()@:%_\+.~#?&//=]*)$`)
)

// Issue describes one rejected input line.
type Issue struct {
	Line   int
	Reason string
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s", i.Line, i.Reason)
}

// ValidationError lists every rejected line of an input.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	shown := e.Issues
	if len(shown) > maxReportedIssues {
		shown = shown[:maxReportedIssues]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, issue := range shown {
		lines = append(lines, issue.String())
	}
	if len(e.Issues) > maxReportedIssues {
		lines = append(lines, fmt.Sprintf("...and %d more", len(e.Issues)-maxReportedIssues))
	}
	return "invalid targets:\n" + strings.Join(lines, "\n")
}

// Lines returns the offending line numbers in input order.
func (e *ValidationError) Lines() []int {
	out := make([]int, len(e.Issues))
	for i, issue := range e.Issues {
		out[i] = issue.Line
	}
	return out
}

// ValidateURL reports whether raw is a well-formed absolute http(s) URL.
func ValidateURL(raw string) bool {
	return wellFormed.MatchString(raw)
}

// Parse validates user input holding one URL per line. Blank lines are
// skipped and numbering counts only non-blank lines. Any rejected line
// fails the whole input so a bad paste never replaces a good list.
func Parse(input string) ([]models.Target, error) {
	var (
		valid  []models.Target
		issues []Issue
	)

	n := 0
	for _, raw := range strings.Split(input, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		n++

		found := urlInLine.FindAllString(line, -1)
		switch {
		case len(found) > 1:
			issues = append(issues, Issue{Line: n, Reason: "multiple URLs in one line"})
		case len(found) == 0:
			issues = append(issues, Issue{Line: n, Reason: "no URL found"})
		case !ValidateURL(found[0]):
			issues = append(issues, Issue{Line: n, Reason: "malformed URL"})
		default:
			valid = append(valid, models.Target(found[0]))
		}
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	if len(valid) == 0 {
		return nil, ErrNoTargets
	}
	return valid, nil
}

// Load reads the whitespace-separated URL list at path. A missing file
// yields an empty list.
func Load(path string) ([]models.Target, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}

	fields := strings.Fields(string(data))
	out := make([]models.Target, 0, len(fields))
	for _, field := range fields {
		out = append(out, models.Target(field))
	}
	return out, nil
}

// Save replaces the URL list at path with targets.
func Save(path string, targets []models.Target) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = t.String()
	}
	if err := os.WriteFile(path, []byte(strings.Join(parts, " ")), 0o644); err != nil {
		return fmt.Errorf("write url list: %w", err)
	}
	return nil
}

// Clear empties the URL list at path.
func Clear(path string) error {
	return Save(path, nil)
}
