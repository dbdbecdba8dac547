package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rule locates a markup fragment by tag name and class attribute.
//
// A single-token Class matches any element carrying that class. A
// multi-token Class must equal the element's whole class attribute,
// token order included, so "c-price h-price" does not match
// "c-price h-price h-price--new".
type Rule struct {
	Tag   string
	Class string
}

// Match reports whether s satisfies the rule's class predicate.
func (r Rule) Match(s *goquery.Selection) bool {
	class, ok := s.Attr("class")
	if !ok {
		return false
	}
	want := strings.Fields(r.Class)
	have := strings.Fields(class)
	if len(want) == 1 {
		for _, token := range have {
			if token == want[0] {
				return true
			}
		}
		return false
	}
	return strings.Join(want, " ") == strings.Join(have, " ")
}

// Find returns the first element in document order matching the rule.
func (r Rule) Find(root *goquery.Selection) (*goquery.Selection, bool) {
	found := root.Find(r.Tag).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return r.Match(s)
	}).First()
	return found, found.Length() > 0
}

// FirstMatch evaluates rules in order and returns the first hit.
func FirstMatch(root *goquery.Selection, rules []Rule) (*goquery.Selection, bool) {
	for _, rule := range rules {
		if s, ok := rule.Find(root); ok {
			return s, true
		}
	}
	return nil, false
}

// RuleSet is the extraction schema for one site.
type RuleSet struct {
	Name    Rule
	Current []Rule
	Old     []Rule
}

// DefaultRules is the schema of the supported storefront layout. The
// discounted price is listed before the regular one so it wins when a
// page renders both.
var DefaultRules = RuleSet{
	Name: Rule{Tag: "h1", Class: "c-product__name"},
	Current: []Rule{
		{Tag: "div", Class: "c-price h-price--xx-large h-price--new"},
		{Tag: "div", Class: "c-price h-price--xx-large h-price"},
	},
	Old: []Rule{
		{Tag: "div", Class: "c-price h-price--x-large h-price--old"},
	},
}

// Site identifies a storefront family derived from a target URL.
type Site string

const (
	SiteKaup24  Site = "kaup24"
	SiteGeneric Site = "generic"
)

// DetectSite maps a target URL onto a known storefront.
func DetectSite(rawURL string) Site {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	if strings.Contains(strings.ToLower(host), "kaup24.ee") {
		return SiteKaup24
	}
	return SiteGeneric
}

// RulesFor returns the rule set used for site. Every site shares the
// default layout for now; per-site overrides go here.
func RulesFor(site Site) RuleSet {
	switch site {
	case SiteKaup24:
		return DefaultRules
	default:
		return DefaultRules
	}
}
