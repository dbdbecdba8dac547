package scraper

import (
	"math/rand"
	"net/http"
)

// HeaderRotator hands out a plausible browser identity per request.
type HeaderRotator struct {
	userAgents []string
	fixed      http.Header
	pick       func(n int) int
}

// NewHeaderRotator builds a rotator over userAgents. Accept, language,
// referrer and do-not-track headers are the same on every request.
func NewHeaderRotator(userAgents []string, acceptLanguage, referer string) *HeaderRotator {
	fixed := http.Header{}
	fixed.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	if acceptLanguage != "" {
		fixed.Set("Accept-Language", acceptLanguage)
	}
	if referer != "" {
		fixed.Set("Referer", referer)
	}
	fixed.Set("DNT", "1")

	return &HeaderRotator{
		userAgents: append([]string(nil), userAgents...),
		fixed:      fixed,
		pick:       rand.Intn,
	}
}

// Next returns a fresh header set with a randomly chosen User-Agent.
func (h *HeaderRotator) Next() http.Header {
	hdr := h.fixed.Clone()
	if len(h.userAgents) > 0 {
		hdr.Set("User-Agent", h.userAgents[h.pick(len(h.userAgents))])
	}
	return hdr
}
