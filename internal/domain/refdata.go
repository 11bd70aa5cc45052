package domain

import (
	"regexp"
	"strings"
	"time"
)

// ReferenceData is an immutable snapshot of the screening reference lists.
// A snapshot is built once per load and shared read-only across rules; an
// evaluation pass always sees a single snapshot, so every rule in the pass
// matches against the same lists. Reloading swaps in a fresh snapshot
// without touching passes already in flight.
type ReferenceData struct {
	countries map[string]struct{}
	keywords  []string
	pattern   *regexp.Regexp
	loadedAt  time.Time
}

// NewReferenceData builds a snapshot from raw reference lists.
// Country matching is case-sensitive and exact. Keywords are combined into
// a single case-insensitive alternation; an empty keyword list yields a
// pattern that matches nothing, never one that matches everything.
func NewReferenceData(countries, keywords []string) *ReferenceData {
	ref := &ReferenceData{
		countries: make(map[string]struct{}, len(countries)),
		loadedAt:  time.Now().UTC(),
	}
	for _, c := range countries {
		if c = strings.TrimSpace(c); c != "" {
			ref.countries[c] = struct{}{}
		}
	}
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			ref.keywords = append(ref.keywords, k)
		}
	}
	if len(ref.keywords) > 0 {
		quoted := make([]string, len(ref.keywords))
		for i, k := range ref.keywords {
			quoted[i] = regexp.QuoteMeta(k)
		}
		ref.pattern = regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
	}
	return ref
}

// IsHighRiskCountry reports whether country is on the high-risk list.
func (r *ReferenceData) IsHighRiskCountry(country string) bool {
	if r == nil {
		return false
	}
	_, ok := r.countries[country]
	return ok
}

// MatchesKeyword reports whether the description contains any risk keyword.
func (r *ReferenceData) MatchesKeyword(description string) bool {
	if r == nil || r.pattern == nil {
		return false
	}
	return r.pattern.MatchString(description)
}

// CountryCount returns the number of loaded high-risk countries.
func (r *ReferenceData) CountryCount() int {
	if r == nil {
		return 0
	}
	return len(r.countries)
}

// KeywordCount returns the number of loaded risk keywords.
func (r *ReferenceData) KeywordCount() int {
	if r == nil {
		return 0
	}
	return len(r.keywords)
}

// Keywords returns a copy of the loaded keyword list.
func (r *ReferenceData) Keywords() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.keywords...)
}

// LoadedAt returns when this snapshot was built.
func (r *ReferenceData) LoadedAt() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.loadedAt
}
