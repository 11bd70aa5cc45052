// Package refdata loads and serves the screening reference lists.
package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Column headers expected in the reference CSVs.
const (
	countriesColumn = "Name"
	keywordsColumn  = "Keyword"
)

// Provider holds the current reference data snapshot.
// Load builds a fresh snapshot and swaps it in atomically; Current is safe
// for concurrent readers and always returns a complete snapshot, so every
// rule within an evaluation pass sees the same lists.
type Provider struct {
	cfg  domain.RefDataConfig
	snap atomic.Pointer[domain.ReferenceData]
}

// NewProvider creates a provider and performs the initial load.
// A missing or unreadable reference file degrades to an empty list; it is
// logged, never fatal.
func NewProvider(cfg domain.RefDataConfig) *Provider {
	p := &Provider{cfg: cfg}
	p.Load()
	return p
}

// Load re-reads both reference files and swaps in a new snapshot.
// Returns the snapshot that is now current.
func (p *Provider) Load() *domain.ReferenceData {
	countries := LoadHighRiskCountries(p.cfg.CountriesPath)
	keywords := LoadKeywords(p.cfg.KeywordsPath)

	ref := domain.NewReferenceData(countries, keywords)
	p.snap.Store(ref)

	slog.Info("reference data loaded",
		"countries", ref.CountryCount(),
		"keywords", ref.KeywordCount(),
	)
	return ref
}

// Current returns the active snapshot.
func (p *Provider) Current() *domain.ReferenceData {
	return p.snap.Load()
}

// LoadHighRiskCountries reads the high-risk country list from a CSV with a
// "Name" column. Any read or parse failure yields an empty list: callers
// must treat an empty list as a valid, degraded outcome.
func LoadHighRiskCountries(path string) []string {
	values, err := loadColumn(path, countriesColumn)
	if err != nil {
		slog.Warn("failed to load high-risk countries",
			"path", path,
			"error", err,
		)
		return nil
	}
	return values
}

// LoadKeywords reads the risk keyword list from a CSV with a "Keyword"
// column. Failures degrade to an empty list, same as countries.
func LoadKeywords(path string) []string {
	values, err := loadColumn(path, keywordsColumn)
	if err != nil {
		slog.Warn("failed to load risk keywords",
			"path", path,
			"error", err,
		)
		return nil
	}
	return values
}

// loadColumn extracts one named column from a headed CSV file.
func loadColumn(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := -1
	for i, name := range header {
		if strings.TrimSpace(name) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found in %s", column, path)
	}

	var values []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		if idx >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[idx]); v != "" {
			values = append(values, v)
		}
	}

	return values, nil
}
