/*
Package catalog selects learning resources relevant to a query.

Two matchers are provided. The Scanner reads a bounded number of active
resources from the store on every call and filters them in memory. The Index
keeps a bleve index over the whole active catalog and is refreshed
periodically. Both apply the same keyword-overlap rule and return matches in
catalog order.
*/
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnwithjiji/jiji/internal/storage"
	"github.com/learnwithjiji/jiji/internal/text"
)

// DefaultScanLimit is the number of active resources read per scan.
const DefaultScanLimit = 10

// Mode names accepted by configuration.
const (
	ModeScan  = "scan"
	ModeIndex = "index"
)

// Source provides active resources in catalog order.
type Source interface {
	ActiveResources(ctx context.Context, limit int) ([]storage.Resource, error)
}

// Matcher selects resources relevant to a query.
type Matcher interface {
	Match(ctx context.Context, query string) ([]storage.Resource, error)
}

// Scanner matches against the first ScanLimit active resources of a Source.
type Scanner struct {
	source    Source
	extractor *text.Extractor
	limit     int
}

// NewScanner creates a Scanner. A nil extractor uses the default keyword
// options and a non-positive limit uses DefaultScanLimit.
func NewScanner(source Source, extractor *text.Extractor, limit int) *Scanner {
	if extractor == nil {
		extractor = text.NewExtractor(text.DefaultKeywordOptions())
	}
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	return &Scanner{source: source, extractor: extractor, limit: limit}
}

// Match returns the scanned resources overlapping the query keywords, in the
// order the source returned them.
func (s *Scanner) Match(ctx context.Context, query string) ([]storage.Resource, error) {
	resources, err := s.source.ActiveResources(ctx, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load active resources: %w", err)
	}

	keywords := s.extractor.Extract(strings.ToLower(query))
	return Filter(resources, keywords), nil
}

// Filter keeps the resources matching any keyword, preserving order.
func Filter(resources []storage.Resource, keywords []string) []storage.Resource {
	matched := []storage.Resource{}
	if len(keywords) == 0 {
		return matched
	}
	for _, r := range resources {
		if Matches(r, keywords) {
			matched = append(matched, r)
		}
	}
	return matched
}

// Matches reports whether any keyword is a case-insensitive substring of the
// resource title, description or one of its tags.
func Matches(r storage.Resource, keywords []string) bool {
	title := strings.ToLower(r.Title)
	description := strings.ToLower(r.Description)

	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(title, kw) {
			return true
		}
		if description != "" && strings.Contains(description, kw) {
			return true
		}
		for _, tag := range r.Tags {
			if strings.Contains(strings.ToLower(tag), kw) {
				return true
			}
		}
	}
	return false
}
