package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/learnwithjiji/jiji/internal/storage"
	"github.com/learnwithjiji/jiji/internal/text"
)

// ErrIndexNotBuilt is returned by Match before the first successful Rebuild.
var ErrIndexNotBuilt = errors.New("catalog: index not built")

// indexedFields are matched by every keyword.
var indexedFields = []string{"title", "description", "tags"}

// Index matches queries against an in-memory bleve index of the whole active
// catalog. Fields are indexed as single lower-cased terms so a keyword
// matches a field when a regexp query finds it anywhere inside the term.
type Index struct {
	source    Source
	extractor *text.Extractor
	logger    *zap.Logger

	mu        sync.RWMutex
	index     bleve.Index
	resources []storage.Resource
}

// NewIndex creates an empty Index. Call Rebuild before Match.
func NewIndex(source Source, extractor *text.Extractor, logger *zap.Logger) *Index {
	if extractor == nil {
		extractor = text.NewExtractor(text.DefaultKeywordOptions())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{source: source, extractor: extractor, logger: logger}
}

// buildIndexMapping creates the bleve mapping for resource documents.
func buildIndexMapping() mapping.IndexMapping {
	resourceMapping := bleve.NewDocumentMapping()

	for _, field := range indexedFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = false
		fm.IncludeInAll = false
		fm.IncludeTermVectors = false
		resourceMapping.AddFieldMappingsAt(field, fm)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = resourceMapping
	indexMapping.DefaultAnalyzer = keyword.Name
	return indexMapping
}

// normalize lower-cases s and collapses whitespace. Keywords never contain
// whitespace, so substring matches are unaffected.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Rebuild replaces the index with a fresh snapshot of the active catalog.
// On failure the previous snapshot stays in service.
func (ix *Index) Rebuild(ctx context.Context) error {
	resources, err := ix.source.ActiveResources(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load active resources: %w", err)
	}

	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := idx.NewBatch()
	for i, r := range resources {
		doc := map[string]interface{}{
			"title": normalize(r.Title),
		}
		if r.Description != "" {
			doc["description"] = normalize(r.Description)
		}
		if len(r.Tags) > 0 {
			tags := make([]string, 0, len(r.Tags))
			for _, tag := range r.Tags {
				if t := normalize(tag); t != "" {
					tags = append(tags, t)
				}
			}
			doc["tags"] = tags
		}

		// Document ids are catalog positions so duplicate resource ids survive.
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			idx.Close()
			return fmt.Errorf("failed to index resource %s: %w", r.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("failed to batch index resources: %w", err)
	}

	ix.mu.Lock()
	old := ix.index
	ix.index = idx
	ix.resources = resources
	ix.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			ix.logger.Warn("failed to close previous catalog index", zap.Error(err))
		}
	}

	ix.logger.Debug("catalog index rebuilt", zap.Int("resources", len(resources)))
	return nil
}

// Match returns the indexed resources overlapping the query keywords, in
// catalog order.
func (ix *Index) Match(ctx context.Context, q string) ([]storage.Resource, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.index == nil {
		return nil, ErrIndexNotBuilt
	}

	matched := []storage.Resource{}
	keywords := ix.extractor.Extract(strings.ToLower(q))
	if len(keywords) == 0 || len(ix.resources) == 0 {
		return matched, nil
	}

	req := bleve.NewSearchRequestOptions(buildKeywordQuery(keywords), len(ix.resources), 0, false)
	results, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}

	positions := make([]int, 0, len(results.Hits))
	for _, hit := range results.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= len(ix.resources) {
			continue
		}
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	for _, pos := range positions {
		if r := ix.resources[pos]; Matches(r, keywords) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// buildKeywordQuery matches documents where any keyword occurs inside any
// indexed field.
func buildKeywordQuery(keywords []string) query.Query {
	disjuncts := make([]query.Query, 0, len(keywords)*len(indexedFields))
	for _, kw := range keywords {
		pattern := ".*" + regexp.QuoteMeta(kw) + ".*"
		for _, field := range indexedFields {
			rq := bleve.NewRegexpQuery(pattern)
			rq.SetField(field)
			disjuncts = append(disjuncts, rq)
		}
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

// Count returns the number of indexed resources.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.resources)
}

// Refresh rebuilds the index every interval until ctx is done. Failed
// rebuilds are logged and the previous snapshot is kept.
func (ix *Index) Refresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ix.Rebuild(ctx); err != nil {
				ix.logger.Warn("catalog index refresh failed", zap.Error(err))
			}
		}
	}
}

// Close releases the index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.index == nil {
		return nil
	}
	err := ix.index.Close()
	ix.index = nil
	ix.resources = nil
	return err
}

var (
	_ Matcher = (*Scanner)(nil)
	_ Matcher = (*Index)(nil)
)
