package text

import (
	"strings"
	"unicode/utf8"
)

// Default keyword extraction settings.
const (
	DefaultMaxKeywords   = 5
	DefaultMinWordLength = 3
)

// DefaultStopWords are the interrogative and filler words ignored by default.
var DefaultStopWords = []string{
	"what", "is", "how", "why", "explain", "tell", "me", "about", "the", "a", "an",
}

// KeywordOptions configures keyword extraction.
type KeywordOptions struct {
	// StopWords are never returned as keywords (compared lower-cased).
	StopWords []string `json:"stopWords,omitempty"`

	// MaxKeywords caps the number of keywords returned.
	MaxKeywords int `json:"maxKeywords,omitempty"`

	// MinWordLength is the minimum rune length of a keyword.
	MinWordLength int `json:"minWordLength,omitempty"`
}

// DefaultKeywordOptions returns the built-in extraction settings.
func DefaultKeywordOptions() KeywordOptions {
	stop := make([]string, len(DefaultStopWords))
	copy(stop, DefaultStopWords)
	return KeywordOptions{
		StopWords:     stop,
		MaxKeywords:   DefaultMaxKeywords,
		MinWordLength: DefaultMinWordLength,
	}
}

// Extractor derives significant terms from a query.
// It is immutable and safe for concurrent use.
type Extractor struct {
	stopWords     map[string]struct{}
	maxKeywords   int
	minWordLength int
}

// NewExtractor creates an Extractor. Zero-valued numeric options and a nil
// stop-word list fall back to the defaults; an empty non-nil list disables
// stop-word filtering.
func NewExtractor(opts KeywordOptions) *Extractor {
	if opts.StopWords == nil {
		opts.StopWords = DefaultStopWords
	}
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = DefaultMaxKeywords
	}
	if opts.MinWordLength <= 0 {
		opts.MinWordLength = DefaultMinWordLength
	}

	stop := make(map[string]struct{}, len(opts.StopWords))
	for _, w := range opts.StopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}

	return &Extractor{
		stopWords:     stop,
		maxKeywords:   opts.MaxKeywords,
		minWordLength: opts.MinWordLength,
	}
}

// Extract returns at most MaxKeywords lower-cased words of the query, in
// order of appearance, skipping stop words and short words. Repeated words
// are kept.
func (e *Extractor) Extract(query string) []string {
	keywords := make([]string, 0, e.maxKeywords)
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(word) < e.minWordLength {
			continue
		}
		if _, stop := e.stopWords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == e.maxKeywords {
			break
		}
	}
	return keywords
}

// ExtractKeywords extracts keywords using the default options.
func ExtractKeywords(query string) []string {
	return defaultExtractor.Extract(query)
}

var defaultExtractor = NewExtractor(DefaultKeywordOptions())
