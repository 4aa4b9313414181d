/*
Package service implements the query orchestrator behind the "ask" and
"history" operations.

An ask sanitizes the query, then persists it and matches catalog resources
concurrently, and finally assembles the answer. Persistence and matching
failures never fail the ask: they are logged, reported to the Recorder and
degrade to a null query id or an empty resource list.
*/
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/learnwithjiji/jiji/internal/answer"
	"github.com/learnwithjiji/jiji/internal/catalog"
	"github.com/learnwithjiji/jiji/internal/storage"
	"github.com/learnwithjiji/jiji/internal/text"
)

// DefaultMaxHistoryLimit caps the number of history records per request.
const DefaultMaxHistoryLimit = 100

// TimestampLayout is the format of AnswerResponse timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	// ErrEmptyQuery is returned when nothing is left of a query after sanitation.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrAuthenticationRequired is returned for history requests without a user.
	ErrAuthenticationRequired = errors.New("authentication required")
)

// Store operation names reported to the Recorder.
const (
	OpSaveQuery      = "save_query"
	OpMatchResources = "match_resources"
	OpGetHistory     = "get_history"
)

// Recorder observes orchestrator outcomes.
type Recorder interface {
	// QueryProcessed is called once per completed ask.
	QueryProcessed(saved bool, resourceCount int)

	// StoreFailure is called when a store operation fails and is absorbed.
	StoreFailure(operation string)
}

type nopRecorder struct{}

func (nopRecorder) QueryProcessed(bool, int) {}
func (nopRecorder) StoreFailure(string)      {}

// Service composes sanitation, persistence, matching and answer synthesis.
type Service struct {
	store    storage.QueryStore
	matcher  catalog.Matcher
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time

	maxHistoryLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the clock used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxHistoryLimit caps history reads. Non-positive values keep the default.
func WithMaxHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxHistoryLimit = n
		}
	}
}

// New creates a Service.
func New(store storage.QueryStore, matcher catalog.Matcher, opts ...Option) *Service {
	s := &Service{
		store:           store,
		matcher:         matcher,
		logger:          zap.NewNop(),
		recorder:        nopRecorder{},
		now:             time.Now,
		maxHistoryLimit: DefaultMaxHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessQuery answers a learning query.
//
// The query is persisted for userID (empty means anonymous) while matching
// resources runs concurrently; both complete before the response is built.
// Only ErrEmptyQuery is returned as an error.
func (s *Service) ProcessQuery(ctx context.Context, query, userID string) (*AnswerResponse, error) {
	clean := text.Sanitize(query)
	if clean == "" {
		return nil, ErrEmptyQuery
	}

	var (
		saved   SaveOutcome
		matched MatchOutcome
		g       errgroup.Group
	)
	g.Go(func() error {
		saved = s.SaveQuery(ctx, clean, userID)
		return nil
	})
	g.Go(func() error {
		matched = s.matchResources(ctx, clean)
		return nil
	})
	_ = g.Wait()

	resp := &AnswerResponse{
		Answer:    answer.Generate(clean, matched.Resources),
		Resources: summarize(matched.Resources),
		Metadata: Metadata{
			QueryID:       saved.QueryID(),
			Timestamp:     s.now().UTC().Format(TimestampLayout),
			ResourceCount: len(matched.Resources),
		},
	}

	s.recorder.QueryProcessed(saved.Saved(), resp.Metadata.ResourceCount)
	s.logger.Debug("query processed",
		zap.Bool("saved", saved.Saved()),
		zap.Int("resources", resp.Metadata.ResourceCount),
		zap.Bool("anonymous", userID == ""),
	)

	return resp, nil
}

// SaveQuery persists a sanitized query. Failures are logged and returned as
// a failed outcome.
func (s *Service) SaveQuery(ctx context.Context, text, userID string) SaveOutcome {
	rec, err := s.store.SaveQuery(ctx, text, userID)
	if err == nil && rec == nil {
		err = storage.ErrNoRowReturned
	}
	if err != nil {
		s.recorder.StoreFailure(OpSaveQuery)
		if errors.Is(err, storage.ErrNoRowReturned) {
			s.logger.Warn("query saved without returned record", zap.Error(err))
		} else {
			s.logger.Error("failed to save query", zap.Error(err))
		}
		return SaveFailed(err)
	}
	return Saved(rec)
}

// FindMatchingResources returns the catalog resources relevant to query.
// Failures are logged and yield an empty list.
func (s *Service) FindMatchingResources(ctx context.Context, query string) []storage.Resource {
	return s.matchResources(ctx, query).Resources
}

func (s *Service) matchResources(ctx context.Context, query string) MatchOutcome {
	resources, err := s.matcher.Match(ctx, query)
	if err != nil {
		s.recorder.StoreFailure(OpMatchResources)
		s.logger.Error("failed to match resources", zap.Error(err))
		return MatchFailed(err)
	}
	return Matched(resources)
}

// GetQueryHistory returns the most recent queries of userID, newest first.
//
// A non-positive limit selects storage.DefaultHistoryLimit and limits above
// the configured maximum are capped. Store failures are logged and yield an
// empty list.
func (s *Service) GetQueryHistory(ctx context.Context, userID string, limit int) ([]storage.QueryRecord, error) {
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}

	if limit <= 0 {
		limit = storage.DefaultHistoryLimit
	}
	if limit > s.maxHistoryLimit {
		limit = s.maxHistoryLimit
	}

	history, err := s.store.GetHistory(ctx, userID, limit)
	if err != nil {
		s.recorder.StoreFailure(OpGetHistory)
		s.logger.Error("failed to fetch query history", zap.Error(err))
		return []storage.QueryRecord{}, nil
	}

	if history == nil {
		history = []storage.QueryRecord{}
	}
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}
