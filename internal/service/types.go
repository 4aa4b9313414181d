package service

import "github.com/learnwithjiji/jiji/internal/storage"

// SaveOutcome is the result of persisting a query: either the saved record
// or the reason it could not be saved.
type SaveOutcome struct {
	Record *storage.QueryRecord
	Err    error
}

// Saved returns a successful SaveOutcome.
func Saved(rec *storage.QueryRecord) SaveOutcome {
	return SaveOutcome{Record: rec}
}

// SaveFailed returns a failed SaveOutcome.
func SaveFailed(err error) SaveOutcome {
	return SaveOutcome{Err: err}
}

// Saved reports whether the query was persisted.
func (o SaveOutcome) Saved() bool {
	return o.Err == nil && o.Record != nil
}

// QueryID returns the id of the saved record, or nil.
func (o SaveOutcome) QueryID() *string {
	if !o.Saved() {
		return nil
	}
	id := o.Record.ID
	return &id
}

// MatchOutcome is the result of matching catalog resources: either the
// matched list or the reason matching failed. Resources is never nil.
type MatchOutcome struct {
	Resources []storage.Resource
	Err       error
}

// Matched returns a successful MatchOutcome.
func Matched(resources []storage.Resource) MatchOutcome {
	if resources == nil {
		resources = []storage.Resource{}
	}
	return MatchOutcome{Resources: resources}
}

// MatchFailed returns a failed MatchOutcome with no resources.
func MatchFailed(err error) MatchOutcome {
	return MatchOutcome{Resources: []storage.Resource{}, Err: err}
}

// AnswerResponse is the result of an ask.
type AnswerResponse struct {
	Answer    string            `json:"answer"`
	Resources []ResourceSummary `json:"resources"`
	Metadata  Metadata          `json:"metadata"`
}

// ResourceSummary is the public view of a matched resource.
type ResourceSummary struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Type        string  `json:"type"`
	URL         string  `json:"url"`
	Description *string `json:"description"`
}

// Metadata describes an AnswerResponse.
type Metadata struct {
	// QueryID is nil when the query could not be persisted.
	QueryID       *string `json:"queryId"`
	Timestamp     string  `json:"timestamp"`
	ResourceCount int     `json:"resourceCount"`
}

func summarize(resources []storage.Resource) []ResourceSummary {
	out := make([]ResourceSummary, 0, len(resources))
	for _, r := range resources {
		s := ResourceSummary{
			ID:    r.ID,
			Title: r.Title,
			Type:  string(r.Type),
			URL:   r.URL,
		}
		if r.Description != "" {
			desc := r.Description
			s.Description = &desc
		}
		out = append(out, s)
	}
	return out
}
