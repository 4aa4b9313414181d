package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/learnwithjiji/jiji/internal/auth"
	"github.com/learnwithjiji/jiji/internal/service"
)

type healthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type rootResponse struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// historyEntry is the public view of a stored query.
type historyEntry struct {
	ID        string `json:"id"`
	QueryText string `json:"query_text"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	base := s.basePath()
	s.writeJSON(w, http.StatusOK, rootResponse{
		Success: true,
		Message: "Learn with Jiji API is running",
		Version: s.apiVersion,
		Endpoints: map[string]string{
			"health":  base + "/health",
			"askJiji": base + "/ask-jiji",
			"history": base + "/history",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Success:   true,
		Message:   "Jiji backend is running",
		Timestamp: s.now().UTC().Format(service.TimestampLayout),
		Version:   s.apiVersion,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, problems, err := decodeAskRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(problems) > 0 {
		s.writeValidationError(w, problems)
		return
	}

	// The body userId is validated only; the stored owner is the caller.
	id, _ := auth.FromContext(r.Context())
	if req.UserID != "" && req.UserID != id.UserID {
		s.logger.Debug("ignoring unverified userId in request body")
	}

	resp, err := s.svc.ProcessQuery(r.Context(), req.Query, id.UserID)
	if errors.Is(err, service.ErrEmptyQuery) {
		s.writeValidationError(w, []FieldError{{"query", "Query must contain text"}})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, successEnvelope{Success: true, Data: resp})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok || id.UserID == "" {
		s.writeError(w, r, NewAppError(http.StatusUnauthorized, msgAuthRequired))
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	records, err := s.svc.GetQueryHistory(r.Context(), id.UserID, limit)
	if errors.Is(err, service.ErrAuthenticationRequired) {
		s.writeError(w, r, NewAppError(http.StatusUnauthorized, msgAuthRequired))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			ID:        rec.ID,
			QueryText: rec.Text,
			CreatedAt: rec.CreatedAt.UTC().Format(service.TimestampLayout),
		})
	}
	s.logger.Debug("history served", zap.Int("count", len(entries)))

	s.writeJSON(w, http.StatusOK, successEnvelope{Success: true, Data: entries})
}

func (s *Server) writeValidationError(w http.ResponseWriter, problems []FieldError) {
	s.writeJSON(w, http.StatusBadRequest, errorEnvelope{
		Success: false,
		Error:   msgValidationFailed,
		Details: problems,
	})
}

// parseLimit reads the leading integer of v, the way a lenient query
// parser does ("25abc" is 25). Anything unparseable is 0, which the
// service maps to its default.
func parseLimit(v string) int {
	v = strings.TrimSpace(v)
	end := 0
	if end < len(v) && (v[end] == '-' || v[end] == '+') {
		end++
	}
	digits := end
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		// Out of range; the sign decides which side.
		if v[0] == '-' {
			return -1
		}
		return int(^uint(0) >> 1)
	}
	return n
}
