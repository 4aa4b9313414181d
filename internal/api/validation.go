package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/learnwithjiji/jiji/internal/text"
)

// Query length bounds, in characters, after trimming.
const (
	minQueryLength = 3
	maxQueryLength = text.MaxQueryLength
)

// askRequest is the validated body of an ask.
type askRequest struct {
	Query  string
	UserID string
}

// decodeAskRequest reads and validates an ask body. Unknown fields are
// ignored. Validation problems are returned as field errors; a body that is
// not a JSON object is returned as an error.
func decodeAskRequest(r *http.Request) (askRequest, []FieldError, error) {
	var req askRequest

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, nil, NewAppError(http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		}
		return req, nil, NewAppError(http.StatusBadRequest, msgInvalidJSON)
	}

	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return req, nil, NewAppError(http.StatusBadRequest, msgInvalidJSON)
		}
	}

	var problems []FieldError

	query, present, isString := stringField(fields, "query")
	switch {
	case !present:
		problems = append(problems, FieldError{"query", "Query is required"})
	case !isString:
		problems = append(problems, FieldError{"query", `"query" must be a string`})
	default:
		query = strings.TrimSpace(query)
		n := utf8.RuneCountInString(query)
		switch {
		case n == 0:
			problems = append(problems, FieldError{"query", "Query cannot be empty"})
		case n < minQueryLength:
			problems = append(problems, FieldError{"query", "Query must be at least 3 characters long"})
		case n > maxQueryLength:
			problems = append(problems, FieldError{"query", "Query must not exceed 500 characters"})
		case text.Sanitize(query) == "":
			problems = append(problems, FieldError{"query", "Query must contain text"})
		}
		req.Query = query
	}

	userID, present, isString := stringField(fields, "userId")
	if present {
		switch {
		case !isString:
			problems = append(problems, FieldError{"userId", `"userId" must be a string`})
		default:
			if _, err := uuid.Parse(userID); err != nil {
				problems = append(problems, FieldError{"userId", "User ID must be a valid UUID"})
			}
			req.UserID = userID
		}
	}

	return req, problems, nil
}

// stringField reports whether key is present and holds a JSON string.
func stringField(fields map[string]json.RawMessage, key string) (value string, present, isString bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false, false
	}
	if err := json.Unmarshal(raw, &value); err != nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", true, false
	}
	return value, true, true
}
