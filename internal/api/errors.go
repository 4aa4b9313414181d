package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Messages of the fixed error envelopes.
const (
	msgValidationFailed = "Validation failed"
	msgAuthRequired     = "Authentication required"
	msgRouteNotFound    = "Route not found"
	msgTooManyRequests  = "Too many requests, please try again later"
	msgGenericFailure   = "Something went wrong"
	msgInvalidJSON      = "Invalid JSON body"
	msgBodyTooLarge     = "Request entity too large"
)

// AppError is an expected failure with a client-facing message.
type AppError struct {
	Status  int
	Message string

	// Operational errors are safe to show to clients in production.
	Operational bool

	stack []byte
}

// NewAppError creates an operational error.
func NewAppError(status int, message string) *AppError {
	return &AppError{
		Status:      status,
		Message:     message,
		Operational: true,
		stack:       debug.Stack(),
	}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
	Path    string       `json:"path,omitempty"`
	Stack   string       `json:"stack,omitempty"`
}

type successEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// writeJSON writes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// writeError maps err to an error envelope. Non-operational errors are
// masked in production; other environments include a stack.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := err.Error()
	operational := false
	var stack string

	var appErr *AppError
	if errors.As(err, &appErr) {
		status = appErr.Status
		message = appErr.Message
		operational = appErr.Operational
		stack = string(appErr.stack)
	} else {
		stack = fmt.Sprintf("%+v", err)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	env := errorEnvelope{Success: false, Error: message}
	if s.production {
		if !operational {
			env.Error = msgGenericFailure
		}
	} else {
		env.Stack = stack
	}

	s.writeJSON(w, status, env)
}

// notFound answers unknown routes.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusNotFound, errorEnvelope{
		Success: false,
		Error:   msgRouteNotFound,
		Path:    r.URL.RequestURI(),
	})
}
