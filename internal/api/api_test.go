package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnwithjiji/jiji/internal/auth"
	"github.com/learnwithjiji/jiji/internal/metrics"
	"github.com/learnwithjiji/jiji/internal/service"
	"github.com/learnwithjiji/jiji/internal/storage"
)

const testUser = "6f1c2a4e-8d3b-4f5a-9c7e-1b2d3e4f5a6b"

var fixedNow = time.Date(2025, 3, 1, 12, 30, 45, 678_000_000, time.UTC)

// fakeService records calls and returns scripted results.
type fakeService struct {
	askErr     error
	askPanic   bool
	history    []storage.QueryRecord
	historyErr error

	lastQuery  string
	lastUser   string
	lastLimit  int
	askCalls   int
	histCalled bool
}

func (f *fakeService) ProcessQuery(_ context.Context, query, userID string) (*service.AnswerResponse, error) {
	if f.askPanic {
		panic("index out of range")
	}
	f.askCalls++
	f.lastQuery = query
	f.lastUser = userID
	if f.askErr != nil {
		return nil, f.askErr
	}
	id := "q-1"
	return &service.AnswerResponse{
		Answer:    "Here are 0 learning resources",
		Resources: []service.ResourceSummary{},
		Metadata:  service.Metadata{QueryID: &id, Timestamp: "2025-03-01T12:30:45.678Z"},
	}, nil
}

func (f *fakeService) GetQueryHistory(_ context.Context, userID string, limit int) ([]storage.QueryRecord, error) {
	f.histCalled = true
	f.lastUser = userID
	f.lastLimit = limit
	return f.history, f.historyErr
}

// tokenResolver resolves tokens from a fixed table.
type tokenResolver map[string]string

func (t tokenResolver) Resolve(_ context.Context, token string) (auth.Identity, bool) {
	id, ok := t[token]
	return auth.Identity{UserID: id}, ok
}

func newTestServer(svc QueryService, opts ...Option) *Server {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithResolver(tokenResolver{"good-token": testUser}),
	}
	return New(svc, append(base, opts...)...)
}

func do(t *testing.T, h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRoot(t *testing.T) {
	srv := newTestServer(&fakeService{})

	rec := do(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "v1", body["version"])
	assert.Equal(t, map[string]interface{}{
		"health":  "/api/v1/health",
		"askJiji": "/api/v1/ask-jiji",
		"history": "/api/v1/history",
	}, body["endpoints"])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeService{}, WithAPIVersion("v2"))

	rec := do(t, srv, http.MethodGet, "/api/v2/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Jiji backend is running", body["message"])
	assert.Equal(t, "2025-03-01T12:30:45.678Z", body["timestamp"])
	assert.Equal(t, "v2", body["version"])
}

func TestAsk_Success(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc)

	rec := do(t, srv, http.MethodPost, "/api/v1/ask-jiji", `{"query":"  explain recursion  ","extra":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, data, "answer")
	assert.Equal(t, []interface{}{}, data["resources"])
	meta := data["metadata"].(map[string]interface{})
	assert.Equal(t, "q-1", meta["queryId"])
	assert.Equal(t, float64(0), meta["resourceCount"])

	assert.Equal(t, "explain recursion", svc.lastQuery)
	assert.Equal(t, "", svc.lastUser)
}

func TestAsk_UsesAuthenticatedUser(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc)

	body := `{"query":"explain recursion","userId":"11111111-2222-4333-8444-555555555555"}`
	rec := do(t, srv, http.MethodPost, "/api/v1/ask-jiji", body, "Authorization", "Bearer good-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUser, svc.lastUser)

	rec = do(t, srv, http.MethodPost, "/api/v1/ask-jiji", body, "Authorization", "Bearer forged")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", svc.lastUser)
}

func TestAsk_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []FieldError
	}{
		{"missing query", `{}`, []FieldError{{"query", "Query is required"}}},
		{"empty body", ``, []FieldError{{"query", "Query is required"}}},
		{"blank query", `{"query":"   "}`, []FieldError{{"query", "Query cannot be empty"}}},
		{"too short", `{"query":" ab "}`, []FieldError{{"query", "Query must be at least 3 characters long"}}},
		{"too long", `{"query":"` + strings.Repeat("a", 501) + `"}`, []FieldError{{"query", "Query must not exceed 500 characters"}}},
		{"not a string", `{"query":42}`, []FieldError{{"query", `"query" must be a string`}}},
		{"null query", `{"query":null}`, []FieldError{{"query", `"query" must be a string`}}},
		{"only markup", `{"query":"<><>"}`, []FieldError{{"query", "Query must contain text"}}},
		{"bad user id", `{"query":"recursion","userId":"nope"}`, []FieldError{{"userId", "User ID must be a valid UUID"}}},
		{"all problems", `{"query":"a","userId":"nope"}`, []FieldError{
			{"query", "Query must be at least 3 characters long"},
			{"userId", "User ID must be a valid UUID"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			srv := newTestServer(svc)

			rec := do(t, srv, http.MethodPost, "/api/v1/ask-jiji", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var env errorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, "Validation failed", env.Error)
			assert.Equal(t, tt.want, env.Details)
			assert.Zero(t, svc.askCalls)
		})
	}
}

func TestAsk_LengthCountsCharacters(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc)

	rec := do(t, srv, http.MethodPost, "/api/v1/ask-jiji", `{"query":"`+strings.Repeat("é", 500)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAsk_InvalidJSON(t *testing.T) {
	srv := newTestServer(&fakeService{})

	rec := do(t, srv, http.MethodPost, "/api/v1/ask-jiji", `{"query":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", decode(t, rec)["error"])
}

func TestAsk_BodyTooLarge(t *testing.T) {
	srv := newTestServer(&fakeService{}, WithBodyLimit(64))

	rec := do(t, srv, http.MethodPost, "/api/v1/ask-jiji", `{"query":"`+strings.Repeat("a", 100)+`"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestAsk_UnexpectedError(t *testing.T) {
	svc := &fakeService{askErr: errors.New("pq: connection refused")}

	rec := do(t, newTestServer(svc), http.MethodPost, "/api/v1/ask-jiji", `{"query":"recursion"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "pq: connection refused", body["error"])
	assert.Contains(t, body, "stack")

	rec = do(t, newTestServer(svc, WithProduction(true)), http.MethodPost, "/api/v1/ask-jiji", `{"query":"recursion"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "Something went wrong", body["error"])
	assert.NotContains(t, body, "stack")
}

func TestPanicRecovered(t *testing.T) {
	svc := &fakeService{askPanic: true}

	rec := do(t, newTestServer(svc, WithProduction(true)), http.MethodPost, "/api/v1/ask-jiji", `{"query":"recursion"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Something went wrong", decode(t, rec)["error"])

	rec = do(t, newTestServer(svc), http.MethodPost, "/api/v1/ask-jiji", `{"query":"recursion"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "index out of range", body["error"])
	assert.NotEmpty(t, body["stack"])
}

func TestHistory_RequiresAuth(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(svc, WithProduction(true))

	for _, headers := range [][]string{nil, {"Authorization", "Bearer forged"}, {"Authorization", "Basic good-token"}} {
		rec := do(t, srv, http.MethodGet, "/api/v1/history", "", headers...)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Authentication required", body["error"])
	}
	assert.False(t, svc.histCalled)
}

func TestHistory(t *testing.T) {
	svc := &fakeService{history: []storage.QueryRecord{
		{ID: "q-2", Text: "second", UserID: testUser, CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "q-1", Text: "first", UserID: testUser, CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}}
	srv := newTestServer(svc)

	rec := do(t, srv, http.MethodGet, "/api/v1/history?limit=5", "", "Authorization", "Bearer good-token")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Success bool           `json:"success"`
		Data    []historyEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, []historyEntry{
		{ID: "q-2", QueryText: "second", CreatedAt: "2025-03-01T10:00:00.000Z"},
		{ID: "q-1", QueryText: "first", CreatedAt: "2025-03-01T09:00:00.000Z"},
	}, env.Data)
	assert.Equal(t, testUser, svc.lastUser)
	assert.Equal(t, 5, svc.lastLimit)
	assert.NotContains(t, rec.Body.String(), "user_id")
}

func TestHistory_EmptyListIsArray(t *testing.T) {
	srv := newTestServer(&fakeService{})

	rec := do(t, srv, http.MethodGet, "/api/v1/history", "", "Authorization", "Bearer good-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decode(t, rec)["data"])
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"25", 25},
		{" 7", 7},
		{"25abc", 25},
		{"-3", -3},
		{"+4", 4},
		{"3.9", 3},
		{"-", 0},
		{"99999999999999999999999", int(^uint(0) >> 1)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLimit(tt.in))
		})
	}
}

func TestNotFound(t *testing.T) {
	srv := newTestServer(&fakeService{})

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/v1/unknown?x=1"},
		{http.MethodGet, "/api/v9/health"},
		{http.MethodGet, "/api/v1/ask-jiji"},
		{http.MethodDelete, "/api/v1/history"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.target, "")
			require.Equal(t, http.StatusNotFound, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "Route not found", body["error"])
			assert.Equal(t, tt.target, body["path"])
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}), http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}), http.MethodGet, "/api/v1/health", "", "X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	srv := newTestServer(&fakeService{}, WithAllowedOrigins([]string{"https://jiji.example"}))

	rec := do(t, srv, http.MethodOptions, "/api/v1/ask-jiji", "",
		"Origin", "https://jiji.example",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "https://jiji.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(t, srv, http.MethodGet, "/api/v1/health", "", "Origin", "https://evil.example")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	m := metrics.New()
	srv := newTestServer(&fakeService{}, WithRateLimit(15*time.Minute, 3), WithMetrics(m))

	for i := 0; i < 3; i++ {
		rec := do(t, srv, http.MethodGet, "/api/v1/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("RateLimit-Limit"))
		assert.Equal(t, "3;w=900", rec.Header().Get("RateLimit-Policy"))
		assert.Equal(t, strconv.Itoa(2-i), rec.Header().Get("RateLimit-Remaining"))
	}

	rec := do(t, srv, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests, please try again later", decode(t, rec)["error"])
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))

	// Another client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	other := httptest.NewRecorder()
	srv.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	srv := newTestServer(&fakeService{}, WithRateLimit(time.Minute, 0))

	for i := 0; i < 20; i++ {
		rec := do(t, srv, http.MethodGet, "/api/v1/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
	}
}

func TestRateLimiter_RefillsAndSweeps(t *testing.T) {
	l := newRateLimiter(time.Minute, 2)
	start := fixedNow

	assert.True(t, l.allow("a", start).allowed)
	assert.True(t, l.allow("a", start).allowed)
	d := l.allow("a", start)
	assert.False(t, d.allowed)
	assert.Equal(t, 30*time.Second, d.reset)

	assert.True(t, l.allow("a", start.Add(30*time.Second)).allowed)
	assert.True(t, l.allow("b", start.Add(30*time.Second)).allowed)
	assert.Equal(t, 2, l.size())

	l.allow("b", start.Add(2*time.Minute))
	assert.Equal(t, 1, l.size())
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	srv := newTestServer(&fakeService{}, WithMetrics(m))

	do(t, srv, http.MethodGet, "/api/v1/health", "")
	do(t, srv, http.MethodGet, "/nowhere", "")

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `jiji_http_requests_total{code="200",method="GET",route="/api/v1/health"} 1`)
	assert.Contains(t, rec.Body.String(), `route="unmatched"`)
}

func TestMetricsRouteAbsentWithoutMetrics(t *testing.T) {
	rec := do(t, newTestServer(&fakeService{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := newTestServer(&fakeService{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
