/*
Package storage provides tests for the storage layer.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), step: time.Second}
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestSQLite(t *testing.T, opts ...Option) *SQLStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := NewSQLiteStore(dbPath, opts...)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestInit verifies database initialization and schema creation.
func TestInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	store := NewSQLiteStore(dbPath)

	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file not created")
	}

	// Init is idempotent
	if err := store.Init(context.Background()); err != nil {
		t.Errorf("second Init failed: %v", err)
	}
}

// TestMigrationsRunOnce verifies reopening a database does not re-apply migrations.
func TestMigrationsRunOnce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	if _, err := first.SaveQuery(ctx, "persisted before reopen", "user-1"); err != nil {
		t.Fatalf("SaveQuery failed: %v", err)
	}
	first.Close()

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	defer second.Close()

	version, err := second.currentMigrationVersion(ctx)
	if err != nil {
		t.Fatalf("currentMigrationVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected migration version 1, got %d", version)
	}

	history, err := second.GetHistory(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected data to survive reopen, got %d records", len(history))
	}
}

// TestSaveQuery verifies the created record is returned with store-assigned fields.
func TestSaveQuery(t *testing.T) {
	store := newTestSQLite(t)

	rec, err := store.SaveQuery(context.Background(), "explain recursion", "8f14e45f-ceea-4e1a-9c3b-2f1a0c6a1b11")
	if err != nil {
		t.Fatalf("SaveQuery failed: %v", err)
	}

	if rec.ID == "" {
		t.Error("Expected store-assigned id")
	}
	if rec.Text != "explain recursion" {
		t.Errorf("Expected text 'explain recursion', got '%s'", rec.Text)
	}
	if rec.UserID != "8f14e45f-ceea-4e1a-9c3b-2f1a0c6a1b11" {
		t.Errorf("Unexpected user id '%s'", rec.UserID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Expected store-assigned created_at")
	}
}

// TestSaveQuery_Anonymous verifies queries without a user are stored with a NULL user.
func TestSaveQuery_Anonymous(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	rec, err := store.SaveQuery(ctx, "anonymous question", "")
	if err != nil {
		t.Fatalf("SaveQuery failed: %v", err)
	}
	if rec.UserID != "" {
		t.Errorf("Expected empty user id, got '%s'", rec.UserID)
	}

	// Anonymous queries never show up in anyone's history
	history, err := store.GetHistory(ctx, "", 10)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no history for empty user, got %d", len(history))
	}
}

// TestGetHistory verifies ordering, limit and user scoping.
func TestGetHistory(t *testing.T) {
	clock := newStepClock()
	store := newTestSQLite(t, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := store.SaveQuery(ctx, fmt.Sprintf("question %d", i), "user-a"); err != nil {
			t.Fatalf("SaveQuery failed: %v", err)
		}
	}
	if _, err := store.SaveQuery(ctx, "someone else", "user-b"); err != nil {
		t.Fatalf("SaveQuery failed: %v", err)
	}

	history, err := store.GetHistory(ctx, "user-a", 5)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}

	if len(history) != 5 {
		t.Fatalf("Expected 5 records, got %d", len(history))
	}
	if history[0].Text != "question 6" {
		t.Errorf("Expected newest record first, got '%s'", history[0].Text)
	}
	for i := 1; i < len(history); i++ {
		if history[i].CreatedAt.After(history[i-1].CreatedAt) {
			t.Errorf("History not ordered newest first at index %d", i)
		}
	}
	for _, rec := range history {
		if rec.UserID != "user-a" {
			t.Errorf("History leaked record of user '%s'", rec.UserID)
		}
	}
}

// TestGetHistory_DefaultLimit verifies non-positive limits fall back to the default.
func TestGetHistory_DefaultLimit(t *testing.T) {
	store := newTestSQLite(t, WithClock(newStepClock().Now))
	ctx := context.Background()

	for i := 0; i < DefaultHistoryLimit+3; i++ {
		store.SaveQuery(ctx, fmt.Sprintf("q%d", i), "user-a")
	}

	history, err := store.GetHistory(ctx, "user-a", 0)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != DefaultHistoryLimit {
		t.Errorf("Expected %d records, got %d", DefaultHistoryLimit, len(history))
	}
}

// TestActiveResources verifies filtering, ordering and the row limit.
func TestActiveResources(t *testing.T) {
	store := newTestSQLite(t, WithClock(newStepClock().Now))
	ctx := context.Background()

	var inactiveID string
	for i := 0; i < 12; i++ {
		r, err := store.AddResource(ctx, Resource{
			Title:    fmt.Sprintf("Resource %02d", i),
			Type:     ResourceArticle,
			URL:      fmt.Sprintf("https://example.com/%d", i),
			Tags:     []string{"tag"},
			IsActive: true,
		})
		if err != nil {
			t.Fatalf("AddResource failed: %v", err)
		}
		if i == 1 {
			inactiveID = r.ID
		}
	}

	if err := store.SetResourceActive(ctx, inactiveID, false); err != nil {
		t.Fatalf("SetResourceActive failed: %v", err)
	}

	active, err := store.ActiveResources(ctx, 10)
	if err != nil {
		t.Fatalf("ActiveResources failed: %v", err)
	}
	if len(active) != 10 {
		t.Fatalf("Expected 10 resources, got %d", len(active))
	}
	if active[0].Title != "Resource 00" || active[1].Title != "Resource 02" {
		t.Errorf("Unexpected order: %s, %s", active[0].Title, active[1].Title)
	}
	for _, r := range active {
		if r.ID == inactiveID {
			t.Error("Inactive resource returned")
		}
	}

	all, err := store.ActiveResources(ctx, 0)
	if err != nil {
		t.Fatalf("ActiveResources failed: %v", err)
	}
	if len(all) != 11 {
		t.Errorf("Expected 11 active resources without limit, got %d", len(all))
	}

	listed, err := store.ListResources(ctx, true)
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	if len(listed) != 12 {
		t.Errorf("Expected 12 resources including inactive, got %d", len(listed))
	}
}

// TestResourceRoundTrip verifies optional fields survive storage.
func TestResourceRoundTrip(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	if _, err := store.AddResource(ctx, Resource{
		ID:          "res-1",
		Title:       "Recursion Basics",
		Type:        ResourceVideo,
		URL:         "https://example.com/recursion",
		Description: "Functions that call themselves",
		Tags:        []string{"recursion", "algorithms"},
		IsActive:    true,
	}); err != nil {
		t.Fatalf("AddResource failed: %v", err)
	}
	if _, err := store.AddResource(ctx, Resource{
		ID:       "res-2",
		Title:    "No Description",
		Type:     ResourceLink,
		URL:      "https://example.com/plain",
		IsActive: true,
	}); err != nil {
		t.Fatalf("AddResource failed: %v", err)
	}

	resources, err := store.ActiveResources(ctx, 10)
	if err != nil {
		t.Fatalf("ActiveResources failed: %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("Expected 2 resources, got %d", len(resources))
	}

	byID := map[string]Resource{}
	for _, r := range resources {
		byID[r.ID] = r
	}

	first := byID["res-1"]
	if first.Description != "Functions that call themselves" {
		t.Errorf("Unexpected description '%s'", first.Description)
	}
	if len(first.Tags) != 2 || first.Tags[0] != "recursion" || first.Tags[1] != "algorithms" {
		t.Errorf("Unexpected tags %v", first.Tags)
	}
	if first.Type != ResourceVideo {
		t.Errorf("Unexpected type '%s'", first.Type)
	}

	second := byID["res-2"]
	if second.Description != "" {
		t.Errorf("Expected empty description, got '%s'", second.Description)
	}
	if second.Tags == nil || len(second.Tags) != 0 {
		t.Errorf("Expected empty non-nil tags, got %#v", second.Tags)
	}
}

// TestAddResource_Invalid verifies required fields are enforced.
func TestAddResource_Invalid(t *testing.T) {
	store := newTestSQLite(t)

	_, err := store.AddResource(context.Background(), Resource{Type: ResourceArticle, URL: "https://example.com"})
	if !errors.Is(err, ErrInvalidResource) {
		t.Errorf("Expected ErrInvalidResource, got %v", err)
	}
}

// TestSetResourceActive_NotFound verifies unknown ids are reported.
func TestSetResourceActive_NotFound(t *testing.T) {
	store := newTestSQLite(t)

	err := store.SetResourceActive(context.Background(), "missing", true)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestGracefulDegradation verifies behavior when DB is unavailable.
func TestGracefulDegradation(t *testing.T) {
	// A regular file in the path makes directory creation fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create blocker file: %v", err)
	}

	store := NewSQLiteStore(filepath.Join(blocker, "sub", "test.db"))
	ctx := context.Background()

	if err := store.Init(ctx); err == nil {
		t.Fatal("Expected Init to fail")
	}

	if _, err := store.SaveQuery(ctx, "test", "user"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("SaveQuery should return ErrUnavailable on disabled storage, got: %v", err)
	}
	if _, err := store.GetHistory(ctx, "user", 5); !errors.Is(err, ErrUnavailable) {
		t.Errorf("GetHistory should return ErrUnavailable on disabled storage, got: %v", err)
	}
	if _, err := store.ActiveResources(ctx, 10); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ActiveResources should return ErrUnavailable on disabled storage, got: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close on disabled storage failed: %v", err)
	}
}

// TestClosedStore verifies operations after Close report ErrUnavailable.
func TestClosedStore(t *testing.T) {
	store := newTestSQLite(t)
	store.Close()

	if _, err := store.SaveQuery(context.Background(), "late", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable after Close, got %v", err)
	}
}

// TestTimeValueScan verifies the timestamp formats accepted from drivers.
func TestTimeValueScan(t *testing.T) {
	want := time.Date(2025, 3, 1, 9, 30, 15, 123456000, time.UTC)

	inputs := []any{
		want,
		want.Format(sqliteTimeLayout),
		[]byte(want.Format(time.RFC3339Nano)),
	}

	for _, in := range inputs {
		var got time.Time
		if err := (timeValue{&got}).Scan(in); err != nil {
			t.Errorf("Scan(%T) failed: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("Scan(%T) = %v, want %v", in, got, want)
		}
	}

	var got time.Time
	if err := (timeValue{&got}).Scan(42); err == nil {
		t.Error("Expected error scanning an int")
	}
}

// TestSQLiteTimeLayoutSortsLexically verifies text timestamps order like times.
func TestSQLiteTimeLayoutSortsLexically(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 30, 15, 0, time.UTC)
	earlier := base.Add(100 * time.Microsecond).Format(sqliteTimeLayout)
	later := base.Add(time.Millisecond).Format(sqliteTimeLayout)

	if !(earlier < later) {
		t.Errorf("Expected %q < %q", earlier, later)
	}
}
