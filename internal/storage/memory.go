package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Storage. Data is lost when the process exits.
type MemoryStore struct {
	mu        sync.RWMutex
	queries   []QueryRecord
	resources []Resource
	closed    bool

	now   func() time.Time
	newID func() string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SetClock overrides the clock used for created_at values.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Init is a no-op.
func (m *MemoryStore) Init(context.Context) error {
	return nil
}

// Close marks the store closed; later calls return ErrUnavailable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SaveQuery stores a query record.
func (m *MemoryStore) SaveQuery(ctx context.Context, text, userID string) (*QueryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrUnavailable
	}

	rec := QueryRecord{
		ID:        m.newID(),
		Text:      text,
		UserID:    userID,
		CreatedAt: m.now().UTC(),
	}
	m.queries = append(m.queries, rec)
	return &rec, nil
}

// GetHistory returns up to limit records of a user, newest first.
func (m *MemoryStore) GetHistory(ctx context.Context, userID string, limit int) ([]QueryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	history := make([]QueryRecord, 0, limit)
	// Newest insert wins ties on created_at.
	for i := len(m.queries) - 1; i >= 0; i-- {
		if m.queries[i].UserID == userID && userID != "" {
			history = append(history, m.queries[i])
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.After(history[j].CreatedAt)
	})

	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// ActiveResources returns active resources in insertion order.
func (m *MemoryStore) ActiveResources(ctx context.Context, limit int) ([]Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}

	out := []Resource{}
	for _, r := range m.resources {
		if !r.IsActive {
			continue
		}
		out = append(out, cloneResource(r))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// AddResource stores a resource, assigning ID and CreatedAt when unset.
func (m *MemoryStore) AddResource(ctx context.Context, r Resource) (*Resource, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrUnavailable
	}

	if r.ID == "" {
		r.ID = m.newID()
	}
	for _, existing := range m.resources {
		if existing.ID == r.ID {
			return nil, fmt.Errorf("failed to add resource: duplicate id %s", r.ID)
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now().UTC()
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}

	m.resources = append(m.resources, cloneResource(r))
	return &r, nil
}

// ListResources returns the catalog in insertion order.
func (m *MemoryStore) ListResources(ctx context.Context, includeInactive bool) ([]Resource, error) {
	if !includeInactive {
		return m.ActiveResources(ctx, 0)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrUnavailable
	}

	out := make([]Resource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, cloneResource(r))
	}
	return out, nil
}

// SetResourceActive toggles a resource.
func (m *MemoryStore) SetResourceActive(ctx context.Context, id string, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}

	for i := range m.resources {
		if m.resources[i].ID == id {
			m.resources[i].IsActive = active
			return nil
		}
	}
	return fmt.Errorf("resource %s: %w", id, ErrNotFound)
}

func cloneResource(r Resource) Resource {
	tags := make([]string, len(r.Tags))
	copy(tags, r.Tags)
	r.Tags = tags
	return r
}

var (
	_ Storage = (*MemoryStore)(nil)
	_ Storage = (*SQLStore)(nil)
)
