// Package searches keeps the most-recent-first list of location searches.
package searches

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/weather-dashboard/internal/storage"
)

// DefaultMaxSearches is used when the manager is created with a non-positive limit.
const DefaultMaxSearches = 10

var (
	ErrNotFound      = errors.New("recent search not found")
	ErrEmptySearch   = errors.New("search location is required")
	ErrInvalidSearch = errors.New("invalid recent search")
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Search is the input to Add. Query defaults to Location.
type Search struct {
	Location    string
	Query       string
	Coordinates *Coordinates
}

type RecentSearch struct {
	ID          string       `json:"id"`
	Location    string       `json:"location"`
	Query       string       `json:"query"`
	Timestamp   time.Time    `json:"timestamp"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Manager owns the recentSearches key.
type Manager struct {
	store *storage.Store
	max   int
	mu    sync.Mutex
}

func NewManager(store *storage.Store, maxSearches int) *Manager {
	if maxSearches <= 0 {
		maxSearches = DefaultMaxSearches
	}
	return &Manager{store: store, max: maxSearches}
}

// List returns searches most recent first.
func (m *Manager) List(ctx context.Context) []RecentSearch {
	return storage.Load(ctx, m.store, storage.KeyRecentSearches, []RecentSearch{})
}

// Add records a search at the front of the list, dropping any earlier entry
// for the same location (ignoring case) and evicting the oldest beyond the cap.
func (m *Manager) Add(ctx context.Context, s Search) (RecentSearch, error) {
	location := strings.TrimSpace(s.Location)
	if location == "" {
		return RecentSearch{}, ErrEmptySearch
	}
	query := s.Query
	if query == "" {
		query = location
	}

	entry := RecentSearch{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Location:    location,
		Query:       query,
		Timestamp:   m.store.Now(),
		Coordinates: s.Coordinates,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.List(ctx)
	updated := make([]RecentSearch, 0, len(existing)+1)
	updated = append(updated, entry)
	for _, r := range existing {
		if !strings.EqualFold(r.Location, location) {
			updated = append(updated, r)
		}
	}
	if len(updated) > m.max {
		updated = updated[:m.max]
	}

	if err := m.store.Set(ctx, storage.KeyRecentSearches, updated); err != nil {
		return RecentSearch{}, fmt.Errorf("failed to add recent search: %w", err)
	}
	return entry, nil
}

// Remove deletes the search with the given id.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.List(ctx)
	updated := make([]RecentSearch, 0, len(existing))
	for _, r := range existing {
		if r.ID != id {
			updated = append(updated, r)
		}
	}
	if len(updated) == len(existing) {
		return ErrNotFound
	}

	if err := m.store.Set(ctx, storage.KeyRecentSearches, updated); err != nil {
		return fmt.Errorf("failed to remove recent search: %w", err)
	}
	return nil
}

// Clear empties the list.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, storage.KeyRecentSearches, []RecentSearch{}); err != nil {
		return fmt.Errorf("failed to clear recent searches: %w", err)
	}
	return nil
}

// Normalize applies the Add rules to an imported list: locations are
// required, ids unique, later entries for an already seen location (ignoring
// case) are dropped, and the list is cut to the cap.
func (m *Manager) Normalize(searches []RecentSearch) ([]RecentSearch, error) {
	normalized := make([]RecentSearch, 0, len(searches))
	ids := make(map[string]struct{}, len(searches))
	for _, r := range searches {
		r.Location = strings.TrimSpace(r.Location)
		if r.Location == "" {
			return nil, ErrEmptySearch
		}
		if r.ID == "" {
			return nil, fmt.Errorf("%w: %q has no id", ErrInvalidSearch, r.Location)
		}
		if _, ok := ids[r.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidSearch, r.ID)
		}
		ids[r.ID] = struct{}{}

		if slices.ContainsFunc(normalized, func(seen RecentSearch) bool {
			return strings.EqualFold(seen.Location, r.Location)
		}) {
			continue
		}
		if r.Query == "" {
			r.Query = r.Location
		}
		normalized = append(normalized, r)
	}
	if len(normalized) > m.max {
		normalized = normalized[:m.max]
	}
	return normalized, nil
}

// Replace overwrites the list, used by data import.
func (m *Manager) Replace(ctx context.Context, searches []RecentSearch) error {
	normalized, err := m.Normalize(searches)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, storage.KeyRecentSearches, normalized); err != nil {
		return fmt.Errorf("failed to replace recent searches: %w", err)
	}
	return nil
}
