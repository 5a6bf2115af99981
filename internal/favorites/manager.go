// Package favorites manages the user's favorite locations.
package favorites

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/storage"
	"github.com/smukkama/weather-dashboard/internal/weather"
	"github.com/smukkama/weather-dashboard/pkg/logging"
)

// DefaultMaxFavorites is used when the manager is created with a non-positive limit.
const DefaultMaxFavorites = 10

var validate = validator.New()

// Gate authorizes identity-bound mutations. RequireIdentity returns the
// current user id, or an error when nobody is signed in.
type Gate interface {
	RequireIdentity() (string, error)
}

// Location is the input to Add.
type Location struct {
	Name    string  `json:"name" validate:"required"`
	Country string  `json:"country" validate:"required"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon     float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// WeatherSummary is the trimmed reading attached to a favorite on refresh.
type WeatherSummary struct {
	Temp      *float64 `json:"temp,omitempty"`
	Condition string   `json:"condition"`
	Icon      string   `json:"icon"`
}

// FavoriteLocation is a stored favorite.
type FavoriteLocation struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Country           string          `json:"country"`
	State             string          `json:"state,omitempty"`
	Lat               float64         `json:"lat"`
	Lon               float64         `json:"lon"`
	AddedAt           time.Time       `json:"addedAt"`
	IsDefault         bool            `json:"isDefault"`
	CurrentWeather    *WeatherSummary `json:"currentWeather,omitempty"`
	LastWeatherUpdate *time.Time      `json:"lastWeatherUpdate,omitempty"`
}

func sameLocation(name, country string, f FavoriteLocation) bool {
	return strings.EqualFold(f.Name, name) && f.Country == country
}

// Manager owns the favorites key. Each operation reads the collection fresh,
// validates, and writes the whole collection back at most once.
type Manager struct {
	store  *storage.Store
	gate   Gate
	max    int
	logger *zap.Logger
	mu     sync.Mutex
}

// NewManager creates a favorites manager. A nil gate leaves mutations open.
func NewManager(store *storage.Store, gate Gate, maxFavorites int, logger *zap.Logger) *Manager {
	if maxFavorites <= 0 {
		maxFavorites = DefaultMaxFavorites
	}
	return &Manager{
		store:  store,
		gate:   gate,
		max:    maxFavorites,
		logger: logging.OrNop(logger),
	}
}

// Max returns the configured capacity.
func (m *Manager) Max() int {
	return m.max
}

func (m *Manager) authorize() error {
	if m.gate == nil {
		return nil
	}
	_, err := m.gate.RequireIdentity()
	return err
}

func (m *Manager) load(ctx context.Context) []FavoriteLocation {
	return storage.Load(ctx, m.store, storage.KeyFavorites, []FavoriteLocation{})
}

// List returns every favorite in insertion order.
func (m *Manager) List(ctx context.Context) []FavoriteLocation {
	return m.load(ctx)
}

// Get returns the favorite with the given id.
func (m *Manager) Get(ctx context.Context, id string) (FavoriteLocation, error) {
	for _, f := range m.load(ctx) {
		if f.ID == id {
			return f, nil
		}
	}
	return FavoriteLocation{}, ErrNotFound
}

// Default returns the default favorite, falling back to the first one.
func (m *Manager) Default(ctx context.Context) (FavoriteLocation, error) {
	favorites := m.load(ctx)
	if len(favorites) == 0 {
		return FavoriteLocation{}, ErrNotFound
	}
	for _, f := range favorites {
		if f.IsDefault {
			return f, nil
		}
	}
	return favorites[0], nil
}

// Exists reports whether a favorite with the same name (ignoring case) and
// country is already stored.
func (m *Manager) Exists(ctx context.Context, loc Location) bool {
	for _, f := range m.load(ctx) {
		if sameLocation(loc.Name, loc.Country, f) {
			return true
		}
	}
	return false
}

// Add stores a new favorite. The first favorite becomes the default.
func (m *Manager) Add(ctx context.Context, loc Location) (FavoriteLocation, error) {
	if err := m.authorize(); err != nil {
		return FavoriteLocation{}, err
	}

	loc.Name = strings.TrimSpace(loc.Name)
	loc.Country = strings.TrimSpace(loc.Country)
	if err := validate.Struct(loc); err != nil {
		return FavoriteLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	favorites := m.load(ctx)
	for _, f := range favorites {
		if sameLocation(loc.Name, loc.Country, f) {
			return FavoriteLocation{}, ErrDuplicateLocation
		}
	}
	if len(favorites) >= m.max {
		return FavoriteLocation{}, ErrLimitExceeded
	}

	favorite := FavoriteLocation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      loc.Name,
		Country:   loc.Country,
		State:     loc.State,
		Lat:       loc.Lat,
		Lon:       loc.Lon,
		AddedAt:   m.store.Now(),
		IsDefault: len(favorites) == 0,
	}

	if err := m.store.Set(ctx, storage.KeyFavorites, append(favorites, favorite)); err != nil {
		return FavoriteLocation{}, fmt.Errorf("failed to add favorite: %w", err)
	}

	m.logger.Info("Favorite added", zap.String("id", favorite.ID), zap.String("name", favorite.Name))
	return favorite, nil
}

// Remove deletes a favorite. When it was the default, the first remaining
// favorite in insertion order is promoted.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if err := m.authorize(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	favorites := m.load(ctx)
	idx := indexOf(favorites, id)
	if idx < 0 {
		return ErrNotFound
	}

	removed := favorites[idx]
	remaining := append(favorites[:idx:idx], favorites[idx+1:]...)
	if removed.IsDefault && len(remaining) > 0 {
		remaining[0].IsDefault = true
	}

	if err := m.store.Set(ctx, storage.KeyFavorites, remaining); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// SetDefault makes id the only default favorite. An unknown id returns
// ErrNotFound and leaves the collection unchanged.
func (m *Manager) SetDefault(ctx context.Context, id string) error {
	if err := m.authorize(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	favorites := m.load(ctx)
	if indexOf(favorites, id) < 0 {
		return ErrNotFound
	}
	for i := range favorites {
		favorites[i].IsDefault = favorites[i].ID == id
	}

	if err := m.store.Set(ctx, storage.KeyFavorites, favorites); err != nil {
		return fmt.Errorf("failed to set default favorite: %w", err)
	}
	return nil
}

// UpdateWeatherData attaches a trimmed summary of snapshot to the favorite.
func (m *Manager) UpdateWeatherData(ctx context.Context, id string, snapshot *weather.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	favorites := m.load(ctx)
	idx := indexOf(favorites, id)
	if idx < 0 {
		return ErrNotFound
	}

	now := m.store.Now()
	favorites[idx].CurrentWeather = &WeatherSummary{
		Temp:      snapshot.Current.Temp,
		Condition: snapshot.Current.Condition,
		Icon:      snapshot.Current.Icon,
	}
	favorites[idx].LastWeatherUpdate = &now

	if err := m.store.Set(ctx, storage.KeyFavorites, favorites); err != nil {
		return fmt.Errorf("failed to update weather for favorite %s: %w", id, err)
	}
	return nil
}

// Normalize checks an imported collection against the rules Add enforces and
// returns a copy with exactly one default. Nothing is written.
func (m *Manager) Normalize(favorites []FavoriteLocation) ([]FavoriteLocation, error) {
	if len(favorites) > m.max {
		return nil, ErrLimitExceeded
	}

	normalized := make([]FavoriteLocation, 0, len(favorites))
	ids := make(map[string]struct{}, len(favorites))
	for _, f := range favorites {
		f.Name = strings.TrimSpace(f.Name)
		f.Country = strings.TrimSpace(f.Country)
		loc := Location{Name: f.Name, Country: f.Country, State: f.State, Lat: f.Lat, Lon: f.Lon}
		if err := validate.Struct(loc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
		}
		if f.ID == "" {
			return nil, fmt.Errorf("%w: favorite %q has no id", ErrInvalidLocation, f.Name)
		}
		if _, ok := ids[f.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidLocation, f.ID)
		}
		ids[f.ID] = struct{}{}
		for _, seen := range normalized {
			if sameLocation(f.Name, f.Country, seen) {
				return nil, ErrDuplicateLocation
			}
		}
		normalized = append(normalized, f)
	}

	seenDefault := false
	for i := range normalized {
		if normalized[i].IsDefault && !seenDefault {
			seenDefault = true
			continue
		}
		normalized[i].IsDefault = false
	}
	if !seenDefault && len(normalized) > 0 {
		normalized[0].IsDefault = true
	}
	return normalized, nil
}

// Replace overwrites the whole collection, used by data import. Every entry
// is checked before anything is written.
func (m *Manager) Replace(ctx context.Context, favorites []FavoriteLocation) error {
	if err := m.authorize(); err != nil {
		return err
	}

	normalized, err := m.Normalize(favorites)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, storage.KeyFavorites, normalized); err != nil {
		return fmt.Errorf("failed to replace favorites: %w", err)
	}
	return nil
}

func indexOf(favorites []FavoriteLocation, id string) int {
	for i, f := range favorites {
		if f.ID == id {
			return i
		}
	}
	return -1
}

var (
	ErrDuplicateLocation = &FavoriteError{"location already in favorites"}
	ErrLimitExceeded     = &FavoriteError{"maximum favorite locations reached"}
	ErrNotFound          = &FavoriteError{"favorite not found"}
	ErrInvalidLocation   = &FavoriteError{"invalid location"}
)

// FavoriteError represents a favorites validation failure
type FavoriteError struct {
	msg string
}

func (e *FavoriteError) Error() string {
	return e.msg
}
