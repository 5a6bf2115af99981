// Package settings stores user preferences as overrides merged over defaults.
package settings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/smukkama/weather-dashboard/internal/storage"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidValue   = errors.New("invalid setting value")
)

type TempUnit string

const (
	Celsius    TempUnit = "celsius"
	Fahrenheit TempUnit = "fahrenheit"
)

func (u TempUnit) Valid() bool {
	switch u {
	case Celsius, Fahrenheit:
		return true
	}
	return false
}

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Setting keys accepted by Get and Set.
const (
	KeyTempUnit      = "tempUnit"
	KeyTheme         = "theme"
	KeyNotifications = "notifications"
	KeyAutoRefresh   = "autoRefresh"
	KeyAnimations    = "animations"
	KeyLanguage      = "language"
	KeyDailySummary  = "dailySummary"
)

// Keys lists every settable key in display order.
var Keys = []string{
	KeyTempUnit, KeyTheme, KeyNotifications, KeyAutoRefresh,
	KeyAnimations, KeyLanguage, KeyDailySummary,
}

// Settings is the fully materialized view: every field always has a value.
type Settings struct {
	TempUnit      TempUnit   `json:"tempUnit" yaml:"tempUnit"`
	Theme         Theme      `json:"theme" yaml:"theme"`
	Notifications bool       `json:"notifications" yaml:"notifications"`
	AutoRefresh   bool       `json:"autoRefresh" yaml:"autoRefresh"`
	Animations    bool       `json:"animations" yaml:"animations"`
	Language      string     `json:"language" yaml:"language"`
	DailySummary  bool       `json:"dailySummary" yaml:"dailySummary"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
}

// Patch holds overrides. Nil fields fall through to defaults.
type Patch struct {
	TempUnit      *TempUnit  `json:"tempUnit,omitempty" yaml:"tempUnit,omitempty"`
	Theme         *Theme     `json:"theme,omitempty" yaml:"theme,omitempty"`
	Notifications *bool      `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	AutoRefresh   *bool      `json:"autoRefresh,omitempty" yaml:"autoRefresh,omitempty"`
	Animations    *bool      `json:"animations,omitempty" yaml:"animations,omitempty"`
	Language      *string    `json:"language,omitempty" yaml:"language,omitempty"`
	DailySummary  *bool      `json:"dailySummary,omitempty" yaml:"dailySummary,omitempty"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
}

// Defaults returns the settings used when nothing is stored.
func Defaults() Settings {
	return Settings{
		TempUnit:      Celsius,
		Theme:         ThemeLight,
		Notifications: true,
		AutoRefresh:   true,
		Animations:    true,
		Language:      "en",
		DailySummary:  false,
	}
}

// Validate rejects enum values outside their closed sets.
func (p Patch) Validate() error {
	if p.TempUnit != nil && !p.TempUnit.Valid() {
		return fmt.Errorf("%w: tempUnit %q", ErrInvalidValue, *p.TempUnit)
	}
	if p.Theme != nil && !p.Theme.Valid() {
		return fmt.Errorf("%w: theme %q", ErrInvalidValue, *p.Theme)
	}
	if p.Language != nil && *p.Language == "" {
		return fmt.Errorf("%w: language must not be empty", ErrInvalidValue)
	}
	return nil
}

// Merge overlays the non-nil fields of o onto p.
func (p Patch) Merge(o Patch) Patch {
	if o.TempUnit != nil {
		p.TempUnit = o.TempUnit
	}
	if o.Theme != nil {
		p.Theme = o.Theme
	}
	if o.Notifications != nil {
		p.Notifications = o.Notifications
	}
	if o.AutoRefresh != nil {
		p.AutoRefresh = o.AutoRefresh
	}
	if o.Animations != nil {
		p.Animations = o.Animations
	}
	if o.Language != nil {
		p.Language = o.Language
	}
	if o.DailySummary != nil {
		p.DailySummary = o.DailySummary
	}
	if o.LastUpdated != nil {
		p.LastUpdated = o.LastUpdated
	}
	return p
}

// apply overlays p onto s. Stored values that are no longer valid are ignored.
func (p Patch) apply(s Settings) Settings {
	if p.TempUnit != nil && p.TempUnit.Valid() {
		s.TempUnit = *p.TempUnit
	}
	if p.Theme != nil && p.Theme.Valid() {
		s.Theme = *p.Theme
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.AutoRefresh != nil {
		s.AutoRefresh = *p.AutoRefresh
	}
	if p.Animations != nil {
		s.Animations = *p.Animations
	}
	if p.Language != nil && *p.Language != "" {
		s.Language = *p.Language
	}
	if p.DailySummary != nil {
		s.DailySummary = *p.DailySummary
	}
	if p.LastUpdated != nil {
		s.LastUpdated = p.LastUpdated
	}
	return s
}

// Manager owns the userSettings key.
type Manager struct {
	store *storage.Store
	mu    sync.Mutex
}

func NewManager(store *storage.Store) *Manager {
	return &Manager{store: store}
}

func (m *Manager) overrides(ctx context.Context) Patch {
	return storage.Load(ctx, m.store, storage.KeyUserSettings, Patch{})
}

// GetAll returns defaults merged with stored overrides.
func (m *Manager) GetAll(ctx context.Context) Settings {
	return m.overrides(ctx).apply(Defaults())
}

// Overrides returns only what the user has changed.
func (m *Manager) Overrides(ctx context.Context) Patch {
	return m.overrides(ctx)
}

// Get returns the effective value of one setting.
func (m *Manager) Get(ctx context.Context, key string) (any, error) {
	s := m.GetAll(ctx)
	switch key {
	case KeyTempUnit:
		return s.TempUnit, nil
	case KeyTheme:
		return s.Theme, nil
	case KeyNotifications:
		return s.Notifications, nil
	case KeyAutoRefresh:
		return s.AutoRefresh, nil
	case KeyAnimations:
		return s.Animations, nil
	case KeyLanguage:
		return s.Language, nil
	case KeyDailySummary:
		return s.DailySummary, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
}

// Set changes one setting. Enum settings accept their type or a string;
// boolean settings accept a bool or a string understood by strconv.ParseBool.
func (m *Manager) Set(ctx context.Context, key string, value any) error {
	patch, err := patchFor(key, value)
	if err != nil {
		return err
	}
	return m.Update(ctx, patch)
}

// Update merges patch into the stored overrides and refreshes lastUpdated.
func (m *Manager) Update(ctx context.Context, patch Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.store.Now()
	updated := m.overrides(ctx).Merge(patch)
	updated.LastUpdated = &now

	if err := m.store.Set(ctx, storage.KeyUserSettings, updated); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Replace swaps the stored overrides for patch in a single write. An
// imported lastUpdated is kept.
func (m *Manager) Replace(ctx context.Context, patch Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if patch.LastUpdated == nil {
		now := m.store.Now()
		patch.LastUpdated = &now
	}
	if err := m.store.Set(ctx, storage.KeyUserSettings, patch); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}

// Reset deletes every override.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Remove(ctx, storage.KeyUserSettings); err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}
	return nil
}

func patchFor(key string, value any) (Patch, error) {
	var p Patch
	switch key {
	case KeyTempUnit:
		s, err := asString(key, value)
		if err != nil {
			return p, err
		}
		u := TempUnit(s)
		p.TempUnit = &u
	case KeyTheme:
		s, err := asString(key, value)
		if err != nil {
			return p, err
		}
		t := Theme(s)
		p.Theme = &t
	case KeyLanguage:
		s, err := asString(key, value)
		if err != nil {
			return p, err
		}
		p.Language = &s
	case KeyNotifications, KeyAutoRefresh, KeyAnimations, KeyDailySummary:
		b, err := asBool(key, value)
		if err != nil {
			return p, err
		}
		switch key {
		case KeyNotifications:
			p.Notifications = &b
		case KeyAutoRefresh:
			p.AutoRefresh = &b
		case KeyAnimations:
			p.Animations = &b
		case KeyDailySummary:
			p.DailySummary = &b
		}
	default:
		return p, fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	return p, nil
}

func asString(key string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case TempUnit:
		return string(v), nil
	case Theme:
		return string(v), nil
	}
	return "", fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidValue, key, value)
}

func asBool(key string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: %s expects true or false, got %q", ErrInvalidValue, key, v)
		}
		return b, nil
	}
	return false, fmt.Errorf("%w: %s expects a bool, got %T", ErrInvalidValue, key, value)
}

// ConvertTemperature converts v between units.
func ConvertTemperature(v float64, from, to TempUnit) float64 {
	switch {
	case from == to:
		return v
	case from == Celsius && to == Fahrenheit:
		return v*9/5 + 32
	case from == Fahrenheit && to == Celsius:
		return (v - 32) * 5 / 9
	}
	return v
}

// FormatTemperature renders a rounded temperature with its unit symbol.
func FormatTemperature(v float64, unit TempUnit) string {
	symbol := "°C"
	if unit == Fahrenheit {
		symbol = "°F"
	}
	return fmt.Sprintf("%d%s", int(math.Round(v)), symbol)
}
