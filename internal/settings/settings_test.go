package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/weather-dashboard/internal/storage"
)

var testNow = time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)

func newTestManager() (*Manager, *storage.Store) {
	store := storage.New(storage.NewMemoryBackend(0), storage.WithClock(func() time.Time { return testNow }))
	return NewManager(store), store
}

func TestManager_GetAllDefaults(t *testing.T) {
	m, _ := newTestManager()
	assert.Equal(t, Defaults(), m.GetAll(context.Background()))
}

func TestManager_StoredOverrideWins(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager()

	// Overrides written by an older release carry only the changed field.
	require.NoError(t, store.Set(ctx, storage.KeyUserSettings, map[string]string{"tempUnit": "fahrenheit"}))

	got := m.GetAll(ctx)
	want := Defaults()
	want.TempUnit = Fahrenheit
	assert.Equal(t, want, got)
}

func TestManager_InvalidStoredValueFallsBack(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager()

	require.NoError(t, store.Set(ctx, storage.KeyUserSettings, map[string]any{"theme": "neon", "animations": false}))

	got := m.GetAll(ctx)
	assert.Equal(t, ThemeLight, got.Theme)
	assert.False(t, got.Animations)
}

func TestManager_SetAndGet(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	require.NoError(t, m.Set(ctx, KeyTheme, ThemeDark))
	require.NoError(t, m.Set(ctx, KeyTempUnit, "fahrenheit"))
	require.NoError(t, m.Set(ctx, KeyDailySummary, "true"))
	require.NoError(t, m.Set(ctx, KeyNotifications, false))

	theme, err := m.Get(ctx, KeyTheme)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	s := m.GetAll(ctx)
	assert.Equal(t, Fahrenheit, s.TempUnit)
	assert.True(t, s.DailySummary)
	assert.False(t, s.Notifications)
	assert.True(t, s.AutoRefresh)
	require.NotNil(t, s.LastUpdated)
	assert.Equal(t, testNow, *s.LastUpdated)
}

func TestManager_SetRejects(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	assert.ErrorIs(t, m.Set(ctx, "fontSize", 12), ErrUnknownSetting)
	assert.ErrorIs(t, m.Set(ctx, KeyTempUnit, "kelvin"), ErrInvalidValue)
	assert.ErrorIs(t, m.Set(ctx, KeyTheme, 3), ErrInvalidValue)
	assert.ErrorIs(t, m.Set(ctx, KeyAutoRefresh, "sometimes"), ErrInvalidValue)
	assert.ErrorIs(t, m.Set(ctx, KeyLanguage, ""), ErrInvalidValue)

	_, err := m.Get(ctx, "fontSize")
	assert.ErrorIs(t, err, ErrUnknownSetting)

	assert.Nil(t, m.GetAll(ctx).LastUpdated, "rejected writes must not persist")
}

func TestManager_UpdateMerges(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	dark := ThemeDark
	require.NoError(t, m.Update(ctx, Patch{Theme: &dark}))

	lang := "hi"
	require.NoError(t, m.Update(ctx, Patch{Language: &lang}))

	s := m.GetAll(ctx)
	assert.Equal(t, ThemeDark, s.Theme)
	assert.Equal(t, "hi", s.Language)
	assert.Equal(t, Celsius, s.TempUnit)
}

func TestManager_Reset(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	require.NoError(t, m.Set(ctx, KeyTempUnit, Fahrenheit))
	require.NoError(t, m.Reset(ctx))

	assert.Equal(t, Defaults(), m.GetAll(ctx))
	assert.Equal(t, Patch{}, m.Overrides(ctx))
}

type failingBackend struct {
	*storage.MemoryBackend
	fail bool
}

func (b *failingBackend) Write(ctx context.Context, key string, value []byte) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Write(ctx, key, value)
}

func TestManager_Replace(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()
	require.NoError(t, m.Set(ctx, KeyTheme, ThemeDark))

	unit := Fahrenheit
	require.NoError(t, m.Replace(ctx, Patch{TempUnit: &unit}))

	got := m.GetAll(ctx)
	assert.Equal(t, Fahrenheit, got.TempUnit)
	assert.Equal(t, ThemeLight, got.Theme)
	require.NotNil(t, got.LastUpdated)
	assert.Equal(t, testNow, *got.LastUpdated)

	theme := Theme("neon")
	assert.ErrorIs(t, m.Replace(ctx, Patch{Theme: &theme}), ErrInvalidValue)
	assert.Equal(t, Fahrenheit, m.GetAll(ctx).TempUnit)
}

func TestManager_ReplaceWriteFailureKeepsOverrides(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{MemoryBackend: storage.NewMemoryBackend(0)}
	m := NewManager(storage.New(backend, storage.WithClock(func() time.Time { return testNow })))
	require.NoError(t, m.Set(ctx, KeyTheme, ThemeDark))

	backend.fail = true
	unit := Fahrenheit
	err := m.Replace(ctx, Patch{TempUnit: &unit})
	assert.ErrorIs(t, err, storage.ErrWriteFailed)

	got := m.GetAll(ctx)
	assert.Equal(t, ThemeDark, got.Theme)
	assert.Equal(t, Celsius, got.TempUnit)
}

func TestConvertTemperature(t *testing.T) {
	assert.Equal(t, 212.0, ConvertTemperature(100, Celsius, Fahrenheit))
	assert.InDelta(t, 0.0, ConvertTemperature(32, Fahrenheit, Celsius), 1e-9)
	assert.Equal(t, 21.5, ConvertTemperature(21.5, Celsius, Celsius))
}

func TestFormatTemperature(t *testing.T) {
	assert.Equal(t, "32°C", FormatTemperature(31.6, Celsius))
	assert.Equal(t, "-3°F", FormatTemperature(-2.6, Fahrenheit))
}
