package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/weather-dashboard/pkg/metrics"
)

type place struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Lat     float64   `json:"lat"`
	AddedAt time.Time `json:"addedAt"`
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestStore(b Backend, opts ...Option) *Store {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(b, opts...)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryBackend(0))

	want := []place{
		{ID: "1", Name: "Delhi", Lat: 28.6139, AddedAt: fixedNow},
		{ID: "2", Name: "Mumbai", Lat: 19.076, AddedAt: fixedNow.Add(time.Minute)},
	}
	require.NoError(t, s.Set(ctx, KeyFavorites, want))

	got := Load(ctx, s, KeyFavorites, []place(nil))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_WritesEnvelope(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)
	s := newTestStore(b)

	require.NoError(t, s.Set(ctx, KeyUserSettings, map[string]string{"theme": "dark"}))

	raw, err := b.Read(ctx, "weather:userSettings")
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, CurrentVersion, env.Version)
	assert.Equal(t, fixedNow.UnixMilli(), env.Timestamp)
	assert.JSONEq(t, `{"theme":"dark"}`, string(env.Data))
}

func TestStore_GetFallsBackToDefault(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{{{`},
		{name: "null data", raw: `{"data":null,"timestamp":1,"version":"1.0"}`},
		{name: "missing data", raw: `{"timestamp":1,"version":"1.0"}`},
		{name: "wrong shape", raw: `{"data":"a string","timestamp":1,"version":"1.0"}`},
		{name: "newer major version", raw: `{"data":[{"id":"x"}],"timestamp":1,"version":"2.0"}`},
		{name: "garbage version", raw: `{"data":[{"id":"x"}],"timestamp":1,"version":"beta"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewMemoryBackend(0)
			s := newTestStore(b)
			require.NoError(t, b.Write(ctx, "weather:favorites", []byte(tt.raw)))

			def := []place{{ID: "default"}}
			got := Load(ctx, s, KeyFavorites, def)
			assert.Equal(t, def, got)
		})
	}
}

func TestStore_GetLeavesDestinationOnFailure(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)
	s := newTestStore(b)
	require.NoError(t, b.Write(ctx, "weather:profile", []byte(`{"data":{"id":7},"version":"1.0"}`)))

	dst := place{ID: "keep", Name: "untouched"}
	assert.False(t, s.Get(ctx, KeyProfile, &dst))
	assert.Equal(t, place{ID: "keep", Name: "untouched"}, dst)

	assert.False(t, s.Get(ctx, KeyProfile, dst), "non-pointer destination")
}

func TestStore_LegacyEnvelopeWithoutVersion(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)
	s := newTestStore(b)
	require.NoError(t, b.Write(ctx, "weather:favorites", []byte(`{"data":[{"id":"a","name":"Pune"}],"timestamp":5}`)))

	got := Load(ctx, s, KeyFavorites, []place(nil))
	require.Len(t, got, 1)
	assert.Equal(t, "Pune", got[0].Name)
}

func TestStore_AppliesMigration(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)

	// 0.9 stored a bare list of names.
	s := newTestStore(b, WithMigration("0.9", func(data json.RawMessage) (json.RawMessage, error) {
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return nil, err
		}
		places := make([]place, len(names))
		for i, n := range names {
			places[i] = place{ID: n, Name: n}
		}
		return json.Marshal(places)
	}))
	require.NoError(t, b.Write(ctx, "weather:favorites", []byte(`{"data":["Jaipur","Surat"],"version":"0.9"}`)))

	got := Load(ctx, s, KeyFavorites, []place(nil))
	assert.Equal(t, []place{{ID: "Jaipur", Name: "Jaipur"}, {ID: "Surat", Name: "Surat"}}, got)
}

func TestStore_SetFailureKeepsPriorValue(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector("test")
	s := newTestStore(NewMemoryBackend(200), WithMetrics(collector))

	require.NoError(t, s.Set(ctx, KeyFavorites, []place{{ID: "1"}}))

	big := make([]place, 50)
	err := s.Set(ctx, KeyFavorites, big)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	got := Load(ctx, s, KeyFavorites, []place(nil))
	assert.Len(t, got, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.StorageOpsTotal.WithLabelValues("set", "error")))
}

func TestStore_SetUnmarshalableValue(t *testing.T) {
	s := newTestStore(NewMemoryBackend(0))

	err := s.Set(context.Background(), KeyAlerts, map[string]any{"bad": make(chan int)})
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestStore_ClearOnlyOwnNamespace(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)
	s := newTestStore(b)
	other := newTestStore(b, WithNamespace("other"))

	require.NoError(t, s.Set(ctx, KeyFavorites, []place{}))
	require.NoError(t, s.Set(ctx, KeyAlerts, []place{}))
	require.NoError(t, other.Set(ctx, KeyFavorites, []place{{ID: "x"}}))
	require.NoError(t, b.Write(ctx, "unrelated", []byte("x")))

	require.NoError(t, s.Clear(ctx))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	otherKeys, err := other.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyFavorites}, otherKeys)

	_, err = b.Read(ctx, "unrelated")
	assert.NoError(t, err)
}

func TestStore_KeysAndSize(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(NewMemoryBackend(0))

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, s.Set(ctx, KeyRecentSearches, []place{}))
	require.NoError(t, s.Set(ctx, KeyAlerts, []place{}))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyAlerts, KeyRecentSearches}, keys)

	size, err = s.Size(ctx)
	require.NoError(t, err)
	assert.Positive(t, size)
}

func TestStore_MigrateLegacyKeys(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)
	s := newTestStore(b)

	legacy := `{"data":[{"id":"old","name":"Chennai"}],"timestamp":1,"version":"1.0"}`
	require.NoError(t, b.Write(ctx, "weather_favorites", []byte(legacy)))
	require.NoError(t, b.Write(ctx, "weather_recent", []byte(`{"data":[],"version":"1.0"}`)))
	// Current settings already exist, so the legacy copy must not clobber them.
	require.NoError(t, s.Set(ctx, KeyUserSettings, map[string]string{"theme": "dark"}))
	require.NoError(t, b.Write(ctx, "weather_settings", []byte(`{"data":{"theme":"light"}}`)))

	moved, err := s.MigrateLegacyKeys(ctx, LegacyKeys)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	favorites := Load(ctx, s, KeyFavorites, []place(nil))
	require.Len(t, favorites, 1)
	assert.Equal(t, "Chennai", favorites[0].Name)

	_, err = b.Read(ctx, "weather_favorites")
	assert.ErrorIs(t, err, ErrNotExist)

	settings := Load(ctx, s, KeyUserSettings, map[string]string(nil))
	assert.Equal(t, "dark", settings["theme"])

	// Running again is a no-op.
	moved, err = s.MigrateLegacyKeys(ctx, LegacyKeys)
	require.NoError(t, err)
	assert.Zero(t, moved)
}
