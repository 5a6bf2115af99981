package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smukkama/weather-dashboard/internal/alerts"
	"github.com/smukkama/weather-dashboard/internal/favorites"
	"github.com/smukkama/weather-dashboard/internal/searches"
	"github.com/smukkama/weather-dashboard/internal/session"
	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/internal/storage"
	"github.com/smukkama/weather-dashboard/internal/weather"
	"github.com/smukkama/weather-dashboard/pkg/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu       sync.Mutex
	byCity   map[string]*weather.Snapshot
	byCoords map[string]*weather.Snapshot
	calls    int
}

func coordKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

func (p *fakeProvider) CurrentWeather(_ context.Context, city string) (*weather.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if s, ok := p.byCity[city]; ok {
		return s, nil
	}
	return nil, weather.ErrNotFound
}

func (p *fakeProvider) WeatherByCoords(_ context.Context, lat, lon float64) (*weather.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if s, ok := p.byCoords[coordKey(lat, lon)]; ok {
		return s, nil
	}
	return nil, weather.ErrNetwork
}

func (p *fakeProvider) Forecast(context.Context, string) (*weather.Forecast, error) {
	return &weather.Forecast{}, nil
}

func (p *fakeProvider) SearchCities(_ context.Context, query string) ([]weather.City, error) {
	return weather.FilterCities(weather.PopularCities, query), nil
}

func snapshot(name string, lat, lon, temp float64) *weather.Snapshot {
	return &weather.Snapshot{
		Location: weather.Location{Name: name, Country: "IN", Lat: lat, Lon: lon},
		Current: weather.Reading{
			Temp:      weather.Float(temp),
			Humidity:  weather.Float(60),
			WindSpeed: weather.Float(12),
			Condition: "Clear",
			Icon:      "01d",
		},
	}
}

type fixture struct {
	store    *storage.Store
	provider *fakeProvider
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.New(storage.NewMemoryBackend(0), storage.WithClock(func() time.Time { return testNow }))
	provider := &fakeProvider{
		byCity:   map[string]*weather.Snapshot{},
		byCoords: map[string]*weather.Snapshot{},
	}

	prefs := settings.NewManager(store)
	machine := session.NewMachine(session.NewProfiles(store), session.NewTokens(store, time.Hour), prefs, session.MockAuthenticator{}, nil)
	alertManager := alerts.NewManager(store, machine, nil)

	svc := NewService(Deps{
		Store:     store,
		Provider:  provider,
		Favorites: favorites.NewManager(store, machine, 0, nil),
		Searches:  searches.NewManager(store, 0),
		Settings:  prefs,
		Alerts:    alertManager,
		Evaluator: alerts.NewEvaluator(alertManager, nil, nil, nil),
		Session:   machine,
	}, 2, nil)

	_, err := machine.SignIn(context.Background(), "asha@example.com")
	require.NoError(t, err)

	return &fixture{store: store, provider: provider, service: svc}
}

func (f *fixture) addFavorite(t *testing.T, name string, lat, lon, temp float64) favorites.FavoriteLocation {
	t.Helper()
	fav, err := f.service.Favorites().Add(context.Background(), favorites.Location{Name: name, Country: "IN", Lat: lat, Lon: lon})
	require.NoError(t, err)
	if temp != 0 {
		f.provider.byCoords[coordKey(lat, lon)] = snapshot(name, lat, lon, temp)
	}
	return fav
}

func TestService_SearchRecordsRecentSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.provider.byCity["pune"] = snapshot("Pune", 18.5204, 73.8567, 29)

	snap, err := f.service.Search(ctx, "pune")
	require.NoError(t, err)
	assert.Equal(t, "Pune", snap.Location.Name)

	recent := f.service.Searches().List(ctx)
	require.Len(t, recent, 1)
	assert.Equal(t, "Pune, IN", recent[0].Location)
	assert.Equal(t, "pune", recent[0].Query)
	require.NotNil(t, recent[0].Coordinates)
	assert.Equal(t, 18.5204, recent[0].Coordinates.Lat)
}

func TestService_SearchNotFoundRecordsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Search(ctx, "atlantis")
	assert.ErrorIs(t, err, weather.ErrNotFound)
	assert.Empty(t, f.service.Searches().List(ctx))
}

func TestService_NoProvider(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.service.provider = nil

	_, err := f.service.Search(ctx, "pune")
	assert.ErrorIs(t, err, ErrNoProvider)
	_, err = f.service.RefreshFavorites(ctx)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestService_RefreshFavorites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	delhi := f.addFavorite(t, "Delhi", 28.6139, 77.209, 34)
	pune := f.addFavorite(t, "Pune", 18.5204, 73.8567, 26)
	f.addFavorite(t, "Shimla", 31.1048, 77.1734, 0)

	_, err := f.service.Alerts().Add(ctx, alerts.Spec{
		LocationID: delhi.ID, LocationName: "Delhi", AlertType: "temperature", Condition: "above", Threshold: "32",
	})
	require.NoError(t, err)
	_, err = f.service.Alerts().Add(ctx, alerts.Spec{
		LocationID: pune.ID, LocationName: "Pune", AlertType: "temperature", Condition: "above", Threshold: "32",
	})
	require.NoError(t, err)

	result, err := f.service.RefreshFavorites(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Refreshed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Triggered, 1)
	assert.Equal(t, "Delhi: temperature is above 32°C (Current: 34°C)", result.Triggered[0].Message)

	got, err := f.service.Favorites().Get(ctx, pune.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentWeather)
	assert.Equal(t, 26.0, *got.CurrentWeather.Temp)
	require.NotNil(t, got.LastWeatherUpdate)
	assert.Equal(t, testNow, *got.LastWeatherUpdate)

	// the Pune alert only sees Pune's reading
	for _, a := range f.service.Alerts().List(ctx) {
		if a.LocationID == pune.ID {
			assert.Zero(t, a.TriggerCount)
		} else {
			assert.Equal(t, 1, a.TriggerCount)
		}
	}
}

func TestService_RefreshFavoritesCancelled(t *testing.T) {
	f := newFixture(t)
	f.addFavorite(t, "Delhi", 28.6139, 77.209, 34)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.RefreshFavorites(ctx)
	assert.True(t, err == nil || errors.Is(err, context.Canceled))
}

func TestService_Info(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addFavorite(t, "Delhi", 28.6139, 77.209, 0)
	_, err := f.service.Searches().Add(ctx, searches.Search{Location: "Delhi"})
	require.NoError(t, err)

	info, err := f.service.Info(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, info.Favorites)
	assert.Equal(t, 1, info.RecentSearches)
	assert.Zero(t, info.Alerts)
	assert.True(t, info.HasProfile)
	assert.True(t, info.HasAuth)
	assert.Equal(t, 4, info.TotalKeys)
	assert.Positive(t, info.SizeBytes)
	assert.Equal(t, "0 KB", Info{SizeBytes: 100}.StorageSize())
	assert.Equal(t, "2 KB", Info{SizeBytes: 2048}.StorageSize())
}

func TestService_ResetData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addFavorite(t, "Delhi", 28.6139, 77.209, 0)

	require.NoError(t, f.service.ResetData(ctx))

	assert.False(t, f.service.Session().IsAuthenticated())
	keys, err := f.store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, f.service.Favorites().List(ctx))
}

func TestService_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)

	delhi := src.addFavorite(t, "Delhi", 28.6139, 77.209, 0)
	src.addFavorite(t, "Pune", 18.5204, 73.8567, 0)
	_, err := src.service.Searches().Add(ctx, searches.Search{Location: "Delhi", Coordinates: &searches.Coordinates{Lat: 28.6139, Lon: 77.209}})
	require.NoError(t, err)
	require.NoError(t, src.service.Settings().Set(ctx, settings.KeyTempUnit, "fahrenheit"))
	_, err = src.service.Alerts().Add(ctx, alerts.Spec{
		LocationID: delhi.ID, LocationName: "Delhi", AlertType: "humidity", Condition: "below", Threshold: "30.5",
	})
	require.NoError(t, err)

	exp := src.service.Export(ctx)
	assert.Equal(t, storage.CurrentVersion, exp.Version)
	assert.Equal(t, testNow, exp.ExportDate)
	require.NotNil(t, exp.Profile)

	for _, format := range []string{FormatJSON, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			data, err := EncodeExport(exp, format)
			require.NoError(t, err)

			decoded, err := DecodeExport(data, format)
			require.NoError(t, err)

			dst := newFixture(t)
			require.NoError(t, dst.service.Import(ctx, decoded))

			if diff := cmp.Diff(src.service.Favorites().List(ctx), dst.service.Favorites().List(ctx)); diff != "" {
				t.Errorf("favorites mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(src.service.Searches().List(ctx), dst.service.Searches().List(ctx)); diff != "" {
				t.Errorf("recent searches mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(src.service.Alerts().List(ctx), dst.service.Alerts().List(ctx)); diff != "" {
				t.Errorf("alerts mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, settings.Fahrenheit, dst.service.Settings().GetAll(ctx).TempUnit)

			// profile belongs to another user id and is left alone
			profile, err := dst.service.Session().CurrentProfile(ctx)
			require.NoError(t, err)
			assert.NotEqual(t, exp.Profile.ID, profile.ID)
		})
	}
}

func TestService_ImportPartialDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addFavorite(t, "Delhi", 28.6139, 77.209, 0)

	exp, err := DecodeExport([]byte(`{"recentSearches":[],"version":"1.0"}`), FormatJSON)
	require.NoError(t, err)
	require.NoError(t, f.service.Import(ctx, exp))

	assert.Len(t, f.service.Favorites().List(ctx), 1)
	assert.Empty(t, f.service.Searches().List(ctx))
}

func TestService_ImportRejectsInvalidSettingsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	exp, err := DecodeExport([]byte(`{"favorites":[{"id":"x","name":"Goa","country":"IN"}],"settings":{"theme":"neon"}}`), FormatJSON)
	require.NoError(t, err)

	err = f.service.Import(ctx, exp)
	assert.ErrorIs(t, err, settings.ErrInvalidValue)
	assert.Empty(t, f.service.Favorites().List(ctx))
}

func TestService_ImportRequiresAuthenticatedSession(t *testing.T) {
	delhi := favorites.FavoriteLocation{ID: "fav-delhi", Name: "Delhi", Country: "IN", Lat: 28.6139, Lon: 77.209, IsDefault: true}
	alert := alerts.Alert{
		ID: "alert-1", LocationID: "fav-delhi", LocationName: "Delhi",
		AlertType: alerts.TypeTemperature, Condition: alerts.ConditionAbove, Threshold: 32, IsActive: true,
	}

	tests := []struct {
		name  string
		setup func(t *testing.T, m *session.Machine)
	}{
		{
			name: "signed out",
			setup: func(t *testing.T, m *session.Machine) {
				require.NoError(t, m.SignOut(context.Background()))
			},
		},
		{
			name: "authenticating",
			setup: func(t *testing.T, m *session.Machine) {
				require.NoError(t, m.SignOut(context.Background()))
				require.NoError(t, m.BeginSignIn())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			tt.setup(t, f.service.Session())

			err := f.service.Import(ctx, Export{
				Favorites:      []favorites.FavoriteLocation{delhi},
				RecentSearches: []searches.RecentSearch{{ID: "s1", Location: "Delhi"}},
				Alerts:         []alerts.Alert{alert},
			})
			assert.ErrorIs(t, err, session.ErrNotAuthenticated)
			assert.Empty(t, f.service.Favorites().List(ctx))
			assert.Empty(t, f.service.Searches().List(ctx))
			assert.Empty(t, f.service.Alerts().List(ctx))
		})
	}
}

func TestService_ImportRecentSearchesWhileSignedOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.service.Session().SignOut(ctx))

	err := f.service.Import(ctx, Export{RecentSearches: []searches.RecentSearch{{ID: "s1", Location: "Delhi"}}})
	require.NoError(t, err)
	assert.Len(t, f.service.Searches().List(ctx), 1)
}

func TestService_ImportRejectsDuplicateFavoritesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	existing := f.addFavorite(t, "Jaipur", 26.9124, 75.7873, 0)

	exp, err := DecodeExport([]byte(`{
		"favorites": [
			{"id": "a", "name": "Delhi", "country": "IN"},
			{"id": "b", "name": "DELHI", "country": "IN"},
			{"id": "b", "name": "Pune", "country": "IN"}
		],
		"recentSearches": [{"id": "s1", "location": "Delhi"}]
	}`), FormatJSON)
	require.NoError(t, err)

	err = f.service.Import(ctx, exp)
	assert.ErrorIs(t, err, favorites.ErrDuplicateLocation)
	assert.Equal(t, []favorites.FavoriteLocation{existing}, f.service.Favorites().List(ctx))
	assert.Empty(t, f.service.Searches().List(ctx))
}

func TestService_ImportRejectsBadAlertsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	exp, err := DecodeExport([]byte(`{
		"favorites": [{"id": "a", "name": "Delhi", "country": "IN"}],
		"alerts": [{"id": "x", "locationId": "a", "locationName": "Delhi", "alertType": "temperature", "condition": "above", "threshold": 30, "triggerCount": -2}]
	}`), FormatJSON)
	require.NoError(t, err)

	err = f.service.Import(ctx, exp)
	assert.ErrorIs(t, err, alerts.ErrInvalidAlert)
	assert.Empty(t, f.service.Favorites().List(ctx))
	assert.Empty(t, f.service.Alerts().List(ctx))
}

func TestEncodeExport_UnknownFormat(t *testing.T) {
	_, err := EncodeExport(Export{}, "toml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = DecodeExport(nil, "toml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestOpen_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Storage: config.StorageConfig{Backend: config.BackendMemory, Namespace: "weather"},
		App:     config.AppConfig{MaxFavorites: 3, MaxRecentSearches: 5, TokenTTL: time.Hour},
	}

	app, err := Open(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.Session().IsAuthenticated())
	assert.Equal(t, 3, app.Favorites().Max())

	_, err = app.Session().SignIn(ctx, "")
	require.NoError(t, err)
	_, err = app.Favorites().Add(ctx, favorites.Location{Name: "Goa", Country: "IN", Lat: 15.3, Lon: 74.1})
	require.NoError(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "floppy"}}
	_, err := Open(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}
