// Package dashboard wires the collection managers, the alert evaluator and a
// weather provider into the operations the commands expose.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smukkama/weather-dashboard/internal/alerts"
	"github.com/smukkama/weather-dashboard/internal/favorites"
	"github.com/smukkama/weather-dashboard/internal/searches"
	"github.com/smukkama/weather-dashboard/internal/session"
	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/internal/storage"
	"github.com/smukkama/weather-dashboard/internal/weather"
	"github.com/smukkama/weather-dashboard/pkg/logging"
)

// DefaultRefreshConcurrency bounds parallel provider calls during a refresh.
const DefaultRefreshConcurrency = 4

var ErrNoProvider = errors.New("no weather provider configured")

// Deps are the collaborators a Service is built from.
type Deps struct {
	Store     *storage.Store
	Provider  weather.Provider
	Favorites *favorites.Manager
	Searches  *searches.Manager
	Settings  *settings.Manager
	Alerts    *alerts.Manager
	Evaluator *alerts.Evaluator
	Session   *session.Machine
}

type Service struct {
	store       *storage.Store
	provider    weather.Provider
	favorites   *favorites.Manager
	searches    *searches.Manager
	settings    *settings.Manager
	alerts      *alerts.Manager
	evaluator   *alerts.Evaluator
	session     *session.Machine
	concurrency int
	logger      *zap.Logger
}

func NewService(deps Deps, concurrency int, logger *zap.Logger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultRefreshConcurrency
	}
	return &Service{
		store:       deps.Store,
		provider:    deps.Provider,
		favorites:   deps.Favorites,
		searches:    deps.Searches,
		settings:    deps.Settings,
		alerts:      deps.Alerts,
		evaluator:   deps.Evaluator,
		session:     deps.Session,
		concurrency: concurrency,
		logger:      logging.OrNop(logger),
	}
}

func (s *Service) Favorites() *favorites.Manager { return s.favorites }
func (s *Service) Searches() *searches.Manager   { return s.searches }
func (s *Service) Settings() *settings.Manager   { return s.settings }
func (s *Service) Alerts() *alerts.Manager       { return s.alerts }
func (s *Service) Evaluator() *alerts.Evaluator  { return s.evaluator }
func (s *Service) Session() *session.Machine     { return s.session }

// Search fetches current weather for city and records it as a recent search.
// Failing to record the search does not fail the lookup.
func (s *Service) Search(ctx context.Context, city string) (*weather.Snapshot, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}

	snapshot, err := s.provider.CurrentWeather(ctx, city)
	if err != nil {
		return nil, err
	}

	_, err = s.searches.Add(ctx, searches.Search{
		Location: searchLabel(snapshot.Location),
		Query:    city,
		Coordinates: &searches.Coordinates{
			Lat: snapshot.Location.Lat,
			Lon: snapshot.Location.Lon,
		},
	})
	if err != nil {
		s.logger.Warn("Failed to record recent search", zap.String("query", city), zap.Error(err))
	}
	return snapshot, nil
}

func searchLabel(loc weather.Location) string {
	if loc.Country == "" {
		return loc.Name
	}
	return loc.Name + ", " + loc.Country
}

// Forecast passes through to the provider.
func (s *Service) Forecast(ctx context.Context, city string) (*weather.Forecast, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}
	return s.provider.Forecast(ctx, city)
}

// SearchCities passes through to the provider.
func (s *Service) SearchCities(ctx context.Context, query string) ([]weather.City, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}
	return s.provider.SearchCities(ctx, query)
}

// RefreshResult summarizes one RefreshFavorites run.
type RefreshResult struct {
	Refreshed int
	Failed    int
	Triggered []alerts.TriggeredAlert
}

// RefreshFavorites fetches weather for every favorite, attaches it, and
// evaluates that favorite's alerts against the new reading. A failure for
// one favorite is logged and counted; it never stops the others.
func (s *Service) RefreshFavorites(ctx context.Context) (RefreshResult, error) {
	if s.provider == nil {
		return RefreshResult{}, ErrNoProvider
	}

	var (
		mu     sync.Mutex
		result RefreshResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, fav := range s.favorites.List(ctx) {
		g.Go(func() error {
			triggered, err := s.refreshOne(gctx, fav)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				result.Failed++
				s.logger.Warn("Failed to refresh favorite",
					zap.String("id", fav.ID),
					zap.String("name", fav.Name),
					zap.Error(err))
				return nil
			}
			result.Refreshed++
			result.Triggered = append(result.Triggered, triggered...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("refresh interrupted: %w", err)
	}

	s.logger.Debug("Refreshed favorites",
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", result.Failed),
		zap.Int("triggered", len(result.Triggered)))
	return result, nil
}

func (s *Service) refreshOne(ctx context.Context, fav favorites.FavoriteLocation) ([]alerts.TriggeredAlert, error) {
	snapshot, err := s.provider.WeatherByCoords(ctx, fav.Lat, fav.Lon)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather: %w", err)
	}
	if err := s.favorites.UpdateWeatherData(ctx, fav.ID, snapshot); err != nil {
		return nil, err
	}
	if s.evaluator == nil {
		return nil, nil
	}
	return s.evaluator.EvaluateLocation(ctx, fav.ID, snapshot.Current)
}

// Info describes what is stored under the namespace.
type Info struct {
	Favorites      int  `json:"favorites"`
	RecentSearches int  `json:"recentSearches"`
	Alerts         int  `json:"alerts"`
	HasProfile     bool `json:"hasProfile"`
	HasAuth        bool `json:"hasAuth"`
	TotalKeys      int  `json:"totalKeys"`
	SizeBytes      int  `json:"sizeBytes"`
}

// StorageSize renders SizeBytes rounded to kilobytes.
func (i Info) StorageSize() string {
	return fmt.Sprintf("%d KB", (i.SizeBytes+512)/1024)
}

func (s *Service) Info(ctx context.Context) (Info, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return Info{}, err
	}
	size, err := s.store.Size(ctx)
	if err != nil {
		return Info{}, err
	}

	info := Info{
		Favorites:      len(s.favorites.List(ctx)),
		RecentSearches: len(s.searches.List(ctx)),
		Alerts:         len(s.alerts.List(ctx)),
		TotalKeys:      len(keys),
		SizeBytes:      size,
	}
	for _, k := range keys {
		switch k {
		case storage.KeyProfile:
			info.HasProfile = true
		case storage.KeyAuthToken:
			info.HasAuth = true
		}
	}
	return info, nil
}

// ResetData signs out and removes every key under the namespace.
func (s *Service) ResetData(ctx context.Context) error {
	if s.session != nil && s.session.IsAuthenticated() {
		if err := s.session.SignOut(ctx); err != nil {
			s.logger.Warn("Sign-out during reset failed", zap.Error(err))
		}
	}
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to reset data: %w", err)
	}
	s.logger.Info("All dashboard data cleared", zap.String("namespace", s.store.Namespace()))
	return nil
}
