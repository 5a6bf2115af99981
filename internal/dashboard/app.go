package dashboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/alerts"
	"github.com/smukkama/weather-dashboard/internal/favorites"
	"github.com/smukkama/weather-dashboard/internal/queue"
	"github.com/smukkama/weather-dashboard/internal/searches"
	"github.com/smukkama/weather-dashboard/internal/session"
	"github.com/smukkama/weather-dashboard/internal/settings"
	"github.com/smukkama/weather-dashboard/internal/storage"
	"github.com/smukkama/weather-dashboard/internal/weather"
	"github.com/smukkama/weather-dashboard/pkg/config"
	"github.com/smukkama/weather-dashboard/pkg/logging"
	"github.com/smukkama/weather-dashboard/pkg/metrics"
)

// App owns the process-wide resources behind a Service.
type App struct {
	*Service

	backend   storage.Backend
	publisher *queue.Producer
}

// OpenBackend connects the storage backend named in cfg.
func OpenBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return storage.NewMemoryBackend(cfg.Storage.QuotaBytes), nil
	case config.BackendSQLite:
		return storage.OpenSQLite(cfg.Storage.SQLitePath)
	case config.BackendPostgres:
		return storage.OpenPostgres(cfg.Database.ConnectionString())
	case config.BackendRedis:
		return storage.DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Open builds the whole object graph from cfg: backend, store, managers,
// evaluator, session and weather client. Legacy keys are migrated and a
// previous session is restored before Open returns.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (*App, error) {
	logger = logging.OrNop(logger)

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	store := storage.New(backend,
		storage.WithNamespace(cfg.Storage.Namespace),
		storage.WithLogger(logger),
		storage.WithMetrics(collector),
	)

	if moved, err := store.MigrateLegacyKeys(ctx, storage.LegacyKeys); err != nil {
		logger.Warn("Legacy key migration incomplete", zap.Int("moved", moved), zap.Error(err))
	}

	var publisher *queue.Producer
	var evalPublisher alerts.Publisher
	if cfg.Kafka.Enabled {
		publisher = queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		evalPublisher = publisher
		logger.Info("Alert journal enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.TopicAlerts))
	}

	prefs := settings.NewManager(store)
	machine := session.NewMachine(
		session.NewProfiles(store),
		session.NewTokens(store, cfg.App.TokenTTL),
		prefs,
		session.MockAuthenticator{},
		logger,
	)
	alertManager := alerts.NewManager(store, machine, logger)

	provider := weather.NewOpenWeatherClient(weather.ClientConfig{
		APIKey:            cfg.Weather.APIKey,
		BaseURL:           cfg.Weather.BaseURL,
		GeocodingURL:      cfg.Weather.GeocodingURL,
		Units:             cfg.Weather.Units,
		CacheTTL:          cfg.Weather.CacheTTL,
		Timeout:           cfg.Weather.RequestTimeout,
		RequestsPerSecond: cfg.Weather.RequestsPerSecond,
		Burst:             cfg.Weather.Burst,
	}, weather.WithLogger(logger), weather.WithMetrics(collector))
	if !weather.ValidAPIKey(cfg.Weather.APIKey) {
		logger.Warn("OPENWEATHER_API_KEY is not configured; weather lookups will fail")
	}

	svc := NewService(Deps{
		Store:     store,
		Provider:  provider,
		Favorites: favorites.NewManager(store, machine, cfg.App.MaxFavorites, logger),
		Searches:  searches.NewManager(store, cfg.App.MaxRecentSearches),
		Settings:  prefs,
		Alerts:    alertManager,
		Evaluator: alerts.NewEvaluator(alertManager, evalPublisher, logger, collector),
		Session:   machine,
	}, cfg.App.RefreshConcurrency, logger)

	machine.Restore(ctx)

	return &App{
		Service:   svc,
		backend:   backend,
		publisher: publisher,
	}, nil
}

// Close releases the journal producer and the storage backend.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	errs = append(errs, a.backend.Close())
	return errors.Join(errs...)
}
