package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smukkama/weather-dashboard/pkg/logging"
	"github.com/smukkama/weather-dashboard/pkg/metrics"
)

// placeholderAPIKey is the value shipped in sample configuration files.
const placeholderAPIKey = "YOUR_OPENWEATHERMAP_API_KEY"

// ValidAPIKey reports whether key looks like a real OpenWeatherMap key.
func ValidAPIKey(key string) bool {
	return key != "" && key != placeholderAPIKey && len(key) > 10
}

// ClientConfig configures an OpenWeatherClient.
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	GeocodingURL      string
	Units             string
	CacheTTL          time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// OpenWeatherClient implements Provider against the OpenWeatherMap 2.5 API.
// Requests are rate limited and pass through a circuit breaker that fails
// fast while the service is unhealthy. Failed requests are never retried.
type OpenWeatherClient struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *responseCache
	logger     *zap.Logger
	metrics    *metrics.Collector
	now        func() time.Time
}

// ClientOption configures an OpenWeatherClient.
type ClientOption func(*OpenWeatherClient)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *OpenWeatherClient) { o.httpClient = c }
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(o *OpenWeatherClient) { o.logger = logging.OrNop(l) }
}

func WithMetrics(c *metrics.Collector) ClientOption {
	return func(o *OpenWeatherClient) { o.metrics = c }
}

// WithClock overrides the clock used for cache expiry and observation times.
func WithClock(now func() time.Time) ClientOption {
	return func(o *OpenWeatherClient) { o.now = now }
}

// NewOpenWeatherClient creates a client. A missing or placeholder API key is
// not an error here; weather lookups fail with ErrMisconfiguredCredentials and
// city search falls back to PopularCities.
func NewOpenWeatherClient(cfg ClientConfig, opts ...ClientOption) *OpenWeatherClient {
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	c := &OpenWeatherClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openweathermap",
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = newResponseCache(cfg.CacheTTL, c.now)
	return c
}

// ClearCache drops every cached response.
func (c *OpenWeatherClient) ClearCache() {
	c.cache.clear()
}

// CurrentWeather fetches current conditions for a city name.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, city string) (*Snapshot, error) {
	params := url.Values{}
	params.Set("q", city)
	return c.snapshot(ctx, "current", fmt.Sprintf("current_%s_%s", city, c.cfg.Units), params)
}

// WeatherByCoords fetches current conditions for a coordinate pair.
func (c *OpenWeatherClient) WeatherByCoords(ctx context.Context, lat, lon float64) (*Snapshot, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	key := fmt.Sprintf("coords_%s_%s_%s", params.Get("lat"), params.Get("lon"), c.cfg.Units)
	return c.snapshot(ctx, "coords", key, params)
}

func (c *OpenWeatherClient) snapshot(ctx context.Context, kind, cacheKey string, params url.Values) (*Snapshot, error) {
	if !ValidAPIKey(c.cfg.APIKey) {
		return nil, ErrMisconfiguredCredentials
	}

	if cached, ok := c.cache.get(cacheKey); ok {
		c.metrics.RecordCacheLookup(true)
		s := *cached.(*Snapshot)
		return &s, nil
	}
	c.metrics.RecordCacheLookup(false)

	params.Set("units", c.cfg.Units)
	var payload currentResponse
	err := c.fetch(ctx, c.cfg.BaseURL+"/weather", params, &payload)
	c.metrics.RecordWeatherRequest(kind, err)
	if err != nil {
		return nil, err
	}

	s := transformCurrent(&payload, c.now())
	c.cache.put(cacheKey, s)
	result := *s
	return &result, nil
}

// Forecast fetches the 5-day / 3-hour forecast for a city name.
func (c *OpenWeatherClient) Forecast(ctx context.Context, city string) (*Forecast, error) {
	if !ValidAPIKey(c.cfg.APIKey) {
		return nil, ErrMisconfiguredCredentials
	}

	cacheKey := fmt.Sprintf("forecast_%s_%s", city, c.cfg.Units)
	if cached, ok := c.cache.get(cacheKey); ok {
		c.metrics.RecordCacheLookup(true)
		return cached.(*Forecast), nil
	}
	c.metrics.RecordCacheLookup(false)

	params := url.Values{}
	params.Set("q", city)
	params.Set("units", c.cfg.Units)

	var payload forecastResponse
	err := c.fetch(ctx, c.cfg.BaseURL+"/forecast", params, &payload)
	c.metrics.RecordWeatherRequest("forecast", err)
	if err != nil {
		return nil, err
	}

	f := transformForecast(&payload)
	c.cache.put(cacheKey, f)
	return f, nil
}

// SearchCities looks up up to five candidates for query. When the API key is
// not configured or the lookup fails, matching PopularCities are returned.
func (c *OpenWeatherClient) SearchCities(ctx context.Context, query string) ([]City, error) {
	if !ValidAPIKey(c.cfg.APIKey) {
		return FilterCities(PopularCities, query), nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(maxCityResults))

	var payload []geocodingResult
	err := c.fetch(ctx, c.cfg.GeocodingURL+"/direct", params, &payload)
	c.metrics.RecordWeatherRequest("search", err)
	if err != nil {
		c.logger.Warn("City search failed, using popular cities", zap.String("query", query), zap.Error(err))
		return FilterCities(PopularCities, query), nil
	}

	cities := make([]City, 0, len(payload))
	for _, item := range payload {
		cities = append(cities, City{
			Name:    item.Name,
			Country: item.Country,
			State:   item.State,
			Lat:     item.Lat,
			Lon:     item.Lon,
		})
	}
	return cities, nil
}

type httpResult struct {
	status int
	body   []byte
}

func (c *OpenWeatherClient) fetch(ctx context.Context, endpoint string, params url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait canceled: %v", ErrNetwork, err)
	}

	params.Set("appid", c.cfg.APIKey)
	target := endpoint + "?" + params.Encode()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		// Only upstream health problems count against the breaker.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("API error (status %d)", resp.StatusCode)
		}
		return &httpResult{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("Weather circuit breaker open", zap.String("endpoint", endpoint))
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	res := result.(*httpResult)
	switch {
	case res.status == http.StatusNotFound:
		return ErrNotFound
	case res.status == http.StatusUnauthorized:
		return ErrMisconfiguredCredentials
	case res.status != http.StatusOK:
		return fmt.Errorf("%w: API error (status %d)", ErrNetwork, res.status)
	}

	if err := json.Unmarshal(res.body, dst); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", ErrNetwork, err)
	}
	return nil
}
