// Package weather defines the weather provider contract consumed by the
// dashboard and an OpenWeatherMap implementation of it.
package weather

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound                 = errors.New("location not found")
	ErrNetwork                  = errors.New("weather service unavailable")
	ErrMisconfiguredCredentials = errors.New("weather API key is not configured")
)

// Provider is the request/response capability the dashboard reads weather through.
type Provider interface {
	CurrentWeather(ctx context.Context, city string) (*Snapshot, error)
	Forecast(ctx context.Context, city string) (*Forecast, error)
	SearchCities(ctx context.Context, query string) ([]City, error)
	WeatherByCoords(ctx context.Context, lat, lon float64) (*Snapshot, error)
}

// Location identifies where a reading was taken.
type Location struct {
	Name    string  `json:"name" yaml:"name"`
	Country string  `json:"country" yaml:"country"`
	Lat     float64 `json:"lat" yaml:"lat"`
	Lon     float64 `json:"lon" yaml:"lon"`
}

// Reading is a set of current conditions. Numeric fields are pointers so a
// value the provider did not report is distinguishable from zero.
type Reading struct {
	Temp          *float64  `json:"temp,omitempty"`
	FeelsLike     *float64  `json:"feels_like,omitempty"`
	TempMin       *float64  `json:"temp_min,omitempty"`
	TempMax       *float64  `json:"temp_max,omitempty"`
	Humidity      *float64  `json:"humidity,omitempty"`
	Pressure      *float64  `json:"pressure,omitempty"`
	WindSpeed     *float64  `json:"wind_speed,omitempty"`
	WindDeg       *float64  `json:"wind_deg,omitempty"`
	WindDirection string    `json:"wind_direction,omitempty"`
	Visibility    *float64  `json:"visibility,omitempty"`
	Clouds        *float64  `json:"clouds,omitempty"`
	Precipitation *float64  `json:"precipitation,omitempty"`
	Condition     string    `json:"condition,omitempty"`
	Description   string    `json:"description,omitempty"`
	Icon          string    `json:"icon,omitempty"`
	Sunrise       string    `json:"sunrise,omitempty"`
	Sunset        string    `json:"sunset,omitempty"`
	DayLength     string    `json:"day_length,omitempty"`
	ObservedAt    time.Time `json:"date"`
}

// Snapshot is the current weather for one location.
type Snapshot struct {
	Location Location `json:"location"`
	Current  Reading  `json:"current"`
}

type HourlyEntry struct {
	Time        time.Time `json:"time"`
	Temp        float64   `json:"temp"`
	Icon        string    `json:"icon"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
}

type DailyEntry struct {
	Date        string  `json:"date"`
	Day         string  `json:"day"`
	TempMax     float64 `json:"temp_max"`
	TempMin     float64 `json:"temp_min"`
	Icon        string  `json:"icon"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
}

// Forecast holds the next 24 hours in 3-hour steps and up to five days.
type Forecast struct {
	Hourly []HourlyEntry `json:"hourly"`
	Daily  []DailyEntry  `json:"daily"`
}

// City is a search candidate.
type City struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
