package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Weather  WeatherConfig
	App      AppConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// Storage backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type StorageConfig struct {
	Backend    string
	Namespace  string
	SQLitePath string
	QuotaBytes int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicAlerts string
}

type WeatherConfig struct {
	APIKey            string
	BaseURL           string
	GeocodingURL      string
	Units             string
	CacheTTL          time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

type AppConfig struct {
	MaxFavorites       int
	MaxRecentSearches  int
	TokenTTL           time.Duration
	RefreshInterval    time.Duration
	RefreshConcurrency int
}

type LogConfig struct {
	Level string
}

type MetricsConfig struct {
	Namespace string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Storage: StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", BackendSQLite),
			Namespace:  getEnv("STORAGE_NAMESPACE", "weather"),
			SQLitePath: getEnv("STORAGE_SQLITE_PATH", "weather-dashboard.db"),
			QuotaBytes: getEnvAsInt("STORAGE_QUOTA_BYTES", 5*1024*1024),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "weather_user"),
			Password: getEnv("DB_PASSWORD", "weather_pass"),
			DBName:   getEnv("DB_NAME", "weather_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled:     getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicAlerts: getEnv("KAFKA_TOPIC_ALERTS", "weather.dashboard.alerts"),
		},
		Weather: WeatherConfig{
			APIKey:            getEnv("OPENWEATHER_API_KEY", ""),
			BaseURL:           getEnv("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
			GeocodingURL:      getEnv("OPENWEATHER_GEOCODING_URL", "https://api.openweathermap.org/geo/1.0"),
			Units:             getEnv("OPENWEATHER_UNITS", "metric"),
			CacheTTL:          getEnvAsDuration("WEATHER_CACHE_TTL", 5*time.Minute),
			RequestTimeout:    getEnvAsDuration("WEATHER_REQUEST_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvAsFloat("WEATHER_RPS", 1),
			Burst:             getEnvAsInt("WEATHER_BURST", 5),
		},
		App: AppConfig{
			MaxFavorites:       getEnvAsInt("MAX_FAVORITES", 10),
			MaxRecentSearches:  getEnvAsInt("MAX_RECENT_SEARCHES", 10),
			TokenTTL:           getEnvAsDuration("AUTH_TOKEN_TTL", 24*time.Hour),
			RefreshInterval:    getEnvAsDuration("REFRESH_INTERVAL", time.Minute),
			RefreshConcurrency: getEnvAsInt("REFRESH_CONCURRENCY", 4),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Namespace: getEnv("METRICS_NAMESPACE", "weather_dashboard"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Storage.Namespace == "" {
		return fmt.Errorf("STORAGE_NAMESPACE must not be empty")
	}
	if c.App.MaxFavorites <= 0 || c.App.MaxRecentSearches <= 0 {
		return fmt.Errorf("collection limits must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
