package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string            `mapstructure:"environment"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Typesense   TypesenseConfig   `mapstructure:"typesense"`
	Geolocation GeolocationConfig `mapstructure:"geolocation"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	OTEL        OTELConfig        `mapstructure:"otel"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Enabled bool   `mapstructure:"enabled"`
}

// GeolocationConfig holds geolocation provider configuration
type GeolocationConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DiscoveryConfig holds the discovery session settings
type DiscoveryConfig struct {
	DefaultLatitude    float64       `mapstructure:"default_latitude"`
	DefaultLongitude   float64       `mapstructure:"default_longitude"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	GeocodeConcurrency int           `mapstructure:"geocode_concurrency"`
	FailureTTL         time.Duration `mapstructure:"geocode_failure_ttl"`
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Endpoint       string `mapstructure:"endpoint"`
	Enabled        bool   `mapstructure:"enabled"`
}

// Environment variable names kept for compatibility with existing deployments.
var envBindings = map[string]string{
	"environment":            "ENV",
	"server.allowed_origins": "ALLOWED_ORIGINS",
	"database.host":          "DB_HOST",
	"database.port":          "DB_PORT",
	"database.user":          "DB_USER",
	"database.password":      "DB_PASSWORD",
	"database.name":          "DB_NAME",
	"database.sslmode":       "DB_SSLMODE",
	"geolocation.provider":   "GEOLOCATION_PROVIDER",
	"geolocation.api_key":    "GEOLOCATION_API_KEY",
	"otel.endpoint":          "OTEL_ENDPOINT",
}

// Load loads configuration from an optional config.yaml and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "partaibook")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("typesense.url", "http://localhost:8108")
	v.SetDefault("typesense.api_key", "xyz")
	v.SetDefault("typesense.enabled", true)

	v.SetDefault("geolocation.provider", "mock")
	v.SetDefault("geolocation.api_key", "")
	v.SetDefault("geolocation.base_url", "https://api.mapbox.com")
	v.SetDefault("geolocation.timeout", 5*time.Second)
	v.SetDefault("geolocation.cache_ttl", 30*24*time.Hour)

	v.SetDefault("discovery.default_latitude", 40.730610)
	v.SetDefault("discovery.default_longitude", -73.935242)
	v.SetDefault("discovery.session_ttl", 24*time.Hour)
	v.SetDefault("discovery.fetch_timeout", 10*time.Second)
	v.SetDefault("discovery.geocode_concurrency", 8)
	v.SetDefault("discovery.geocode_failure_ttl", 10*time.Minute)

	v.SetDefault("otel.service_name", "partaibook-discovery")
	v.SetDefault("otel.service_version", "1.0.0")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.enabled", false)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Geolocation.Provider {
	case "mock":
	case "mapbox":
		if c.Geolocation.APIKey == "" {
			return fmt.Errorf("geolocation provider mapbox requires GEOLOCATION_API_KEY")
		}
	default:
		return fmt.Errorf("unknown geolocation provider %q", c.Geolocation.Provider)
	}
	if c.Geolocation.Timeout <= 0 {
		return fmt.Errorf("geolocation timeout must be positive")
	}
	if c.Discovery.GeocodeConcurrency <= 0 {
		c.Discovery.GeocodeConcurrency = 1
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}
