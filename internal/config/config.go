package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"datanomics/internal/errors"
)

// Cache backends
const (
	CacheFile     = "file"
	CachePostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Backend  BackendConfig
	Cache    CacheConfig
	Charts   ChartConfig
	Data     DataConfig
	UI       UIConfig
	LogLevel string
}

// BackendConfig holds the computation backend settings
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// CacheConfig selects and configures the durable session cache
type CacheConfig struct {
	Backend     string
	Dir         string
	DatabaseURL string
	Namespace   string
	Migrate     bool
}

// ChartConfig holds rendering settings
type ChartConfig struct {
	Dir    string
	Width  int
	Height int
}

// DataConfig holds data preparation and export settings
type DataConfig struct {
	ExportDir         string
	PreviewRows       int
	OfflineTransforms bool
}

// UIConfig holds the preview server settings
type UIConfig struct {
	Addr string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Backend: loadBackendConfig(),
		Cache:   loadCacheConfig(),
		Charts:  loadChartConfig(),
		Data:    loadDataConfig(),
		UI: UIConfig{
			Addr: getEnvOrDefault("UI_ADDR", "127.0.0.1:8090"),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadBackendConfig() BackendConfig {
	return BackendConfig{
		URL:     strings.TrimRight(getEnvOrDefault("BACKEND_URL", "http://localhost:5000"), "/"),
		Timeout: getEnvDurationOrDefault("BACKEND_TIMEOUT", 60*time.Second),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:     strings.ToLower(getEnvOrDefault("CACHE_BACKEND", CacheFile)),
		Dir:         getEnvOrDefault("CACHE_DIR", defaultCacheDir()),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Namespace:   getEnvOrDefault("CACHE_NAMESPACE", "default"),
		Migrate:     getEnvBoolOrDefault("CACHE_MIGRATE", true),
	}
}

func loadChartConfig() ChartConfig {
	return ChartConfig{
		Dir:    getEnvOrDefault("CHART_DIR", "./charts"),
		Width:  getEnvIntOrDefault("CHART_WIDTH", 1024),
		Height: getEnvIntOrDefault("CHART_HEIGHT", 512),
	}
}

func loadDataConfig() DataConfig {
	return DataConfig{
		ExportDir:         getEnvOrDefault("EXPORT_DIR", "."),
		PreviewRows:       getEnvIntOrDefault("PREVIEW_ROWS", 5),
		OfflineTransforms: getEnvBoolOrDefault("OFFLINE_TRANSFORMS", false),
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".datanomics", "cache")
	}
	return filepath.Join(home, ".datanomics", "cache")
}

func validateConfig(config *Config) error {
	u, err := url.Parse(config.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.ConfigInvalid(fmt.Sprintf("BACKEND_URL must be an absolute URL, got %q", config.Backend.URL))
	}
	if config.Backend.Timeout <= 0 {
		return errors.ConfigInvalid("BACKEND_TIMEOUT must be positive")
	}
	switch config.Cache.Backend {
	case CacheFile:
		if config.Cache.Dir == "" {
			return errors.ConfigInvalid("CACHE_DIR is required for the file cache")
		}
	case CachePostgres:
		if config.Cache.DatabaseURL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required when CACHE_BACKEND=postgres")
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown CACHE_BACKEND %q", config.Cache.Backend))
	}
	if config.Charts.Width <= 0 || config.Charts.Height <= 0 {
		return errors.ConfigInvalid("CHART_WIDTH and CHART_HEIGHT must be positive")
	}
	if config.Data.PreviewRows <= 0 {
		return errors.ConfigInvalid("PREVIEW_ROWS must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("90s") or plain seconds ("90")
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
