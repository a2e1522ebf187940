package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Dataset DatasetConfig
	Log     LogConfig
	Metrics MetricsConfig
}

type ServerConfig struct {
	Port              string
	CORSAllowedOrigin string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

type DatasetConfig struct {
	// Path is a local .csv/.xlsx file, a gs:// object or a bq://project.dataset.table.
	Path string
	// GCPProject is the billing project for BigQuery sources.
	GCPProject string
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	readTimeout, err := getDurationEnv("HTTP_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getDurationEnv("HTTP_WRITE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := getDurationEnv("HTTP_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnv("PORT", "8080"),
			CORSAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "*"),
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ShutdownTimeout:   shutdownTimeout,
		},
		Dataset: DatasetConfig{
			Path:       getEnv("DATASET_PATH", "data/cleaned_data.xlsx"),
			GCPProject: getEnv("GCP_PROJECT", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "console")),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("METRICS_ENABLED", true),
		},
	}

	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be console or json, got %q", cfg.Log.Format)
	}

	return cfg, nil
}

// WarehouseSource reports whether the dataset is read from BigQuery.
func (c *DatasetConfig) WarehouseSource() bool {
	return strings.HasPrefix(c.Path, "bq://")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
