package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATASET_PATH", "GCP_PROJECT", "LOG_LEVEL", "LOG_FORMAT", "CORS_ALLOWED_ORIGIN",
		"METRICS_ENABLED", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Dataset.Path != "data/cleaned_data.xlsx" {
		t.Errorf("Dataset.Path = %q", cfg.Dataset.Path)
	}
	if cfg.Server.CORSAllowedOrigin != "*" {
		t.Errorf("CORSAllowedOrigin = %q, want *", cfg.Server.CORSAllowedOrigin)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Server.ReadTimeout != 15*time.Second || cfg.Server.IdleTimeout != 60*time.Second || cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("timeouts = %+v", cfg.Server)
	}
	if cfg.Dataset.WarehouseSource() {
		t.Error("default dataset should not be a warehouse source")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATASET_PATH", "bq://proj.cards.transactions")
	t.Setenv("GCP_PROJECT", "proj")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("METRICS_ENABLED", "no")
	t.Setenv("HTTP_WRITE_TIMEOUT", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want 9090", cfg.Server.Port)
	}
	if !cfg.Dataset.WarehouseSource() || cfg.Dataset.GCPProject != "proj" {
		t.Errorf("Dataset = %+v", cfg.Dataset)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("WriteTimeout = %v, want 45s", cfg.Server.WriteTimeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparseable timeout", "HTTP_READ_TIMEOUT", "soon"},
		{"negative timeout", "SHUTDOWN_TIMEOUT", "-5s"},
		{"unknown log format", "LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error for %s=%q, got nil", tt.key, tt.value)
			}
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"false", true, false},
		{"0", true, false},
		{"maybe", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.value)
		if got := getBoolEnv("TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("getBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}
