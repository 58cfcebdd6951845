package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_UPLOAD_MB", "8")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, http://localhost:5173")
	t.Setenv("MAINTENANCE_SCHEDULE", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected environment 'test', got '%s'", cfg.Environment)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}

	if cfg.MaxUploadBytes() != 8<<20 {
		t.Errorf("Expected 8 MiB upload limit, got %d", cfg.MaxUploadBytes())
	}

	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:5173" {
		t.Errorf("Unexpected allowed origins %v", cfg.AllowedOrigins)
	}

	if cfg.MaintenanceSchedule != "" {
		t.Errorf("Expected maintenance to be disabled, got '%s'", cfg.MaintenanceSchedule)
	}

	if cfg.DatabasePath != "test-data/modelsite.db" {
		t.Errorf("Expected database path derived from environment, got '%s'", cfg.DatabasePath)
	}
}

// TestLoadConfigDefaults tests default values
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Expected default environment 'development', got '%s'", cfg.Environment)
	}

	if cfg.Port != "8000" {
		t.Errorf("Expected default port '8000', got '%s'", cfg.Port)
	}

	if cfg.LogFormat != "console" {
		t.Errorf("Expected default log format 'console', got '%s'", cfg.LogFormat)
	}

	if cfg.MaintenanceSchedule != "@daily" {
		t.Errorf("Expected default schedule '@daily', got '%s'", cfg.MaintenanceSchedule)
	}

	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("Expected all origins allowed by default, got %v", cfg.AllowedOrigins)
	}
}

// TestLoadConfigFile tests that environment variables override the YAML file
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modelsite.yaml")
	content := `
environment: staging
port: "7000"
log_format: json
database_path: /tmp/staging.db
max_upload_mb: 16
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("PORT", "7100")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "staging" {
		t.Errorf("Expected environment 'staging', got '%s'", cfg.Environment)
	}
	if cfg.Port != "7100" {
		t.Errorf("Expected env port '7100' to win, got '%s'", cfg.Port)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected log format 'json', got '%s'", cfg.LogFormat)
	}
	if cfg.DatabasePath != "/tmp/staging.db" {
		t.Errorf("Expected database path from file, got '%s'", cfg.DatabasePath)
	}
	if cfg.MaxUploadMB != 16 {
		t.Errorf("Expected max upload 16, got %d", cfg.MaxUploadMB)
	}
}

// TestLoadConfigInvalid tests validation failures
func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	if _, err := LoadConfig(""); err == nil {
		t.Error("Expected error for unknown log format")
	}

	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("PORT", "eighty")
	if _, err := LoadConfig(""); err == nil {
		t.Error("Expected error for non-numeric port")
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

// TestAllowCredentials tests that credentials are only allowed with explicit origins
func TestAllowCredentials(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.AllowCredentials {
		t.Error("Expected credentials to be disabled by default")
	}

	t.Setenv("ALLOW_CREDENTIALS", "true")
	if _, err := LoadConfig(""); err == nil {
		t.Error("Expected error for credentials with wildcard origin")
	}

	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000")
	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.AllowCredentials {
		t.Error("Expected credentials to be enabled")
	}
}
