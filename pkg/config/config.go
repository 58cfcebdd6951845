package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment         string   `yaml:"environment"`
	LogLevel            string   `yaml:"log_level"`
	LogFormat           string   `yaml:"log_format"`
	Port                string   `yaml:"port"`
	DatabasePath        string   `yaml:"database_path"`
	MaxUploadMB         int      `yaml:"max_upload_mb"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
	AllowCredentials    bool     `yaml:"allow_credentials"`
	MaintenanceSchedule string   `yaml:"maintenance_schedule"`
	ShutdownTimeout     int      `yaml:"shutdown_timeout"`
}

// LoadConfig loads configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence. When path is empty
// the CONFIG_FILE environment variable is consulted.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Environment:         "development",
		LogLevel:            "info",
		LogFormat:           "console",
		Port:                "8000",
		MaxUploadMB:         64,
		AllowedOrigins:      []string{"*"},
		MaintenanceSchedule: "@daily",
		ShutdownTimeout:     10,
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	config.Environment = getEnv("ENVIRONMENT", config.Environment)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
	config.Port = getEnv("PORT", config.Port)
	config.DatabasePath = getEnv("DATABASE_PATH", config.DatabasePath)
	config.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", config.MaxUploadMB)
	config.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", config.AllowedOrigins)
	config.AllowCredentials = getEnvAsBool("ALLOW_CREDENTIALS", config.AllowCredentials)
	config.ShutdownTimeout = getEnvAsInt("SHUTDOWN_TIMEOUT", config.ShutdownTimeout)
	if v, ok := os.LookupEnv("MAINTENANCE_SCHEDULE"); ok {
		config.MaintenanceSchedule = v
	}

	if config.DatabasePath == "" {
		config.DatabasePath = config.Environment + "-data/modelsite.db"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadFile overlays values from a YAML file
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the server cannot start with
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q: %w", c.Port, err)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (expected console or json)", c.LogFormat)
	}
	if c.AllowCredentials {
		for _, origin := range c.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("allow_credentials needs explicit allowed_origins, not \"*\"")
			}
		}
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %d", c.ShutdownTimeout)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList retrieves a comma separated environment variable or returns a default value
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
