// Package config manages application configuration from config files,
// environment variables and default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ServiceConfig identifies the relay against the upstream AI and auth
// services.
type ServiceConfig struct {
	AppID           string `mapstructure:"app_id"            validate:"required"`
	APIKey          string `mapstructure:"api_key"           validate:"required"`
	AuthWebsite     string `mapstructure:"auth_website"      validate:"required,url"`
	AuthAPIEndpoint string `mapstructure:"auth_api_endpoint" validate:"required,url"`
	BaseURL         string `mapstructure:"base_url"          validate:"required,url"`
	OwnerID         string `mapstructure:"owner_id"`
	DataDir         string `mapstructure:"data_dir"`
}

// CleanupConfig controls the scheduled token purge.
type CleanupConfig struct {
	Interval      time.Duration `mapstructure:"interval"       validate:"min=1m"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"min=1h"`
}

// Config is the root application configuration. Values can be set via
// config.yaml or environment variables prefixed with RELAY_
// (e.g. RELAY_SERVICE_API_KEY).
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
	Service  ServiceConfig  `mapstructure:"service"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

// LoadConfig loads and validates configuration from defaults, the config
// file at path, and RELAY_* environment variables, in that order of
// precedence.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)
	v.SetDefault("database.path", "personagate.db")
	// Registered empty so AutomaticEnv can bind RELAY_SERVICE_* overrides.
	v.SetDefault("service.app_id", "")
	v.SetDefault("service.api_key", "")
	v.SetDefault("service.owner_id", "")
	v.SetDefault("service.auth_website", "https://auth.example.com")
	v.SetDefault("service.auth_api_endpoint", "https://auth.example.com/api")
	v.SetDefault("service.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("service.data_dir", "data")
	v.SetDefault("cleanup.interval", 24*time.Hour)
	v.SetDefault("cleanup.token_lifetime", 30*24*time.Hour)

	v.SetConfigFile(path)
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), os.IsNotExist(err):
			// Missing config file is fine, defaults and env cover it.
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
