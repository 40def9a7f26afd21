package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "govlens.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/govlens"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/govlens/config.yaml)
// 3. Project config (govlens.yaml in the current directory)
// 4. Environment variables (GOVLENS_*)
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Load user config
	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	// Load project config
	if projectConfig, err := LoadFromFile(ProjectConfigFile); err == nil {
		l.logger.Debug("Loaded project config", slog.String("path", ProjectConfigFile))
		config.Merge(projectConfig)
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load project config", slog.String("path", ProjectConfigFile), slog.String("error", err.Error()))
	}

	// Environment overrides
	l.applyEnv(config)

	// Validate final config
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFrom loads an explicit config file over the defaults, skipping
// the user and project layers. Environment overrides still apply.
func (l *Loader) LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()

	fileConfig, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	config.Merge(fileConfig)

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv applies GOVLENS_* environment variable overrides.
func (l *Loader) applyEnv(config *Config) {
	if v := os.Getenv("GOVLENS_LISTEN"); v != "" {
		config.Server.Listen = v
	}
	if v := os.Getenv("GOVLENS_RESOLVER_MODE"); v != "" {
		config.Resolver.Mode = v
	}
	if v := os.Getenv("GOVLENS_RESOLVER_URL"); v != "" {
		config.Resolver.URL = v
	}
	if v := os.Getenv("GOVLENS_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Fetch.Timeout = d
		} else {
			l.logger.Warn("Invalid GOVLENS_FETCH_TIMEOUT", slog.String("value", v))
		}
	}
	if v := os.Getenv("GOVLENS_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Fetch.RetryAttempts = n
		} else {
			l.logger.Warn("Invalid GOVLENS_RETRY_ATTEMPTS", slog.String("value", v))
		}
	}
}

// userConfigPath returns the path to the user-level config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}
