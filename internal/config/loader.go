package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file. Values can be overridden with
// CRASHKEEPER_ prefixed environment variables, e.g. CRASHKEEPER_REPORTER_SUBMISSION_URL.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to get home directory")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("CRASHKEEPER")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	bindEnv(v)

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyDefaultPaths(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to get home directory")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("reporter", cfg.Reporter)
	v.Set("application", cfg.Application)
	v.Set("breadcrumbs", cfg.Breadcrumbs)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("hooks", cfg.Hooks)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".crashkeeper", "crashkeeper.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}

// applyDefaultPaths fills every path left empty relative to the data directory
func applyDefaultPaths(cfg *Config) error {
	if cfg.Application.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.Application.DataDir = filepath.Join(home, ".crashkeeper")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.Application.DataDir, "crashkeeper.log")
	}

	if cfg.Reporter.DatabasePath == "" {
		cfg.Reporter.DatabasePath = cfg.Application.DataDir
	}

	if cfg.Breadcrumbs.Directory == "" {
		cfg.Breadcrumbs.Directory = filepath.Join(cfg.Application.DataDir, "breadcrumbs")
	}

	return nil
}
