package config

import (
	"encoding/json"
	"fmt"
)

const (
	// ModeSecondChance runs the crash handler in a separate process
	ModeSecondChance = "second-chance"
	// ModeHandler hands crashes to the handler binary shipped next to the native libraries
	ModeHandler = "handler"
)

// Config represents the main crashkeeper configuration
type Config struct {
	// Reporter
	Reporter ReporterConfig `json:"reporter" mapstructure:"reporter"`

	// Application being protected
	Application ApplicationConfig `json:"application" mapstructure:"application"`

	// Breadcrumbs
	Breadcrumbs BreadcrumbsConfig `json:"breadcrumbs" mapstructure:"breadcrumbs"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Hooks
	Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`
}

// ReporterConfig holds crash submission settings
type ReporterConfig struct {
	SubmissionURL string            `json:"submission_url" mapstructure:"submission_url"`
	DatabasePath  string            `json:"database_path" mapstructure:"database_path"`
	Attributes    map[string]string `json:"attributes" mapstructure:"attributes"`
	Attachments   []string          `json:"attachments" mapstructure:"attachments"`
	Mode          string            `json:"mode" mapstructure:"mode"` // second-chance, handler
}

// ApplicationConfig describes the installed application
type ApplicationConfig struct {
	Name             string `json:"name" mapstructure:"name"`
	Version          string `json:"version" mapstructure:"version"`
	NativeLibraryDir string `json:"native_library_dir" mapstructure:"native_library_dir"`
	PackagePath      string `json:"package_path" mapstructure:"package_path"`
	DataDir          string `json:"data_dir" mapstructure:"data_dir"`
}

// BreadcrumbsConfig holds breadcrumb storage settings
type BreadcrumbsConfig struct {
	Enabled            bool   `json:"enabled" mapstructure:"enabled"`
	Directory          string `json:"directory" mapstructure:"directory"`
	MaximumBreadcrumbs int    `json:"maximum_breadcrumbs" mapstructure:"maximum_breadcrumbs"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// HooksConfig holds scripts run on crash lifecycle events
type HooksConfig struct {
	Enabled bool         `json:"enabled" mapstructure:"enabled"`
	Hooks   []HookConfig `json:"hooks" mapstructure:"hooks"`
}

// HookConfig binds a shell script to an event (handler.installed, crash.detected)
type HookConfig struct {
	ID             string `json:"id" mapstructure:"id"`
	Event          string `json:"event" mapstructure:"event"`
	Script         string `json:"script" mapstructure:"script"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Reporter: ReporterConfig{
			Attributes:  map[string]string{},
			Attachments: []string{},
			Mode:        ModeSecondChance,
		},
		Breadcrumbs: BreadcrumbsConfig{
			Enabled:            true,
			MaximumBreadcrumbs: 100,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   10,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
		Hooks: HooksConfig{
			Enabled: false,
			Hooks:   []HookConfig{},
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is usable for initializing the reporter
func (c *Config) Validate() error {
	if c.Reporter.SubmissionURL == "" {
		return fmt.Errorf("reporter.submission_url is required")
	}

	if c.Reporter.Mode != ModeSecondChance && c.Reporter.Mode != ModeHandler {
		return fmt.Errorf("invalid reporter mode: %s", c.Reporter.Mode)
	}

	if c.Application.NativeLibraryDir == "" {
		return fmt.Errorf("application.native_library_dir is required")
	}

	if c.Reporter.Mode == ModeSecondChance && c.Application.PackagePath == "" {
		return fmt.Errorf("application.package_path is required in %s mode", ModeSecondChance)
	}

	if c.Breadcrumbs.Enabled && c.Breadcrumbs.MaximumBreadcrumbs <= 0 {
		return fmt.Errorf("breadcrumbs.maximum_breadcrumbs must be positive, got %d", c.Breadcrumbs.MaximumBreadcrumbs)
	}

	return nil
}
