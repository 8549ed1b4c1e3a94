package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSubmissionURL validates the crash submission endpoint
func (v *Validator) ValidateSubmissionURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("submission URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid submission URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid submission URL scheme: %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("submission URL has no host")
	}

	return nil
}

// ValidateMode validates the reporter mode
func (v *Validator) ValidateMode(mode string) error {
	validModes := []string{ModeSecondChance, ModeHandler}
	for _, valid := range validModes {
		if mode == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid reporter mode: %s (must be one of: %s)", mode, strings.Join(validModes, ", "))
}

// ValidateDirectory validates a path that must be absolute when set
func (v *Validator) ValidateDirectory(name, dir string) error {
	if dir == "" {
		return nil
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%s must be an absolute path, got %s", name, dir)
	}
	return nil
}

// ValidateMaximumBreadcrumbs validates the breadcrumb budget
func (v *Validator) ValidateMaximumBreadcrumbs(max int) error {
	if max <= 0 {
		return fmt.Errorf("maximum breadcrumbs must be positive, got %d", max)
	}
	if max > 10000 {
		return fmt.Errorf("maximum breadcrumbs too large (max 10000), got %d", max)
	}
	return nil
}

// ValidateAttributeKey validates a crash attribute name
func (v *Validator) ValidateAttributeKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("attribute key cannot be empty")
	}
	if strings.ContainsAny(key, "=\x00") {
		return fmt.Errorf("attribute key %q contains a forbidden character", key)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateMetricsAddress validates the host:port the metrics endpoint listens on
func (v *Validator) ValidateMetricsAddress(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid metrics address %q: %w", addr, err)
	}
	return nil
}

// ValidateHook validates a configured hook; disabled hooks are ignored
func (v *Validator) ValidateHook(hook HookConfig) error {
	if !hook.Enabled {
		return nil
	}
	if strings.TrimSpace(hook.Event) == "" {
		return fmt.Errorf("hook %q has no event", hook.ID)
	}
	if strings.TrimSpace(hook.Script) == "" {
		return fmt.Errorf("hook %q has no script", hook.ID)
	}
	if hook.TimeoutSeconds < 0 {
		return fmt.Errorf("hook %q timeout cannot be negative, got %d", hook.ID, hook.TimeoutSeconds)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateSubmissionURL(cfg.Reporter.SubmissionURL); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateMode(cfg.Reporter.Mode); err != nil {
		errors = append(errors, err)
	}
	for key := range cfg.Reporter.Attributes {
		if err := v.ValidateAttributeKey(key); err != nil {
			errors = append(errors, err)
		}
	}

	dirs := []struct {
		name string
		path string
	}{
		{"reporter.database_path", cfg.Reporter.DatabasePath},
		{"application.native_library_dir", cfg.Application.NativeLibraryDir},
		{"application.data_dir", cfg.Application.DataDir},
		{"breadcrumbs.directory", cfg.Breadcrumbs.Directory},
	}
	for _, dir := range dirs {
		if err := v.ValidateDirectory(dir.name, dir.path); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Breadcrumbs.Enabled {
		if err := v.ValidateMaximumBreadcrumbs(cfg.Breadcrumbs.MaximumBreadcrumbs); err != nil {
			errors = append(errors, err)
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if cfg.Metrics.Enabled {
		if err := v.ValidateMetricsAddress(cfg.Metrics.Address); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Hooks.Enabled {
		for _, hook := range cfg.Hooks.Hooks {
			if err := v.ValidateHook(hook); err != nil {
				errors = append(errors, err)
			}
		}
	}

	return errors
}
