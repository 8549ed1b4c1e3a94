package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSubmissionURL(t *testing.T) {
	v := NewValidator()

	t.Run("valid url", func(t *testing.T) {
		err := v.ValidateSubmissionURL("https://universe.sp.backtrace.io:6098/post?format=minidump&token=abc")
		assert.NoError(t, err)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		err := v.ValidateSubmissionURL("ftp://example.com/post")
		assert.Error(t, err)
	})

	t.Run("missing host", func(t *testing.T) {
		err := v.ValidateSubmissionURL("https:///post")
		assert.Error(t, err)
	})

	t.Run("empty url", func(t *testing.T) {
		err := v.ValidateSubmissionURL("")
		assert.Error(t, err)
	})
}

func TestValidateMode(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateMode(ModeSecondChance))
	assert.NoError(t, v.ValidateMode(ModeHandler))
	assert.Error(t, v.ValidateMode(""))
	assert.Error(t, v.ValidateMode("inline"))
}

func TestValidateDirectory(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateDirectory("dir", ""))
	assert.NoError(t, v.ValidateDirectory("dir", "/data/local"))
	assert.Error(t, v.ValidateDirectory("dir", "relative/path"))
}

func TestValidateMaximumBreadcrumbs(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateMaximumBreadcrumbs(1))
	assert.NoError(t, v.ValidateMaximumBreadcrumbs(100))
	assert.Error(t, v.ValidateMaximumBreadcrumbs(0))
	assert.Error(t, v.ValidateMaximumBreadcrumbs(-5))
	assert.Error(t, v.ValidateMaximumBreadcrumbs(10001))
}

func TestValidateAttributeKey(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAttributeKey("application.version"))
	assert.Error(t, v.ValidateAttributeKey(" "))
	assert.Error(t, v.ValidateAttributeKey("a=b"))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	validLevels := []string{"debug", "info", "warn", "error"}
	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			err := v.ValidateLogLevel(level)
			assert.NoError(t, err)
		})
	}

	t.Run("invalid level", func(t *testing.T) {
		err := v.ValidateLogLevel("trace")
		assert.Error(t, err)
	})
}

func TestValidateMetricsAddress(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateMetricsAddress("127.0.0.1:9464"))
	assert.NoError(t, v.ValidateMetricsAddress(":9464"))
	assert.Error(t, v.ValidateMetricsAddress("localhost"))
}

func TestValidateHook(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateHook(HookConfig{ID: "off"}))
	assert.NoError(t, v.ValidateHook(HookConfig{ID: "ok", Event: "crash.detected", Script: "true", Enabled: true}))
	assert.Error(t, v.ValidateHook(HookConfig{ID: "no-event", Script: "true", Enabled: true}))
	assert.Error(t, v.ValidateHook(HookConfig{ID: "no-script", Event: "crash.detected", Enabled: true}))
	assert.Error(t, v.ValidateHook(HookConfig{ID: "negative", Event: "crash.detected", Script: "true", TimeoutSeconds: -1, Enabled: true}))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()
		cfg.Application.DataDir = "/var/lib/crashkeeper"

		errors := v.ValidateConfig(cfg)
		assert.Empty(t, errors)
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := validConfig()
		cfg.Reporter.SubmissionURL = "not a url"
		cfg.Reporter.Mode = "inline"
		cfg.Reporter.Attributes = map[string]string{"": "x"}
		cfg.Breadcrumbs.Directory = "relative"
		cfg.Logging.Level = "verbose"
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = "nope"
		cfg.Hooks.Enabled = true
		cfg.Hooks.Hooks = []HookConfig{{ID: "broken", Event: "crash.detected", Enabled: true}}

		errors := v.ValidateConfig(cfg)
		assert.Len(t, errors, 7)
	})
}
