package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.NotNil(t, cfg)
		assert.Equal(t, ModeSecondChance, cfg.Reporter.Mode)
		assert.Equal(t, 100, cfg.Breadcrumbs.MaximumBreadcrumbs)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"reporter": {
				"submission_url": "https://example.com/post",
				"mode": "handler",
				"attributes": {"build": "42"}
			},
			"application": {
				"native_library_dir": "/opt/app/lib"
			},
			"breadcrumbs": {
				"maximum_breadcrumbs": 20
			}
		}`
		err := os.WriteFile(configPath, []byte(testConfig), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.Equal(t, "https://example.com/post", cfg.Reporter.SubmissionURL)
		assert.Equal(t, ModeHandler, cfg.Reporter.Mode)
		assert.Equal(t, "42", cfg.Reporter.Attributes["build"])
		assert.Equal(t, "/opt/app/lib", cfg.Application.NativeLibraryDir)
		assert.Equal(t, 20, cfg.Breadcrumbs.MaximumBreadcrumbs)
		assert.True(t, cfg.Breadcrumbs.Enabled)
	})

	t.Run("set default paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{"application": {"data_dir": "` + tmpDir + `"}}`
		err := os.WriteFile(configPath, []byte(testConfig), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.Equal(t, tmpDir, cfg.Application.DataDir)
		assert.Equal(t, filepath.Join(tmpDir, "crashkeeper.log"), cfg.Logging.File)
		assert.Equal(t, tmpDir, cfg.Reporter.DatabasePath)
		assert.Equal(t, filepath.Join(tmpDir, "breadcrumbs"), cfg.Breadcrumbs.Directory)
	})

	t.Run("environment overrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		t.Setenv("CRASHKEEPER_REPORTER_SUBMISSION_URL", "https://env.example.com/post")
		t.Setenv("CRASHKEEPER_BREADCRUMBS_MAXIMUM_BREADCRUMBS", "64")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "https://env.example.com/post", cfg.Reporter.SubmissionURL)
		assert.Equal(t, 64, cfg.Breadcrumbs.MaximumBreadcrumbs)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")

		err := os.WriteFile(configPath, []byte("invalid json"), 0644)
		require.NoError(t, err)

		loader := NewLoader(configPath)
		_, err = loader.Load()

		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("save config to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		cfg := DefaultConfig()
		cfg.Reporter.SubmissionURL = "https://example.com/post"
		cfg.Application.PackagePath = "/opt/app/base.apk"

		loader := NewLoader(configPath)
		err := loader.Save(cfg)

		require.NoError(t, err)

		_, err = os.Stat(configPath)
		assert.NoError(t, err)

		loadedCfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/post", loadedCfg.Reporter.SubmissionURL)
		assert.Equal(t, "/opt/app/base.apk", loadedCfg.Application.PackagePath)
	})

	t.Run("hooks survive a round trip", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")

		cfg := DefaultConfig()
		cfg.Hooks.Enabled = true
		cfg.Hooks.Hooks = []HookConfig{{
			ID:             "notify",
			Event:          "crash.detected",
			Script:         "logger crash",
			TimeoutSeconds: 5,
			Enabled:        true,
		}}
		require.NoError(t, NewLoader(configPath).Save(cfg))

		loadedCfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.True(t, loadedCfg.Hooks.Enabled)
		require.Len(t, loadedCfg.Hooks.Hooks, 1)
		assert.Equal(t, cfg.Hooks.Hooks[0], loadedCfg.Hooks.Hooks[0])
	})

	t.Run("create directory if not exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "subdir", "config.json")

		loader := NewLoader(configPath)
		err := loader.Save(DefaultConfig())

		require.NoError(t, err)

		_, err = os.Stat(filepath.Dir(configPath))
		assert.NoError(t, err)
	})
}

func TestLoaderGetConfigPath(t *testing.T) {
	t.Run("custom path", func(t *testing.T) {
		loader := NewLoader("/custom/path/config.json")
		path := loader.GetConfigPath()
		assert.Equal(t, "/custom/path/config.json", path)
	})

	t.Run("default path", func(t *testing.T) {
		loader := NewLoader("")
		path := loader.GetConfigPath()
		assert.NotEmpty(t, path)
		assert.Contains(t, path, ".crashkeeper")
	})
}
