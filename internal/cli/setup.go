package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/harun/crashkeeper/internal/attributes"
	"github.com/harun/crashkeeper/internal/config"
	"github.com/harun/crashkeeper/internal/environment"
	"github.com/harun/crashkeeper/internal/logger"
	"github.com/harun/crashkeeper/internal/metrics"
	"github.com/harun/crashkeeper/pkg/hooks"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// loadConfig reads the config named by --config
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger. Every log line is also appended to
// breadcrumbs when it is not nil.
func newLogger(cfg *config.Config, breadcrumbs io.Writer) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
		Console:     true,
		Pretty:      true,
		Redaction:   cfg.Logging.Redaction,
		MaxSize:     cfg.Logging.MaxSize,
		MaxAge:      cfg.Logging.MaxAge,
		Compress:    cfg.Logging.Compress,
		Breadcrumbs: breadcrumbs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// applicationInfo maps configured install paths to the environment builder input
func applicationInfo(cfg *config.Config) environment.ApplicationInfo {
	return environment.ApplicationInfo{
		PackagePath:            cfg.Application.PackagePath,
		NativeLibraryDirectory: cfg.Application.NativeLibraryDir,
	}
}

// runtimeProviders report values that change while the application runs
func runtimeProviders(log zerolog.Logger) []attributes.Provider {
	return []attributes.Provider{
		attributes.NewProcessProvider(log),
		attributes.NewMemoryProvider(log),
	}
}

// attributeProviders returns every provider used for crash attributes.
// Configured attributes come last so they win.
func attributeProviders(cfg *config.Config, log zerolog.Logger) []attributes.Provider {
	providers := []attributes.Provider{
		attributes.NewApplicationProvider(cfg.Application.Name, cfg.Application.Version),
		attributes.NewDeviceProvider(afero.NewOsFs(), log),
	}
	providers = append(providers, runtimeProviders(log)...)
	return append(providers, attributes.ProviderFunc(func() map[string]string {
		return cfg.Reporter.Attributes
	}))
}

// newHookManager builds the lifecycle hooks from the config
func newHookManager(cfg *config.Config, log zerolog.Logger) (*hooks.Manager, error) {
	configured := make([]hooks.Hook, 0, len(cfg.Hooks.Hooks))
	for _, hook := range cfg.Hooks.Hooks {
		configured = append(configured, hooks.Hook{
			ID:      hook.ID,
			Event:   hook.Event,
			Script:  hook.Script,
			Timeout: time.Duration(hook.TimeoutSeconds) * time.Second,
			Enabled: hook.Enabled,
		})
	}

	manager, err := hooks.NewManager(hooks.Config{
		Enabled: cfg.Hooks.Enabled,
		Hooks:   configured,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid hooks: %w", err)
	}
	return manager, nil
}

// handlerExtractDir is where handlers unpacked from the package are kept
func handlerExtractDir(cfg *config.Config) string {
	return filepath.Join(cfg.Application.DataDir, "handlers")
}

// serveMetrics exposes m on addr until ctx is done
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
