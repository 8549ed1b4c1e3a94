package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/crashkeeper/internal/attributes"
	"github.com/harun/crashkeeper/internal/config"
	"github.com/harun/crashkeeper/internal/logger"
	"github.com/harun/crashkeeper/internal/metrics"
	"github.com/harun/crashkeeper/pkg/breadcrumbs"
	"github.com/harun/crashkeeper/pkg/crashplugin"
	"github.com/harun/crashkeeper/pkg/hooks"
	"github.com/harun/crashkeeper/pkg/reporter"
	"github.com/spf13/cobra"
)

var (
	initWait            bool
	initMode            string
	initRefreshInterval time.Duration
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Install the crash handler for the configured application",
	Long: `Install the native crash handler for the configured application.

The handler is handed a manifest built from the reporter configuration and
the collected device, process and application attributes. With --wait the
command keeps the handler installed until interrupted, refreshing process
attributes periodically and recording its own log as breadcrumbs.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initWait, "wait", false, "keep the crash handler installed until interrupted")
	initCmd.Flags().StringVar(&initMode, "mode", "", "crash handler mode (second-chance, handler); overrides the config file")
	initCmd.Flags().DurationVar(&initRefreshInterval, "refresh-interval", 30*time.Second, "how often process attributes are refreshed with --wait")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if initMode != "" {
		cfg.Reporter.Mode = initMode
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	mode, err := reporter.ParseMode(cfg.Reporter.Mode)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics()

	crumbs, attachments, err := openBreadcrumbs(cfg, m)
	if err != nil {
		return err
	}
	if crumbs != nil {
		defer crumbs.Close()
	}

	var sink *breadcrumbs.RotatingLogger
	if crumbs != nil && initWait {
		sink = crumbs
	}
	log, err := newLoggerWithSink(cfg, sink)
	if err != nil {
		return err
	}
	defer log.Close()

	zl := log.Component("init")

	hookManager, err := newHookManager(cfg, zl)
	if err != nil {
		return err
	}

	loader := crashplugin.NewLoader(zl, crashplugin.LoaderConfig{ExtractDir: handlerExtractDir(cfg)})
	rep := reporter.New(reporter.Options{
		Application: applicationInfo(cfg),
		Loader:      loader,
		Logger:      zl,
		Metrics:     m,
	})
	defer rep.Close()

	providers := attributeProviders(cfg, zl)
	manifest := reporter.Manifest{
		SubmissionURL:   cfg.Reporter.SubmissionURL,
		DatabasePath:    cfg.Reporter.DatabasePath,
		Attributes:      attributes.Collect(providers...),
		AttachmentPaths: append(append([]string{}, cfg.Reporter.Attachments...), attachments...),
	}

	ctx := cmd.Context()
	if !rep.Initialize(ctx, manifest, mode) {
		reason := rep.Err()
		if reason == nil {
			reason = errors.New("the native handler refused the configuration")
		}
		return fmt.Errorf("crash handler was not installed: %w", reason)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Crash handler installed (%s mode)\n", mode)

	if err := hookManager.Trigger(ctx, hooks.EventHandlerInstalled, map[string]string{
		"mode":          mode.String(),
		"database_path": cfg.Reporter.DatabasePath,
	}); err != nil {
		zl.Warn().Err(err).Msg("Handler installed hooks failed")
	}

	if !initWait {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go func() {
			if err := serveMetrics(ctx, cfg.Metrics.Address, m, zl); err != nil {
				zl.Error().Err(err).Msg("Metrics endpoint stopped")
			}
		}()
	}

	refreshAttributes(ctx, rep, initRefreshInterval, runtimeProviders(zl)...)
	return nil
}

// openBreadcrumbs starts a new breadcrumb session when breadcrumbs are enabled
// and returns the files to attach to crash reports
func openBreadcrumbs(cfg *config.Config, m *metrics.Metrics) (*breadcrumbs.RotatingLogger, []string, error) {
	if !cfg.Breadcrumbs.Enabled {
		return nil, nil, nil
	}

	crumbs := breadcrumbs.NewRotatingLogger(breadcrumbs.Options{Metrics: m})
	active, fallback := breadcrumbs.DefaultFiles(cfg.Breadcrumbs.Directory)
	if err := crumbs.Configure(active, fallback, breadcrumbs.LinesPerFile(cfg.Breadcrumbs.MaximumBreadcrumbs)); err != nil {
		return nil, nil, fmt.Errorf("failed to start breadcrumbs: %w", err)
	}
	return crumbs, []string{active, fallback}, nil
}

// newLoggerWithSink avoids handing a typed nil writer to the logger
func newLoggerWithSink(cfg *config.Config, sink *breadcrumbs.RotatingLogger) (*logger.Logger, error) {
	if sink == nil {
		return newLogger(cfg, nil)
	}
	return newLogger(cfg, sink)
}

// refreshAttributes pushes fresh attributes to the handler until ctx is done
func refreshAttributes(ctx context.Context, rep *reporter.Reporter, interval time.Duration, providers ...attributes.Provider) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep.UpdateAttributes(ctx, attributes.Collect(providers...))
		}
	}
}
