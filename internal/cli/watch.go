package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/harun/crashkeeper/internal/crashdb"
	"github.com/harun/crashkeeper/internal/environment"
	"github.com/harun/crashkeeper/internal/metrics"
	"github.com/harun/crashkeeper/pkg/hooks"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var watchMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report new crash dumps as they appear",
	Long: `Watch the crash database and print the path of every new crash dump.
Hooks bound to crash.detected run for each dump. With --metrics-addr the
prometheus metrics are served on /metrics.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve metrics on this address (defaults to the configured address when metrics are enabled)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, nil)
	if err != nil {
		return err
	}
	defer log.Close()
	zl := log.Component("watch")

	crashDir, err := environment.EnsureCrashDirectory(afero.NewOsFs(), cfg.Reporter.DatabasePath)
	if err != nil {
		return err
	}

	hookManager, err := newHookManager(cfg, zl)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	out := cmd.OutOrStdout()
	var outMu sync.Mutex

	watcher, err := crashdb.NewWatcher(crashdb.Config{
		Directory: crashDir,
		Logger:    zl,
		Metrics:   m,
		OnDump: func(path string) error {
			outMu.Lock()
			_, err := fmt.Fprintln(out, path)
			outMu.Unlock()
			if err != nil {
				return err
			}
			return hookManager.Trigger(ctx, hooks.EventCrashDetected, map[string]string{
				"path":      path,
				"dump_name": filepath.Base(path),
				"database":  crashDir,
			})
		},
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	addr := watchMetricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Address
	}
	if addr != "" {
		return serveMetrics(ctx, addr, m, zl)
	}

	<-ctx.Done()
	return nil
}
