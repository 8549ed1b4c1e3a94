package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harun/crashkeeper/internal/crashdb"
	"github.com/harun/crashkeeper/internal/environment"
	"github.com/harun/crashkeeper/pkg/breadcrumbs"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show crash database and breadcrumb status",
	Long:  `Show the crash dumps waiting in the crash database and the current breadcrumb files.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	crashDir := filepath.Join(cfg.Reporter.DatabasePath, environment.CrashDirectoryName)

	dumps, err := crashdb.Pending(crashDir)
	if err != nil {
		return fmt.Errorf("failed to read crash database: %w", err)
	}

	fmt.Fprintf(out, "Crash database: %s\n", crashDir)
	fmt.Fprintf(out, "Crash dumps: %d\n", len(dumps))
	if latest, ok := latestModTime(dumps); ok {
		fmt.Fprintf(out, "Last crash: %s ago\n", formatDuration(time.Since(latest)))
	}

	if !cfg.Breadcrumbs.Enabled {
		fmt.Fprintln(out, "Breadcrumbs: disabled")
		return nil
	}

	active, fallback := breadcrumbs.DefaultFiles(cfg.Breadcrumbs.Directory)
	fmt.Fprintf(out, "Breadcrumbs: %d of %d lines\n",
		countLines(active)+countLines(fallback), breadcrumbLines(cfg.Breadcrumbs.MaximumBreadcrumbs))

	return nil
}

func latestModTime(paths []string) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !found || info.ModTime().After(latest) {
			latest = info.ModTime()
			found = true
		}
	}
	return latest, found
}

func countLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	return n
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
