package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/harun/crashkeeper/internal/metrics"
	"github.com/harun/crashkeeper/pkg/breadcrumbs"
	"github.com/spf13/cobra"
)

var breadcrumbCmd = &cobra.Command{
	Use:   "breadcrumb [message...]",
	Short: "Record breadcrumbs from arguments or standard input",
	Long: `Start a new breadcrumb session and record breadcrumbs.

With arguments a single breadcrumb is written. Without arguments every line
read from standard input becomes a breadcrumb, so application output can be
piped in. Starting a session discards the previous active file.`,
	RunE: runBreadcrumb,
}

func init() {
	rootCmd.AddCommand(breadcrumbCmd)
}

func runBreadcrumb(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Breadcrumbs.Enabled {
		return fmt.Errorf("breadcrumbs are disabled in the configuration")
	}

	crumbs, files, err := openBreadcrumbs(cfg, metrics.NewMetrics())
	if err != nil {
		return err
	}
	defer crumbs.Close()

	written, dropped := 0, 0
	record := func(line string) {
		if crumbs.Append(line + "\n") {
			written++
		} else {
			dropped++
		}
	}

	if len(args) > 0 {
		record(strings.Join(args, " "))
	} else {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			record(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read breadcrumbs: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d breadcrumbs written to %s\n", written, files[0])
	if dropped > 0 {
		return fmt.Errorf("%d breadcrumbs could not be written", dropped)
	}
	return nil
}

// breadcrumbLines is the total line budget shared by both files
func breadcrumbLines(maximum int) int {
	return breadcrumbs.LinesPerFile(maximum) * 2
}
