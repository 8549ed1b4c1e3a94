package cli

import (
	"errors"
	"os"

	"github.com/harun/crashkeeper/internal/bootstrap"
	"github.com/harun/crashkeeper/internal/environment"
	"github.com/harun/crashkeeper/internal/logger"
	"github.com/harun/crashkeeper/pkg/crashplugin"
	"github.com/spf13/cobra"
)

// errCrashNotCaptured makes the second-chance process exit with a failure status
var errCrashNotCaptured = errors.New("crash dump was not captured")

var handleCmd = &cobra.Command{
	Use:   "handle [handler arguments...]",
	Short: "Capture a crash from the second-chance process",
	Long: `Entry point of the second-chance crash handler process.

Everything is rediscovered from the environment: the handler library comes
from BACKTRACE_CRASH_HANDLER and all arguments are passed to it untouched.`,
	DisableFlagParsing: true,
	RunE:               runHandle,
}

func init() {
	rootCmd.AddCommand(handleCmd)
}

func runHandle(cmd *cobra.Command, args []string) error {
	log, err := logger.New(logger.Config{
		Level:     "info",
		Console:   true,
		Redaction: true,
	})
	if err != nil {
		return err
	}
	defer log.Close()

	zl := log.Component("handle")
	loader := crashplugin.NewLoader(zl, crashplugin.LoaderConfig{})
	defer loader.Close()

	runner := bootstrap.NewRunner(loader, zl, nil)
	if !runner.Run(cmd.Context(), args, environment.FromEnviron(os.Environ())) {
		return errCrashNotCaptured
	}
	return nil
}
