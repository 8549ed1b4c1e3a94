package cli

import (
	"fmt"

	"github.com/harun/crashkeeper/internal/abi"
	"github.com/harun/crashkeeper/internal/environment"
	"github.com/harun/crashkeeper/internal/nativehandler"
	"github.com/spf13/cobra"
)

var envAll bool

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the environment of the second-chance process",
	Long: `Print the variables the second-chance crash handler process is started
with for the configured application. Only the injected variables are shown
unless --all is given.`,
	RunE: runEnv,
}

func init() {
	envCmd.Flags().BoolVar(&envAll, "all", false, "print the inherited environment too")
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tag := abi.Current()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# abi=%s supported=%t\n", tag, abi.IsSupported(tag))

	env := environment.NewBuilder(nativehandler.NewLocator(nil)).Build(applicationInfo(cfg), tag)

	keys := environment.InjectedKeys
	if envAll {
		keys = env.Keys()
	}
	for _, key := range keys {
		fmt.Fprintf(out, "%s=%s\n", key, env.Get(key))
	}
	return nil
}
