package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/harun/crashkeeper/internal/attributes"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var attributesJSON bool

var attributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "Print the attributes attached to crash reports",
	RunE:  runAttributes,
}

func init() {
	attributesCmd.Flags().BoolVar(&attributesJSON, "json", false, "print attributes as a JSON object")
	rootCmd.AddCommand(attributesCmd)
}

func runAttributes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	attrs := attributes.Collect(attributeProviders(cfg, zerolog.Nop())...)
	out := cmd.OutOrStdout()

	if attributesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(attrs)
	}

	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "%s=%s\n", key, attrs[key])
	}
	return nil
}
