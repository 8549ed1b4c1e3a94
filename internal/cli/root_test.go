package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		output, err := run(t, "", "--version")
		require.NoError(t, err)

		assert.Contains(t, output, "crashkeeper version")
		assert.Contains(t, output, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := run(t, "", "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "crashkeeper")
		assert.Contains(t, output, "out-of-process crash handler")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)
	})

	t.Run("subcommands", func(t *testing.T) {
		for _, name := range []string{"configure", "init", "handle", "env", "breadcrumb", "attributes", "status", "watch"} {
			assert.True(t, hasCommand(name), "%s command should exist", name)
		}
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}
