package reporter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	t.Run("valid manifest", func(t *testing.T) {
		data := []byte(`{
			"submission_url": "https://submit.backtrace.io/universe/token/minidump",
			"database_path": "/var/lib/app",
			"attributes": {"build": "42"},
			"attachment_paths": ["/var/lib/app/bt-breadcrumbs-0"]
		}`)

		m, err := ParseManifest(data)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/app", m.DatabasePath)
		assert.Equal(t, "42", m.Attributes["build"])
		assert.Equal(t, []string{"/var/lib/app/bt-breadcrumbs-0"}, m.AttachmentPaths)
	})

	t.Run("missing required fields", func(t *testing.T) {
		_, err := ParseManifest([]byte(`{"attributes": {}}`))
		assert.ErrorIs(t, err, ErrInvalidManifest)
	})

	t.Run("non string attribute", func(t *testing.T) {
		_, err := ParseManifest([]byte(`{
			"submission_url": "https://example.com",
			"database_path": "/db",
			"attributes": {"build": 42}
		}`))
		assert.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := ParseManifest([]byte(`{
			"submission_url": "https://example.com",
			"database_path": "/db",
			"upload": true
		}`))
		assert.ErrorIs(t, err, ErrInvalidManifest)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := ParseManifest([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"submission_url": "http://localhost:8080/post", "database_path": "/db"}`), 0644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/post", m.SubmissionURL)

	_, err = LoadManifest(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestManifestValidate(t *testing.T) {
	assert.NoError(t, testManifest().Validate())

	m := testManifest()
	m.DatabasePath = ""
	assert.ErrorIs(t, m.Validate(), ErrInvalidManifest)
}

func TestWithAttributeCopies(t *testing.T) {
	original := testManifest()
	updated := original.WithAttribute("error.type", "Crash")

	assert.NotContains(t, original.Attributes, "error.type")
	assert.Equal(t, "Crash", updated.Attributes["error.type"])
}
