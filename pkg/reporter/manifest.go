package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Manifest is everything the native layer needs to capture and submit
// crashes. It is handed over by value.
type Manifest struct {
	SubmissionURL   string            `json:"submission_url"`
	DatabasePath    string            `json:"database_path"`
	HandlerPath     string            `json:"handler_path,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	AttachmentPaths []string          `json:"attachment_paths,omitempty"`
}

var manifestSchema = gojsonschema.NewStringLoader(ManifestSchema)

// Validate checks the manifest against ManifestSchema
func (m Manifest) Validate() error {
	return validateDocument(gojsonschema.NewGoLoader(m))
}

// WithAttribute returns a copy of m with key set to value
func (m Manifest) WithAttribute(key, value string) Manifest {
	attrs := make(map[string]string, len(m.Attributes)+1)
	for k, v := range m.Attributes {
		attrs[k] = v
	}
	attrs[key] = value
	m.Attributes = attrs
	return m
}

// LoadManifest loads and validates a manifest from a JSON file
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses and validates a manifest from JSON bytes
func ParseManifest(data []byte) (Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest JSON: %w", err)
	}

	if err := validateDocument(gojsonschema.NewBytesLoader(data)); err != nil {
		return Manifest{}, err
	}

	return manifest, nil
}

func validateDocument(document gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(manifestSchema, document)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(msgs, "; "))
	}

	return nil
}
