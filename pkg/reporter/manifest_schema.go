package reporter

// ManifestSchema is the JSON Schema for crash handler manifests
const ManifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["submission_url", "database_path"],
  "properties": {
    "submission_url": {
      "type": "string",
      "pattern": "^https?://[^/]+",
      "description": "Endpoint receiving crash reports"
    },
    "database_path": {
      "type": "string",
      "minLength": 1,
      "description": "Root of the crash database"
    },
    "handler_path": {
      "type": "string",
      "description": "Standalone crash handler executable"
    },
    "attributes": {
      "type": "object",
      "propertyNames": {
        "minLength": 1
      },
      "additionalProperties": {
        "type": "string"
      }
    },
    "attachment_paths": {
      "type": "array",
      "items": {
        "type": "string",
        "minLength": 1
      }
    }
  },
  "additionalProperties": false
}`
