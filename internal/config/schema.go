package config

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// attentionSchema is the JSON Schema for the attention policy document.
// The document is hand-editable, so every accepted shape is spelled out and
// anything else is rejected before it can reach the pipeline.
const attentionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Attention Policy",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "thresholds": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0, "maximum": 10}
    },
    "default_threshold": {"type": "number", "minimum": 0, "maximum": 10},
    "channel_preferences": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string", "minLength": 1}
      }
    },
    "guardrails": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "provider": {"type": "string", "enum": ["openai", "ollama", "anthropic"]},
        "model": {"type": "string", "minLength": 1},
        "base_url": {"type": "string"},
        "require_api_key": {"type": "boolean"},
        "max_output_tokens": {"type": "integer", "minimum": 1},
        "allowed_tools": {"type": "array", "items": {"type": "string"}},
        "policy_ref": {"type": "string"},
        "inject_headers": {"type": "boolean"}
      }
    },
    "dispatch_targets": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "transport": {"type": "string", "minLength": 1},
          "channel_id": {"type": "string"},
          "thread_ts": {"type": "string"},
          "mention": {"type": "string"}
        }
      }
    }
  }
}`

var attentionSchemaLoader = gojsonschema.NewStringLoader(attentionSchema)

// validateAttentionDocument validates policy JSON against the schema. Invalid
// JSON and schema violations both come back as one error carrying every
// violation, so an operator can fix a hand-edited document in one pass.
func validateAttentionDocument(data []byte) error {
	result, err := gojsonschema.Validate(attentionSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errMsg string
		for _, verr := range result.Errors() {
			errMsg += fmt.Sprintf("- %s\n", verr)
		}
		return fmt.Errorf("schema validation errors:\n%s", errMsg)
	}

	return nil
}
