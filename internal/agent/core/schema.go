package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformedResponse marks a completion the pipeline could not decode.
var ErrMalformedResponse = errors.New("malformed completion response")

const planSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["tool", "args"],
    "properties": {
      "tool": {"type": "string"},
      "reasoning": {"type": "string"}
    }
  }
}`

const evaluateSchemaJSON = `{
  "type": "object",
  "required": ["updated_findings", "updated_objectives"],
  "$defs": {
    "objective": {
      "type": "object",
      "required": ["topic", "expertise"],
      "properties": {
        "topic": {"type": "string"},
        "expertise": {"type": "number"}
      }
    }
  },
  "properties": {
    "updated_findings": {
      "type": "object",
      "required": ["remark"],
      "properties": {
        "remark": {"type": "string"},
        "generated_objectives": {"type": "array", "items": {"$ref": "#/$defs/objective"}},
        "intermediate_objectives": {"type": "array", "items": {"$ref": "#/$defs/objective"}}
      }
    },
    "updated_objectives": {"type": "array", "items": {"$ref": "#/$defs/objective"}}
  }
}`

var (
	planSchema     = jsonschema.MustCompileString("plan.json", planSchemaJSON)
	evaluateSchema = jsonschema.MustCompileString("evaluate.json", evaluateSchemaJSON)
)

// decodeResponse parses a completion as JSON, checks it against schema and
// decodes it into out. Only a surrounding markdown code fence is tolerated.
func decodeResponse(raw string, schema *jsonschema.Schema, out any) error {
	text := unfence(raw)
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func unfence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "```")
	}
	return strings.TrimSpace(body)
}
