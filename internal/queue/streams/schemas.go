package streams

import (
	"fmt"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
)

// PayloadVersion is the schema version of every payload published today.
const PayloadVersion = "v1"

// Definition describes a schema entry managed by the registry.
type Definition struct {
	EventType string
	Version   string
	Schema    []byte
}

var iterationSchema = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["round", "objectives", "findings"],
  "properties": {
    "round": {"type": "integer", "minimum": 1},
    "objectives": {"type": "array", "items": {"$ref": "#/$defs/objective"}},
    "findings": {
      "type": "object",
      "required": ["narrative", "remark", "generated_objectives"],
      "properties": {
        "narrative": {"type": "string"},
        "remark": {"type": "string"},
        "generated_objectives": {"type": ["array", "null"], "items": {"$ref": "#/$defs/objective"}}
      }
    }
  },
  "$defs": {
    "objective": {
      "type": "object",
      "required": ["topic", "expertise"],
      "properties": {
        "topic": {"type": "string"},
        "expertise": {"type": "number", "minimum": 0, "maximum": 1}
      }
    }
  },
  "additionalProperties": true
}`)

var stepSchema = []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["round", "step", "inputs"],
  "properties": {
    "round": {"type": "integer", "minimum": 1},
    "step": {"type": "string", "enum": ["Plan", "Research", "Narrate", "Evaluate"]},
    "inputs": {"type": "object"},
    "outputs": {"type": "object"}
  },
  "additionalProperties": true
}`)

var baseDefinitions = []Definition{
	{EventType: core.EventIterationStart, Version: PayloadVersion, Schema: iterationSchema},
	{EventType: core.EventIterationEnd, Version: PayloadVersion, Schema: iterationSchema},
	{EventType: core.EventStepStart, Version: PayloadVersion, Schema: stepSchema},
	{EventType: core.EventStepEnd, Version: PayloadVersion, Schema: stepSchema},
	{
		EventType: core.EventLogMessage,
		Version:   PayloadVersion,
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["timestamp", "message"],
  "properties": {
    "timestamp": {"type": "string", "format": "date-time"},
    "message": {"type": "string"}
  },
  "additionalProperties": true
}`),
	},
}

// BaseDefinitions returns the built-in schema definitions.
func BaseDefinitions() []Definition {
	defs := make([]Definition, len(baseDefinitions))
	copy(defs, baseDefinitions)
	return defs
}

// RegisterBaseSchemas loads the run event schemas into reg.
func RegisterBaseSchemas(reg *SchemaRegistry) error {
	if reg == nil {
		return fmt.Errorf("registry is nil")
	}
	for _, def := range baseDefinitions {
		if err := reg.Register(def.EventType, def.Version, def.Schema); err != nil {
			return fmt.Errorf("register %s %s: %w", def.EventType, def.Version, err)
		}
	}
	return nil
}
