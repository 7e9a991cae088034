package main

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Request schemas enforced at the HTTP edge before payloads reach the
// engine. The engine revalidates ranges; the schemas catch shape errors
// early with field-level messages.

const submitTrainingSchema = `{
	"type": "object",
	"required": ["idempotency_key"],
	"oneOf": [
		{"required": ["day_number"]},
		{"required": ["exercise_id"]}
	],
	"properties": {
		"day_number": {"type": "integer", "minimum": 1, "maximum": 90},
		"exercise_id": {"type": "string", "minLength": 1},
		"duration_minutes": {"type": "integer", "minimum": 0},
		"rating": {"type": "integer", "minimum": 0, "maximum": 5},
		"notes": {"type": "string"},
		"idempotency_key": {"type": "string", "minLength": 1}
	},
	"additionalProperties": false
}`

const skipLevelSchema = `{
	"type": "object",
	"required": ["target_level", "answers"],
	"properties": {
		"target_level": {"type": "integer", "minimum": 2},
		"answers": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["exercise_id", "response"],
				"properties": {
					"exercise_id": {"type": "string", "minLength": 1},
					"response": {"type": "string"}
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

func validateSchema(schema string, body []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return fmt.Errorf("malformed JSON body")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}
