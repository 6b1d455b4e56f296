package execution

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// intentSchema guards the open-position event payload at the trust
// boundary between signal generation and order placement. Anything that
// fails here is a defect in the producer, so validation errors are hard
// errors, never silently repaired.
const intentSchema = `{
	"type": "object",
	"required": ["strategy", "symbol", "direction", "shares", "entry_price", "stop_loss", "take_profit", "range_size", "session_date"],
	"properties": {
		"strategy":         {"type": "string", "minLength": 1},
		"symbol":           {"type": "string", "minLength": 1},
		"direction":        {"enum": ["LONG", "SHORT"]},
		"shares":           {"type": "integer", "minimum": 1},
		"entry_price":      {"type": "number", "exclusiveMinimum": 0},
		"stop_loss":        {"type": "number", "exclusiveMinimum": 0},
		"take_profit":      {"type": "number", "exclusiveMinimum": 0},
		"range_size":       {"type": "number", "exclusiveMinimum": 0},
		"opening_range_id": {"type": "integer"},
		"session_date":     {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
		"reason":           {"type": "string"}
	}
}`

func compileIntentSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("open_position_intent.json", strings.NewReader(intentSchema)); err != nil {
		panic(fmt.Sprintf("execution: add intent schema: %v", err))
	}
	schema, err := compiler.Compile("open_position_intent.json")
	if err != nil {
		panic(fmt.Sprintf("execution: compile intent schema: %v", err))
	}
	return schema
}

// validatePayload checks the raw JSON against the schema before it is
// decoded into a typed struct.
func validatePayload(schema *jsonschema.Schema, payload []byte) error {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("decode intent payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("intent payload rejected: %w", err)
	}
	return nil
}
