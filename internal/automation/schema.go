package automation

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// documentSchema describes the persisted automation list. It guards the
// load path: a file that fails it is treated as corrupt. Variant fields
// are checked by Validate at create/update time, so the schema only pins
// the structural shape.
const documentSchema = `{
  "type": "object",
  "required": ["automations"],
  "properties": {
    "automations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "enabled", "triggers", "actions"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "enabled": {"type": "boolean"},
          "max_runs": {"type": "integer", "minimum": 1},
          "run_count": {"type": "integer", "minimum": 0},
          "triggers": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["type"],
              "properties": {"type": {"type": "string"}}
            }
          },
          "conditions": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["type"],
              "properties": {"type": {"type": "string"}}
            }
          },
          "actions": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["type"],
              "properties": {"type": {"type": "string"}}
            }
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// validateDocument checks raw file bytes against the document schema.
func validateDocument(data []byte) error {
	schemaOnce.Do(func() {
		var schemaMap any
		if err := json.Unmarshal([]byte(documentSchema), &schemaMap); err != nil {
			schemaErr = fmt.Errorf("unmarshalling document schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("automations.json", schemaMap); err != nil {
			schemaErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile("automations.json")
	})
	if schemaErr != nil {
		return schemaErr
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}
	return compiledSchema.Validate(instance)
}
