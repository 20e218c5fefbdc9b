package scenario

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

var nonEmptyString = map[string]interface{}{
	"type":      "string",
	"minLength": 1,
	"pattern":   `\S`,
}

// tableSchema is the JSON Schema every scenario file must satisfy.
var tableSchema = map[string]interface{}{
	"$schema":              "http://json-schema.org/draft-07/schema#",
	"type":                 "object",
	"required":             []string{"scenarios"},
	"additionalProperties": false,
	"properties": map[string]interface{}{
		"scenarios": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items": map[string]interface{}{
				"type":                 "object",
				"required":             []string{"name", "section", "column", "task", "tags"},
				"additionalProperties": false,
				"properties": map[string]interface{}{
					"name":    nonEmptyString,
					"section": nonEmptyString,
					"column":  nonEmptyString,
					"task":    nonEmptyString,
					"tags": map[string]interface{}{
						"type":  "array",
						"items": nonEmptyString,
					},
				},
			},
		},
	},
}

var schemaLoader gojsonschema.JSONLoader

func init() {
	data, err := json.Marshal(tableSchema)
	if err != nil {
		panic(fmt.Sprintf("scenario schema: %v", err))
	}
	schemaLoader = gojsonschema.NewBytesLoader(data)
}

// Schema returns the table schema as indented JSON.
func Schema() ([]byte, error) {
	return json.MarshalIndent(tableSchema, "", "  ")
}

// validateSchema checks a decoded YAML document and returns one line per
// violation.
func validateSchema(doc interface{}) ([]string, error) {
	docJSON, err := json.Marshal(normalize(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(docJSON))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	var problems []string
	for _, e := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return problems, nil
}

// normalize turns yaml.v3 output into values encoding/json accepts.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}
