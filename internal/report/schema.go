package report

import (
	"embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaFS contains the embedded report JSON schema.
//
//go:embed schema.json
var SchemaFS embed.FS

const schemaFileName = "schema.json"

// ValidateJSON checks raw report JSON against the embedded schema. It
// returns the schema violations, nil when the document is valid.
func ValidateJSON(data []byte) ([]gojsonschema.ResultError, error) {
	schemaBytes, err := SchemaFS.ReadFile(schemaFileName)
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	return result.Errors(), nil
}
