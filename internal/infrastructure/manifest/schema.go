package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// validateLiteral checks value against a handle's declared type schema,
// when one was given. Schema stays opaque to the core runtime; this is
// the one best-effort check the manifest layer performs on the
// author's behalf before the composer ever sees the handle.
func validateLiteral(schema json.RawMessage, value interface{}) error {
	if len(schema) == 0 {
		return nil
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(schema, &s); err != nil {
		// Malformed schema: skip rather than fail composition over a
		// block author's typo in an opaque-by-default field.
		return nil
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil
	}

	if err := resolved.Validate(value); err != nil {
		return fmt.Errorf("value does not match declared schema: %w", err)
	}
	return nil
}
