// SPDX-License-Identifier: MPL-2.0

// Package cueschema validates Go values decoded from configuration files
// against embedded CUE schema definitions.
package cueschema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Validate unifies a decoded configuration value with the schema definition
// at defPath (e.g. "#Metadata") and checks the result for closedness and
// type agreement. The source name is used in error messages.
func Validate(schema []byte, defPath string, value any, source string) error {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(defPath))
	if schemaRoot.Err() != nil {
		return fmt.Errorf("internal error: schema definition %s not found: %w", defPath, schemaRoot.Err())
	}

	encoded := ctx.Encode(value)
	if encoded.Err() != nil {
		return FormatError(encoded.Err(), source)
	}

	unified := schemaRoot.Unify(encoded)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return FormatError(err, source)
	}

	return nil
}
