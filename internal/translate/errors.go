package translate

import "fmt"

// UnrecognizedSchemaError is returned when a record carries a field no rule
// handles. New firmware fields must be mapped or ignored explicitly.
type UnrecognizedSchemaError struct {
	Category string
	Field    string
}

func (e *UnrecognizedSchemaError) Error() string {
	return fmt.Sprintf("unrecognized %s field %q", e.Category, e.Field)
}
