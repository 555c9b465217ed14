package tag

import "fmt"

// SchemaError reports an invalid state schema (duplicate or unknown tag
// names). Schema errors are fatal at controller construction.
type SchemaError struct {
	Tag    string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("tag schema error: %s: %s", e.Tag, e.Reason)
}

// TypeMismatchError reports a write whose value type does not match the
// tag's declared datatype. The write is rejected without mutating the tag.
type TypeMismatchError struct {
	Tag  string
	Want DataType
	Got  DataType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("tag %q: type mismatch: want %s, got %s", e.Tag, e.Want, e.Got)
}
