// Package tag implements the PLC process-variable model: typed tags and
// the fixed-shape state collection a controller scans each cycle.
package tag

import "fmt"

// Tag is a named, typed, mutable cell representing one process or control
// variable. The datatype is fixed at creation; Set rejects values of any
// other type. Writability is advisory metadata consulted by protocol
// bridges: a non-writable tag is a sensor/output owned by the control
// logic, a writable tag may also be driven by inbound protocol writes.
//
// Tags are not internally synchronized. All mutation happens on the scan
// thread; bridges stage asynchronous writes and apply them during the
// input scan.
type Tag struct {
	name     string
	dt       DataType
	writable bool
	value    Value
}

// New creates a tag. The initial value must match the datatype.
func New(name string, initial Value, writable bool) *Tag {
	return &Tag{
		name:     name,
		dt:       initial.Type(),
		writable: writable,
		value:    initial,
	}
}

func (t *Tag) Name() string   { return t.name }
func (t *Tag) Type() DataType { return t.dt }
func (t *Tag) Writable() bool { return t.writable }

// Get returns the current value.
func (t *Tag) Get() Value { return t.value }

// Set replaces the value. A value of the wrong datatype is rejected with a
// TypeMismatchError and the tag is left unchanged.
func (t *Tag) Set(v Value) error {
	if v.Type() != t.dt {
		return &TypeMismatchError{Tag: t.name, Want: t.dt, Got: v.Type()}
	}
	t.value = v
	return nil
}

func (t *Tag) String() string {
	access := "R"
	if t.writable {
		access = "RW"
	}
	return fmt.Sprintf("Tag(%s: %s (%s) = %s)", t.name, t.dt, access, t.value.Text())
}
