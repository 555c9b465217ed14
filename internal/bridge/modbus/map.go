// Package modbus runs a Modbus TCP server whose four register segments
// are live views over a controller's tag state.
package modbus

import (
	"fmt"

	"github.com/plcforge/plcsim/internal/tag"
)

// Segment is one of the four Modbus register/bit namespaces.
type Segment uint8

const (
	Coils Segment = iota
	DiscreteInputs
	HoldingRegisters
	InputRegisters
)

func (s Segment) String() string {
	switch s {
	case Coils:
		return "coils"
	case DiscreteInputs:
		return "discrete_inputs"
	case HoldingRegisters:
		return "holding_registers"
	case InputRegisters:
		return "input_registers"
	}
	return fmt.Sprintf("segment(%d)", uint8(s))
}

// Entry is one tag's slot in a segment. Width is 1 for bits and int32
// registers, 2 for floats.
type Entry struct {
	Segment Segment
	Address uint16
	Width   uint16
}

// Map assigns every mappable tag a dense, 0-based address inside the
// segment derived from its (datatype, writable) pair: writable bools are
// coils, read-only bools discrete inputs, writable numerics holding
// registers, read-only numerics input registers.
type Map struct {
	entries map[string]Entry
	order   []string
	next    [4]uint16
	skipped []string
}

// BuildMap derives the address map from the state's declaration order.
// String and null tags have no register representation and are recorded
// as skipped.
func BuildMap(state *tag.State) *Map {
	m := &Map{entries: make(map[string]Entry)}
	for _, t := range state.Tags() {
		switch t.Type() {
		case tag.TypeBool:
			if t.Writable() {
				m.add(t.Name(), Coils, 1)
			} else {
				m.add(t.Name(), DiscreteInputs, 1)
			}
		case tag.TypeInt32:
			if t.Writable() {
				m.add(t.Name(), HoldingRegisters, 1)
			} else {
				m.add(t.Name(), InputRegisters, 1)
			}
		case tag.TypeFloat64:
			if t.Writable() {
				m.add(t.Name(), HoldingRegisters, 2)
			} else {
				m.add(t.Name(), InputRegisters, 2)
			}
		case tag.TypeString, tag.TypeNull:
			m.skipped = append(m.skipped, t.Name())
		}
	}
	return m
}

func (m *Map) add(name string, seg Segment, width uint16) {
	m.entries[name] = Entry{Segment: seg, Address: m.next[seg], Width: width}
	m.order = append(m.order, name)
	m.next[seg] += width
}

// Lookup returns the entry for a tag name.
func (m *Map) Lookup(name string) (Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

// Size returns the number of allocated slots in a segment.
func (m *Map) Size(seg Segment) int { return int(m.next[seg]) }

// Skipped lists tags with no register representation.
func (m *Map) Skipped() []string { return m.skipped }

// Names returns the mapped tag names in assignment order.
func (m *Map) Names() []string { return m.order }
