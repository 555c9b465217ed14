package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plcforge/plcsim/internal/tag"
)

func buildTestState(t *testing.T) *tag.State {
	t.Helper()
	state, err := tag.NewState(
		tag.New("PV", tag.Float64(0.0), false),       // input registers 0..1
		tag.New("SP", tag.Float64(21.0), true),       // holding registers 0..1
		tag.New("Power", tag.Int32(0), true),         // holding register 2
		tag.New("Alarm", tag.Bool(false), false),     // discrete input 0
		tag.New("Override", tag.Bool(false), true),   // coil 0
		tag.New("Enable", tag.Bool(true), true),      // coil 1
		tag.New("Label", tag.String("plc-1"), false), // skipped
	)
	require.NoError(t, err)
	return state
}

func TestBuildMapSegments(t *testing.T) {
	m := BuildMap(buildTestState(t))

	tests := []struct {
		tagName string
		segment Segment
		address uint16
		width   uint16
	}{
		{"PV", InputRegisters, 0, 2},
		{"SP", HoldingRegisters, 0, 2},
		{"Power", HoldingRegisters, 2, 1},
		{"Alarm", DiscreteInputs, 0, 1},
		{"Override", Coils, 0, 1},
		{"Enable", Coils, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.tagName, func(t *testing.T) {
			entry, ok := m.Lookup(tt.tagName)
			require.True(t, ok)
			assert.Equal(t, tt.segment, entry.Segment)
			assert.Equal(t, tt.address, entry.Address)
			assert.Equal(t, tt.width, entry.Width)
		})
	}
}

func TestBuildMapSizesAndSkipped(t *testing.T) {
	m := BuildMap(buildTestState(t))

	assert.Equal(t, 2, m.Size(Coils))
	assert.Equal(t, 1, m.Size(DiscreteInputs))
	assert.Equal(t, 3, m.Size(HoldingRegisters))
	assert.Equal(t, 2, m.Size(InputRegisters))
	assert.Equal(t, []string{"Label"}, m.Skipped())
	assert.Equal(t, []string{"PV", "SP", "Power", "Alarm", "Override", "Enable"}, m.Names())
}

func TestBuildMapDeterministic(t *testing.T) {
	// Two builds over states declared in the same order assign identical
	// addresses.
	m1 := BuildMap(buildTestState(t))
	m2 := BuildMap(buildTestState(t))

	for _, name := range m1.Names() {
		e1, _ := m1.Lookup(name)
		e2, ok := m2.Lookup(name)
		require.True(t, ok)
		assert.Equal(t, e1, e2, "entry for %s differs between builds", name)
	}
}

func TestBuildMapNoOverlap(t *testing.T) {
	m := BuildMap(buildTestState(t))

	used := map[Segment]map[uint16]string{}
	for _, name := range m.Names() {
		e, _ := m.Lookup(name)
		if used[e.Segment] == nil {
			used[e.Segment] = map[uint16]string{}
		}
		for off := uint16(0); off < e.Width; off++ {
			addr := e.Address + off
			prev, taken := used[e.Segment][addr]
			require.False(t, taken, "%s and %s overlap at %s[%d]", prev, name, e.Segment, addr)
			used[e.Segment][addr] = name
		}
	}
}
