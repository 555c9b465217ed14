package modbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plcforge/plcsim/internal/tag"
)

// newTestBridge wires a bridge to a bank without the TCP listener.
func newTestBridge(t *testing.T, state *tag.State) *Bridge {
	t.Helper()
	b := New("localhost:0", zap.NewNop())
	b.tagMap = BuildMap(state)
	b.bank = newBank(b.tagMap)
	b.started = true
	t.Cleanup(func() { _ = b.bank.stop(time.Second) })
	return b
}

func TestBridgeWriteOutputsPublishesAllMappedTags(t *testing.T) {
	state := buildTestState(t)
	b := newTestBridge(t, state)

	sp, err := state.Tag("SP")
	require.NoError(t, err)
	require.NoError(t, sp.Set(tag.Float64(21.0)))
	enable, err := state.Tag("Enable")
	require.NoError(t, err)
	require.NoError(t, enable.Set(tag.Bool(true)))

	require.NoError(t, b.WriteOutputs(state))

	// SP occupies holding registers 0..1 as float32 21.0 = 0x41A80000.
	regs, err := b.bank.readRegisters(HoldingRegisters, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x41A8, 0x0000}, regs)

	bits, err := b.bank.readBits(Coils, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, bits)
}

func TestBridgeReadInputsAppliesWritableTagsOnly(t *testing.T) {
	state := buildTestState(t)
	b := newTestBridge(t, state)

	// Simulate a client writing SP=25.0 and flipping the Override coil.
	require.NoError(t, b.bank.writeRegisters(HoldingRegisters, 0, []uint16{0x41C8, 0x0000}))
	require.NoError(t, b.bank.writeBits(Coils, 0, []bool{true}))
	// A write into the read-only PV's input registers must never reach
	// the tag through the input scan.
	require.NoError(t, b.bank.writeRegisters(InputRegisters, 0, []uint16{0x4248, 0x0000}))

	require.NoError(t, b.ReadInputs(state))

	sp, _ := state.Tag("SP")
	assert.Equal(t, 25.0, sp.Get().Float64())

	override, _ := state.Tag("Override")
	assert.True(t, override.Get().Bool())

	pv, _ := state.Tag("PV")
	assert.Equal(t, 0.0, pv.Get().Float64())
}

func TestBridgeIdleBeforeStart(t *testing.T) {
	state := buildTestState(t)
	b := New("localhost:0", zap.NewNop())

	// Scan calls on an unstarted bridge are no-ops, not panics.
	assert.NoError(t, b.ReadInputs(state))
	assert.NoError(t, b.WriteOutputs(state))
	assert.NoError(t, b.Stop(t.Context(), state))
}

func TestBridgeRoundTripThroughRegisters(t *testing.T) {
	state := buildTestState(t)
	b := newTestBridge(t, state)

	sp, _ := state.Tag("SP")
	require.NoError(t, sp.Set(tag.Float64(19.5)))
	power, _ := state.Tag("Power")
	require.NoError(t, power.Set(tag.Int32(-3)))

	require.NoError(t, b.WriteOutputs(state))

	// Clear the tags and let the input scan restore them from the bank.
	require.NoError(t, sp.Set(tag.Float64(0)))
	require.NoError(t, power.Set(tag.Int32(0)))
	require.NoError(t, b.ReadInputs(state))

	assert.Equal(t, 19.5, sp.Get().Float64())
	assert.Equal(t, int32(-3), power.Get().Int32())
}
