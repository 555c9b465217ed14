package modbus

import (
	"fmt"
	"math"

	"github.com/plcforge/plcsim/internal/tag"
)

// Register encodings follow the conventional Modbus layouts: 16-bit
// big-endian registers, int32 tags truncated to one register, float64
// tags carried as IEEE-754 float32 across two registers, high word first.

func encodeRegisters(v tag.Value) ([]uint16, error) {
	switch v.Type() {
	case tag.TypeInt32:
		return []uint16{uint16(v.Int32())}, nil
	case tag.TypeFloat64:
		bits := math.Float32bits(float32(v.Float64()))
		return []uint16{uint16(bits >> 16), uint16(bits)}, nil
	case tag.TypeBool, tag.TypeString, tag.TypeNull:
		return nil, fmt.Errorf("no register encoding for %s", v.Type())
	}
	return nil, fmt.Errorf("no register encoding for %s", v.Type())
}

func decodeRegisters(dt tag.DataType, regs []uint16) (tag.Value, error) {
	switch dt {
	case tag.TypeInt32:
		if len(regs) < 1 {
			return tag.Value{}, fmt.Errorf("int32 needs 1 register, have %d", len(regs))
		}
		// Sign-extend from the 16-bit register.
		return tag.Int32(int32(int16(regs[0]))), nil
	case tag.TypeFloat64:
		if len(regs) < 2 {
			return tag.Value{}, fmt.Errorf("float64 needs 2 registers, have %d", len(regs))
		}
		bits := uint32(regs[0])<<16 | uint32(regs[1])
		return tag.Float64(float64(math.Float32frombits(bits))), nil
	case tag.TypeBool, tag.TypeString, tag.TypeNull:
		return tag.Value{}, fmt.Errorf("no register decoding for %s", dt)
	}
	return tag.Value{}, fmt.Errorf("no register decoding for %s", dt)
}
