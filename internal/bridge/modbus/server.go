package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/tbrandon/mbserver"
	"go.uber.org/zap"

	"github.com/plcforge/plcsim/internal/bridge"
	"github.com/plcforge/plcsim/internal/plc"
	"github.com/plcforge/plcsim/internal/tag"
)

// Bridge exposes a controller's tags over Modbus TCP. The server engine
// handles framing and connections; every register access it performs is
// forwarded to the bank goroutine, which also serves the scan thread.
type Bridge struct {
	addr   string
	logger *zap.Logger

	mu      sync.Mutex
	srv     *mbserver.Server
	bank    *bank
	tagMap  *Map
	started bool
}

var _ plc.IOModule = (*Bridge)(nil)

func New(addr string, logger *zap.Logger) *Bridge {
	return &Bridge{
		addr:   addr,
		logger: logger.Named("modbus"),
	}
}

func (b *Bridge) Name() string { return "modbus" }

// Start builds the address map from the current tag set, allocates the
// zeroed register blocks, brings the TCP server up and performs one
// initial output update so clients never observe zeroed state.
func (b *Bridge) Start(ctx context.Context, state *tag.State) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}

	b.tagMap = BuildMap(state)
	for _, name := range b.tagMap.Skipped() {
		b.logger.Warn("Tag has no Modbus representation, skipping",
			zap.String("tag", name))
	}

	b.bank = newBank(b.tagMap)

	srv := mbserver.NewServer()
	b.registerHandlers(srv)

	if err := srv.ListenTCP(b.addr); err != nil {
		b.bank.stop(bridge.DefaultTimeout)
		b.bank = nil
		b.mu.Unlock()
		return &bridge.StartupError{Bridge: "modbus", Err: err}
	}

	b.srv = srv
	b.started = true
	b.mu.Unlock()

	if err := b.WriteOutputs(state); err != nil {
		b.logger.Error("Initial output update failed", zap.Error(err))
	}

	b.logger.Info("Modbus server started",
		zap.String("address", b.addr),
		zap.Int("coils", b.tagMap.Size(Coils)),
		zap.Int("discrete_inputs", b.tagMap.Size(DiscreteInputs)),
		zap.Int("holding_registers", b.tagMap.Size(HoldingRegisters)),
		zap.Int("input_registers", b.tagMap.Size(InputRegisters)))
	return nil
}

// Stop closes the server and joins the bank goroutine within the bound.
// Idempotent.
func (b *Bridge) Stop(ctx context.Context, state *tag.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	b.started = false

	b.srv.Close()
	b.srv = nil

	if err := b.bank.stop(bridge.DefaultTimeout); err != nil {
		return &bridge.ShutdownError{Bridge: "modbus", Err: err}
	}
	b.bank = nil

	b.logger.Info("Modbus server stopped", zap.String("address", b.addr))
	return nil
}

// ReadInputs decodes every writable tag's bits/registers from its segment
// and assigns it. A transient bank timeout skips that tag for this cycle.
func (b *Bridge) ReadInputs(state *tag.State) error {
	b.mu.Lock()
	bank, tagMap, started := b.bank, b.tagMap, b.started
	b.mu.Unlock()
	if !started {
		return nil
	}

	for _, t := range state.Tags() {
		if !t.Writable() {
			continue
		}
		entry, ok := tagMap.Lookup(t.Name())
		if !ok {
			continue
		}

		var value tag.Value
		switch t.Type() {
		case tag.TypeBool:
			bits, err := bank.readBits(entry.Segment, int(entry.Address), 1)
			if err != nil {
				b.logReadError(t.Name(), err)
				continue
			}
			value = tag.Bool(bits[0])
		case tag.TypeInt32, tag.TypeFloat64:
			regs, err := bank.readRegisters(entry.Segment, int(entry.Address), int(entry.Width))
			if err != nil {
				b.logReadError(t.Name(), err)
				continue
			}
			value, err = decodeRegisters(t.Type(), regs)
			if err != nil {
				b.logger.Error("Register decode failed",
					zap.String("tag", t.Name()), zap.Error(err))
				continue
			}
		case tag.TypeString, tag.TypeNull:
			continue
		}

		if err := t.Set(value); err != nil {
			b.logger.Error("Tag assignment failed",
				zap.String("tag", t.Name()), zap.Error(err))
		}
	}
	return nil
}

// WriteOutputs encodes every mapped tag, writable or not, into its
// segment.
func (b *Bridge) WriteOutputs(state *tag.State) error {
	b.mu.Lock()
	bank, tagMap, started := b.bank, b.tagMap, b.started
	b.mu.Unlock()
	if !started {
		return nil
	}

	for _, t := range state.Tags() {
		entry, ok := tagMap.Lookup(t.Name())
		if !ok {
			continue
		}

		switch t.Type() {
		case tag.TypeBool:
			if err := bank.writeBits(entry.Segment, int(entry.Address), []bool{t.Get().Bool()}); err != nil {
				b.logWriteError(t.Name(), err)
			}
		case tag.TypeInt32, tag.TypeFloat64:
			regs, err := encodeRegisters(t.Get())
			if err != nil {
				b.logger.Error("Register encode failed",
					zap.String("tag", t.Name()), zap.Error(err))
				continue
			}
			if err := bank.writeRegisters(entry.Segment, int(entry.Address), regs); err != nil {
				b.logWriteError(t.Name(), err)
			}
		case tag.TypeString, tag.TypeNull:
			// no register representation
		}
	}
	return nil
}

func (b *Bridge) logReadError(name string, err error) {
	var te *bridge.TimeoutError
	if errors.As(err, &te) {
		b.logger.Warn("Register read timed out, retrying next cycle",
			zap.String("tag", name))
		return
	}
	b.logger.Error("Register read failed", zap.String("tag", name), zap.Error(err))
}

func (b *Bridge) logWriteError(name string, err error) {
	var te *bridge.TimeoutError
	if errors.As(err, &te) {
		b.logger.Warn("Register write timed out, retrying next cycle",
			zap.String("tag", name))
		return
	}
	b.logger.Error("Register write failed", zap.String("tag", name), zap.Error(err))
}

// registerHandlers overrides the server's function-code handlers so every
// request is served from the bank instead of the engine's own arrays.
func (b *Bridge) registerHandlers(srv *mbserver.Server) {
	srv.RegisterFunctionHandler(1, b.handleReadBits(Coils))
	srv.RegisterFunctionHandler(2, b.handleReadBits(DiscreteInputs))
	srv.RegisterFunctionHandler(3, b.handleReadRegisters(HoldingRegisters))
	srv.RegisterFunctionHandler(4, b.handleReadRegisters(InputRegisters))
	srv.RegisterFunctionHandler(5, b.handleWriteSingleCoil)
	srv.RegisterFunctionHandler(6, b.handleWriteSingleRegister)
	srv.RegisterFunctionHandler(15, b.handleWriteMultipleCoils)
	srv.RegisterFunctionHandler(16, b.handleWriteMultipleRegisters)
}

func (b *Bridge) handleReadBits(seg Segment) func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception) {
	return func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return nil, &mbserver.IllegalDataValue
		}
		addr := int(binary.BigEndian.Uint16(data[0:2]))
		count := int(binary.BigEndian.Uint16(data[2:4]))
		if count < 1 || count > 2000 {
			return nil, &mbserver.IllegalDataValue
		}

		bits, err := b.bank.readBits(seg, addr, count)
		if err != nil {
			return nil, exceptionFor(err)
		}

		byteCount := (count + 7) / 8
		resp := make([]byte, 1+byteCount)
		resp[0] = byte(byteCount)
		for i, bit := range bits {
			if bit {
				resp[1+i/8] |= 1 << (uint(i) % 8)
			}
		}
		return resp, &mbserver.Success
	}
}

func (b *Bridge) handleReadRegisters(seg Segment) func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception) {
	return func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return nil, &mbserver.IllegalDataValue
		}
		addr := int(binary.BigEndian.Uint16(data[0:2]))
		count := int(binary.BigEndian.Uint16(data[2:4]))
		if count < 1 || count > 125 {
			return nil, &mbserver.IllegalDataValue
		}

		regs, err := b.bank.readRegisters(seg, addr, count)
		if err != nil {
			return nil, exceptionFor(err)
		}

		return append([]byte{byte(count * 2)}, mbserver.Uint16ToBytes(regs)...), &mbserver.Success
	}
}

func (b *Bridge) handleWriteSingleCoil(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return nil, &mbserver.IllegalDataValue
	}
	addr := int(binary.BigEndian.Uint16(data[0:2]))
	raw := binary.BigEndian.Uint16(data[2:4])
	if raw != 0x0000 && raw != 0xFF00 {
		return nil, &mbserver.IllegalDataValue
	}

	if err := b.bank.writeBits(Coils, addr, []bool{raw == 0xFF00}); err != nil {
		return nil, exceptionFor(err)
	}
	return data[0:4], &mbserver.Success
}

func (b *Bridge) handleWriteSingleRegister(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return nil, &mbserver.IllegalDataValue
	}
	addr := int(binary.BigEndian.Uint16(data[0:2]))
	value := binary.BigEndian.Uint16(data[2:4])

	if err := b.bank.writeRegisters(HoldingRegisters, addr, []uint16{value}); err != nil {
		return nil, exceptionFor(err)
	}
	return data[0:4], &mbserver.Success
}

func (b *Bridge) handleWriteMultipleCoils(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 5 {
		return nil, &mbserver.IllegalDataValue
	}
	addr := int(binary.BigEndian.Uint16(data[0:2]))
	count := int(binary.BigEndian.Uint16(data[2:4]))
	byteCount := int(data[4])
	if count < 1 || byteCount != (count+7)/8 || len(data) < 5+byteCount {
		return nil, &mbserver.IllegalDataValue
	}

	bits := make([]bool, count)
	for i := range bits {
		bits[i] = data[5+i/8]&(1<<(uint(i)%8)) != 0
	}

	if err := b.bank.writeBits(Coils, addr, bits); err != nil {
		return nil, exceptionFor(err)
	}
	return data[0:4], &mbserver.Success
}

func (b *Bridge) handleWriteMultipleRegisters(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 5 {
		return nil, &mbserver.IllegalDataValue
	}
	addr := int(binary.BigEndian.Uint16(data[0:2]))
	count := int(binary.BigEndian.Uint16(data[2:4]))
	byteCount := int(data[4])
	if count < 1 || count > 123 || byteCount != count*2 || len(data) < 5+byteCount {
		return nil, &mbserver.IllegalDataValue
	}

	regs := mbserver.BytesToUint16(data[5 : 5+byteCount])
	if err := b.bank.writeRegisters(HoldingRegisters, addr, regs); err != nil {
		return nil, exceptionFor(err)
	}
	return data[0:4], &mbserver.Success
}

func exceptionFor(err error) *mbserver.Exception {
	if errors.Is(err, errOutOfRange) {
		return &mbserver.IllegalDataAddress
	}
	return &mbserver.SlaveDeviceFailure
}

// MapString renders the address assignment for startup logs and tests.
func (b *Bridge) MapString() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tagMap == nil {
		return "unmapped"
	}
	out := ""
	for _, name := range b.tagMap.Names() {
		e, _ := b.tagMap.Lookup(name)
		out += fmt.Sprintf("%s %d: %s\n", e.Segment, e.Address, name)
	}
	return out
}
