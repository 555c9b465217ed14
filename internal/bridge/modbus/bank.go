package modbus

import (
	"errors"
	"time"

	"github.com/plcforge/plcsim/internal/bridge"
)

// errOutOfRange marks accesses past a segment's allocated size. Protocol
// handlers translate it into an IllegalDataAddress exception.
var errOutOfRange = errors.New("address out of range")

var errBankClosed = errors.New("register bank stopped")

// bank owns the four register blocks. A single goroutine executes all
// accesses, serialized over the request channel: the scan thread and the
// Modbus server's request handler both block on a reply with a bounded
// timeout and never touch the blocks directly.
type bank struct {
	coils    []bool
	discrete []bool
	holding  []uint16
	input    []uint16

	requests chan bankRequest
	quit     chan struct{}
	done     chan struct{}
}

type bankRequest struct {
	write bool
	seg   Segment
	addr  int
	count int
	regs  []uint16
	bits  []bool
	reply chan bankReply
}

type bankReply struct {
	regs []uint16
	bits []bool
	err  error
}

func newBank(m *Map) *bank {
	b := &bank{
		coils:    make([]bool, m.Size(Coils)),
		discrete: make([]bool, m.Size(DiscreteInputs)),
		holding:  make([]uint16, m.Size(HoldingRegisters)),
		input:    make([]uint16, m.Size(InputRegisters)),
		requests: make(chan bankRequest),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *bank) run() {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			return
		case req := <-b.requests:
			req.reply <- b.execute(req)
		}
	}
}

func (b *bank) execute(req bankRequest) bankReply {
	switch req.seg {
	case Coils, DiscreteInputs:
		block := b.coils
		if req.seg == DiscreteInputs {
			block = b.discrete
		}
		if req.addr < 0 || req.addr+req.count > len(block) {
			return bankReply{err: errOutOfRange}
		}
		if req.write {
			copy(block[req.addr:], req.bits)
			return bankReply{}
		}
		bits := make([]bool, req.count)
		copy(bits, block[req.addr:req.addr+req.count])
		return bankReply{bits: bits}

	case HoldingRegisters, InputRegisters:
		block := b.holding
		if req.seg == InputRegisters {
			block = b.input
		}
		if req.addr < 0 || req.addr+req.count > len(block) {
			return bankReply{err: errOutOfRange}
		}
		if req.write {
			copy(block[req.addr:], req.regs)
			return bankReply{}
		}
		regs := make([]uint16, req.count)
		copy(regs, block[req.addr:req.addr+req.count])
		return bankReply{regs: regs}
	}
	return bankReply{err: errOutOfRange}
}

// stop shuts the bank goroutine down and waits for it within the bound.
func (b *bank) stop(timeout time.Duration) error {
	close(b.quit)
	select {
	case <-b.done:
		return nil
	case <-time.After(timeout):
		return &bridge.TimeoutError{Bridge: "modbus", Op: "bank shutdown"}
	}
}

func (b *bank) submit(req bankRequest, op string) (bankReply, error) {
	req.reply = make(chan bankReply, 1)
	timer := time.NewTimer(bridge.DefaultTimeout)
	defer timer.Stop()

	select {
	case b.requests <- req:
	case <-b.done:
		return bankReply{}, errBankClosed
	case <-timer.C:
		return bankReply{}, &bridge.TimeoutError{Bridge: "modbus", Op: op}
	}

	select {
	case reply := <-req.reply:
		return reply, reply.err
	case <-timer.C:
		return bankReply{}, &bridge.TimeoutError{Bridge: "modbus", Op: op}
	}
}

func (b *bank) readBits(seg Segment, addr, count int) ([]bool, error) {
	reply, err := b.submit(bankRequest{seg: seg, addr: addr, count: count}, "read bits")
	if err != nil {
		return nil, err
	}
	return reply.bits, nil
}

func (b *bank) writeBits(seg Segment, addr int, bits []bool) error {
	_, err := b.submit(bankRequest{write: true, seg: seg, addr: addr, count: len(bits), bits: bits}, "write bits")
	return err
}

func (b *bank) readRegisters(seg Segment, addr, count int) ([]uint16, error) {
	reply, err := b.submit(bankRequest{seg: seg, addr: addr, count: count}, "read registers")
	if err != nil {
		return nil, err
	}
	return reply.regs, nil
}

func (b *bank) writeRegisters(seg Segment, addr int, regs []uint16) error {
	_, err := b.submit(bankRequest{write: true, seg: seg, addr: addr, count: len(regs), regs: regs}, "write registers")
	return err
}
