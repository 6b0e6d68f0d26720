package twowire

import (
	"fmt"
	"sync"
)

// Target is a register mapped device attached to a simulated bus.
type Target interface {
	ReadReg(reg byte) byte
	WriteReg(reg, v byte)
}

type EventKind int

const (
	EventStart EventKind = iota
	EventAddress
	EventTx
	EventRx
	EventStopArmed
	EventStop
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventAddress:
		return "address"
	case EventTx:
		return "tx"
	case EventRx:
		return "rx"
	case EventStopArmed:
		return "stop-armed"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Event is one observable step on the simulated wire.
type Event struct {
	Kind EventKind
	Addr byte
	Dir  Dir
	Data byte
	// Ack is the acknowledge the controller gives a received byte.
	Ack bool
}

func (e Event) String() string {
	switch e.Kind {
	case EventAddress:
		return fmt.Sprintf("%s %#x/%d", e.Kind, e.Addr, e.Dir)
	case EventTx:
		return fmt.Sprintf("%s %#x", e.Kind, e.Data)
	case EventRx:
		return fmt.Sprintf("%s %#x ack=%t", e.Kind, e.Data, e.Ack)
	default:
		return e.Kind.String()
	}
}

type simState int

const (
	simIdle simState = iota
	simAddressing
	simAddressed
	simTransmit
	simReceive
	simNack
)

// Sim is a software model of the two-wire controller and the targets wired to it.
// It implements Peripheral so a Master can run against it unchanged.
type Sim struct {
	mx      sync.Mutex
	cr1     uint32
	sr1     uint32
	dr      uint32
	other   map[Reg]uint32
	targets map[byte]Target
	stalled uint32

	state       simState
	dir         Dir
	target      Target
	pointer     byte
	pointerSet  bool
	stopPending bool

	sr2Reads []int
	trace    []Event
}

func NewSim() *Sim {
	return &Sim{
		other:   make(map[Reg]uint32),
		targets: make(map[byte]Target),
	}
}

// Attach connects a target at a 7-bit address. Addresses with no target never acknowledge.
func (s *Sim) Attach(address byte, t Target) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.targets[address] = t
}

// Stall keeps the given SR1 flags from ever being raised. Pass 0 to lift it.
func (s *Sim) Stall(flags uint32) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.stalled = flags
}

// Trace returns a copy of the recorded wire events.
func (s *Sim) Trace() []Event {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]Event(nil), s.trace...)
}

// SR2Reads returns how many times SR2 was read during each address phase.
func (s *Sim) SR2Reads() []int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]int(nil), s.sr2Reads...)
}

func (s *Sim) ResetTrace() {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.trace = nil
	s.sr2Reads = nil
}

// Idle reports whether the last transaction was closed with a stop.
func (s *Sim) Idle() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.state == simIdle
}

func (s *Sim) raise(flag uint32) {
	if s.stalled&flag == 0 {
		s.sr1 |= flag
	}
}

func (s *Sim) record(e Event) {
	s.trace = append(s.trace, e)
}

func (s *Sim) Load(r Reg) uint32 {
	s.mx.Lock()
	defer s.mx.Unlock()
	switch r {
	case CR1:
		return s.cr1
	case SR1:
		return s.sr1
	case SR2:
		return s.loadSR2()
	case DR:
		return s.loadDR()
	default:
		return s.other[r]
	}
}

func (s *Sim) Store(r Reg, v uint32) {
	s.mx.Lock()
	defer s.mx.Unlock()
	switch r {
	case CR1:
		s.storeCR1(v)
	case DR:
		s.storeDR(byte(v))
	case SR1:
		// status is read only
	default:
		s.other[r] = v
	}
}

func (s *Sim) storeCR1(v uint32) {
	s.cr1 = v
	if s.cr1&CR1PE == 0 {
		s.cr1 &^= CR1Start | CR1Stop
		return
	}
	if s.cr1&CR1Start != 0 {
		s.cr1 &^= CR1Start
		s.record(Event{Kind: EventStart})
		s.sr1 &^= SR1ADDR | SR1TXE | SR1RXNE | SR1BTF
		s.state = simAddressing
		s.raise(SR1SB)
	}
	if s.cr1&CR1Stop != 0 && !s.stopPending {
		switch s.state {
		case simReceive:
			s.stopPending = true
			s.record(Event{Kind: EventStopArmed})
		case simIdle:
			s.cr1 &^= CR1Stop
		default:
			s.finish()
		}
	}
}

func (s *Sim) finish() {
	s.record(Event{Kind: EventStop})
	s.cr1 &^= CR1Stop
	s.sr1 &^= SR1TXE | SR1RXNE | SR1BTF | SR1ADDR | SR1SB
	s.stopPending = false
	s.state = simIdle
	s.target = nil
}

func (s *Sim) storeDR(v byte) {
	s.dr = uint32(v)
	switch s.state {
	case simAddressing:
		if s.sr1&SR1SB == 0 {
			return
		}
		s.sr1 &^= SR1SB
		address := v >> 1
		s.dir = Dir(v & 0x01)
		s.record(Event{Kind: EventAddress, Addr: address, Dir: s.dir})
		s.sr2Reads = append(s.sr2Reads, 0)
		t, ok := s.targets[address]
		if !ok {
			s.state = simNack
			return
		}
		s.target = t
		s.state = simAddressed
		s.raise(SR1ADDR)
	case simTransmit:
		s.sr1 &^= SR1TXE | SR1BTF
		s.record(Event{Kind: EventTx, Data: v})
		if !s.pointerSet {
			s.pointer = v
			s.pointerSet = true
		} else {
			s.target.WriteReg(s.pointer, v)
			s.pointer++
		}
		s.raise(SR1TXE | SR1BTF)
	}
}

func (s *Sim) loadSR2() uint32 {
	if n := len(s.sr2Reads); n > 0 {
		s.sr2Reads[n-1]++
	}
	if s.sr1&SR1ADDR == 0 || s.state != simAddressed {
		return 0
	}
	s.sr1 &^= SR1ADDR
	if s.dir == Write {
		s.state = simTransmit
		s.pointerSet = false
		s.raise(SR1TXE)
		return 0
	}
	s.state = simReceive
	s.fetch()
	return 0
}

func (s *Sim) fetch() {
	s.dr = uint32(s.target.ReadReg(s.pointer))
	s.pointer++
	s.raise(SR1RXNE)
}

func (s *Sim) loadDR() uint32 {
	if s.state != simReceive || s.sr1&SR1RXNE == 0 {
		return s.dr
	}
	v := s.dr
	s.sr1 &^= SR1RXNE
	s.record(Event{Kind: EventRx, Data: byte(v), Ack: s.cr1&CR1Ack != 0 && !s.stopPending})
	if s.stopPending {
		s.finish()
		return v
	}
	s.fetch()
	return v
}

// Registers is a plain register file target.
type Registers struct {
	mx   sync.Mutex
	regs [256]byte
	// Writes records every register write in order.
	Writes []RegisterWrite
}

type RegisterWrite struct {
	Reg   byte
	Value byte
}

func (r *Registers) ReadReg(reg byte) byte {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.regs[reg]
}

func (r *Registers) WriteReg(reg, v byte) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.regs[reg] = v
	r.Writes = append(r.Writes, RegisterWrite{Reg: reg, Value: v})
}

// Set preloads a register without recording a write.
func (r *Registers) Set(reg, v byte) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.regs[reg] = v
}
