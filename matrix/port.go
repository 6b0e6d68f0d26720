package matrix

import (
	"context"
	"fmt"
	"sync"
)

// Port is a 16-line output port written through a set/reset register:
// the low half sets lines, the high half resets them. Set wins when both are given.
type Port interface {
	WriteBSRR(ctx context.Context, mask uint32) error
}

// Ports binds the three color channels to their output ports.
type Ports struct {
	A Port
	B Port
	C Port
}

func (p Ports) get(id PortID) (Port, error) {
	var res Port
	switch id {
	case PortA:
		res = p.A
	case PortB:
		res = p.B
	case PortC:
		res = p.C
	}
	if res == nil {
		return nil, fmt.Errorf("port %s not configured", id)
	}
	return res, nil
}

// ApplyBSRR returns the output state after writing mask to a set/reset register.
func ApplyBSRR(state uint16, mask uint32) uint16 {
	set := uint16(mask)
	reset := uint16(mask >> PinsPerPort)
	return (state &^ reset) | set
}

// MemPort keeps the output state in memory.
type MemPort struct {
	mx      sync.Mutex
	state   uint16
	history []uint32
}

func (p *MemPort) WriteBSRR(ctx context.Context, mask uint32) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.state = ApplyBSRR(p.state, mask)
	p.history = append(p.history, mask)
	return nil
}

// State returns the current output levels, one bit per line.
func (p *MemPort) State() uint16 {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.state
}

// History returns every mask written so far.
func (p *MemPort) History() []uint32 {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]uint32(nil), p.history...)
}

// NewMemPorts returns in-memory ports for all three channels.
func NewMemPorts() (Ports, *MemPort, *MemPort, *MemPort) {
	a, b, c := &MemPort{}, &MemPort{}, &MemPort{}
	return Ports{A: a, B: b, C: c}, a, b, c
}
