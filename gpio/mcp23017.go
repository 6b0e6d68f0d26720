package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/cube"
	"github.com/mklimuk/cube/matrix"
)

var _ matrix.Port = &MCP23017{}

type registry int

const DefaultMCP23017Address = 0x20

const (
	IODIRA registry = iota
	IODIRB
	IOCONA
	GPIOA
	GPIOB
	OLATA
	OLATB
)

// BankAddr maps registers for IOCON.BANK=0 (interleaved, power-on default) and
// IOCON.BANK=1 (split ports).
var BankAddr = []map[registry]byte{
	{
		IODIRA: 0x00,
		IODIRB: 0x01,
		IOCONA: 0x0A,
		GPIOA:  0x12,
		GPIOB:  0x13,
		OLATA:  0x14,
		OLATB:  0x15,
	},
	{
		IODIRA: 0x00,
		IODIRB: 0x10,
		IOCONA: 0x05,
		GPIOA:  0x09,
		GPIOB:  0x19,
		OLATA:  0x0A,
		OLATB:  0x1A,
	},
}

type MCP23017Opt func(*MCP23017)

func WithRetryLimit(limit int) MCP23017Opt {
	return func(m *MCP23017) {
		if limit > 0 {
			m.retryLimit = limit
		}
	}
}

// WithBank selects the register layout the expander is configured for.
func WithBank(bank int) MCP23017Opt {
	return func(m *MCP23017) {
		if bank == 0 || bank == 1 {
			m.bank = bank
		}
	}
}

// MCP23017 is a 16-bit I/O expander used as one LED output port: bit n of the
// port is GPA n for n < 8 and GPB n-8 above.
type MCP23017 struct {
	mx         sync.Mutex
	transport  cube.I2CBus
	bank       int
	address    byte
	retryLimit int
	olat       uint16
}

func NewMCP23017(bus cube.I2CBus, address byte, opts ...MCP23017Opt) *MCP23017 {
	m := &MCP23017{retryLimit: 1, transport: bus, address: address}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MCP23017) write(ctx context.Context, reg registry, value byte) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = m.transport.WriteToAddr(ctx, m.address, []byte{BankAddr[m.bank][reg], value})
		if err == nil {
			return nil
		}
		if !errors.Is(err, cube.ErrBusBusy) {
			return err
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return fmt.Errorf("retry limit reached: %w", err)
}

func (m *MCP23017) read(ctx context.Context, reg registry) (byte, error) {
	var err error
	buf := make([]byte, 1)
	for i := m.retryLimit; i > 0; i-- {
		err = m.transport.WriteToAddr(ctx, m.address, []byte{BankAddr[m.bank][reg]})
		if err == nil {
			err = m.transport.ReadFromAddr(ctx, m.address, buf)
		}
		if err == nil {
			return buf[0], nil
		}
		if !errors.Is(err, cube.ErrBusBusy) {
			return 0, err
		}
		_ = m.transport.Release(ctx)
	}
	return 0, fmt.Errorf("retry limit reached: %w", err)
}

// InitOutputs drives every line low and turns both ports into outputs.
func (m *MCP23017) InitOutputs(ctx context.Context) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	for _, w := range []struct {
		reg   registry
		value byte
	}{
		{OLATA, 0x00},
		{OLATB, 0x00},
		{IODIRA, 0x00},
		{IODIRB, 0x00},
	} {
		if err := m.write(ctx, w.reg, w.value); err != nil {
			return fmt.Errorf("mcp23017 %#x: could not initialize outputs: %w", m.address, err)
		}
	}
	m.olat = 0
	return nil
}

// WriteBSRR updates the output latches. Only the halves that change are written.
func (m *MCP23017) WriteBSRR(ctx context.Context, mask uint32) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	next := matrix.ApplyBSRR(m.olat, mask)
	if byte(next) != byte(m.olat) {
		if err := m.write(ctx, OLATA, byte(next)); err != nil {
			return fmt.Errorf("mcp23017 %#x: could not write port A latch: %w", m.address, err)
		}
	}
	if byte(next>>8) != byte(m.olat>>8) {
		if err := m.write(ctx, OLATB, byte(next>>8)); err != nil {
			// keep the half that did reach the device
			m.olat = m.olat&0xFF00 | next&0x00FF
			return fmt.Errorf("mcp23017 %#x: could not write port B latch: %w", m.address, err)
		}
	}
	m.olat = next
	return nil
}

// Latched returns the output state last written to the device.
func (m *MCP23017) Latched() uint16 {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.olat
}

// Read returns the pin levels of both ports, GPA in the low byte.
func (m *MCP23017) Read(ctx context.Context) (uint16, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	a, err := m.read(ctx, GPIOA)
	if err != nil {
		return 0, fmt.Errorf("mcp23017 %#x: could not read gpio A set: %w", m.address, err)
	}
	b, err := m.read(ctx, GPIOB)
	if err != nil {
		return 0, fmt.Errorf("mcp23017 %#x: could not read gpio B set: %w", m.address, err)
	}
	return uint16(a) | uint16(b)<<8, nil
}
