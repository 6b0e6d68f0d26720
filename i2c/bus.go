package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/cube"
)

var _ cube.I2CBus = &GenericBus{}
var _ cube.RegisterBus = &GenericBus{}

// GenericBus is a host I2C controller reached through periph.
type GenericBus struct {
	mx  sync.Mutex
	bus i2c.BusCloser
}

// NewGenericBus initializes the host drivers and opens the named bus. An empty
// name opens the first bus found.
func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	for _, failure := range state.Failed {
		slog.Debug("host driver failed", "driver", failure.D.String(), "error", failure.Err)
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return NewBus(bus), nil
}

// NewBus wraps an already opened bus.
func NewBus(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{bus: bus}
}

// SetSpeed changes the clock of the underlying controller. Not every host supports it.
func (b *GenericBus) SetSpeed(hz int64) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := b.bus.SetSpeed(physic.Frequency(hz) * physic.Hertz); err != nil {
		return fmt.Errorf("could not set i2c speed to %dHz: %w", hz, err)
	}
	return nil
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) WriteRegister(ctx context.Context, address, reg, data byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := b.bus.Tx(uint16(address), []byte{reg, data}, nil); err != nil {
		return fmt.Errorf("could not write register %#x of %x: %w", reg, address, err)
	}
	return nil
}

// ReadRegister writes the register pointer and reads one byte back after a repeated start.
func (b *GenericBus) ReadRegister(ctx context.Context, address, reg byte) (byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	buf := make([]byte, 1)
	if err := b.bus.Tx(uint16(address), []byte{reg}, buf); err != nil {
		return 0, fmt.Errorf("could not read register %#x of %x: %w", reg, address, err)
	}
	return buf[0], nil
}

func (b *GenericBus) ReadWord(ctx context.Context, address, reg byte) (uint16, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	buf := make([]byte, 2)
	if err := b.bus.Tx(uint16(address), []byte{reg}, buf); err != nil {
		return 0, fmt.Errorf("could not read word at %#x of %x: %w", reg, address, err)
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

// Release is a no-op, the host controller finishes every transaction with a stop.
func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}

func (b *GenericBus) String() string {
	return b.bus.String()
}
