package register

import (
	"context"
	"fmt"

	"github.com/mklimuk/cube"
)

// Write is one entry of an ordered register programming sequence.
type Write struct {
	Reg   byte
	Value byte
}

// Device is a register mapped target at a fixed address.
type Device struct {
	bus     cube.RegisterBus
	address byte
}

func NewDevice(bus cube.RegisterBus, address byte) *Device {
	return &Device{bus: bus, address: address}
}

func (d *Device) Address() byte {
	return d.address
}

func (d *Device) Write(ctx context.Context, reg, value byte) error {
	return d.bus.WriteRegister(ctx, d.address, reg, value)
}

func (d *Device) Read(ctx context.Context, reg byte) (byte, error) {
	return d.bus.ReadRegister(ctx, d.address, reg)
}

func (d *Device) ReadWord(ctx context.Context, reg byte) (uint16, error) {
	return d.bus.ReadWord(ctx, d.address, reg)
}

// WriteAll applies writes in order and stops at the first failure.
func (d *Device) WriteAll(ctx context.Context, writes []Write) error {
	for i, w := range writes {
		if err := d.Write(ctx, w.Reg, w.Value); err != nil {
			return fmt.Errorf("write %d (register %#x): %w", i, w.Reg, err)
		}
	}
	return nil
}
