// Package gobotbus runs the cube bus contracts over a gobot I2C connector such as
// the NanoPi NEO adaptor.
package gobotbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/cube"
)

var _ cube.I2CBus = &Bus{}
var _ cube.RegisterBus = &Bus{}

// Bus keeps one started generic driver per target address.
type Bus struct {
	mx        sync.Mutex
	connector i2c.Connector
	busNr     int
	drivers   map[byte]*i2c.GenericDriver
	finalize  func() error
}

// New uses connector on bus busNr. A negative busNr selects the connector default.
func New(connector i2c.Connector, busNr int) *Bus {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &Bus{
		connector: connector,
		busNr:     busNr,
		drivers:   map[byte]*i2c.GenericDriver{},
	}
}

// OpenNanoPi connects the NanoPi NEO I2C adaptor.
func OpenNanoPi(busNr int) (*Bus, error) {
	npi := nanopi.NewNeoAdaptor()
	if err := npi.I2cBusAdaptor.Connect(); err != nil {
		return nil, fmt.Errorf("adaptor connect error: %w", err)
	}
	b := New(npi, busNr)
	b.finalize = npi.I2cBusAdaptor.Finalize
	return b, nil
}

func (b *Bus) driver(address byte) (*i2c.GenericDriver, error) {
	if d, ok := b.drivers[address]; ok {
		return d, nil
	}
	d := i2c.NewGenericDriver(b.connector, fmt.Sprintf("cube-%#x", address), int(address), func(c i2c.Config) {
		c.SetBus(b.busNr)
	})
	if err := d.Start(); err != nil {
		return nil, fmt.Errorf("start error for %#x: %w", address, err)
	}
	b.drivers[address] = d
	return d, nil
}

func (b *Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return err
	}
	if err := d.Write(buffer); err != nil {
		return fmt.Errorf("could not write to %x: %w", address, err)
	}
	return nil
}

func (b *Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return err
	}
	if err := d.Read(buffer); err != nil {
		return fmt.Errorf("could not read from %x: %w", address, err)
	}
	return nil
}

func (b *Bus) WriteRegister(ctx context.Context, address, reg, data byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return err
	}
	if err := d.WriteByteData(reg, data); err != nil {
		return fmt.Errorf("could not write register %#x of %x: %w", reg, address, err)
	}
	return nil
}

func (b *Bus) ReadRegister(ctx context.Context, address, reg byte) (byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return 0, err
	}
	v, err := d.ReadByteData(reg)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#x of %x: %w", reg, address, err)
	}
	return v, nil
}

// ReadWord uses an SMBus word read, which is little endian on the wire.
func (b *Bus) ReadWord(ctx context.Context, address, reg byte) (uint16, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return 0, err
	}
	v, err := d.ReadWordData(reg)
	if err != nil {
		return 0, fmt.Errorf("could not read word at %#x of %x: %w", reg, address, err)
	}
	return v, nil
}

func (b *Bus) Release(ctx context.Context) error {
	return nil
}

// Close halts every started driver and disconnects the adaptor when the bus opened it.
func (b *Bus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var errs []error
	for address, d := range b.drivers {
		if err := d.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %#x: %w", address, err))
		}
	}
	b.drivers = map[byte]*i2c.GenericDriver{}
	if b.finalize != nil {
		if err := b.finalize(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
