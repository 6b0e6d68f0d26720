package register

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/cube"
)

var _ cube.RegisterBus = &Addressable{}

// Addressable runs the register protocols on a bus that only moves whole messages.
// The register pointer is written in its own message and the value is read back
// in a second one.
type Addressable struct {
	mx         sync.Mutex
	transport  cube.I2CBus
	retryLimit int
}

type AddressableOpt func(*Addressable)

// WithRetryLimit sets how many times an operation is tried when the bus reports busy.
func WithRetryLimit(limit int) AddressableOpt {
	return func(a *Addressable) {
		if limit > 0 {
			a.retryLimit = limit
		}
	}
}

func NewAddressable(bus cube.I2CBus, opts ...AddressableOpt) *Addressable {
	a := &Addressable{transport: bus, retryLimit: 1}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Addressable) retry(ctx context.Context, op func() error) error {
	var err error
	for i := a.retryLimit; i > 0; i-- {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, cube.ErrBusBusy) {
			return err
		}
		// try to release the bus
		_ = a.transport.Release(ctx)
	}
	return fmt.Errorf("retry limit reached: %w", err)
}

func (a *Addressable) WriteRegister(ctx context.Context, address, reg, data byte) error {
	a.mx.Lock()
	defer a.mx.Unlock()
	err := a.retry(ctx, func() error {
		return a.transport.WriteToAddr(ctx, address, []byte{reg, data})
	})
	if err != nil {
		return fmt.Errorf("could not write register %#x on %#x: %w", reg, address, err)
	}
	return nil
}

func (a *Addressable) read(ctx context.Context, address, reg byte, buf []byte) error {
	return a.retry(ctx, func() error {
		err := a.transport.WriteToAddr(ctx, address, []byte{reg})
		if err != nil {
			return fmt.Errorf("could not set register pointer: %w", err)
		}
		return a.transport.ReadFromAddr(ctx, address, buf)
	})
}

func (a *Addressable) ReadRegister(ctx context.Context, address, reg byte) (byte, error) {
	a.mx.Lock()
	defer a.mx.Unlock()
	buf := make([]byte, 1)
	if err := a.read(ctx, address, reg, buf); err != nil {
		return 0, fmt.Errorf("could not read register %#x on %#x: %w", reg, address, err)
	}
	return buf[0], nil
}

func (a *Addressable) ReadWord(ctx context.Context, address, reg byte) (uint16, error) {
	a.mx.Lock()
	defer a.mx.Unlock()
	buf := make([]byte, 2)
	if err := a.read(ctx, address, reg, buf); err != nil {
		return 0, fmt.Errorf("could not read word %#x on %#x: %w", reg, address, err)
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}
