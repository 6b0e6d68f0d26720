package cube

import (
	"context"
	"errors"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// ErrTimeout is returned when a bus status flag did not come up within the configured wait.
var ErrTimeout = errors.New("timed out waiting for bus status")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus moves whole messages to and from a target address.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// RegisterBus performs the single register protocols used by the cube sensors.
// A register read is a write of the register pointer followed by a repeated start read.
type RegisterBus interface {
	WriteRegister(ctx context.Context, address, reg, data byte) error
	ReadRegister(ctx context.Context, address, reg byte) (byte, error)
	// ReadWord reads two consecutive bytes, low byte first.
	ReadWord(ctx context.Context, address, reg byte) (uint16, error)
}
