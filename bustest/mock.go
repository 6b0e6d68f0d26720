// Package bustest provides testify mocks of the cube bus contracts.
package bustest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mklimuk/cube"
)

var _ cube.I2CBus = &MockI2CBus{}
var _ cube.RegisterBus = &MockRegisterBus{}

type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

// ReadFromAddr copies the first return value into buffer when it is a byte slice.
func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockRegisterBus struct {
	mock.Mock
}

func (m *MockRegisterBus) WriteRegister(ctx context.Context, address, reg, data byte) error {
	args := m.Called(ctx, address, reg, data)
	return args.Error(0)
}

func (m *MockRegisterBus) ReadRegister(ctx context.Context, address, reg byte) (byte, error) {
	args := m.Called(ctx, address, reg)
	return args.Get(0).(byte), args.Error(1)
}

func (m *MockRegisterBus) ReadWord(ctx context.Context, address, reg byte) (uint16, error) {
	args := m.Called(ctx, address, reg)
	return args.Get(0).(uint16), args.Error(1)
}

// WriteOrder returns the (register, value) pairs passed to WriteRegister in call order.
func (m *MockRegisterBus) WriteOrder() [][2]byte {
	var res [][2]byte
	for _, c := range m.Calls {
		if c.Method != "WriteRegister" {
			continue
		}
		res = append(res, [2]byte{c.Arguments.Get(2).(byte), c.Arguments.Get(3).(byte)})
	}
	return res
}

// ReadOrder returns the registers passed to ReadRegister and ReadWord in call order.
func (m *MockRegisterBus) ReadOrder() []byte {
	var res []byte
	for _, c := range m.Calls {
		if c.Method != "ReadRegister" && c.Method != "ReadWord" {
			continue
		}
		res = append(res, c.Arguments.Get(2).(byte))
	}
	return res
}
