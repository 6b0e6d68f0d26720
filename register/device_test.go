package register

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/cube"
	"github.com/mklimuk/cube/bustest"
)

func TestDevice_WriteAll(t *testing.T) {
	bus := &bustest.MockRegisterBus{}
	bus.On("WriteRegister", mock.Anything, byte(0x39), mock.Anything, mock.Anything).Return(nil)

	d := NewDevice(bus, 0x39)
	err := d.WriteAll(context.Background(), []Write{{0x80, 0x01}, {0xAA, 0x00}, {0x80, 0x45}})
	require.NoError(t, err)
	assert.Equal(t, [][2]byte{{0x80, 0x01}, {0xAA, 0x00}, {0x80, 0x45}}, bus.WriteOrder())
	bus.AssertExpectations(t)
}

func TestDevice_WriteAllStopsOnError(t *testing.T) {
	bus := &bustest.MockRegisterBus{}
	boom := errors.New("boom")
	bus.On("WriteRegister", mock.Anything, byte(0x39), byte(0x80), byte(0x01)).Return(nil)
	bus.On("WriteRegister", mock.Anything, byte(0x39), byte(0xAA), byte(0x00)).Return(boom)

	d := NewDevice(bus, 0x39)
	err := d.WriteAll(context.Background(), []Write{{0x80, 0x01}, {0xAA, 0x00}, {0x80, 0x45}})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "0xaa")
	bus.AssertNumberOfCalls(t, "WriteRegister", 2)
}

func TestDevice_Reads(t *testing.T) {
	bus := &bustest.MockRegisterBus{}
	bus.On("ReadRegister", mock.Anything, byte(0x29), byte(0x92)).Return(byte(0xAB), nil)
	bus.On("ReadWord", mock.Anything, byte(0x29), byte(0x94)).Return(uint16(0x1234), nil)

	d := NewDevice(bus, 0x29)
	v, err := d.Read(context.Background(), 0x92)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), v)
	w, err := d.ReadWord(context.Background(), 0x94)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), w)
	assert.Equal(t, byte(0x29), d.Address())
}

func TestAddressable_ReadWord(t *testing.T) {
	bus := &bustest.MockI2CBus{}
	bus.On("WriteToAddr", mock.Anything, byte(0x29), []byte{0x94}).Return(nil)
	bus.On("ReadFromAddr", mock.Anything, byte(0x29), mock.Anything).Return([]byte{0x34, 0x12}, nil)

	a := NewAddressable(bus)
	v, err := a.ReadWord(context.Background(), 0x29, 0x94)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v)
	bus.AssertExpectations(t)
}

func TestAddressable_WriteRegister(t *testing.T) {
	bus := &bustest.MockI2CBus{}
	bus.On("WriteToAddr", mock.Anything, byte(0x39), []byte{0x80, 0x45}).Return(nil)

	a := NewAddressable(bus)
	require.NoError(t, a.WriteRegister(context.Background(), 0x39, 0x80, 0x45))
	bus.AssertExpectations(t)
}

func TestAddressable_BusyRetry(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		failures  int
		expectErr bool
	}{
		{name: "recovers after release", limit: 3, failures: 2},
		{name: "gives up", limit: 2, failures: 2, expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &bustest.MockI2CBus{}
			bus.On("WriteToAddr", mock.Anything, byte(0x39), []byte{0x92}).Return(cube.ErrBusBusy).Times(tt.failures)
			bus.On("WriteToAddr", mock.Anything, byte(0x39), []byte{0x92}).Return(nil)
			bus.On("ReadFromAddr", mock.Anything, byte(0x39), mock.Anything).Return([]byte{0xAB}, nil)
			bus.On("Release", mock.Anything).Return(nil)

			a := NewAddressable(bus, WithRetryLimit(tt.limit))
			v, err := a.ReadRegister(context.Background(), 0x39, 0x92)
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, cube.ErrBusBusy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, byte(0xAB), v)
			bus.AssertNumberOfCalls(t, "Release", tt.failures)
		})
	}
}
