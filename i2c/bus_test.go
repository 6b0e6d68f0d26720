package i2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/cube/color"
)

func TestGenericBus_Registers(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x39, W: []byte{0x80, 0x41}},
			{Addr: 0x39, W: []byte{0x92}, R: []byte{0xAB}},
			{Addr: 0x29, W: []byte{0x94}, R: []byte{0x34, 0x12}},
		},
		DontPanic: true,
	}
	bus := NewBus(playback)
	ctx := context.Background()

	require.NoError(t, bus.WriteRegister(ctx, 0x39, 0x80, 0x41))
	id, err := bus.ReadRegister(ctx, 0x39, 0x92)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), id)
	word, err := bus.ReadWord(ctx, 0x29, 0x94)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), word)

	require.NoError(t, bus.Close())
}

func TestGenericBus_Messages(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x20, W: []byte{0x14, 0xFF}},
			{Addr: 0x20, R: []byte{0x01, 0x02}},
		},
		DontPanic: true,
	}
	bus := NewBus(playback)
	ctx := context.Background()

	require.NoError(t, bus.WriteToAddr(ctx, 0x20, []byte{0x14, 0xFF}))
	buf := make([]byte, 2)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x20, buf))
	assert.Equal(t, []byte{0x01, 0x02}, buf)
	require.NoError(t, bus.Release(ctx))
	require.NoError(t, bus.SetSpeed(100000))
	assert.Equal(t, "playback", bus.String())
	require.NoError(t, bus.Close())
}

func TestGenericBus_UnexpectedTransfer(t *testing.T) {
	playback := &i2ctest.Playback{DontPanic: true}
	bus := NewBus(playback)
	err := bus.WriteRegister(context.Background(), 0x29, 0x80, 0x03)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register 0x80")
}

func TestGenericBus_ColorSensor(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x29, W: []byte{0x94}, R: []byte{0x20, 0x03}},
			{Addr: 0x29, W: []byte{0x96}, R: []byte{0x58, 0x02}},
			{Addr: 0x29, W: []byte{0x98}, R: []byte{0x64, 0x00}},
			{Addr: 0x29, W: []byte{0x9A}, R: []byte{0x32, 0x00}},
		},
		DontPanic: true,
	}
	sensor := color.NewTCS34725(NewBus(playback))
	c, sample, err := sensor.ReadColor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, color.Red, c)
	assert.Equal(t, color.Sample{Clear: 800, Red: 600, Green: 100, Blue: 50}, sample)
	require.NoError(t, playback.Close())
}
