package matrix

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/mklimuk/cube/clock"
	"github.com/mklimuk/cube/color"
)

func TestMapping(t *testing.T) {
	tests := []struct {
		v     Voxel
		red   Line
		green Line
		blue  Line
	}{
		{Voxel{0, 0, 0}, Line{PortA, 0}, Line{PortB, 0}, Line{PortC, 0}},
		{Voxel{0, 3, 5}, Line{PortA, 3}, Line{PortB, 5}, Line{PortC, 8}},
		{Voxel{7, 7, 7}, Line{PortA, 7}, Line{PortB, 7}, Line{PortC, 14}},
		{Voxel{2, 6, 4}, Line{PortA, 6}, Line{PortB, 4}, Line{PortC, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.v.String(), func(t *testing.T) {
			for i := 0; i < 3; i++ {
				assert.Equal(t, tt.red, RedLine(tt.v))
				assert.Equal(t, tt.green, GreenLine(tt.v))
				assert.Equal(t, tt.blue, BlueLine(tt.v))
			}
		})
	}
}

func TestMappingStaysOnPort(t *testing.T) {
	for layer := 0; layer < Size; layer++ {
		for row := 0; row < Size; row++ {
			for col := 0; col < Size; col++ {
				v := Voxel{layer, row, col}
				for _, l := range []Line{RedLine(v), GreenLine(v), BlueLine(v)} {
					assert.Less(t, int(l.Pin), PinsPerPort, "voxel %s line %s", v, l)
				}
			}
		}
	}
}

func TestLineMasks(t *testing.T) {
	l := Line{Port: PortC, Pin: 14}
	assert.Equal(t, uint32(1<<14), l.SetMask())
	assert.Equal(t, uint32(1<<30), l.ResetMask())
	assert.Equal(t, uint16(0x4001), ApplyBSRR(0x0001, l.SetMask()))
	assert.Equal(t, uint16(0x0001), ApplyBSRR(0x4001, l.ResetMask()))
	assert.Equal(t, uint16(0x4000), ApplyBSRR(0x4000, l.SetMask()|l.ResetMask()), "set wins")
}

func TestEngine_SetVoxel(t *testing.T) {
	tests := []struct {
		c        color.Predominant
		a, b, c2 uint16
	}{
		{color.Red, 1 << 3, 0, 0},
		{color.Green, 0, 1 << 5, 0},
		{color.Blue, 0, 0, 1 << 8},
		{color.Unknown, 0, 0, 0},
	}
	v := Voxel{Layer: 1, Row: 3, Col: 5}
	for _, tt := range tests {
		t.Run(tt.c.String(), func(t *testing.T) {
			ports, a, b, c := NewMemPorts()
			e := NewEngine(ports, WithSleeper(&clock.Fake{}))
			require.NoError(t, e.SetVoxel(context.Background(), v, tt.c))
			assert.Equal(t, tt.a, a.State())
			assert.Equal(t, tt.b, b.State())
			assert.Equal(t, tt.c2, c.State())

			require.NoError(t, e.ClearVoxel(context.Background(), v))
			assert.Zero(t, a.State())
			assert.Zero(t, b.State())
			assert.Zero(t, c.State())
			assert.Equal(t, []uint32{RedLine(v).ResetMask()}, a.History()[1:])
		})
	}
}

func TestEngine_SetVoxelOutOfRange(t *testing.T) {
	ports, _, _, _ := NewMemPorts()
	e := NewEngine(ports)
	assert.Error(t, e.SetVoxel(context.Background(), Voxel{Layer: 8}, color.Red))
	assert.Error(t, e.ClearVoxel(context.Background(), Voxel{Col: -1}))
}

func TestAnimation_Frames(t *testing.T) {
	up := SweepUp.Frames()
	require.Len(t, up, 8)
	for i, f := range up {
		require.Len(t, f.Voxels, 64)
		for _, v := range f.Voxels {
			assert.Equal(t, i, v.Layer)
		}
	}
	down := SweepDown.Frames()
	require.Len(t, down, 8)
	assert.Equal(t, 7, down[0].Voxels[0].Layer)
	assert.Equal(t, 0, down[7].Voxels[0].Layer)

	right := SweepRight.Frames()
	require.Len(t, right, 64)
	assert.Equal(t, Voxel{0, 0, 0}, right[0].Voxels[0])
	assert.Equal(t, Voxel{0, 7, 0}, right[0].Voxels[7])
	assert.Equal(t, Voxel{0, 0, 7}, right[7].Voxels[0])
	assert.Equal(t, Voxel{1, 0, 0}, right[8].Voxels[0])

	left := SweepLeft.Frames()
	require.Len(t, left, 64)
	assert.Equal(t, 7, left[0].Voxels[0].Col)
	assert.Equal(t, 0, left[7].Voxels[0].Col)
	for _, f := range left {
		assert.Len(t, f.Voxels, 8)
	}
}

func TestParseAnimation(t *testing.T) {
	for _, a := range []Animation{SweepUp, SweepDown, SweepRight, SweepLeft} {
		got, err := ParseAnimation(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	_, err := ParseAnimation("spin")
	assert.Error(t, err)
}

func TestEngine_PlaySweepUp(t *testing.T) {
	ports, a, b, c := NewMemPorts()
	sleeper := &clock.Fake{}
	var lit []int
	var events []FrameEvent
	sleeper.OnSleep = func(d time.Duration) {
		// port state while a frame holds
		lit = append(lit, int(a.State()))
		assert.Zero(t, b.State())
		assert.Zero(t, c.State())
	}
	e := NewEngine(ports, WithSleeper(sleeper), WithObserver(func(ev FrameEvent) {
		events = append(events, ev)
	}))

	require.NoError(t, e.Play(context.Background(), SweepUp, color.Red))

	require.Len(t, events, 16)
	on := map[int]bool{}
	for i, ev := range events {
		layer := ev.Voxels[0].Layer
		assert.Equal(t, i/2, layer, "layers go bottom to top")
		assert.Equal(t, i%2 == 0, ev.On)
		for _, v := range ev.Voxels {
			assert.Equal(t, layer, v.Layer)
		}
		if ev.On {
			on[layer] = true
		} else {
			delete(on, layer)
		}
		assert.LessOrEqual(t, len(on), 1, "two layers lit at once")
	}
	assert.Empty(t, on)

	slept := sleeper.Slept()
	require.Len(t, slept, 16)
	for _, d := range slept {
		assert.Equal(t, time.Second, d)
	}
	for i, v := range lit {
		if i%2 == 0 {
			assert.Equal(t, 0x00FF, v, "all rows lit while the frame holds")
		} else {
			assert.Zero(t, v)
		}
	}
}

func TestEngine_PlayHorizontal(t *testing.T) {
	ports, _, b, _ := NewMemPorts()
	sleeper := &clock.Fake{}
	var cols []int
	e := NewEngine(ports, WithSleeper(sleeper), WithHold(10*time.Millisecond), WithObserver(func(ev FrameEvent) {
		if ev.On {
			cols = append(cols, ev.Voxels[0].Col)
		}
	}))
	sleeper.OnSleep = func(d time.Duration) {
		assert.LessOrEqual(t, b.State(), uint16(0x00FF))
	}

	require.NoError(t, e.Play(context.Background(), SweepLeft, color.Green))
	require.Len(t, cols, 64)
	assert.Equal(t, []int{7, 6, 5, 4, 3, 2, 1, 0}, cols[:8])
	assert.Equal(t, 128*10*time.Millisecond, sleeper.Total())
}

func TestEngine_PlayCancelled(t *testing.T) {
	for _, a := range []Animation{SweepUp, SweepDown, SweepRight, SweepLeft} {
		t.Run(a.String(), func(t *testing.T) {
			ports, pa, pb, pc := NewMemPorts()
			ctx, cancel := context.WithCancel(context.Background())
			sleeper := &clock.Fake{OnSleep: func(time.Duration) { cancel() }}
			e := NewEngine(ports, WithSleeper(sleeper))
			err := e.Play(ctx, a, color.Blue)
			assert.True(t, errors.Is(err, context.Canceled))
			assert.Zero(t, pa.State())
			assert.Zero(t, pb.State())
			assert.Zero(t, pc.State(), "frame left lit")
		})
	}
}

type failingPort struct {
	MemPort
	failAfter int
}

func (p *failingPort) WriteBSRR(ctx context.Context, mask uint32) error {
	if p.failAfter == 0 {
		p.failAfter = -1
		return errors.New("nack")
	}
	if p.failAfter > 0 {
		p.failAfter--
	}
	return p.MemPort.WriteBSRR(ctx, mask)
}

func TestEngine_PlayDriveErrorDarkensFrame(t *testing.T) {
	_, pa, pb, _ := NewMemPorts()
	pc := &failingPort{failAfter: 20}
	e := NewEngine(Ports{A: pa, B: pb, C: pc}, WithSleeper(&clock.Fake{}))
	err := e.Play(context.Background(), SweepUp, color.Blue)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nack")
	assert.Zero(t, pc.State())
}

func TestEngine_MissingPort(t *testing.T) {
	e := NewEngine(Ports{A: &MemPort{}})
	err := e.SetVoxel(context.Background(), Voxel{}, color.Red)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port B")
}

func TestPinPort(t *testing.T) {
	pins := make([]gpio.PinOut, 3)
	fakes := make([]*gpiotest.Pin, 3)
	for i := range pins {
		fakes[i] = &gpiotest.Pin{N: "GPIO", Num: i}
		pins[i] = fakes[i]
	}
	p, err := NewPinPort(pins)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.WriteBSRR(ctx, Line{Pin: 1}.SetMask()))
	assert.Equal(t, gpio.High, fakes[1].Read())
	assert.Equal(t, gpio.Low, fakes[0].Read())

	require.NoError(t, p.WriteBSRR(ctx, Line{Pin: 1}.ResetMask()))
	assert.Equal(t, gpio.Low, fakes[1].Read())

	_, err = NewPinPort(make([]gpio.PinOut, 17))
	assert.Error(t, err)
}

type digitalRecorder struct {
	writes map[string]byte
}

func (d *digitalRecorder) DigitalWrite(pin string, val byte) error {
	d.writes[pin] = val
	return nil
}

func TestDigitalPort(t *testing.T) {
	rec := &digitalRecorder{writes: map[string]byte{}}
	p, err := NewDigitalPort(rec, []string{"7", "11", ""})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, p.WriteBSRR(ctx, Line{Pin: 1}.SetMask()|Line{Pin: 0}.ResetMask()))
	assert.Equal(t, map[string]byte{"7": 0, "11": 1}, rec.writes)
}
