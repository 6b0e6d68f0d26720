package twowire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/cube"
)

func newTestMaster(t *testing.T, opts ...MasterOpt) (*Master, *Sim, *Registers) {
	t.Helper()
	sim := NewSim()
	regs := &Registers{}
	sim.Attach(0x29, regs)
	m := NewMaster(sim, opts...)
	m.Init()
	return m, sim, regs
}

func kinds(events []Event) []EventKind {
	res := make([]EventKind, 0, len(events))
	for _, e := range events {
		res = append(res, e.Kind)
	}
	return res
}

func TestMaster_Init(t *testing.T) {
	sim := NewSim()
	m := NewMaster(sim)
	m.Init()
	assert.Equal(t, uint32(16), sim.Load(CR2))
	assert.Equal(t, uint32(80), sim.Load(CCR))
	assert.Equal(t, uint32(17), sim.Load(TRISE))
	assert.NotZero(t, sim.Load(CR1)&CR1PE)
}

func TestMaster_WriteRegister(t *testing.T) {
	m, sim, regs := newTestMaster(t)
	err := m.WriteRegister(context.Background(), 0x29, 0x80, 0x03)
	require.NoError(t, err)

	assert.Equal(t, []RegisterWrite{{Reg: 0x80, Value: 0x03}}, regs.Writes)
	assert.Equal(t, []Event{
		{Kind: EventStart},
		{Kind: EventAddress, Addr: 0x29, Dir: Write},
		{Kind: EventTx, Data: 0x80},
		{Kind: EventTx, Data: 0x03},
		{Kind: EventStop},
	}, sim.Trace())
	assert.True(t, sim.Idle())
}

func TestMaster_ReadRegister(t *testing.T) {
	m, sim, regs := newTestMaster(t)
	regs.Set(0x92, 0xAB)

	v, err := m.ReadRegister(context.Background(), 0x29, 0x92)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), v)

	assert.Equal(t, []EventKind{
		EventStart, EventAddress, EventTx,
		EventStart, EventAddress,
		EventStopArmed, EventRx, EventStop,
	}, kinds(sim.Trace()))
	assert.Equal(t, []int{1, 1}, sim.SR2Reads(), "SR2 must be read once per address phase")
	assert.True(t, sim.Idle())
}

func TestMaster_ReadWord(t *testing.T) {
	m, sim, regs := newTestMaster(t)
	regs.Set(0x94, 0x34)
	regs.Set(0x95, 0x12)

	v, err := m.ReadWord(context.Background(), 0x29, 0x94)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v)

	trace := sim.Trace()
	var rx []Event
	for _, e := range trace {
		if e.Kind == EventRx {
			rx = append(rx, e)
		}
	}
	require.Len(t, rx, 2)
	assert.True(t, rx[0].Ack, "low byte is acknowledged")
	assert.False(t, rx[1].Ack, "high byte is not acknowledged")
	assert.Equal(t, []int{1, 1}, sim.SR2Reads())
	assert.True(t, sim.Idle())
}

func TestMaster_ReceiveNackArmsStopFirst(t *testing.T) {
	m, sim, regs := newTestMaster(t)
	regs.Set(0x10, 0x55)

	_, err := m.ReadRegister(context.Background(), 0x29, 0x10)
	require.NoError(t, err)

	trace := sim.Trace()
	armed, received := -1, -1
	for i, e := range trace {
		switch e.Kind {
		case EventStopArmed:
			armed = i
		case EventRx:
			received = i
		}
	}
	require.NotEqual(t, -1, armed)
	require.NotEqual(t, -1, received)
	assert.Less(t, armed, received)
}

func TestMaster_MessageTransfers(t *testing.T) {
	m, sim, regs := newTestMaster(t)
	ctx := context.Background()

	require.NoError(t, m.WriteToAddr(ctx, 0x29, []byte{0x20, 0x01, 0x02, 0x03}))
	assert.Equal(t, []RegisterWrite{{0x20, 0x01}, {0x21, 0x02}, {0x22, 0x03}}, regs.Writes)

	require.NoError(t, m.WriteToAddr(ctx, 0x29, []byte{0x20}))
	buf := make([]byte, 3)
	require.NoError(t, m.ReadFromAddr(ctx, 0x29, buf))
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, buf)
	assert.True(t, sim.Idle())
	require.NoError(t, m.Release(ctx))
}

func TestMaster_ReadFromAddrEmptyBuffer(t *testing.T) {
	m, sim, regs := newTestMaster(t)
	ctx := context.Background()

	for _, buf := range [][]byte{nil, {}} {
		err := m.ReadFromAddr(ctx, 0x29, buf)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty buffer")
	}
	assert.Empty(t, sim.Trace(), "nothing goes on the wire")

	require.NoError(t, m.WriteRegister(ctx, 0x29, 0x01, 0x02))
	assert.True(t, sim.Idle())
	trace := sim.Trace()
	require.NotEmpty(t, trace)
	assert.Equal(t, EventStop, trace[len(trace)-1].Kind)
	assert.Equal(t, []RegisterWrite{{0x01, 0x02}}, regs.Writes)
}

func TestMaster_Timeout(t *testing.T) {
	tests := []struct {
		name  string
		addr  byte
		stall uint32
		idle  bool
	}{
		{name: "absent target", addr: 0x50, idle: true},
		{name: "stuck start", addr: 0x29, stall: SR1SB, idle: true},
		// stop stays armed until the pending byte arrives
		{name: "stuck receive", addr: 0x29, stall: SR1RXNE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sim, _ := newTestMaster(t, WithTimeout(5*time.Millisecond))
			sim.Stall(tt.stall)
			_, err := m.ReadRegister(context.Background(), tt.addr, 0x00)
			require.Error(t, err)
			assert.True(t, errors.Is(err, cube.ErrTimeout), "unexpected error: %v", err)
			assert.Equal(t, tt.idle, sim.Idle())
			trace := sim.Trace()
			require.NotEmpty(t, trace)
			if tt.idle {
				assert.Equal(t, EventStop, trace[len(trace)-1].Kind)
			} else {
				assert.Contains(t, kinds(trace), EventStopArmed)
			}
		})
	}
}

func TestMaster_UnboundedWaitEndsWithContext(t *testing.T) {
	m, _, _ := newTestMaster(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.WriteRegister(ctx, 0x51, 0x00, 0x00)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, cube.ErrTimeout))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
