package twowire

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/mklimuk/cube"
)

var _ cube.RegisterBus = &Master{}
var _ cube.I2CBus = &Master{}

type MasterOpts struct {
	// Timeout bounds every status wait. Zero waits until the flag comes up or the
	// context ends, which is how the bare controller behaves on a stuck bus.
	Timeout time.Duration
	Logger  *slog.Logger
}

type MasterOpt func(*MasterOpts)

func WithTimeout(timeout time.Duration) MasterOpt {
	return func(o *MasterOpts) {
		o.Timeout = timeout
	}
}

func WithLogger(logger *slog.Logger) MasterOpt {
	return func(o *MasterOpts) {
		o.Logger = logger
	}
}

// Master drives a two-wire controller through its register file.
//
// The byte level primitives (Start, Address, Send, ReceiveAck, ReceiveNack, Stop)
// are not serialized and are meant to be composed by a single caller. The register
// and message level methods hold the master for the whole transaction.
type Master struct {
	mx   sync.Mutex
	p    Peripheral
	opts MasterOpts
}

func NewMaster(p Peripheral, opts ...MasterOpt) *Master {
	config := MasterOpts{
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Master{p: p, opts: config}
}

// Init programs standard mode (100 kHz) timing and enables the peripheral.
func (m *Master) Init() {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.p.Store(CR1, m.p.Load(CR1)&^CR1PE)
	m.p.Store(CR2, peripheralClockMHz)
	m.p.Store(CCR, standardModeCCR)
	m.p.Store(TRISE, standardModeTRISE)
	m.p.Store(CR1, m.p.Load(CR1)|CR1PE)
}

func (m *Master) set(bits uint32) {
	m.p.Store(CR1, m.p.Load(CR1)|bits)
}

func (m *Master) clear(bits uint32) {
	m.p.Store(CR1, m.p.Load(CR1)&^bits)
}

func (m *Master) await(ctx context.Context, flag uint32) error {
	var deadline time.Time
	if m.opts.Timeout > 0 {
		deadline = time.Now().Add(m.opts.Timeout)
	}
	for {
		if m.p.Load(SR1)&flag != 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("waiting for %s: %w", flagName(flag), err)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("waiting for %s: %w", flagName(flag), cube.ErrTimeout)
		}
		runtime.Gosched()
	}
}

// Start generates a start (or repeated start) condition.
func (m *Master) Start(ctx context.Context) error {
	m.set(CR1Start)
	return m.await(ctx, SR1SB)
}

// Stop requests a stop condition. It does not wait for the bus to go idle.
func (m *Master) Stop() {
	m.set(CR1Stop)
}

// Address sends the 7-bit target address with the direction bit and clears ADDR
// by reading SR2 exactly once.
func (m *Master) Address(ctx context.Context, address byte, dir Dir) error {
	m.p.Store(DR, uint32(address<<1|byte(dir)))
	if err := m.await(ctx, SR1ADDR); err != nil {
		return err
	}
	_ = m.p.Load(SR2)
	return nil
}

func (m *Master) Send(ctx context.Context, v byte) error {
	m.p.Store(DR, uint32(v))
	return m.await(ctx, SR1TXE)
}

// ReceiveAck reads one byte and acknowledges it so the target keeps sending.
func (m *Master) ReceiveAck(ctx context.Context) (byte, error) {
	m.set(CR1Ack)
	if err := m.await(ctx, SR1RXNE); err != nil {
		return 0, err
	}
	return byte(m.p.Load(DR)), nil
}

// ReceiveNack reads the last byte of a transfer. Stop is armed before the byte
// arrives so the controller ends the transfer right after it.
func (m *Master) ReceiveNack(ctx context.Context) (byte, error) {
	m.clear(CR1Ack)
	m.Stop()
	if err := m.await(ctx, SR1RXNE); err != nil {
		return 0, err
	}
	return byte(m.p.Load(DR)), nil
}

// abort ends a failed transaction so that every start is paired with a stop.
func (m *Master) abort(err error) error {
	m.Stop()
	m.opts.Logger.Debug("two-wire transaction aborted", "error", err)
	return err
}

// pointTo selects reg on the target and turns the bus around for reading.
func (m *Master) pointTo(ctx context.Context, address, reg byte) error {
	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := m.Address(ctx, address, Write); err != nil {
		return fmt.Errorf("address write: %w", err)
	}
	if err := m.Send(ctx, reg); err != nil {
		return fmt.Errorf("register pointer: %w", err)
	}
	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("repeated start: %w", err)
	}
	if err := m.Address(ctx, address, Read); err != nil {
		return fmt.Errorf("address read: %w", err)
	}
	return nil
}

func (m *Master) WriteRegister(ctx context.Context, address, reg, data byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.Start(ctx); err != nil {
		return m.abort(fmt.Errorf("twowire: write %#x to %#x: start: %w", reg, address, err))
	}
	if err := m.Address(ctx, address, Write); err != nil {
		return m.abort(fmt.Errorf("twowire: write %#x to %#x: address: %w", reg, address, err))
	}
	if err := m.Send(ctx, reg); err != nil {
		return m.abort(fmt.Errorf("twowire: write %#x to %#x: register pointer: %w", reg, address, err))
	}
	if err := m.Send(ctx, data); err != nil {
		return m.abort(fmt.Errorf("twowire: write %#x to %#x: data: %w", reg, address, err))
	}
	m.Stop()
	return nil
}

func (m *Master) ReadRegister(ctx context.Context, address, reg byte) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.pointTo(ctx, address, reg); err != nil {
		return 0, m.abort(fmt.Errorf("twowire: read %#x from %#x: %w", reg, address, err))
	}
	v, err := m.ReceiveNack(ctx)
	if err != nil {
		return 0, m.abort(fmt.Errorf("twowire: read %#x from %#x: receive: %w", reg, address, err))
	}
	m.Stop()
	return v, nil
}

func (m *Master) ReadWord(ctx context.Context, address, reg byte) (uint16, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.pointTo(ctx, address, reg); err != nil {
		return 0, m.abort(fmt.Errorf("twowire: read word %#x from %#x: %w", reg, address, err))
	}
	lo, err := m.ReceiveAck(ctx)
	if err != nil {
		return 0, m.abort(fmt.Errorf("twowire: read word %#x from %#x: low byte: %w", reg, address, err))
	}
	hi, err := m.ReceiveNack(ctx)
	if err != nil {
		return 0, m.abort(fmt.Errorf("twowire: read word %#x from %#x: high byte: %w", reg, address, err))
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func (m *Master) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.Start(ctx); err != nil {
		return m.abort(fmt.Errorf("twowire: write to %#x: start: %w", address, err))
	}
	if err := m.Address(ctx, address, Write); err != nil {
		return m.abort(fmt.Errorf("twowire: write to %#x: address: %w", address, err))
	}
	for i, b := range buffer {
		if err := m.Send(ctx, b); err != nil {
			return m.abort(fmt.Errorf("twowire: write to %#x: byte %d: %w", address, i, err))
		}
	}
	m.Stop()
	return nil
}

// ReadFromAddr fills buffer from address. An empty buffer is rejected before
// start since a read phase can only be closed by receiving a byte.
func (m *Master) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if len(buffer) == 0 {
		return fmt.Errorf("twowire: read from %#x: empty buffer", address)
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.Start(ctx); err != nil {
		return m.abort(fmt.Errorf("twowire: read from %#x: start: %w", address, err))
	}
	if err := m.Address(ctx, address, Read); err != nil {
		return m.abort(fmt.Errorf("twowire: read from %#x: address: %w", address, err))
	}
	var err error
	for i := range buffer {
		if i == len(buffer)-1 {
			buffer[i], err = m.ReceiveNack(ctx)
		} else {
			buffer[i], err = m.ReceiveAck(ctx)
		}
		if err != nil {
			return m.abort(fmt.Errorf("twowire: read from %#x: byte %d: %w", address, i, err))
		}
	}
	m.Stop()
	return nil
}

// Release forces a stop condition.
func (m *Master) Release(ctx context.Context) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.Stop()
	return nil
}
