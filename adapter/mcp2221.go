package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/cube"
	"github.com/mklimuk/cube/cubectx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// MCP2221 HID commands
const (
	cmdStatus            = 0x10
	cmdGetData           = 0x40
	cmdWrite             = 0x90
	cmdRead              = 0x91
	cmdReadRepeatedStart = 0x93
	cmdWriteNoStop       = 0x94
)

const (
	statusCancel   = 0x10
	statusSetSpeed = 0x20
	// internal clock used to derive the I2C divider
	clockHz = 12_000_000
	// largest payload of a single report
	maxTransfer = 60
)

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")

var _ cube.I2CBus = &MCP2221{}
var _ cube.RegisterBus = &MCP2221{}

// Conn is an open HID report channel.
type Conn interface {
	io.ReadWriteCloser
}

// Opener opens the adapter for a single exchange. index is -1 when the caller did
// not select a device.
type Opener func(index int) (Conn, error)

type MCP2221Opts struct {
	ResponseWait time.Duration
	Opener       Opener
	Logger       *slog.Logger
}

type MCP2221Opt func(*MCP2221Opts)

func WithResponseWait(wait time.Duration) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.ResponseWait = wait
	}
}

func WithOpener(opener Opener) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.Opener = opener
	}
}

func WithLogger(logger *slog.Logger) MCP2221Opt {
	return func(o *MCP2221Opts) {
		o.Logger = logger
	}
}

// MCP2221 is a USB to I2C bridge. Every command is a 64 byte HID report answered
// by a 64 byte report.
type MCP2221 struct {
	mx       sync.Mutex
	request  []byte
	response []byte
	config   MCP2221Opts
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"speed_divider"`
	I2CTimeout             int    `yaml:"timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent"`
	ReadPending            int    `yaml:"read_pending"`
}

func NewMCP2221(opts ...MCP2221Opt) *MCP2221 {
	config := MCP2221Opts{
		ResponseWait: 50 * time.Millisecond,
		Opener:       OpenHID,
		Logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &MCP2221{
		request:  make([]byte, 64),
		response: make([]byte, 64),
		config:   config,
	}
}

// OpenHID opens the adapter at index among the connected ones. With index -1 the
// adapter must be the only one connected.
func OpenHID(index int) (Conn, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, ErrDeviceNotFound
	}
	if index < 0 {
		if len(devs) > 1 {
			return nil, fmt.Errorf("ambiguous device identification: %d adapters connected", len(devs))
		}
		index = 0
	}
	if index >= len(devs) {
		return nil, fmt.Errorf("no device with id %d", index)
	}
	dev, err := devs[index].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

func checkLength(buffer []byte) error {
	if len(buffer) > maxTransfer {
		return fmt.Errorf("transfer of %d bytes exceeds %d", len(buffer), maxTransfer)
	}
	return nil
}

// writeFrame fills the request for a write type command.
func writeFrame(request []byte, cmd, address byte, buffer []byte) {
	request[0] = cmd
	binary.LittleEndian.PutUint16(request[1:3], uint16(len(buffer)))
	request[3] = address << 1
	copy(request[4:], buffer)
}

// readFrame fills the request for a read type command.
func readFrame(request []byte, cmd, address byte, length int) {
	request[0] = cmd
	binary.LittleEndian.PutUint16(request[1:3], uint16(length))
	request[3] = address<<1 + 1
}

// speedFrame fills a status request that changes the bus clock.
func speedFrame(request []byte, hz int) error {
	if hz <= 0 {
		return fmt.Errorf("unsupported i2c speed %dHz", hz)
	}
	divider := clockHz/hz - 3
	if divider < 0 || divider > 0xFF {
		return fmt.Errorf("unsupported i2c speed %dHz", hz)
	}
	request[0] = cmdStatus
	request[3] = statusSetSpeed
	request[4] = byte(divider)
	return nil
}

func (d *MCP2221) write(ctx context.Context, cmd, address byte, buffer []byte) error {
	if err := checkLength(buffer); err != nil {
		return err
	}
	d.resetBuffers()
	writeFrame(d.request, cmd, address, buffer)
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	// write could not be performed
	if d.response[1] == 0x01 {
		d.config.Logger.Debug("adapter busy", "address", address)
		return cube.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd, address byte, buffer []byte) error {
	if err := checkLength(buffer); err != nil {
		return err
	}
	d.resetBuffers()
	readFrame(d.request, cmd, address, len(buffer))
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		d.config.Logger.Debug("adapter busy", "address", address)
		return cube.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetData
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine")
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.write(ctx, cmdWrite, address, buffer)
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.read(ctx, cmdRead, address, buffer)
}

func (d *MCP2221) WriteRegister(ctx context.Context, address, reg, data byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.write(ctx, cmdWrite, address, []byte{reg, data})
}

// readRegisters points at reg without a stop and reads the buffer after a
// repeated start.
func (d *MCP2221) readRegisters(ctx context.Context, address, reg byte, buffer []byte) error {
	if err := d.write(ctx, cmdWriteNoStop, address, []byte{reg}); err != nil {
		return err
	}
	return d.read(ctx, cmdReadRepeatedStart, address, buffer)
}

func (d *MCP2221) ReadRegister(ctx context.Context, address, reg byte) (byte, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	buf := make([]byte, 1)
	if err := d.readRegisters(ctx, address, reg, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *MCP2221) ReadWord(ctx context.Context, address, reg byte) (uint16, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	buf := make([]byte, 2)
	if err := d.readRegisters(ctx, address, reg, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// SetSpeed changes the I2C clock of the adapter.
func (d *MCP2221) SetSpeed(ctx context.Context, hz int) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	if err := speedFrame(d.request, hz); err != nil {
		return err
	}
	if err := d.send(ctx); err != nil {
		return fmt.Errorf("set speed request failed: %w", err)
	}
	// 0x21 means the speed could not be set while a transfer is in progress
	if d.response[3] == 0x21 {
		return fmt.Errorf("set speed to %dHz: %w", hz, ErrCommandFailed)
	}
	return nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// Release cancels the current transfer and frees the bus.
func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = statusCancel
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("cancel request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	dev, err := d.config.Opener(cubectx.Device(ctx))
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			d.config.Logger.Warn("could not close adapter", "error", err)
		}
	}()
	verbose := cubectx.IsVerbose(ctx)
	if verbose {
		d.config.Logger.Debug("sending message to adapter\n" + hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.config.ResponseWait):
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		d.config.Logger.Debug("read message from adapter\n" + hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}

// Adapter describes one connected MCP2221.
type Adapter struct {
	Index   int    `yaml:"index"`
	Path    string `yaml:"path"`
	Serial  string `yaml:"serial,omitempty"`
	Product string `yaml:"product,omitempty"`
}

// List enumerates the connected adapters.
func List() []Adapter {
	var res []Adapter
	for i, dev := range hid.Enumerate(VendorID, ProductID) {
		res = append(res, Adapter{Index: i, Path: dev.Path, Serial: dev.Serial, Product: dev.Product})
	}
	return res
}
