package gesture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/cube"
	"github.com/mklimuk/cube/register"
)

const APDS9960Address = 0x39

// Register map
const (
	regEnable   byte = 0x80
	regID       byte = 0x92
	regGPENTH   byte = 0xA0
	regGEXTH    byte = 0xA1
	regGConf1   byte = 0xA2
	regGConf2   byte = 0xA3
	regGOffsetU byte = 0xA4
	regGOffsetD byte = 0xA5
	regGPulse   byte = 0xA6
	regGOffsetL byte = 0xA7
	regGOffsetR byte = 0xA9
	regGConf3   byte = 0xAA
	regGConf4   byte = 0xAB
	regGFLVL    byte = 0xAE
	regGStatus  byte = 0xAF
	regGFIFOU   byte = 0xFC
	regGFIFOD   byte = 0xFD
	regGFIFOL   byte = 0xFE
	regGFIFOR   byte = 0xFF
)

const (
	ExpectedID       byte = 0xAB
	gstatusGVALID    byte = 0x01
	enablePower      byte = 0x01
	enableGesturePON byte = 0x45
)

var ErrNotReady = errors.New("apds9960: unexpected device id")

var initSequence = []register.Write{
	{Reg: regEnable, Value: enablePower},
	// all photodiode pairs active
	{Reg: regGConf3, Value: 0x00},
	// FIFO threshold after one dataset
	{Reg: regGConf1, Value: 0x00},
	// gain 4x, LED drive 100 mA, wait 2.8 ms
	{Reg: regGConf2, Value: 0x57},
	// pulse length 16 us, one pulse
	{Reg: regGPulse, Value: 0x80},
	// gesture mode
	{Reg: regGConf4, Value: 0x01},
	{Reg: regGPENTH, Value: 0x50},
	{Reg: regGEXTH, Value: 0x1F},
	{Reg: regGOffsetU, Value: 0x00},
	{Reg: regGOffsetD, Value: 0x00},
	{Reg: regGOffsetL, Value: 0x00},
	{Reg: regGOffsetR, Value: 0x00},
	{Reg: regEnable, Value: enableGesturePON},
}

type APDS9960Opt func(*APDS9960)

func WithThreshold(threshold int) APDS9960Opt {
	return func(s *APDS9960) {
		s.threshold = threshold
	}
}

func WithAddress(address byte) APDS9960Opt {
	return func(s *APDS9960) {
		s.address = address
	}
}

// APDS9960 is a proximity and gesture sensor used in gesture mode only.
type APDS9960 struct {
	mx        sync.Mutex
	dev       *register.Device
	address   byte
	threshold int
	last      Counts
}

func NewAPDS9960(bus cube.RegisterBus, opts ...APDS9960Opt) *APDS9960 {
	s := &APDS9960{address: APDS9960Address, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(s)
	}
	s.dev = register.NewDevice(bus, s.address)
	return s
}

func (s *APDS9960) Init(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if err := s.dev.WriteAll(ctx, initSequence); err != nil {
		return fmt.Errorf("apds9960: init: %w", err)
	}
	s.last = Counts{}
	return nil
}

// IsReady reports whether the device answers with the expected id.
func (s *APDS9960) IsReady(ctx context.Context) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	id, err := s.dev.Read(ctx, regID)
	if err != nil {
		return false, fmt.Errorf("apds9960: read id: %w", err)
	}
	return id == ExpectedID, nil
}

// DataAvailable reports whether the gesture FIFO holds valid data.
func (s *APDS9960) DataAvailable(ctx context.Context) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	st, err := s.dev.Read(ctx, regGStatus)
	if err != nil {
		return false, fmt.Errorf("apds9960: read gesture status: %w", err)
	}
	return st&gstatusGVALID != 0, nil
}

// ReadFIFO drains the datasets currently held in the gesture FIFO.
func (s *APDS9960) ReadFIFO(ctx context.Context) ([]Entry, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.readFIFO(ctx)
}

func (s *APDS9960) readFIFO(ctx context.Context) ([]Entry, error) {
	level, err := s.dev.Read(ctx, regGFLVL)
	if err != nil {
		return nil, fmt.Errorf("apds9960: read fifo level: %w", err)
	}
	entries := make([]Entry, 0, level)
	for i := 0; i < int(level); i++ {
		var e Entry
		for _, f := range []struct {
			reg byte
			dst *uint8
		}{
			{regGFIFOU, &e.Up},
			{regGFIFOD, &e.Down},
			{regGFIFOL, &e.Left},
			{regGFIFOR, &e.Right},
		} {
			v, err := s.dev.Read(ctx, f.reg)
			if err != nil {
				return nil, fmt.Errorf("apds9960: read fifo entry %d register %#x: %w", i, f.reg, err)
			}
			*f.dst = v
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Detect drains the FIFO and decodes a swipe direction from it.
// Deltas are accumulated from zero on every call.
func (s *APDS9960) Detect(ctx context.Context) (Direction, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	entries, err := s.readFIFO(ctx)
	if err != nil {
		return None, err
	}
	s.last = Accumulate(entries)
	return Decide(s.last, s.threshold), nil
}

// LastCounts returns the deltas accumulated by the most recent Detect.
func (s *APDS9960) LastCounts() Counts {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.last
}
