package color

import (
	"context"
	"fmt"

	"github.com/mklimuk/cube"
	"github.com/mklimuk/cube/register"
)

const TCS34725Address = 0x29

// Every register access carries the command bit.
const commandBit byte = 0x80

// Register map
const (
	regEnable  byte = 0x00
	regATime   byte = 0x01
	regControl byte = 0x0F
	regCData   byte = 0x14
	regRData   byte = 0x16
	regGData   byte = 0x18
	regBData   byte = 0x1A
)

const (
	enablePowerADC  byte = 0x03
	integration50ms byte = 0xEB
	gain16x         byte = 0x02
)

// DefaultClearLimit is the clear channel reading above which the light is too
// bright or too white to name a single color.
const DefaultClearLimit = 2000

var initSequence = []register.Write{
	{Reg: commandBit | regEnable, Value: enablePowerADC},
	{Reg: commandBit | regATime, Value: integration50ms},
	{Reg: commandBit | regControl, Value: gain16x},
}

type TCS34725Opt func(*TCS34725)

func WithClearLimit(limit uint16) TCS34725Opt {
	return func(s *TCS34725) {
		s.clearLimit = limit
	}
}

func WithAddress(address byte) TCS34725Opt {
	return func(s *TCS34725) {
		s.address = address
	}
}

// TCS34725 is an RGBC light sensor.
type TCS34725 struct {
	dev        *register.Device
	address    byte
	clearLimit uint16
}

func NewTCS34725(bus cube.RegisterBus, opts ...TCS34725Opt) *TCS34725 {
	s := &TCS34725{address: TCS34725Address, clearLimit: DefaultClearLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.dev = register.NewDevice(bus, s.address)
	return s
}

// Init powers the sensor up with a 50 ms integration time and 16x gain.
func (s *TCS34725) Init(ctx context.Context) error {
	if err := s.dev.WriteAll(ctx, initSequence); err != nil {
		return fmt.Errorf("tcs34725: init: %w", err)
	}
	return nil
}

func (s *TCS34725) ReadChannels(ctx context.Context) (Sample, error) {
	var res Sample
	channels := []struct {
		name string
		reg  byte
		dst  *uint16
	}{
		{"clear", regCData, &res.Clear},
		{"red", regRData, &res.Red},
		{"green", regGData, &res.Green},
		{"blue", regBData, &res.Blue},
	}
	for _, ch := range channels {
		v, err := s.dev.ReadWord(ctx, commandBit|ch.reg)
		if err != nil {
			return Sample{}, fmt.Errorf("tcs34725: %s channel: %w", ch.name, err)
		}
		*ch.dst = v
	}
	return res, nil
}

// ReadColor samples the sensor and names the predominant color.
func (s *TCS34725) ReadColor(ctx context.Context) (Predominant, Sample, error) {
	sample, err := s.ReadChannels(ctx)
	if err != nil {
		return Unknown, Sample{}, err
	}
	return ClassifyWithLimit(sample, s.clearLimit), sample, nil
}
