package matrix

import (
	"context"
	"fmt"

	"gobot.io/x/gobot/v2/drivers/gpio"
)

var _ Port = &DigitalPort{}

// DigitalPort drives board pins through a gobot adaptor, one pin id per port bit.
type DigitalPort struct {
	writer gpio.DigitalWriter
	pins   []string
}

func NewDigitalPort(writer gpio.DigitalWriter, pins []string) (*DigitalPort, error) {
	if len(pins) > PinsPerPort {
		return nil, fmt.Errorf("port takes at most %d pins, got %d", PinsPerPort, len(pins))
	}
	return &DigitalPort{writer: writer, pins: pins}, nil
}

func (p *DigitalPort) WriteBSRR(ctx context.Context, mask uint32) error {
	for i, pin := range p.pins {
		if pin == "" {
			continue
		}
		var level byte
		switch {
		case mask&(1<<i) != 0:
			level = 1
		case mask&(1<<(i+PinsPerPort)) != 0:
			level = 0
		default:
			continue
		}
		if err := p.writer.DigitalWrite(pin, level); err != nil {
			return fmt.Errorf("could not write pin %s: %w", pin, err)
		}
	}
	return nil
}
