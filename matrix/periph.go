package matrix

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var _ Port = &PinPort{}

// PinPort drives up to 16 host GPIO lines, one per port bit. Missing pins are skipped.
type PinPort struct {
	pins [PinsPerPort]gpio.PinOut
}

func NewPinPort(pins []gpio.PinOut) (*PinPort, error) {
	if len(pins) > PinsPerPort {
		return nil, fmt.Errorf("port takes at most %d pins, got %d", PinsPerPort, len(pins))
	}
	p := &PinPort{}
	copy(p.pins[:], pins)
	return p, nil
}

// OpenPinPort looks host pins up by name. An empty name leaves that bit unconnected.
func OpenPinPort(names []string) (*PinPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	pins := make([]gpio.PinOut, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("gpio pin %q not found", name)
		}
		pins[i] = pin
	}
	return NewPinPort(pins)
}

func (p *PinPort) WriteBSRR(ctx context.Context, mask uint32) error {
	for i, pin := range p.pins {
		if pin == nil {
			continue
		}
		switch {
		case mask&(1<<i) != 0:
			if err := pin.Out(gpio.High); err != nil {
				return fmt.Errorf("could not set %s: %w", pin, err)
			}
		case mask&(1<<(i+PinsPerPort)) != 0:
			if err := pin.Out(gpio.Low); err != nil {
				return fmt.Errorf("could not reset %s: %w", pin, err)
			}
		}
	}
	return nil
}
