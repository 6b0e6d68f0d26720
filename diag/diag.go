// Package diag carries the loop status lines to whoever watches the cube: a serial
// console or an MQTT topic.
package diag

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mklimuk/cube/control"
)

// Sink receives status lines.
type Sink interface {
	Line(line string) error
}

// Observer adapts a sink to the control loop. Delivery errors are handed to onErr.
func Observer(s Sink, onErr func(error)) control.Observer {
	return func(ev control.Event) {
		if err := s.Line(ev.String()); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Console frames every line for a serial terminal.
type Console struct {
	mx sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// OpenSerial writes to an already configured tty device.
func OpenSerial(path string) (*Console, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open serial device %s: %w", path, err)
	}
	return NewConsole(f), f, nil
}

func (c *Console) Line(line string) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	_, err := fmt.Fprintf(c.w, "\n\r%s\n\r", line)
	return err
}

// Fanout sends each line to all sinks, even when some of them fail.
type Fanout []Sink

func (f Fanout) Line(line string) error {
	var errs []error
	for _, s := range f {
		if err := s.Line(line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
