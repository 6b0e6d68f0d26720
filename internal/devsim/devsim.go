// Package devsim models the cube sensors at register level so the whole stack can
// run against a simulated two-wire bus.
package devsim

import (
	"sync"

	"github.com/mklimuk/cube/color"
	"github.com/mklimuk/cube/gesture"
	"github.com/mklimuk/cube/twowire"
)

var _ twowire.Target = &TCS34725{}
var _ twowire.Target = &APDS9960{}

// TCS34725 serves a fixed sample from its data registers.
type TCS34725 struct {
	mx     sync.Mutex
	regs   [32]byte
	writes []twowire.RegisterWrite
}

func NewTCS34725(s color.Sample) *TCS34725 {
	d := &TCS34725{}
	d.SetSample(s)
	return d
}

func (d *TCS34725) SetSample(s color.Sample) {
	d.mx.Lock()
	defer d.mx.Unlock()
	for reg, v := range map[byte]uint16{0x14: s.Clear, 0x16: s.Red, 0x18: s.Green, 0x1A: s.Blue} {
		d.regs[reg] = byte(v)
		d.regs[reg+1] = byte(v >> 8)
	}
}

func (d *TCS34725) ReadReg(reg byte) byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.regs[reg&0x1F]
}

func (d *TCS34725) WriteReg(reg, v byte) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.regs[reg&0x1F] = v
	d.writes = append(d.writes, twowire.RegisterWrite{Reg: reg, Value: v})
}

// Writes returns register writes as they arrived, command bit included.
func (d *TCS34725) Writes() []twowire.RegisterWrite {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]twowire.RegisterWrite(nil), d.writes...)
}

// APDS9960 queues gesture datasets and hands them out through its FIFO registers.
type APDS9960 struct {
	mx       sync.Mutex
	id       byte
	enable   byte
	datasets [][]gesture.Entry
	entry    int
	writes   []twowire.RegisterWrite
}

func NewAPDS9960() *APDS9960 {
	return &APDS9960{id: 0xAB}
}

// SetID changes the value reported by the id register.
func (d *APDS9960) SetID(id byte) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.id = id
}

// Push queues one dataset. It becomes visible once gesture mode is enabled.
func (d *APDS9960) Push(entries ...gesture.Entry) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.datasets = append(d.datasets, entries)
}

// PushSwipe queues a dataset that decodes to dir.
func (d *APDS9960) PushSwipe(dir gesture.Direction) {
	d.Push(Swipe(dir)...)
}

// Pending returns the number of queued datasets.
func (d *APDS9960) Pending() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return len(d.datasets)
}

func (d *APDS9960) Writes() []twowire.RegisterWrite {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]twowire.RegisterWrite(nil), d.writes...)
}

func (d *APDS9960) gestureEnabled() bool {
	return d.enable&0x41 == 0x41
}

func (d *APDS9960) ReadReg(reg byte) byte {
	d.mx.Lock()
	defer d.mx.Unlock()
	switch reg {
	case 0x80:
		return d.enable
	case 0x92:
		return d.id
	case 0xAE:
		if !d.gestureEnabled() || len(d.datasets) == 0 {
			return 0
		}
		return byte(len(d.datasets[0]) - d.entry)
	case 0xAF:
		if d.gestureEnabled() && len(d.datasets) > 0 {
			return 0x01
		}
		return 0x00
	case 0xFC, 0xFD, 0xFE, 0xFF:
		return d.fifo(reg)
	default:
		return 0
	}
}

func (d *APDS9960) fifo(reg byte) byte {
	if len(d.datasets) == 0 || d.entry >= len(d.datasets[0]) {
		return 0
	}
	e := d.datasets[0][d.entry]
	var v byte
	switch reg {
	case 0xFC:
		v = e.Up
	case 0xFD:
		v = e.Down
	case 0xFE:
		v = e.Left
	case 0xFF:
		v = e.Right
		d.entry++
		if d.entry == len(d.datasets[0]) {
			d.datasets = d.datasets[1:]
			d.entry = 0
		}
	}
	return v
}

func (d *APDS9960) WriteReg(reg, v byte) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if reg == 0x80 {
		d.enable = v
	}
	d.writes = append(d.writes, twowire.RegisterWrite{Reg: reg, Value: v})
}

// Swipe builds a short dataset whose accumulated deltas clearly decode to dir.
func Swipe(dir gesture.Direction) []gesture.Entry {
	var e gesture.Entry
	switch dir {
	case gesture.Up:
		e = gesture.Entry{Up: 60, Down: 20, Left: 30, Right: 30}
	case gesture.Down:
		e = gesture.Entry{Up: 20, Down: 60, Left: 30, Right: 30}
	case gesture.Left:
		e = gesture.Entry{Up: 30, Down: 30, Left: 20, Right: 60}
	case gesture.Right:
		e = gesture.Entry{Up: 30, Down: 30, Left: 60, Right: 20}
	default:
		e = gesture.Entry{Up: 30, Down: 30, Left: 30, Right: 30}
	}
	return []gesture.Entry{e, e}
}
