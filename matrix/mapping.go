package matrix

import "fmt"

// Size is the edge length of the cube.
const Size = 8

// PinsPerPort is the width of one output port.
const PinsPerPort = 16

// PortID names one of the three output ports.
type PortID int

const (
	PortA PortID = iota
	PortB
	PortC
)

func (p PortID) String() string {
	switch p {
	case PortA:
		return "A"
	case PortB:
		return "B"
	case PortC:
		return "C"
	default:
		return "?"
	}
}

// Voxel is one LED position.
type Voxel struct {
	Layer int `yaml:"layer"`
	Row   int `yaml:"row"`
	Col   int `yaml:"col"`
}

func (v Voxel) Valid() bool {
	return inRange(v.Layer) && inRange(v.Row) && inRange(v.Col)
}

func (v Voxel) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.Layer, v.Row, v.Col)
}

func inRange(i int) bool {
	return i >= 0 && i < Size
}

// Line is one physical drive line.
type Line struct {
	Port PortID
	Pin  uint8
}

func (l Line) String() string {
	return fmt.Sprintf("P%s%d", l.Port, l.Pin)
}

// SetMask is the set/reset register value that drives the line high.
func (l Line) SetMask() uint32 {
	return 1 << l.Pin
}

// ResetMask is the set/reset register value that drives the line low.
func (l Line) ResetMask() uint32 {
	return 1 << (l.Pin + PinsPerPort)
}

// RedLine maps a voxel to its red channel line on port A.
func RedLine(v Voxel) Line {
	return Line{Port: PortA, Pin: uint8((v.Layer*PinsPerPort + v.Row) % PinsPerPort)}
}

// GreenLine maps a voxel to its green channel line on port B.
func GreenLine(v Voxel) Line {
	return Line{Port: PortB, Pin: uint8((v.Layer*PinsPerPort + v.Col) % PinsPerPort)}
}

// BlueLine maps a voxel to its blue channel line on port C.
func BlueLine(v Voxel) Line {
	return Line{Port: PortC, Pin: uint8((v.Layer*PinsPerPort + v.Row + v.Col) % PinsPerPort)}
}
