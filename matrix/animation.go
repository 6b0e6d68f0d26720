package matrix

import "fmt"

// Animation is one of the sweep patterns played in answer to a gesture.
type Animation int

const (
	SweepUp Animation = iota
	SweepDown
	SweepRight
	SweepLeft
)

func (a Animation) String() string {
	switch a {
	case SweepUp:
		return "sweep-up"
	case SweepDown:
		return "sweep-down"
	case SweepRight:
		return "sweep-right"
	case SweepLeft:
		return "sweep-left"
	default:
		return "unknown"
	}
}

// ParseAnimation accepts the sweep name or its bare direction.
func ParseAnimation(name string) (Animation, error) {
	switch name {
	case "up", "sweep-up":
		return SweepUp, nil
	case "down", "sweep-down":
		return SweepDown, nil
	case "right", "sweep-right":
		return SweepRight, nil
	case "left", "sweep-left":
		return SweepLeft, nil
	default:
		return 0, fmt.Errorf("unknown animation %q", name)
	}
}

// Frame is a group of voxels switched on together and then off together.
type Frame struct {
	Voxels []Voxel
}

func plane(layer int) Frame {
	f := Frame{Voxels: make([]Voxel, 0, Size*Size)}
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			f.Voxels = append(f.Voxels, Voxel{Layer: layer, Row: row, Col: col})
		}
	}
	return f
}

func column(layer, col int) Frame {
	f := Frame{Voxels: make([]Voxel, 0, Size)}
	for row := 0; row < Size; row++ {
		f.Voxels = append(f.Voxels, Voxel{Layer: layer, Row: row, Col: col})
	}
	return f
}

// Frames lists the frames of an animation in play order.
//
// Vertical sweeps light one full layer at a time. Horizontal sweeps walk every
// layer and light one 8-row line per column.
func (a Animation) Frames() []Frame {
	var frames []Frame
	switch a {
	case SweepUp:
		for layer := 0; layer < Size; layer++ {
			frames = append(frames, plane(layer))
		}
	case SweepDown:
		for layer := Size - 1; layer >= 0; layer-- {
			frames = append(frames, plane(layer))
		}
	case SweepRight:
		for layer := 0; layer < Size; layer++ {
			for col := 0; col < Size; col++ {
				frames = append(frames, column(layer, col))
			}
		}
	case SweepLeft:
		for layer := 0; layer < Size; layer++ {
			for col := Size - 1; col >= 0; col-- {
				frames = append(frames, column(layer, col))
			}
		}
	}
	return frames
}
