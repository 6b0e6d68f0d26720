package gesture

// Direction is a decoded hand swipe.
type Direction int

const (
	None Direction = iota
	Up
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// DefaultThreshold is the accumulated delta a swipe has to exceed.
const DefaultThreshold = 30

// Entry is one FIFO dataset of the four directional photodiodes.
type Entry struct {
	Up    uint8
	Down  uint8
	Left  uint8
	Right uint8
}

// Counts are the accumulated photodiode deltas of one decode.
type Counts struct {
	UpDown    int `yaml:"up_down"`
	LeftRight int `yaml:"left_right"`
	Entries   int `yaml:"entries"`
}

// Accumulate sums up-minus-down and left-minus-right over entries.
func Accumulate(entries []Entry) Counts {
	var c Counts
	for _, e := range entries {
		c.UpDown += int(e.Up) - int(e.Down)
		c.LeftRight += int(e.Left) - int(e.Right)
	}
	c.Entries = len(entries)
	return c
}

// Decide picks the dominant axis and then requires its delta to strictly exceed
// threshold. A horizontal swipe wins only when its magnitude is strictly larger.
func Decide(c Counts, threshold int) Direction {
	if abs(c.LeftRight) > abs(c.UpDown) {
		switch {
		case c.LeftRight > threshold:
			return Right
		case c.LeftRight < -threshold:
			return Left
		}
		return None
	}
	switch {
	case c.UpDown > threshold:
		return Up
	case c.UpDown < -threshold:
		return Down
	}
	return None
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
