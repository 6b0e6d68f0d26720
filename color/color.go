package color

import "fmt"

// Sample holds one reading of the four light channels.
type Sample struct {
	Clear uint16 `yaml:"clear"`
	Red   uint16 `yaml:"red"`
	Green uint16 `yaml:"green"`
	Blue  uint16 `yaml:"blue"`
}

func (s Sample) String() string {
	return fmt.Sprintf("c=%d r=%d g=%d b=%d", s.Clear, s.Red, s.Green, s.Blue)
}

// Predominant names the strongest color channel of a sample.
type Predominant int

const (
	Unknown Predominant = iota
	Red
	Green
	Blue
)

func (p Predominant) String() string {
	switch p {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return "unknown"
	}
}

// Parse reads a color name as printed by String.
func Parse(name string) (Predominant, error) {
	switch name {
	case "red", "r":
		return Red, nil
	case "green", "g":
		return Green, nil
	case "blue", "b":
		return Blue, nil
	case "unknown", "none":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("unknown color %q", name)
	}
}

// Classify names the predominant color using DefaultClearLimit.
func Classify(s Sample) Predominant {
	return ClassifyWithLimit(s, DefaultClearLimit)
}

// ClassifyWithLimit returns Unknown when the clear channel exceeds limit.
// Otherwise the channel strictly greater than both others wins; a shared
// maximum is Unknown.
func ClassifyWithLimit(s Sample, limit uint16) Predominant {
	if s.Clear > limit {
		return Unknown
	}
	switch {
	case s.Red > s.Green && s.Red > s.Blue:
		return Red
	case s.Green > s.Red && s.Green > s.Blue:
		return Green
	case s.Blue > s.Red && s.Blue > s.Green:
		return Blue
	default:
		return Unknown
	}
}
