package console

import (
	"github.com/fatih/color"

	cubecolor "github.com/mklimuk/cube/color"
)

// Available ANSI colors
var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Blue   = color.New(color.FgBlue).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
	Bold   = color.New(color.Bold).SprintFunc()
)

// Paint prints a cube color name in that color.
func Paint(p cubecolor.Predominant) string {
	switch p {
	case cubecolor.Red:
		return Red(p.String())
	case cubecolor.Green:
		return Green(p.String())
	case cubecolor.Blue:
		return Blue(p.String())
	default:
		return White(p.String())
	}
}
