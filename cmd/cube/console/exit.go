package console

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/cube"
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// Fail reports what failed with err painted red. Bus faults get a hint since
// they are almost always wiring or a stuck bridge.
func Fail(code int, what string, err error) cli.ExitCoder {
	text := fmt.Sprintf("%s: %s", what, Red(err))
	switch {
	case errors.Is(err, cube.ErrTimeout):
		text += "\n" + PictoPin + " no answer on the bus, check wiring and addresses"
	case errors.Is(err, cube.ErrBusBusy):
		text += "\n" + PictoPin + " bus stuck, try: cube mcp2221 release"
	}
	return cli.Exit(text, code)
}
