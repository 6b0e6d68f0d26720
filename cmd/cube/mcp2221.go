package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/cube/adapter"
	"github.com/mklimuk/cube/cmd/cube/console"
)

var mcp2221Cmd = cli.Command{
	Name: "mcp2221",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221SpeedCmd,
	},
}

func encodeStatus(status *adapter.MCP2221Status) error {
	enc := yaml.NewEncoder(os.Stdout)
	if err := enc.Encode(status); err != nil {
		return console.Fail(1, "encoding error", err)
	}
	return enc.Close()
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		a := adapter.NewMCP2221(adapter.WithLogger(slog.Default()))
		status, err := a.Status(commandContext(c, cfg))
		if err != nil {
			return console.Fail(1, "adapter communication error", err)
		}
		return encodeStatus(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a stuck transfer and free the bus",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		a := adapter.NewMCP2221(adapter.WithLogger(slog.Default()))
		status, err := a.ReleaseBus(commandContext(c, cfg))
		if err != nil {
			return console.Fail(1, "adapter communication error", err)
		}
		return encodeStatus(status)
	},
}

var mcp2221SpeedCmd = cli.Command{
	Name:      "speed",
	Usage:     "set the bus clock",
	ArgsUsage: "[hz]",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		hz := cfg.Bus.Speed
		if c.Args().Present() {
			if _, err := fmt.Sscanf(c.Args().First(), "%d", &hz); err != nil {
				return console.Exit(1, "invalid speed %q", c.Args().First())
			}
		}
		a := adapter.NewMCP2221(adapter.WithLogger(slog.Default()))
		if err := a.SetSpeed(commandContext(c, cfg), hz); err != nil {
			return console.Fail(1, "adapter communication error", err)
		}
		console.Infof("bus speed set to %d Hz", hz)
		return nil
	},
}
