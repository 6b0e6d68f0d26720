package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/cube/cmd/cube/console"
	"github.com/mklimuk/cube/config"
)

var configCmd = cli.Command{
	Name: "config",
	Subcommands: []*cli.Command{
		&configDumpCmd,
		&configInitCmd,
	},
}

var configDumpCmd = cli.Command{
	Name:  "dump",
	Usage: "print the effective configuration",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return console.Fail(1, "encoding error", err)
		}
		return enc.Close()
	},
}

var configInitCmd = cli.Command{
	Name:      "init",
	Usage:     "write the default configuration to a file",
	ArgsUsage: "<path>",
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return console.Exit(1, "missing config path")
		}
		if _, err := os.Stat(path); err == nil {
			ok, err := console.Confirm(path + " exists, overwrite?")
			if err != nil || !ok {
				return nil
			}
		}
		if err := config.Default().Save(path); err != nil {
			return console.Fail(1, "could not write config", err)
		}
		console.Infof("default config written to %s", path)
		return nil
	},
}
