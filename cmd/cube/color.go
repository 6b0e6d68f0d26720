package main

import (
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/cube/cmd/cube/console"
)

var colorCmd = cli.Command{
	Name: "color",
	Subcommands: []*cli.Command{
		&colorReadCmd,
	},
}

type colorReading struct {
	Color  string `yaml:"color"`
	Clear  uint16 `yaml:"clear"`
	Red    uint16 `yaml:"red"`
	Green  uint16 `yaml:"green"`
	Blue   uint16 `yaml:"blue"`
	Sample int    `yaml:"sample"`
}

var colorReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "sample the color sensor",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "count",
			Value: 1,
			Usage: "number of samples, 0 keeps sampling until interrupted",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Value: time.Second,
		},
		&cli.BoolFlag{
			Name:  "yaml",
			Usage: "print samples as YAML documents",
		},
	},
	Action: func(c *cli.Context) error {
		r, ctx, err := openRig(c)
		if err != nil {
			return console.Fail(1, "bus initialization error", err)
		}
		defer r.close()
		ctx, stop := interruptible(ctx)
		defer stop()

		if err := r.color.Init(ctx); err != nil {
			return console.Fail(1, "color sensor initialization error", err)
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		sleeper := openSleeper(ctx, r.cfg)
		count := c.Int("count")
		for i := 1; count == 0 || i <= count; i++ {
			p, sample, err := r.color.ReadColor(ctx)
			if err != nil {
				if isCancel(err) {
					return nil
				}
				return console.Fail(1, "error getting color sensor read", err)
			}
			if c.Bool("yaml") {
				err = enc.Encode(colorReading{
					Color: p.String(), Clear: sample.Clear, Red: sample.Red, Green: sample.Green, Blue: sample.Blue, Sample: i,
				})
				if err != nil {
					return console.Fail(1, "encoding error", err)
				}
			} else {
				console.PInfof(console.PictoBulb, "%s (%s)", console.Paint(p), sample)
			}
			if count != 0 && i == count {
				break
			}
			if err := sleeper.Sleep(ctx, c.Duration("interval")); err != nil {
				return nil
			}
		}
		return nil
	},
}
