package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/cube/cmd/cube/console"
	"github.com/mklimuk/cube/color"
	"github.com/mklimuk/cube/matrix"
)

var displayCmd = cli.Command{
	Name: "display",
	Subcommands: []*cli.Command{
		&displayVoxelCmd,
		&displaySweepCmd,
	},
}

var colorFlag = &cli.StringFlag{
	Name:  "color",
	Value: "red",
	Usage: "red, green or blue",
}

var displayVoxelCmd = cli.Command{
	Name:  "voxel",
	Usage: "light a single LED, hold it and switch it off",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "layer"},
		&cli.IntFlag{Name: "row"},
		&cli.IntFlag{Name: "col"},
		colorFlag,
		&cli.BoolFlag{
			Name:  "keep",
			Usage: "leave the LED on",
		},
	},
	Action: func(c *cli.Context) error {
		v := matrix.Voxel{Layer: c.Int("layer"), Row: c.Int("row"), Col: c.Int("col")}
		if !v.Valid() {
			return console.Exit(1, "voxel %s is outside the cube", v)
		}
		p, err := color.Parse(c.String("color"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		r, ctx, err := openRig(c)
		if err != nil {
			return console.Fail(1, "bus initialization error", err)
		}
		defer r.close()
		ctx, stop := interruptible(ctx)
		defer stop()
		sleeper := openSleeper(ctx, r.cfg)
		engine, err := openEngine(ctx, r, sleeper)
		if err != nil {
			return console.Fail(1, "display initialization error", err)
		}
		if err := engine.SetVoxel(ctx, v, p); err != nil {
			return console.Fail(1, "could not set voxel", err)
		}
		console.PInfof(console.PictoPin, "voxel %s is %s", v, console.Paint(p))
		if c.Bool("keep") {
			return nil
		}
		if err := sleeper.Sleep(ctx, r.cfg.Display.Hold); err != nil {
			return nil
		}
		if err := engine.ClearVoxel(ctx, v); err != nil {
			return console.Fail(1, "could not clear voxel", err)
		}
		return nil
	},
}

var displaySweepCmd = cli.Command{
	Name:      "sweep",
	Usage:     "play one sweep, or all four when no name is given",
	ArgsUsage: "[sweep-up|sweep-down|sweep-left|sweep-right]",
	Flags: []cli.Flag{
		colorFlag,
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask before playing every sweep",
		},
	},
	Action: func(c *cli.Context) error {
		p, err := color.Parse(c.String("color"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		anims := []matrix.Animation{matrix.SweepUp, matrix.SweepDown, matrix.SweepRight, matrix.SweepLeft}
		if c.Args().Present() {
			a, err := matrix.ParseAnimation(c.Args().First())
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			anims = []matrix.Animation{a}
		} else if !c.Bool("yes") {
			ok, err := console.Confirm("play all four sweeps?")
			if err != nil || !ok {
				return nil
			}
		}
		r, ctx, err := openRig(c)
		if err != nil {
			return console.Fail(1, "bus initialization error", err)
		}
		defer r.close()
		ctx, stop := interruptible(ctx)
		defer stop()
		engine, err := openEngine(ctx, r, openSleeper(ctx, r.cfg), matrix.WithObserver(func(ev matrix.FrameEvent) {
			if ev.On {
				console.Printf("%s frame %d on\n", ev.Animation, ev.Index)
			}
		}))
		if err != nil {
			return console.Fail(1, "display initialization error", err)
		}
		for _, a := range anims {
			console.PInfof(console.PictoBulb, "%s in %s", console.White(a), console.Paint(p))
			if err := engine.Play(ctx, a, p); err != nil {
				if isCancel(err) {
					return nil
				}
				return console.Fail(1, "animation error", err)
			}
		}
		return nil
	},
}
