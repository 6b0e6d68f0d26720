package main

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/cube/cmd/cube/console"
)

var gestureCmd = cli.Command{
	Name: "gesture",
	Subcommands: []*cli.Command{
		&gestureCheckCmd,
		&gestureReadCmd,
	},
}

var gestureCheckCmd = cli.Command{
	Name:  "check",
	Usage: "initialize the gesture sensor and verify its id",
	Action: func(c *cli.Context) error {
		r, ctx, err := openRig(c)
		if err != nil {
			return console.Fail(1, "bus initialization error", err)
		}
		defer r.close()
		if err := r.gesture.Init(ctx); err != nil {
			return console.Fail(1, "gesture sensor initialization error", err)
		}
		ok, err := r.gesture.IsReady(ctx)
		if err != nil {
			return console.Fail(1, "gesture sensor communication error", err)
		}
		if !ok {
			return console.Exit(1, "gesture sensor did not answer with the expected id")
		}
		console.PInfof(console.PictoHand, "gesture sensor %s", console.Green("ready"))
		return nil
	},
}

var gestureReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "wait for swipes and print their direction",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "count",
			Value: 1,
			Usage: "number of gestures to wait for, 0 waits until interrupted",
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

		if err := r.gesture.Init(ctx); err != nil {
			return console.Fail(1, "gesture sensor initialization error", err)
		}
		sleeper := openSleeper(ctx, r.cfg)
		count := c.Int("count")
		for seen := 0; count == 0 || seen < count; {
			ok, err := r.gesture.DataAvailable(ctx)
			if err != nil {
				return console.Fail(1, "gesture sensor communication error", err)
			}
			if !ok {
				if err := sleeper.Sleep(ctx, r.cfg.Loop.GesturePoll); err != nil {
					return nil
				}
				continue
			}
			dir, err := r.gesture.Detect(ctx)
			if err != nil {
				return console.Fail(1, "gesture sensor communication error", err)
			}
			seen++
			counts := r.gesture.LastCounts()
			console.PInfof(console.PictoHand, "%s (%+v)", console.White(strings.ToUpper(dir.String())), counts)
		}
		return nil
	},
}
