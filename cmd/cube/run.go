package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/cube/cmd/cube/console"
	"github.com/mklimuk/cube/control"
	"github.com/mklimuk/cube/diag"
)

var runCmd = cli.Command{
	Name:  "run",
	Usage: "bring the sensors up and drive the cube until interrupted",
	Action: func(c *cli.Context) error {
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
		sink, err := openSinks(r)
		if err != nil {
			return console.Fail(1, "diagnostics initialization error", err)
		}
		loop := control.NewLoop(r.color, r.gesture, engine,
			control.WithDelays(r.cfg.Loop.ColorSettle, r.cfg.Loop.GesturePoll, r.cfg.Loop.AfterDetect, r.cfg.Loop.AfterAnimation),
			control.WithMaxGesturePolls(r.cfg.Loop.MaxGesturePolls),
			control.WithInitRetries(r.cfg.Loop.InitRetries, r.cfg.Loop.RetryDelay),
			control.WithSleeper(sleeper),
			control.WithLogger(slog.Default()),
			control.WithObserver(diag.Observer(sink, func(err error) {
				slog.Warn("status line dropped", "error", err)
			})),
		)

		console.PInfof(console.PictoCube, "cube starting with %s bus and %s display", r.cfg.Bus.Adapter, r.cfg.Display.Backend)
		if err := loop.Bootstrap(ctx); err != nil {
			if isCancel(err) {
				return nil
			}
			return console.Fail(1, "sensor bring-up error", err)
		}
		err = loop.Run(ctx)
		if err != nil && !isCancel(err) {
			return console.Fail(1, "cube stopped", err)
		}
		console.PInfof(console.PictoStop, "cube stopped")
		return nil
	},
}

// interruptible ends ctx on SIGINT or SIGTERM.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
