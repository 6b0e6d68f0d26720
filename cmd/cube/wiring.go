package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/cube"
	"github.com/mklimuk/cube/adapter"
	"github.com/mklimuk/cube/clock"
	"github.com/mklimuk/cube/color"
	"github.com/mklimuk/cube/config"
	"github.com/mklimuk/cube/cubectx"
	"github.com/mklimuk/cube/diag"
	"github.com/mklimuk/cube/gesture"
	"github.com/mklimuk/cube/gobotbus"
	"github.com/mklimuk/cube/gpio"
	"github.com/mklimuk/cube/i2c"
	"github.com/mklimuk/cube/internal/devsim"
	"github.com/mklimuk/cube/matrix"
	"github.com/mklimuk/cube/register"
	"github.com/mklimuk/cube/twowire"
)

// Bus is what the cube needs from an I2C backend: register access for the sensors
// and plain messages for the port expanders.
type Bus interface {
	cube.RegisterBus
	cube.I2CBus
}

// rig is everything opened for one command. close releases it in reverse order.
type rig struct {
	cfg     config.Config
	bus     Bus
	color   *color.TCS34725
	gesture *gesture.APDS9960
	sim     *simDevices
	closers []func() error
}

type simDevices struct {
	sim     *twowire.Sim
	color   *devsim.TCS34725
	gesture *devsim.APDS9960
}

func (r *rig) onClose(f func() error) {
	r.closers = append(r.closers, f)
}

func (r *rig) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			slog.Warn("could not release resource", "error", err)
		}
	}
	r.closers = nil
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// commandContext carries the global flags down to the bus adapters.
func commandContext(c *cli.Context, cfg config.Config) context.Context {
	ctx := cubectx.SetVerbose(c.Context, c.Bool("verbose"))
	return cubectx.SetDevice(ctx, cfg.Bus.AdapterIndex)
}

var simSamples = map[color.Predominant]color.Sample{
	color.Unknown: {Clear: 2500, Red: 800, Green: 800, Blue: 800},
	color.Red:     {Clear: 700, Red: 500, Green: 100, Blue: 100},
	color.Green:   {Clear: 700, Red: 100, Green: 500, Blue: 100},
	color.Blue:    {Clear: 700, Red: 100, Green: 100, Blue: 500},
}

func openSim(cfg config.Config) (*simDevices, error) {
	p, err := color.Parse(cfg.Sim.Color)
	if err != nil {
		p = color.Unknown
	}
	d := &simDevices{
		sim:     twowire.NewSim(),
		color:   devsim.NewTCS34725(simSamples[p]),
		gesture: devsim.NewAPDS9960(),
	}
	d.sim.Attach(byte(cfg.Color.Address), d.color)
	d.sim.Attach(byte(cfg.Gesture.Address), d.gesture)
	for _, name := range cfg.Sim.Gestures {
		dir, err := parseDirection(name)
		if err != nil {
			return nil, err
		}
		d.gesture.PushSwipe(dir)
	}
	return d, nil
}

func parseDirection(name string) (gesture.Direction, error) {
	for _, d := range []gesture.Direction{gesture.Up, gesture.Down, gesture.Left, gesture.Right} {
		if d.String() == name {
			return d, nil
		}
	}
	return gesture.None, fmt.Errorf("unknown gesture %q", name)
}

func openBus(ctx context.Context, cfg config.Config, r *rig) error {
	switch cfg.Bus.Adapter {
	case config.BusSim:
		d, err := openSim(cfg)
		if err != nil {
			return err
		}
		m := twowire.NewMaster(d.sim, twowire.WithTimeout(cfg.Bus.Timeout), twowire.WithLogger(slog.Default()))
		m.Init()
		r.sim = d
		r.bus = m
	case config.BusPeriph:
		b, err := i2c.NewGenericBus(cfg.Bus.Device)
		if err != nil {
			return err
		}
		r.onClose(b.Close)
		if cfg.Bus.Speed > 0 {
			if err := b.SetSpeed(int64(cfg.Bus.Speed)); err != nil {
				slog.Warn("keeping default bus speed", "error", err)
			}
		}
		r.bus = b
	case config.BusMCP2221:
		a := adapter.NewMCP2221(adapter.WithLogger(slog.Default()))
		if cfg.Bus.Speed > 0 {
			if err := a.SetSpeed(ctx, cfg.Bus.Speed); err != nil {
				return fmt.Errorf("mcp2221: %w", err)
			}
		}
		// the adapter reports busy instead of waiting, so register access goes
		// through the retrying addressable wrapper
		r.bus = struct {
			cube.RegisterBus
			cube.I2CBus
		}{register.NewAddressable(a, register.WithRetryLimit(cfg.Bus.RetryLimit)), a}
	case config.BusNanoPi:
		b, err := gobotbus.OpenNanoPi(cfg.Bus.NanoPiBus)
		if err != nil {
			return err
		}
		r.onClose(b.Close)
		r.bus = b
	default:
		return fmt.Errorf("bus adapter %q: %w", cfg.Bus.Adapter, config.ErrUnknownBackend)
	}
	return nil
}

// openRig opens the bus and builds both sensor drivers on it.
func openRig(c *cli.Context) (*rig, context.Context, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	ctx := commandContext(c, cfg)
	r := &rig{cfg: cfg}
	if err := openBus(ctx, cfg, r); err != nil {
		r.close()
		return nil, nil, err
	}
	r.color = color.NewTCS34725(r.bus,
		color.WithAddress(byte(cfg.Color.Address)),
		color.WithClearLimit(uint16(cfg.Color.ClearLimit)))
	r.gesture = gesture.NewAPDS9960(r.bus,
		gesture.WithAddress(byte(cfg.Gesture.Address)),
		gesture.WithThreshold(cfg.Gesture.Threshold))
	return r, ctx, nil
}

func openPorts(ctx context.Context, r *rig) (matrix.Ports, error) {
	cfg := r.cfg.Display
	switch cfg.Backend {
	case config.DisplaySim:
		ports, _, _, _ := matrix.NewMemPorts()
		return ports, nil
	case config.DisplayPeriph:
		var ports [3]matrix.Port
		for i, pins := range [][]string{cfg.PinsA, cfg.PinsB, cfg.PinsC} {
			p, err := matrix.OpenPinPort(pins)
			if err != nil {
				return matrix.Ports{}, fmt.Errorf("port %s: %w", matrix.PortID(i), err)
			}
			ports[i] = p
		}
		return matrix.Ports{A: ports[0], B: ports[1], C: ports[2]}, nil
	case config.DisplayGobot:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.Connect(); err != nil {
			return matrix.Ports{}, fmt.Errorf("adaptor connect error: %w", err)
		}
		r.onClose(npi.Finalize)
		var ports [3]matrix.Port
		for i, pins := range [][]string{cfg.PinsA, cfg.PinsB, cfg.PinsC} {
			p, err := matrix.NewDigitalPort(npi, pins)
			if err != nil {
				return matrix.Ports{}, fmt.Errorf("port %s: %w", matrix.PortID(i), err)
			}
			ports[i] = p
		}
		return matrix.Ports{A: ports[0], B: ports[1], C: ports[2]}, nil
	case config.DisplayMCP23017:
		var ports [3]matrix.Port
		for i, addr := range cfg.Expanders {
			e := gpio.NewMCP23017(r.bus, byte(addr), gpio.WithRetryLimit(r.cfg.Bus.RetryLimit))
			if err := e.InitOutputs(ctx); err != nil {
				return matrix.Ports{}, fmt.Errorf("port %s: %w", matrix.PortID(i), err)
			}
			ports[i] = e
		}
		return matrix.Ports{A: ports[0], B: ports[1], C: ports[2]}, nil
	default:
		return matrix.Ports{}, fmt.Errorf("display backend %q: %w", cfg.Backend, config.ErrUnknownBackend)
	}
}

func openEngine(ctx context.Context, r *rig, sleeper clock.Sleeper, opts ...matrix.EngineOpt) (*matrix.Engine, error) {
	ports, err := openPorts(ctx, r)
	if err != nil {
		return nil, err
	}
	opts = append([]matrix.EngineOpt{
		matrix.WithHold(r.cfg.Display.Hold),
		matrix.WithSleeper(sleeper),
		matrix.WithLogger(slog.Default()),
	}, opts...)
	return matrix.NewEngine(ports, opts...), nil
}

// openSleeper picks the delay source. A tick period runs the countdown ticker
// for as long as ctx lives.
func openSleeper(ctx context.Context, cfg config.Config) clock.Sleeper {
	if cfg.Loop.TickPeriod > 0 {
		return clock.StartTickDelay(ctx, cfg.Loop.TickPeriod)
	}
	return clock.Timer{}
}

// openSinks builds the status line outputs listed in the config.
func openSinks(r *rig) (diag.Sink, error) {
	cfg := r.cfg.Diag
	var sinks diag.Fanout
	if cfg.Stdout {
		sinks = append(sinks, diag.NewConsole(os.Stdout))
	}
	if cfg.Serial != "" {
		console, closer, err := diag.OpenSerial(cfg.Serial)
		if err != nil {
			return nil, err
		}
		r.onClose(closer.Close)
		sinks = append(sinks, console)
	}
	if cfg.MQTT.Broker != "" {
		p, err := diag.DialMQTT(diag.MQTTOpts{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
		})
		if err != nil {
			return nil, err
		}
		r.onClose(p.Close)
		sinks = append(sinks, p)
	}
	if len(sinks) == 0 {
		return diag.NewConsole(io.Discard), nil
	}
	return sinks, nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
