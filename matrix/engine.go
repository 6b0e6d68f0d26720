package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/cube/clock"
	"github.com/mklimuk/cube/color"
)

// DefaultHold is how long a frame stays on and then off.
const DefaultHold = time.Second

// FrameEvent is reported to an Observer around every frame toggle.
type FrameEvent struct {
	Animation Animation
	Index     int
	On        bool
	Voxels    []Voxel
}

type Observer func(FrameEvent)

type EngineOpts struct {
	Hold     time.Duration
	Sleeper  clock.Sleeper
	Observer Observer
	Logger   *slog.Logger
}

type EngineOpt func(*EngineOpts)

func WithHold(hold time.Duration) EngineOpt {
	return func(o *EngineOpts) {
		o.Hold = hold
	}
}

func WithSleeper(s clock.Sleeper) EngineOpt {
	return func(o *EngineOpts) {
		o.Sleeper = s
	}
}

func WithObserver(obs Observer) EngineOpt {
	return func(o *EngineOpts) {
		o.Observer = obs
	}
}

func WithLogger(logger *slog.Logger) EngineOpt {
	return func(o *EngineOpts) {
		o.Logger = logger
	}
}

// Engine drives voxels through the three color ports. The engine is held for
// the whole duration of an animation so nothing else touches the lines meanwhile.
type Engine struct {
	mx     sync.Mutex
	ports  Ports
	config EngineOpts
}

func NewEngine(ports Ports, opts ...EngineOpt) *Engine {
	config := EngineOpts{
		Hold:    DefaultHold,
		Sleeper: clock.Timer{},
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Engine{ports: ports, config: config}
}

func (e *Engine) drive(ctx context.Context, l Line, high bool) error {
	p, err := e.ports.get(l.Port)
	if err != nil {
		return err
	}
	mask := l.ResetMask()
	if high {
		mask = l.SetMask()
	}
	if err := p.WriteBSRR(ctx, mask); err != nil {
		return fmt.Errorf("drive %s: %w", l, err)
	}
	return nil
}

func (e *Engine) setVoxel(ctx context.Context, v Voxel, c color.Predominant) error {
	if !v.Valid() {
		return fmt.Errorf("voxel %s out of range", v)
	}
	for _, ch := range []struct {
		line Line
		on   bool
	}{
		{RedLine(v), c == color.Red},
		{GreenLine(v), c == color.Green},
		{BlueLine(v), c == color.Blue},
	} {
		if err := e.drive(ctx, ch.line, ch.on); err != nil {
			return fmt.Errorf("set voxel %s: %w", v, err)
		}
	}
	return nil
}

func (e *Engine) clearVoxel(ctx context.Context, v Voxel) error {
	if !v.Valid() {
		return fmt.Errorf("voxel %s out of range", v)
	}
	for _, l := range []Line{RedLine(v), GreenLine(v), BlueLine(v)} {
		if err := e.drive(ctx, l, false); err != nil {
			return fmt.Errorf("clear voxel %s: %w", v, err)
		}
	}
	return nil
}

// SetVoxel drives the channel matching c high and the other two low.
// Unknown leaves all three low.
func (e *Engine) SetVoxel(ctx context.Context, v Voxel, c color.Predominant) error {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.setVoxel(ctx, v, c)
}

// ClearVoxel drives all three channels of v low.
func (e *Engine) ClearVoxel(ctx context.Context, v Voxel) error {
	e.mx.Lock()
	defer e.mx.Unlock()
	return e.clearVoxel(ctx, v)
}

func (e *Engine) notify(ev FrameEvent) {
	if e.config.Observer != nil {
		e.config.Observer(ev)
	}
}

// Play runs an animation in color c. Each frame is switched on, held, switched
// off and held again. When Play fails midway the frame it lit is switched off
// before returning, even if ctx is already done.
func (e *Engine) Play(ctx context.Context, a Animation, c color.Predominant) error {
	e.mx.Lock()
	defer e.mx.Unlock()
	frames := a.Frames()
	if len(frames) == 0 {
		return fmt.Errorf("animation %d has no frames", a)
	}
	e.config.Logger.Debug("playing animation", "animation", a, "color", c, "frames", len(frames))
	for i, f := range frames {
		if err := e.playFrame(ctx, a, i, f, c); err != nil {
			e.darken(context.WithoutCancel(ctx), f)
			return err
		}
	}
	return nil
}

func (e *Engine) playFrame(ctx context.Context, a Animation, i int, f Frame, c color.Predominant) error {
	for _, v := range f.Voxels {
		if err := e.setVoxel(ctx, v, c); err != nil {
			return fmt.Errorf("%s frame %d: %w", a, i, err)
		}
	}
	e.notify(FrameEvent{Animation: a, Index: i, On: true, Voxels: f.Voxels})
	if err := e.config.Sleeper.Sleep(ctx, e.config.Hold); err != nil {
		return err
	}
	for _, v := range f.Voxels {
		if err := e.clearVoxel(ctx, v); err != nil {
			return fmt.Errorf("%s frame %d: %w", a, i, err)
		}
	}
	e.notify(FrameEvent{Animation: a, Index: i, On: false, Voxels: f.Voxels})
	return e.config.Sleeper.Sleep(ctx, e.config.Hold)
}

// darken switches every voxel of f off, carrying on past failing lines.
func (e *Engine) darken(ctx context.Context, f Frame) {
	for _, v := range f.Voxels {
		if err := e.clearVoxel(ctx, v); err != nil {
			e.config.Logger.Warn("could not switch voxel off", "voxel", v, "error", err)
		}
	}
}
