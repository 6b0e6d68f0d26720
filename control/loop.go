// Package control runs the cube: it waits for a recognized color, then turns hand
// swipes into sweeps of that color.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mklimuk/cube/clock"
	"github.com/mklimuk/cube/color"
	"github.com/mklimuk/cube/gesture"
	"github.com/mklimuk/cube/matrix"
)

type ColorSource interface {
	Init(ctx context.Context) error
	ReadColor(ctx context.Context) (color.Predominant, color.Sample, error)
}

type GestureSource interface {
	Init(ctx context.Context) error
	IsReady(ctx context.Context) (bool, error)
	DataAvailable(ctx context.Context) (bool, error)
	Detect(ctx context.Context) (gesture.Direction, error)
}

type Display interface {
	Play(ctx context.Context, a matrix.Animation, c color.Predominant) error
}

type State int

const (
	WaitColor State = iota
	WaitGesture
	PlayAnimation
)

func (s State) String() string {
	switch s {
	case WaitColor:
		return "wait_color"
	case WaitGesture:
		return "wait_gesture"
	case PlayAnimation:
		return "play_animation"
	default:
		return "unknown"
	}
}

// Event is one observable step of the loop. Message is the status line shown to
// whoever watches the cube.
type Event struct {
	State     State
	Color     color.Predominant
	Direction gesture.Direction
	Message   string
	Err       error
}

func (e Event) String() string {
	return e.Message
}

type Observer func(Event)

// Animation returns the sweep matching a swipe. None has no animation.
func Animation(d gesture.Direction) (matrix.Animation, bool) {
	switch d {
	case gesture.Up:
		return matrix.SweepUp, true
	case gesture.Down:
		return matrix.SweepDown, true
	case gesture.Left:
		return matrix.SweepLeft, true
	case gesture.Right:
		return matrix.SweepRight, true
	default:
		return 0, false
	}
}

func colorLine(c color.Predominant) string {
	if c == color.Unknown {
		return "Unknown color"
	}
	return "Detected color is " + c.String()
}

type LoopOpts struct {
	ColorSettle     time.Duration
	GesturePoll     time.Duration
	AfterDetect     time.Duration
	AfterAnimation  time.Duration
	MaxGesturePolls int
	// InitRetries bounds gesture sensor bring-up. Zero retries forever.
	InitRetries int
	RetryDelay  time.Duration
	Sleeper     clock.Sleeper
	Observer    Observer
	Logger      *slog.Logger
}

type LoopOpt func(*LoopOpts)

func WithDelays(colorSettle, gesturePoll, afterDetect, afterAnimation time.Duration) LoopOpt {
	return func(o *LoopOpts) {
		o.ColorSettle = colorSettle
		o.GesturePoll = gesturePoll
		o.AfterDetect = afterDetect
		o.AfterAnimation = afterAnimation
	}
}

// WithMaxGesturePolls sets how many empty polls send the loop back to color
// sampling. Zero keeps waiting for a gesture forever.
func WithMaxGesturePolls(n int) LoopOpt {
	return func(o *LoopOpts) {
		if n >= 0 {
			o.MaxGesturePolls = n
		}
	}
}

func WithInitRetries(retries int, delay time.Duration) LoopOpt {
	return func(o *LoopOpts) {
		o.InitRetries = retries
		o.RetryDelay = delay
	}
}

func WithSleeper(s clock.Sleeper) LoopOpt {
	return func(o *LoopOpts) {
		o.Sleeper = s
	}
}

func WithObserver(obs Observer) LoopOpt {
	return func(o *LoopOpts) {
		o.Observer = obs
	}
}

func WithLogger(logger *slog.Logger) LoopOpt {
	return func(o *LoopOpts) {
		o.Logger = logger
	}
}

const DefaultMaxGesturePolls = 5

var ErrBringUp = errors.New("gesture sensor bring-up failed")

type Loop struct {
	color   ColorSource
	gesture GestureSource
	display Display
	config  LoopOpts
	state   State
}

func NewLoop(colorSensor ColorSource, gestureSensor GestureSource, display Display, opts ...LoopOpt) *Loop {
	config := LoopOpts{
		ColorSettle:     time.Second,
		GesturePoll:     2 * time.Second,
		AfterDetect:     time.Second,
		AfterAnimation:  time.Second,
		MaxGesturePolls: DefaultMaxGesturePolls,
		Sleeper:         clock.Timer{},
		Logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Loop{color: colorSensor, gesture: gestureSensor, display: display, config: config}
}

func (l *Loop) State() State {
	return l.state
}

func (l *Loop) emit(ev Event) {
	ev.State = l.state
	if ev.Err != nil {
		l.config.Logger.Error(ev.Message, "state", ev.State, "error", ev.Err)
	} else {
		l.config.Logger.Debug(ev.Message, "state", ev.State, "color", ev.Color, "direction", ev.Direction)
	}
	if l.config.Observer != nil {
		l.config.Observer(ev)
	}
}

func (l *Loop) bringUpGesture(ctx context.Context) error {
	if err := l.gesture.Init(ctx); err != nil {
		return err
	}
	ok, err := l.gesture.IsReady(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return gesture.ErrNotReady
	}
	return nil
}

// Bootstrap brings the gesture sensor up, retrying until it answers with the
// expected id, and then initializes the color sensor.
func (l *Loop) Bootstrap(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := l.bringUpGesture(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.emit(Event{Message: "Init failed for gesture sensor", Err: err})
		if l.config.InitRetries > 0 && attempt >= l.config.InitRetries {
			return fmt.Errorf("%w after %d attempts: %w", ErrBringUp, attempt, err)
		}
		if l.config.RetryDelay > 0 {
			if err := l.config.Sleeper.Sleep(ctx, l.config.RetryDelay); err != nil {
				return err
			}
		}
	}
	if err := l.color.Init(ctx); err != nil {
		return fmt.Errorf("color sensor bring-up: %w", err)
	}
	l.state = WaitColor
	l.emit(Event{Message: "Waiting for Color input"})
	return nil
}

// RunCycle samples the color once and, while it is recognized, turns gestures
// into animations until the idle poll bound sends it back to color sampling.
func (l *Loop) RunCycle(ctx context.Context) error {
	l.state = WaitColor
	c, sample, err := l.color.ReadColor(ctx)
	if err != nil {
		return fmt.Errorf("color: %w", err)
	}
	l.config.Logger.Debug("color sample", "sample", sample.String(), "color", c)
	l.emit(Event{Color: c, Message: colorLine(c)})
	if err := l.config.Sleeper.Sleep(ctx, l.config.ColorSettle); err != nil {
		return err
	}
	if c == color.Unknown {
		return nil
	}

	polls := 0
	for {
		l.state = WaitGesture
		l.emit(Event{Color: c, Message: "Waiting for gesture"})
		ok, err := l.gesture.DataAvailable(ctx)
		if err != nil {
			return fmt.Errorf("gesture: %w", err)
		}
		if !ok {
			polls++
			if err := l.config.Sleeper.Sleep(ctx, l.config.GesturePoll); err != nil {
				return err
			}
			if l.pollBoundReached(polls) {
				l.emit(Event{Color: c, Message: "No gesture, sampling color again"})
				return nil
			}
			continue
		}
		dir, err := l.gesture.Detect(ctx)
		if err != nil {
			return fmt.Errorf("gesture: %w", err)
		}
		if err := l.config.Sleeper.Sleep(ctx, l.config.AfterDetect); err != nil {
			return err
		}
		anim, ok := Animation(dir)
		if ok {
			polls = 0
			l.state = PlayAnimation
			l.emit(Event{Color: c, Direction: dir, Message: strings.ToUpper(dir.String())})
			if err := l.display.Play(ctx, anim, c); err != nil {
				return fmt.Errorf("display %s: %w", anim, err)
			}
		} else {
			polls++
			l.emit(Event{Color: c, Direction: dir, Message: "Not a valid gesture"})
		}
		l.emit(Event{Color: c, Direction: dir, Message: "BLINKING LEDs"})
		if err := l.config.Sleeper.Sleep(ctx, l.config.AfterAnimation); err != nil {
			return err
		}
		if !ok && l.pollBoundReached(polls) {
			l.emit(Event{Color: c, Message: "No gesture, sampling color again"})
			return nil
		}
	}
}

// pollBoundReached reports whether polls without a valid gesture, either empty
// or decoded to None, used up the bound.
func (l *Loop) pollBoundReached(polls int) bool {
	return l.config.MaxGesturePolls > 0 && polls >= l.config.MaxGesturePolls
}

// Run repeats cycles until ctx ends. A failed cycle is reported and the loop
// starts over from color sampling after the poll delay.
func (l *Loop) Run(ctx context.Context) error {
	for {
		err := l.RunCycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			continue
		}
		l.emit(Event{Message: "Error: " + err.Error(), Err: err})
		if err := l.config.Sleeper.Sleep(ctx, l.config.GesturePoll); err != nil {
			return err
		}
	}
}
