package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/cube/clock"
	"github.com/mklimuk/cube/color"
	"github.com/mklimuk/cube/gesture"
	"github.com/mklimuk/cube/internal/devsim"
	"github.com/mklimuk/cube/matrix"
	"github.com/mklimuk/cube/twowire"
)

type played struct {
	anim  matrix.Animation
	color color.Predominant
}

type recordingDisplay struct {
	played []played
	err    error
}

func (d *recordingDisplay) Play(ctx context.Context, a matrix.Animation, c color.Predominant) error {
	d.played = append(d.played, played{a, c})
	return d.err
}

func fixedColor(s color.Sample) *color.MockColorSensor {
	return color.NewMockColorSensor(func(ctx context.Context) (color.Sample, error) {
		return s, nil
	})
}

// scriptedGestures answers DataAvailable from avail and Detect from dirs, in order.
// Once avail runs out no more data is reported.
func scriptedGestures(avail []bool, dirs []gesture.Direction) *gesture.MockGestureSensor {
	return gesture.NewMockGestureSensor(func(ctx context.Context) (bool, error) {
		if len(avail) == 0 {
			return false, nil
		}
		v := avail[0]
		avail = avail[1:]
		return v, nil
	}, func(ctx context.Context) (gesture.Direction, error) {
		if len(dirs) == 0 {
			return gesture.None, nil
		}
		d := dirs[0]
		dirs = dirs[1:]
		return d, nil
	})
}

var red = color.Sample{Clear: 700, Red: 500, Green: 100, Blue: 100}

func messages(events []Event) []string {
	var res []string
	for _, ev := range events {
		res = append(res, ev.String())
	}
	return res
}

func TestAnimation(t *testing.T) {
	tests := []struct {
		dir  gesture.Direction
		anim matrix.Animation
		ok   bool
	}{
		{gesture.Up, matrix.SweepUp, true},
		{gesture.Down, matrix.SweepDown, true},
		{gesture.Left, matrix.SweepLeft, true},
		{gesture.Right, matrix.SweepRight, true},
		{gesture.None, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			anim, ok := Animation(tt.dir)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.anim, anim)
			}
		})
	}
}

func TestRunCycle_UnknownColor(t *testing.T) {
	sleeper := &clock.Fake{}
	var events []Event
	g := scriptedGestures([]bool{true}, []gesture.Direction{gesture.Up})
	display := &recordingDisplay{}
	l := NewLoop(fixedColor(color.Sample{Clear: 2500, Red: 900}), g, display,
		WithSleeper(sleeper), WithObserver(func(ev Event) { events = append(events, ev) }))

	require.NoError(t, l.RunCycle(context.Background()))
	assert.Equal(t, []string{"Unknown color"}, messages(events))
	assert.Equal(t, []time.Duration{time.Second}, sleeper.Slept())
	assert.Empty(t, display.played)
	assert.Equal(t, WaitColor, l.State())
}

func TestRunCycle_GestureToAnimation(t *testing.T) {
	sleeper := &clock.Fake{}
	var events []Event
	g := scriptedGestures([]bool{false, true, true}, []gesture.Direction{gesture.Up, gesture.None})
	display := &recordingDisplay{}
	l := NewLoop(fixedColor(red), g, display,
		WithSleeper(sleeper), WithMaxGesturePolls(2),
		WithObserver(func(ev Event) { events = append(events, ev) }))

	require.NoError(t, l.RunCycle(context.Background()))

	assert.Equal(t, []played{{matrix.SweepUp, color.Red}}, display.played)
	assert.Equal(t, []string{
		"Detected color is red",
		"Waiting for gesture",
		"Waiting for gesture",
		"UP",
		"BLINKING LEDs",
		"Waiting for gesture",
		"Not a valid gesture",
		"BLINKING LEDs",
		"Waiting for gesture",
		"No gesture, sampling color again",
	}, messages(events))
	assert.Equal(t, PlayAnimation, events[3].State)
	assert.Equal(t, gesture.Up, events[3].Direction)
	assert.Equal(t, []time.Duration{
		time.Second,     // color settle
		2 * time.Second, // idle poll
		time.Second,     // after detect
		time.Second,     // after animation
		time.Second,
		time.Second,
		2 * time.Second,
	}, sleeper.Slept())
}

func TestRunCycle_PollBound(t *testing.T) {
	tests := []struct {
		name  string
		bound int
		polls int
	}{
		{"default", DefaultMaxGesturePolls, 5},
		{"single poll", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &clock.Fake{}
			polls := 0
			g := gesture.NewMockGestureSensor(func(ctx context.Context) (bool, error) {
				polls++
				return false, nil
			}, nil)
			l := NewLoop(fixedColor(red), g, &recordingDisplay{}, WithSleeper(sleeper), WithMaxGesturePolls(tt.bound))
			require.NoError(t, l.RunCycle(context.Background()))
			assert.Equal(t, tt.polls, polls)
			assert.Equal(t, time.Second+time.Duration(tt.polls)*2*time.Second, sleeper.Total())
		})
	}
}

func TestRunCycle_InvalidGesturesCountTowardBound(t *testing.T) {
	tests := []struct {
		name  string
		avail []bool
		dirs  []gesture.Direction
		polls int
		plays int
	}{
		{"only none", []bool{true, true, true, true, true, true}, []gesture.Direction{gesture.None, gesture.None, gesture.None}, 3, 0},
		{"none and empty", []bool{true, false, true}, []gesture.Direction{gesture.None, gesture.None}, 3, 0},
		{"valid gesture resets", []bool{true, true, true, true, true}, []gesture.Direction{gesture.None, gesture.None, gesture.Right, gesture.None, gesture.None, gesture.None}, 6, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			polls := 0
			avail := tt.avail
			dirs := tt.dirs
			g := gesture.NewMockGestureSensor(func(ctx context.Context) (bool, error) {
				polls++
				if polls > 20 {
					cancel()
				}
				if len(avail) == 0 {
					return true, nil
				}
				v := avail[0]
				avail = avail[1:]
				return v, nil
			}, func(ctx context.Context) (gesture.Direction, error) {
				if len(dirs) == 0 {
					return gesture.None, nil
				}
				d := dirs[0]
				dirs = dirs[1:]
				return d, nil
			})
			display := &recordingDisplay{}
			l := NewLoop(fixedColor(red), g, display, WithSleeper(&clock.Fake{}), WithMaxGesturePolls(3))
			require.NoError(t, l.RunCycle(ctx))
			assert.Equal(t, tt.polls, polls)
			assert.Len(t, display.played, tt.plays)
		})
	}
}

func TestRunCycle_UnboundedPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	polls := 0
	g := gesture.NewMockGestureSensor(func(ctx context.Context) (bool, error) {
		polls++
		if polls == 50 {
			cancel()
		}
		return false, nil
	}, nil)
	l := NewLoop(fixedColor(red), g, &recordingDisplay{}, WithSleeper(&clock.Fake{}), WithMaxGesturePolls(0))
	err := l.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 50, polls)
}

func TestRunCycle_Errors(t *testing.T) {
	sensorErr := errors.New("nack")
	tests := []struct {
		name    string
		color   *color.MockColorSensor
		gesture *gesture.MockGestureSensor
		display *recordingDisplay
		msg     string
	}{
		{
			name: "color",
			color: color.NewMockColorSensor(func(ctx context.Context) (color.Sample, error) {
				return color.Sample{}, sensorErr
			}),
			gesture: scriptedGestures(nil, nil),
			display: &recordingDisplay{},
			msg:     "color: nack",
		},
		{
			name:  "gesture status",
			color: fixedColor(red),
			gesture: gesture.NewMockGestureSensor(func(ctx context.Context) (bool, error) {
				return false, sensorErr
			}, nil),
			display: &recordingDisplay{},
			msg:     "gesture: nack",
		},
		{
			name:    "display",
			color:   fixedColor(red),
			gesture: scriptedGestures([]bool{true}, []gesture.Direction{gesture.Left}),
			display: &recordingDisplay{err: sensorErr},
			msg:     "display sweep-left: nack",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoop(tt.color, tt.gesture, tt.display, WithSleeper(&clock.Fake{}))
			err := l.RunCycle(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, sensorErr)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestBootstrap(t *testing.T) {
	attempts := 0
	g := gesture.NewMockGestureSensor(nil, nil).WithReady(func(ctx context.Context) (bool, error) {
		attempts++
		return attempts == 3, nil
	})
	c := fixedColor(red)
	var events []Event
	l := NewLoop(c, g, &recordingDisplay{}, WithSleeper(&clock.Fake{}),
		WithObserver(func(ev Event) { events = append(events, ev) }))

	require.NoError(t, l.Bootstrap(context.Background()))
	assert.Equal(t, 3, g.Inits)
	assert.Equal(t, 1, c.Inits)
	assert.Equal(t, []string{
		"Init failed for gesture sensor",
		"Init failed for gesture sensor",
		"Waiting for Color input",
	}, messages(events))
	assert.ErrorIs(t, events[0].Err, gesture.ErrNotReady)
}

func TestBootstrap_RetryLimit(t *testing.T) {
	g := gesture.NewMockGestureSensor(nil, nil).WithReady(func(ctx context.Context) (bool, error) {
		return false, nil
	})
	c := fixedColor(red)
	sleeper := &clock.Fake{}
	l := NewLoop(c, g, &recordingDisplay{}, WithSleeper(sleeper), WithInitRetries(3, 100*time.Millisecond))

	err := l.Bootstrap(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBringUp)
	assert.ErrorIs(t, err, gesture.ErrNotReady)
	assert.Equal(t, 3, g.Inits)
	assert.Zero(t, c.Inits)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, sleeper.Slept())
}

func TestRun_RecoversFromErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reads := 0
	c := color.NewMockColorSensor(func(ctx context.Context) (color.Sample, error) {
		reads++
		switch reads {
		case 1:
			return color.Sample{}, errors.New("nack")
		case 2:
			return color.Sample{Clear: 3000}, nil
		default:
			cancel()
			return color.Sample{Clear: 3000}, nil
		}
	})
	var events []Event
	l := NewLoop(c, scriptedGestures(nil, nil), &recordingDisplay{}, WithSleeper(&clock.Fake{}),
		WithObserver(func(ev Event) { events = append(events, ev) }))

	err := l.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, reads)
	require.NotEmpty(t, events)
	assert.Equal(t, "Error: color: nack", events[0].Message)
	assert.Error(t, events[0].Err)
	assert.Equal(t, "Unknown color", events[1].Message)
}

func TestPipeline_UpWhileRed(t *testing.T) {
	sim := twowire.NewSim()
	tcs := devsim.NewTCS34725(red)
	apds := devsim.NewAPDS9960()
	sim.Attach(color.TCS34725Address, tcs)
	sim.Attach(gesture.APDS9960Address, apds)
	bus := twowire.NewMaster(sim, twowire.WithTimeout(time.Second))
	bus.Init()

	ports, a, b, c := matrix.NewMemPorts()
	var frames []matrix.FrameEvent
	engine := matrix.NewEngine(ports, matrix.WithSleeper(&clock.Fake{}), matrix.WithObserver(func(ev matrix.FrameEvent) {
		frames = append(frames, ev)
	}))

	var lines []string
	l := NewLoop(color.NewTCS34725(bus), gesture.NewAPDS9960(bus), engine,
		WithSleeper(&clock.Fake{}), WithMaxGesturePolls(1),
		WithObserver(func(ev Event) { lines = append(lines, ev.Message) }))

	ctx := context.Background()
	require.NoError(t, l.Bootstrap(ctx))
	apds.PushSwipe(gesture.Up)
	require.NoError(t, l.RunCycle(ctx))

	assert.Contains(t, lines, "Detected color is red")
	assert.Contains(t, lines, "UP")
	require.Len(t, frames, 16)
	lit := -1
	for i, f := range frames {
		assert.Equal(t, matrix.SweepUp, f.Animation)
		layer := f.Voxels[0].Layer
		assert.Equal(t, i/2, layer)
		if f.On {
			assert.Equal(t, -1, lit, "two layers lit at once")
			lit = layer
		} else {
			assert.Equal(t, layer, lit)
			lit = -1
		}
	}
	assert.Zero(t, a.State())
	assert.Zero(t, b.State())
	assert.Zero(t, c.State())
	assert.Zero(t, apds.Pending())
	assert.True(t, sim.Idle())
}
