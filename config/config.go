// Package config holds the cube settings: a YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

var ErrUnknownBackend = errors.New("unknown backend")

const (
	BusSim     = "sim"
	BusPeriph  = "periph"
	BusMCP2221 = "mcp2221"
	BusNanoPi  = "nanopi"
)

const (
	DisplaySim      = "sim"
	DisplayPeriph   = "periph"
	DisplayGobot    = "gobot"
	DisplayMCP23017 = "mcp23017"
)

type BusConfig struct {
	Adapter string `yaml:"adapter" env:"CUBE_BUS_ADAPTER"`
	// Device is the periph bus name, empty for the first one found.
	Device       string        `yaml:"device" env:"CUBE_BUS_DEVICE"`
	NanoPiBus    int           `yaml:"nanopi_bus" env:"CUBE_BUS_NANOPI"`
	AdapterIndex int           `yaml:"adapter_index" env:"CUBE_BUS_ADAPTER_INDEX"`
	Speed        int           `yaml:"speed" env:"CUBE_BUS_SPEED"`
	Timeout      time.Duration `yaml:"timeout" env:"CUBE_BUS_TIMEOUT"`
	RetryLimit   int           `yaml:"retry_limit" env:"CUBE_BUS_RETRY_LIMIT"`
}

type ColorConfig struct {
	Address    int `yaml:"address" env:"CUBE_COLOR_ADDRESS"`
	ClearLimit int `yaml:"clear_limit" env:"CUBE_COLOR_CLEAR_LIMIT"`
}

type GestureConfig struct {
	Address   int `yaml:"address" env:"CUBE_GESTURE_ADDRESS"`
	Threshold int `yaml:"threshold" env:"CUBE_GESTURE_THRESHOLD"`
}

type DisplayConfig struct {
	Backend string `yaml:"backend" env:"CUBE_DISPLAY_BACKEND"`
	// Pins name the lines of ports A, B and C, bit 0 first.
	PinsA []string `yaml:"pins_a,omitempty" env:"CUBE_DISPLAY_PINS_A"`
	PinsB []string `yaml:"pins_b,omitempty" env:"CUBE_DISPLAY_PINS_B"`
	PinsC []string `yaml:"pins_c,omitempty" env:"CUBE_DISPLAY_PINS_C"`
	// Expanders are the MCP23017 addresses driving ports A, B and C.
	Expanders []int         `yaml:"expanders" env:"CUBE_DISPLAY_EXPANDERS"`
	Hold      time.Duration `yaml:"hold" env:"CUBE_DISPLAY_HOLD"`
}

type LoopConfig struct {
	ColorSettle     time.Duration `yaml:"color_settle" env:"CUBE_LOOP_COLOR_SETTLE"`
	GesturePoll     time.Duration `yaml:"gesture_poll" env:"CUBE_LOOP_GESTURE_POLL"`
	AfterDetect     time.Duration `yaml:"after_detect" env:"CUBE_LOOP_AFTER_DETECT"`
	AfterAnimation  time.Duration `yaml:"after_animation" env:"CUBE_LOOP_AFTER_ANIMATION"`
	MaxGesturePolls int           `yaml:"max_gesture_polls" env:"CUBE_LOOP_MAX_GESTURE_POLLS"`
	InitRetries     int           `yaml:"init_retries" env:"CUBE_LOOP_INIT_RETRIES"`
	RetryDelay      time.Duration `yaml:"retry_delay" env:"CUBE_LOOP_RETRY_DELAY"`
	// TickPeriod switches delays to the countdown driven by a ticker. Zero uses timers.
	TickPeriod time.Duration `yaml:"tick_period" env:"CUBE_LOOP_TICK_PERIOD"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker" env:"CUBE_MQTT_BROKER"`
	ClientID string `yaml:"client_id" env:"CUBE_MQTT_CLIENT_ID"`
	Username string `yaml:"username" env:"CUBE_MQTT_USERNAME"`
	Password string `yaml:"password,omitempty" env:"CUBE_MQTT_PASSWORD"`
	Topic    string `yaml:"topic" env:"CUBE_MQTT_TOPIC"`
}

type DiagConfig struct {
	// Serial is a tty the status lines are written to.
	Serial string     `yaml:"serial" env:"CUBE_DIAG_SERIAL"`
	Stdout bool       `yaml:"stdout" env:"CUBE_DIAG_STDOUT"`
	MQTT   MQTTConfig `yaml:"mqtt"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"CUBE_LOG_LEVEL"`
}

// SimConfig feeds the simulated sensors.
type SimConfig struct {
	Color    string   `yaml:"color" env:"CUBE_SIM_COLOR"`
	Gestures []string `yaml:"gestures,omitempty" env:"CUBE_SIM_GESTURES"`
}

type Config struct {
	Bus     BusConfig     `yaml:"bus"`
	Color   ColorConfig   `yaml:"color"`
	Gesture GestureConfig `yaml:"gesture"`
	Display DisplayConfig `yaml:"display"`
	Loop    LoopConfig    `yaml:"loop"`
	Diag    DiagConfig    `yaml:"diag"`
	Log     LogConfig     `yaml:"log"`
	Sim     SimConfig     `yaml:"sim"`
}

func Default() Config {
	return Config{
		Bus: BusConfig{
			Adapter:      BusSim,
			AdapterIndex: -1,
			NanoPiBus:    0,
			Speed:        100000,
			RetryLimit:   3,
		},
		Color:   ColorConfig{Address: 0x29, ClearLimit: 2000},
		Gesture: GestureConfig{Address: 0x39, Threshold: 30},
		Display: DisplayConfig{
			Backend:   DisplaySim,
			Expanders: []int{0x20, 0x21, 0x22},
			Hold:      time.Second,
		},
		Loop: LoopConfig{
			ColorSettle:     time.Second,
			GesturePoll:     2 * time.Second,
			AfterDetect:     time.Second,
			AfterAnimation:  time.Second,
			MaxGesturePolls: 5,
		},
		Diag: DiagConfig{
			Stdout: true,
			MQTT:   MQTTConfig{ClientID: "cube", Topic: "cube"},
		},
		Log: LogConfig{Level: "info"},
		Sim: SimConfig{Color: "red"},
	}
}

// Load reads the file at path over the defaults and applies CUBE_* environment
// variables on top. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("could not read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("could not parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings with the environment. Unset variables leave values alone.
func ApplyEnv(cfg *Config) error {
	for _, section := range []interface{}{
		&cfg.Bus, &cfg.Color, &cfg.Gesture, &cfg.Display, &cfg.Loop,
		&cfg.Diag, &cfg.Diag.MQTT, &cfg.Log, &cfg.Sim,
	} {
		if err := env.Parse(section); err != nil {
			return fmt.Errorf("could not apply environment: %w", err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Bus.Adapter {
	case BusSim, BusPeriph, BusMCP2221, BusNanoPi:
	default:
		return fmt.Errorf("bus adapter %q: %w", c.Bus.Adapter, ErrUnknownBackend)
	}
	switch c.Display.Backend {
	case DisplaySim, DisplayPeriph, DisplayGobot:
	case DisplayMCP23017:
		if len(c.Display.Expanders) != 3 {
			return fmt.Errorf("mcp23017 display needs 3 expander addresses, got %d", len(c.Display.Expanders))
		}
	default:
		return fmt.Errorf("display backend %q: %w", c.Display.Backend, ErrUnknownBackend)
	}
	for name, addr := range map[string]int{"color": c.Color.Address, "gesture": c.Gesture.Address} {
		if addr < 0x08 || addr > 0x77 {
			return fmt.Errorf("%s address %#x outside of the 7-bit range", name, addr)
		}
	}
	if c.Color.ClearLimit < 0 || c.Color.ClearLimit > 0xFFFF {
		return fmt.Errorf("clear limit %d out of range", c.Color.ClearLimit)
	}
	if c.Loop.MaxGesturePolls < 0 {
		return fmt.Errorf("max gesture polls must not be negative")
	}
	return nil
}

// Save writes the config as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	return nil
}
