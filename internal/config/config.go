// Package config loads the receiver host configuration from RECEIVER_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

// Audio backends.
const (
	AudioNone      = "none"
	AudioNull      = "null"
	AudioPortAudio = "portaudio"
	AudioOto       = "oto"
)

// Visual surfaces.
const (
	SurfaceNone = "none"
	SurfaceWS   = "ws"
	SurfaceTerm = "term"
)

// Config is the host configuration.
type Config struct {
	Seed int64  `env:"RECEIVER_SEED" envDefault:"1"`
	Name string `env:"RECEIVER_NAME" envDefault:"receiver"`
	Addr string `env:"RECEIVER_ADDR" envDefault:":8080"`

	TickRate        int `env:"RECEIVER_TICK_RATE"         envDefault:"60"`
	CatchupMaxTicks int `env:"RECEIVER_CATCHUP_MAX_TICKS" envDefault:"4"`
	CommandBuffer   int `env:"RECEIVER_COMMAND_BUFFER"    envDefault:"64"`

	Audio           string `env:"RECEIVER_AUDIO"             envDefault:"null"`
	SampleRate      int    `env:"RECEIVER_SAMPLE_RATE"       envDefault:"48000"`
	FramesPerBuffer int    `env:"RECEIVER_FRAMES_PER_BUFFER" envDefault:"512"`

	Surface       string        `env:"RECEIVER_SURFACE"        envDefault:"ws"`
	FrameRate     int           `env:"RECEIVER_FRAME_RATE"     envDefault:"30"`
	TerminalRows  int           `env:"RECEIVER_TERMINAL_ROWS"  envDefault:"24"`
	ViewerWidth   int           `env:"RECEIVER_VIEWER_WIDTH"   envDefault:"64"`
	ViewerHeight  int           `env:"RECEIVER_VIEWER_HEIGHT"  envDefault:"16"`
	ViewerTimeout time.Duration `env:"RECEIVER_VIEWER_WRITE_TIMEOUT" envDefault:"10s"`

	LogSinks    []string `env:"RECEIVER_LOG_SINKS" envSeparator:"," envDefault:"console"`
	LogLevel    string   `env:"RECEIVER_LOG_LEVEL" envDefault:"info"`
	LogJSONPath string   `env:"RECEIVER_LOG_JSON_PATH"`

	RecordPath string `env:"RECEIVER_RECORD_PATH"`

	HistorySize   int           `env:"RECEIVER_HISTORY_SIZE"    envDefault:"600"`
	HistoryMaxAge time.Duration `env:"RECEIVER_HISTORY_MAX_AGE" envDefault:"30s"`

	OTelEndpoint     string `env:"RECEIVER_OTEL_ENDPOINT"`
	OTelDisabled     bool   `env:"RECEIVER_OTEL_DISABLED"`
	EnablePprofTrace bool   `env:"RECEIVER_ENABLE_PPROF_TRACE"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RegisterFlags binds flags that override the loaded values.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Int64Var(&c.Seed, "seed", c.Seed, "field seed")
	fs.StringVar(&c.Name, "name", c.Name, "receiver name")
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.IntVar(&c.TickRate, "tick-rate", c.TickRate, "receiver steps per second")
	fs.StringVar(&c.Audio, "audio", c.Audio, "audio backend: none, null, portaudio or oto")
	fs.StringVar(&c.Surface, "surface", c.Surface, "visual surface: none, ws or term")
	fs.StringVar(&c.RecordPath, "record", c.RecordPath, "SQLite file to record ticks into")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "minimum log severity")
	fs.Func("log-sinks", "comma separated log sinks", func(raw string) error {
		c.LogSinks = splitList(raw)
		return nil
	})
}

// Validate rejects values the host cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick rate must be positive, got %d", c.TickRate))
	}
	if c.CatchupMaxTicks <= 0 {
		errs = append(errs, fmt.Errorf("catch-up ticks must be positive, got %d", c.CatchupMaxTicks))
	}
	switch c.Audio {
	case AudioNone, AudioNull, AudioPortAudio, AudioOto:
	default:
		errs = append(errs, fmt.Errorf("unknown audio backend %q", c.Audio))
	}
	switch c.Surface {
	case SurfaceNone, SurfaceWS, SurfaceTerm:
	default:
		errs = append(errs, fmt.Errorf("unknown surface %q", c.Surface))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	for _, sink := range c.LogSinks {
		if sink == "json" && c.LogJSONPath == "" {
			errs = append(errs, errors.New("json log sink requires RECEIVER_LOG_JSON_PATH"))
		}
	}
	return errors.Join(errs...)
}

// TickInterval is the duration of one step at TickRate.
func (c Config) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
