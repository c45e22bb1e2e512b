package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for squeezevu.
//
// Every field has a default matching the original fixed build, so the
// config file is optional and usually only names the PWM channel.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Loop     LoopConfig     `yaml:"loop"`
	Meter    MeterConfig    `yaml:"meter"`
	PWM      PWMConfig      `yaml:"pwm"`
	Playback PlaybackConfig `yaml:"playback"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type SourceConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type LoopConfig struct {
	IntervalMS  int `yaml:"interval_ms" validate:"gte=1,lte=10000"`
	MaxFailures int `yaml:"max_failures" validate:"gte=1"`
	WarnEvery   int `yaml:"warn_every" validate:"gte=1"`
}

type MeterConfig struct {
	Gain float64 `yaml:"gain" validate:"gt=0,lte=100"`
}

// PWMConfig describes the hardware channel. Clock divisor and range follow
// the wiringPi conventions; MaxLevel is the level written for 100%.
type PWMConfig struct {
	Chip         int    `yaml:"chip" validate:"gte=0"`
	Channel      int    `yaml:"channel" validate:"gte=0"`
	ClockDivisor int    `yaml:"clock_divisor" validate:"gte=1,lte=4095"`
	Range        int    `yaml:"range" validate:"gte=1"`
	MaxLevel     int    `yaml:"max_level" validate:"gte=0"`
	Polarity     string `yaml:"polarity" validate:"oneof=normal inversed"`
	BaseClockHz  int64  `yaml:"base_clock_hz" validate:"gte=1"`
	SysfsRoot    string `yaml:"sysfs_root" validate:"required"`
}

// PeriodNS converts the divisor/range pair into a PWM period.
func (c PWMConfig) PeriodNS() int64 {
	return int64(c.Range) * int64(c.ClockDivisor) * int64(time.Second) / c.BaseClockHz
}

type PlaybackConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Command   string `yaml:"command" validate:"required_if=Enabled true"`
	Token     string `yaml:"token" validate:"required_if=Enabled true"`
	TimeoutMS int    `yaml:"timeout_ms" validate:"gte=1"`
	PollMS    int    `yaml:"poll_ms" validate:"gte=0"`
}

type MonitorConfig struct {
	ListenAddr string `yaml:"listen_addr" validate:"omitempty,hostname_port"`
	Path       string `yaml:"path" validate:"startswith=/"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=error warn warning info debug"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Path: "", // positional argument or source.path
		},
		Loop: LoopConfig{
			IntervalMS:  defaultIntervalMS,
			MaxFailures: defaultMaxFailures,
			WarnEvery:   defaultWarnEvery,
		},
		Meter: MeterConfig{
			Gain: defaultGain,
		},
		PWM: PWMConfig{
			Chip:         defaultPWMChip,
			Channel:      defaultPWMChannel,
			ClockDivisor: defaultPWMClockDivisor,
			Range:        defaultPWMRange,
			MaxLevel:     defaultPWMMaxLevel,
			Polarity:     "normal",
			BaseClockHz:  defaultPWMBaseClockHz,
			SysfsRoot:    defaultPWMSysfsRoot,
		},
		Playback: PlaybackConfig{
			Enabled:   false,
			Command:   defaultPlaybackCommand,
			Token:     defaultPlaybackToken,
			TimeoutMS: defaultPlaybackTimeoutMS,
			PollMS:    defaultPlaybackPollMS,
		},
		Monitor: MonitorConfig{
			ListenAddr: "",
			Path:       defaultMonitorPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries command-line values that win over the config file.
// A nil pointer means the flag was not given.
type FlagOverrides struct {
	PCMPath *string

	PWMChip    *int
	PWMChannel *int

	PlaybackGate *bool
	MonitorAddr  *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.PCMPath != nil {
		cfg.Source.Path = *o.PCMPath
	}
	if o.PWMChip != nil {
		cfg.PWM.Chip = *o.PWMChip
	}
	if o.PWMChannel != nil {
		cfg.PWM.Channel = *o.PWMChannel
	}
	if o.PlaybackGate != nil {
		cfg.Playback.Enabled = *o.PlaybackGate
	}
	if o.MonitorAddr != nil {
		cfg.Monitor.ListenAddr = *o.MonitorAddr
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

var validate = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report yaml key names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return formatValidationError(verrs[0])
		}
		return err
	}

	if c.PWM.MaxLevel > c.PWM.Range {
		return errors.New("pwm.max_level must be <= pwm.range")
	}
	if c.PWM.PeriodNS() <= 0 {
		return errors.New("pwm period rounds to zero; lower pwm.base_clock_hz or raise pwm.range")
	}

	return nil
}

// formatValidationError turns a validator error into "section.key must ...".
func formatValidationError(e validator.FieldError) error {
	// Namespace is "Config.section.key"; drop the root type name.
	field := e.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s must not be empty", field)
	case "required_if":
		return fmt.Errorf("%s is required when %s", field, strings.Replace(e.Param(), " ", " is ", 1))
	case "gte":
		return fmt.Errorf("%s must be >= %s", field, e.Param())
	case "lte":
		return fmt.Errorf("%s must be <= %s", field, e.Param())
	case "gt":
		return fmt.Errorf("%s must be > %s", field, e.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", field, strings.ReplaceAll(e.Param(), " ", ", "))
	case "hostname_port":
		return fmt.Errorf("%s must be host:port", field)
	case "startswith":
		return fmt.Errorf("%s must start with %q", field, e.Param())
	default:
		return fmt.Errorf("%s is invalid (%s)", field, e.Tag())
	}
}

// Interval returns the loop cadence.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Loop.IntervalMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
