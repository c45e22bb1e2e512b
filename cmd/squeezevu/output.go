package main

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrHardwareInit means the PWM channel could not be set up.
var ErrHardwareInit = errors.New("pwm hardware init failed")

// PWM is a single hardware output channel. Write takes a level in
// [0, range] of the configured device.
type PWM interface {
	Write(level int) error
	Close() error
}

// OutputDriver maps meter percentages onto the PWM channel.
type OutputDriver struct {
	pwm      PWM
	maxLevel int
	level    int
}

// newOutputDriver wraps pwm. maxLevel is the level written for 100%.
func newOutputDriver(pwm PWM, maxLevel int) *OutputDriver {
	return &OutputDriver{
		pwm:      pwm,
		maxLevel: maxLevel,
	}
}

// Set drives the output to pct percent of maxLevel.
func (d *OutputDriver) Set(pct int) error {
	level := pct * d.maxLevel / 100
	level = min(max(level, 0), d.maxLevel)
	return d.write(level)
}

// Shutdown drives the output to zero.
func (d *OutputDriver) Shutdown() error {
	return d.write(0)
}

// Level returns the last level written.
func (d *OutputDriver) Level() int {
	return d.level
}

func (d *OutputDriver) write(level int) error {
	if err := d.pwm.Write(level); err != nil {
		return fmt.Errorf("pwm write %d: %w", level, err)
	}
	d.level = level
	return nil
}

// logPWM stands in for real hardware in -dry-run mode.
type logPWM struct {
	logger *slog.Logger
	last   int
}

func newLogPWM(logger *slog.Logger) *logPWM {
	return &logPWM{logger: logger, last: -1}
}

func (p *logPWM) Write(level int) error {
	if level != p.last {
		p.logger.Debug("pwm write", "level", level)
		p.last = level
	}
	return nil
}

func (p *logPWM) Close() error { return nil }
