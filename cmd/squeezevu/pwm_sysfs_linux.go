//go:build linux

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// ============================================================================
// Sysfs PWM
// ============================================================================
// Drives one channel of /sys/class/pwm/pwmchipN. The wiringPi style
// parameters (clock divisor + range) are converted into a period:
//
//   period = range * divisor / base_clock
//
// With the Pi defaults (19.2 MHz, 192, 2000) that is 20ms.
//
// duty_cycle is rewritten on every tick, so its fd stays open and is
// written with pwrite instead of reopening the attribute each time.
// ============================================================================

const (
	exportPollInterval = 50 * time.Millisecond
	exportPollAttempts = 20 // udev may take a moment to fix permissions
)

type sysfsPWM struct {
	dir      string
	dutyFD   int
	periodNS int64
	rangeMax int
}

// openSysfsPWM exports and enables the configured channel with zero duty.
func openSysfsPWM(cfg PWMConfig) (PWM, error) {
	chipDir := filepath.Join(cfg.SysfsRoot, fmt.Sprintf("pwmchip%d", cfg.Chip))
	dir := filepath.Join(chipDir, fmt.Sprintf("pwm%d", cfg.Channel))

	if err := writeAttr(filepath.Join(chipDir, "export"), strconv.Itoa(cfg.Channel)); err != nil && !errors.Is(err, unix.EBUSY) {
		return nil, fmt.Errorf("%w: export %s: %w", ErrHardwareInit, chipDir, err)
	}

	if err := waitWritable(filepath.Join(dir, "duty_cycle")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHardwareInit, err)
	}

	periodNS := cfg.PeriodNS()

	// Disable first: polarity can only change while the channel is off,
	// and duty_cycle must never exceed the period.
	steps := []struct{ attr, value string }{
		{"enable", "0"},
		{"duty_cycle", "0"},
		{"period", strconv.FormatInt(periodNS, 10)},
		{"polarity", cfg.Polarity},
		{"enable", "1"},
	}
	for _, s := range steps {
		if err := writeAttr(filepath.Join(dir, s.attr), s.value); err != nil {
			return nil, fmt.Errorf("%w: set %s=%s: %w", ErrHardwareInit, s.attr, s.value, err)
		}
	}

	fd, err := unix.Open(filepath.Join(dir, "duty_cycle"), unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open duty_cycle: %w", ErrHardwareInit, err)
	}

	return &sysfsPWM{
		dir:      dir,
		dutyFD:   fd,
		periodNS: periodNS,
		rangeMax: cfg.Range,
	}, nil
}

// Write sets the duty cycle to level/range of the period.
func (p *sysfsPWM) Write(level int) error {
	level = min(max(level, 0), p.rangeMax)
	duty := int64(level) * p.periodNS / int64(p.rangeMax)

	if _, err := unix.Pwrite(p.dutyFD, []byte(strconv.FormatInt(duty, 10)), 0); err != nil {
		return fmt.Errorf("write %s/duty_cycle: %w", p.dir, err)
	}
	return nil
}

// Close zeroes and disables the channel. The channel stays exported.
func (p *sysfsPWM) Close() error {
	errs := []error{p.Write(0)}
	errs = append(errs, writeAttr(filepath.Join(p.dir, "enable"), "0"))
	errs = append(errs, unix.Close(p.dutyFD))
	return errors.Join(errs...)
}

func writeAttr(path, value string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_TRUNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	if _, err := unix.Write(fd, []byte(value)); err != nil {
		return err
	}
	return nil
}

func waitWritable(path string) error {
	var err error
	for i := 0; i < exportPollAttempts; i++ {
		if err = unix.Access(path, unix.W_OK); err == nil {
			return nil
		}
		time.Sleep(exportPollInterval)
	}
	return fmt.Errorf("%s not writable: %w", path, err)
}
