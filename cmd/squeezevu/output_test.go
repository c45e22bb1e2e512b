package main

import (
	"errors"
	"slices"
	"testing"
)

// recordingPWM records every level written. failNext makes the next n
// writes fail.
type recordingPWM struct {
	writes   []int
	failNext int
	closed   bool
}

var errFakePWM = errors.New("fake pwm failure")

func (p *recordingPWM) Write(level int) error {
	if p.failNext > 0 {
		p.failNext--
		return errFakePWM
	}
	p.writes = append(p.writes, level)
	return nil
}

func (p *recordingPWM) Close() error {
	p.closed = true
	return nil
}

func TestOutputDriver_Set(t *testing.T) {
	tests := []struct {
		pct  int
		want int
	}{
		{0, 0},
		{1, 5},
		{50, 250},
		{99, 495},
		{100, 500},
		{150, 500},
		{-20, 0},
	}

	for _, tt := range tests {
		pwm := &recordingPWM{}
		d := newOutputDriver(pwm, defaultPWMMaxLevel)

		if err := d.Set(tt.pct); err != nil {
			t.Fatalf("Set(%d): %v", tt.pct, err)
		}
		if !slices.Equal(pwm.writes, []int{tt.want}) {
			t.Errorf("Set(%d) wrote %v, want [%d]", tt.pct, pwm.writes, tt.want)
		}
		if d.Level() != tt.want {
			t.Errorf("Set(%d): Level() = %d, want %d", tt.pct, d.Level(), tt.want)
		}
	}
}

func TestOutputDriver_Shutdown(t *testing.T) {
	pwm := &recordingPWM{}
	d := newOutputDriver(pwm, defaultPWMMaxLevel)

	_ = d.Set(80)
	if err := d.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !slices.Equal(pwm.writes, []int{400, 0}) {
		t.Fatalf("writes = %v, want [400 0]", pwm.writes)
	}
	if d.Level() != 0 {
		t.Fatalf("Level() = %d after Shutdown, want 0", d.Level())
	}
}

func TestOutputDriver_WriteErrorKeepsLastLevel(t *testing.T) {
	pwm := &recordingPWM{}
	d := newOutputDriver(pwm, defaultPWMMaxLevel)
	_ = d.Set(20)

	pwm.failNext = 1
	err := d.Set(60)
	if !errors.Is(err, errFakePWM) {
		t.Fatalf("expected wrapped errFakePWM, got %v", err)
	}
	if d.Level() != 100 {
		t.Fatalf("Level() = %d after failed write, want 100", d.Level())
	}
}
