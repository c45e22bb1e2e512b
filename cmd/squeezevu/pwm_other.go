//go:build !linux

package main

import "fmt"

func openSysfsPWM(cfg PWMConfig) (PWM, error) {
	return nil, fmt.Errorf("%w: sysfs PWM is only available on linux (use -dry-run)", ErrHardwareInit)
}
