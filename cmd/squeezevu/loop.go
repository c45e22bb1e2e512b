package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Control Loop
// ============================================================================
//
// One tick:
//   read snapshot -> estimate loudness -> normalize -> hysteresis -> PWM
//
// The loop is a small state machine:
//   - Running:    last read succeeded
//   - Degraded:   last read failed, output forced to zero, retrying
//   - Terminated: maxFailures consecutive reads failed; output zeroed once
//
// Everything here runs on a single goroutine. The hysteresis ring and the
// failure counter are the only state carried between ticks.
// ============================================================================

// LoopState is the control loop state after a tick.
type LoopState int

const (
	StateRunning LoopState = iota
	StateDegraded
	StateTerminated
)

func (s LoopState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDegraded:
		return "degraded"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// snapshotReader is implemented by BufferReader; tests script it.
type snapshotReader interface {
	ReadSnapshot(path string) (Snapshot, error)
}

// Sample is the outcome of one successful tick.
type Sample struct {
	At         time.Time
	Loudness   int64
	Percent    int // normalized, before hysteresis
	Output     int // value shown after hysteresis / gating
	Level      int // PWM level written
	Suppressed bool
	Playing    bool
}

// loopDeps are the collaborators of the control loop.
// Oracle and Publish are optional.
type loopDeps struct {
	Reader   snapshotReader
	Driver   *OutputDriver
	Renderer levelRenderer
	Oracle   PlaybackOracle
	Publish  func(Sample)
	Logger   *slog.Logger
}

type ControlLoop struct {
	path        string
	interval    time.Duration
	gain        float64
	maxFailures int
	warnEvery   int

	reader   snapshotReader
	driver   *OutputDriver
	filter   *hysteresisFilter
	renderer levelRenderer
	oracle   PlaybackOracle
	publish  func(Sample)
	logger   *slog.Logger

	// Replaced in tests so escalation runs without real delays.
	sleep func(time.Duration)
	now   func() time.Time

	state         LoopState
	failures      int
	writeFailures int
}

func newControlLoop(cfg Config, deps loopDeps) *ControlLoop {
	l := &ControlLoop{
		path:        cfg.Source.Path,
		interval:    cfg.Interval(),
		gain:        cfg.Meter.Gain,
		maxFailures: cfg.Loop.MaxFailures,
		warnEvery:   cfg.Loop.WarnEvery,

		reader:   deps.Reader,
		driver:   deps.Driver,
		filter:   newHysteresisFilter(),
		renderer: deps.Renderer,
		oracle:   deps.Oracle,
		publish:  deps.Publish,
		logger:   deps.Logger,

		sleep: time.Sleep,
		now:   time.Now,

		state: StateRunning,
	}
	if l.renderer == nil {
		l.renderer = nopRenderer{}
	}
	if l.publish == nil {
		l.publish = func(Sample) {}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// State returns the state after the last tick.
func (l *ControlLoop) State() LoopState { return l.state }

// Failures returns the consecutive read failure count.
func (l *ControlLoop) Failures() int { return l.failures }

// Run ticks at the configured interval until the source is lost for good or
// ctx is canceled. Both are graceful exits and leave the output at zero.
func (l *ControlLoop) Run(ctx context.Context) error {
	l.logger.Info("meter loop starting", "path", l.path, "interval", l.interval, "gain", l.gain)

	for {
		if l.Tick(ctx) == StateTerminated {
			return nil
		}

		l.sleep(l.interval)

		if ctx.Err() != nil {
			l.logger.Info("meter loop stopping (context canceled)")
			l.shutdownOutput()
			return nil
		}
	}
}

// Tick runs one cycle and returns the resulting state.
func (l *ControlLoop) Tick(ctx context.Context) LoopState {
	if l.state == StateTerminated {
		return l.state
	}

	snap, err := l.reader.ReadSnapshot(l.path)
	if err != nil {
		return l.readFailed(err)
	}

	if l.failures > 0 {
		l.logger.Info("pcm buffer readable again", "path", l.path, "after_failures", l.failures)
	}
	l.failures = 0
	l.state = StateRunning

	sample := Sample{At: l.now(), Playing: true}

	if l.oracle != nil && !l.oracle.Playing(ctx) {
		sample.Playing = false
		l.setOutput(0)
		sample.Level = l.driver.Level()
		l.renderer.Render(0)
		l.publish(sample)
		return l.state
	}

	sample.Loudness = estimateLoudness(snap)
	sample.Percent = normalize(sample.Loudness, l.gain)
	sample.Output = l.filter.Feed(sample.Percent)
	sample.Suppressed = l.filter.Suppressed()

	l.setOutput(sample.Output)
	sample.Level = l.driver.Level()

	l.renderer.Render(sample.Output)
	l.publish(sample)

	return l.state
}

func (l *ControlLoop) readFailed(err error) LoopState {
	l.failures++

	if l.failures >= l.maxFailures {
		l.state = StateTerminated
		l.logger.Error("giving up on pcm buffer",
			"path", l.path,
			"attempts", l.failures,
			"error", err,
			"tip", "squeezelite may not be running or the shared memory file does not exist")
		l.shutdownOutput()
		return l.state
	}

	l.state = StateDegraded
	if shouldLogFailure(l.failures, l.warnEvery) {
		l.logger.Warn("could not read pcm buffer",
			"path", l.path,
			"attempt", l.failures,
			"max_attempts", l.maxFailures,
			"error", err)
	}
	l.setOutput(0)
	return l.state
}

func (l *ControlLoop) setOutput(pct int) {
	l.checkWrite(l.driver.Set(pct))
}

func (l *ControlLoop) shutdownOutput() {
	l.checkWrite(l.driver.Shutdown())
}

// checkWrite logs PWM errors with the same rate limit as read failures.
// A failing output never stops the loop.
func (l *ControlLoop) checkWrite(err error) {
	if err == nil {
		if l.writeFailures > 0 {
			l.logger.Info("pwm writes recovered", "after_failures", l.writeFailures)
		}
		l.writeFailures = 0
		return
	}
	l.writeFailures++
	if shouldLogFailure(l.writeFailures, l.warnEvery) {
		l.logger.Warn("pwm write failed", "attempt", l.writeFailures, "error", err)
	}
}
