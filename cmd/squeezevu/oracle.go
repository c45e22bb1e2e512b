package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// PlaybackOracle reports whether the player is currently playing.
type PlaybackOracle interface {
	Playing(ctx context.Context) bool
}

// CommandOracle asks an external command (piCorePlayer's `pcp mode`) and
// compares the first line of its output with Token.
type CommandOracle struct {
	Name    string
	Args    []string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// newCommandOracle splits a command line on whitespace.
func newCommandOracle(cfg PlaybackConfig, logger *slog.Logger) *CommandOracle {
	fields := strings.Fields(cfg.Command)
	o := &CommandOracle{
		Token:   cfg.Token,
		Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		Logger:  logger,
	}
	if len(fields) > 0 {
		o.Name = fields[0]
		o.Args = fields[1:]
	}
	return o
}

// Playing runs the command. Any failure counts as not playing.
func (o *CommandOracle) Playing(ctx context.Context) bool {
	if o.Name == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, o.Name, o.Args...).Output()
	if err != nil {
		o.Logger.Debug("playback query failed", "command", o.Name, "error", err)
		return false
	}

	return firstLine(out) == o.Token
}

func firstLine(b []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(b))
	if !sc.Scan() {
		return ""
	}
	return strings.TrimSpace(sc.Text())
}

// cachingOracle reuses the last answer for ttl so the loop does not spawn a
// process every tick.
type cachingOracle struct {
	inner PlaybackOracle
	ttl   time.Duration
	now   func() time.Time

	checkedAt time.Time
	playing   bool
}

func newCachingOracle(inner PlaybackOracle, ttl time.Duration) *cachingOracle {
	return &cachingOracle{inner: inner, ttl: ttl, now: time.Now}
}

func (c *cachingOracle) Playing(ctx context.Context) bool {
	now := c.now()
	if !c.checkedAt.IsZero() && now.Sub(c.checkedAt) < c.ttl {
		return c.playing
	}
	c.playing = c.inner.Playing(ctx)
	c.checkedAt = now
	return c.playing
}
