package main

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCachingOracle_ReusesAnswerWithinTTL(t *testing.T) {
	inner := &fakeOracle{playing: true}
	c := newCachingOracle(inner, time.Second)

	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if !c.Playing(ctx) {
		t.Fatalf("expected playing")
	}
	inner.playing = false

	now = now.Add(500 * time.Millisecond)
	if !c.Playing(ctx) {
		t.Fatalf("expected cached answer within ttl")
	}
	if inner.calls != 1 {
		t.Fatalf("inner called %d times, want 1", inner.calls)
	}

	now = now.Add(600 * time.Millisecond)
	if c.Playing(ctx) {
		t.Fatalf("expected refreshed answer after ttl")
	}
	if inner.calls != 2 {
		t.Fatalf("inner called %d times, want 2", inner.calls)
	}
}

func TestCachingOracle_ZeroTTLAlwaysAsks(t *testing.T) {
	inner := &fakeOracle{playing: true}
	c := newCachingOracle(inner, 0)

	for n := 0; n < 3; n++ {
		c.Playing(context.Background())
	}
	if inner.calls != 3 {
		t.Fatalf("inner called %d times, want 3", inner.calls)
	}
}

func TestNewCommandOracle_SplitsCommand(t *testing.T) {
	o := newCommandOracle(PlaybackConfig{Command: "pcp  mode", Token: "play", TimeoutMS: 500}, quietLogger())

	if o.Name != "pcp" || len(o.Args) != 1 || o.Args[0] != "mode" {
		t.Fatalf("command = %q %q, want pcp [mode]", o.Name, o.Args)
	}
	if o.Timeout != 500*time.Millisecond {
		t.Fatalf("timeout = %v", o.Timeout)
	}
}

func TestCommandOracle_Playing(t *testing.T) {
	for _, name := range []string{"echo", "printf", "false"} {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not available", name)
		}
	}

	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"play", "echo play", true},
		{"play with trailing lines", "printf play\\nextra\\n", true},
		{"stopped", "echo stop", false},
		{"command fails", "false", false},
		{"command missing", "squeezevu-no-such-command", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newCommandOracle(PlaybackConfig{
				Command:   tt.command,
				Token:     "play",
				TimeoutMS: 2000,
			}, quietLogger())

			if got := o.Playing(context.Background()); got != tt.want {
				t.Fatalf("Playing() with %q = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestCommandOracle_TimeoutMeansNotPlaying(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	o := newCommandOracle(PlaybackConfig{Command: "sleep 5", Token: "play", TimeoutMS: 50}, quietLogger())

	start := time.Now()
	if o.Playing(context.Background()) {
		t.Fatalf("expected timeout to report not playing")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not honored")
	}
}
