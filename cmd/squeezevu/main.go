package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const version = "1.0.0"

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "squeezevu v%s\n", version)
	fmt.Fprintln(w, "PWM VU meter for squeezelite shared-memory output")
}

func printUsage(w io.Writer) {
	printVersion(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  squeezevu [OPTIONS] <pcm_file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DESCRIPTION:")
	fmt.Fprintln(w, "  Samples the raw PCM buffer squeezelite writes to /dev/shm, computes a")
	fmt.Fprintln(w, "  VU level and drives a hardware PWM channel (LED or analog meter) with it.")
	fmt.Fprintf(w, "  Exits after %d consecutive failed reads of the buffer.\n", defaultMaxFailures)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -d")
	fmt.Fprintln(w, "        Print one integer per line instead of the progress bar")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -quiet")
	fmt.Fprintln(w, "        Print nothing to stdout (for service managers)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -config string")
	fmt.Fprintln(w, "        Path to YAML config file (optional)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -pwm-chip int")
	fmt.Fprintf(w, "        sysfs pwmchip number (default %d)\n", defaultPWMChip)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -pwm-channel int")
	fmt.Fprintf(w, "        PWM channel on the chip (default %d)\n", defaultPWMChannel)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -dry-run")
	fmt.Fprintln(w, "        Log PWM writes instead of touching hardware")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -gate-playback")
	fmt.Fprintf(w, "        Force the meter to zero unless %q reports %q\n", defaultPlaybackCommand, defaultPlaybackToken)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -monitor-addr string")
	fmt.Fprintln(w, "        Serve a read-only websocket level feed on host:port (e.g. \":8089\")")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -log-level string")
	fmt.Fprintln(w, "        Log level: error, warn, info, debug (default \"info\")")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -version")
	fmt.Fprintln(w, "        Print version and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  -help")
	fmt.Fprintln(w, "        Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  sudo squeezevu /dev/shm/squeezelite-b8:27:eb:d3:0b:23")
	fmt.Fprintln(w, "  squeezevu -d -dry-run -log-level debug /dev/shm/squeezelite-b8:27:eb:d3:0b:23")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "NOTES:")
	fmt.Fprintln(w, "  - Requires write access to /sys/class/pwm (run as root or add a udev rule)")
	fmt.Fprintln(w, "  - On a Raspberry Pi enable the PWM overlay: dtoverlay=pwm,pin=18,func=2")
	fmt.Fprintln(w, "  - Logs go to stderr; stdout carries the meter")
	fmt.Fprintln(w)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without os.Exit so deferred cleanup (PWM close) always runs.
func run(args []string, stdout, stderr io.Writer) int {
	// Check for version/help early, before any validation.
	for _, arg := range args {
		if arg == "-version" || arg == "--version" {
			printVersion(stdout)
			return 0
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage(stdout)
			return 0
		}
	}

	fs := flag.NewFlagSet("squeezevu", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }

	var (
		debugMode    = fs.Bool("d", false, "Print one integer per line instead of the progress bar")
		quiet        = fs.Bool("quiet", false, "Print nothing to stdout")
		configPath   = fs.String("config", "", "Path to YAML config file (optional)")
		pwmChip      = fs.Int("pwm-chip", defaultPWMChip, "sysfs pwmchip number")
		pwmChannel   = fs.Int("pwm-channel", defaultPWMChannel, "PWM channel on the chip")
		dryRun       = fs.Bool("dry-run", false, "Log PWM writes instead of touching hardware")
		gatePlayback = fs.Bool("gate-playback", false, "Force zero output unless the player reports playing")
		monitorAddr  = fs.String("monitor-addr", "", "Serve a websocket level feed on host:port")
		logLevelStr  = fs.String("log-level", "info", "Log level: error, warn, info, debug")
		_            = fs.Bool("version", false, "Print version and exit")
		_            = fs.Bool("help", false, "Print help message")
	)

	// Flags may come before or after the pcm file, as with the original tool.
	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		rest = fs.Args()[1:]
	}

	// Load config (defaults + optional file)
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		cfg = loaded
	}

	// Flags only override what was given explicitly.
	var ov FlagOverrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "pwm-chip":
			ov.PWMChip = pwmChip
		case "pwm-channel":
			ov.PWMChannel = pwmChannel
		case "gate-playback":
			ov.PlaybackGate = gatePlayback
		case "monitor-addr":
			ov.MonitorAddr = monitorAddr
		case "log-level":
			ov.LogLevel = logLevelStr
		}
	})
	if len(positional) > 0 {
		ov.PCMPath = &positional[len(positional)-1]
	}
	ov.Apply(&cfg)

	if cfg.Source.Path == "" {
		printUsage(stderr)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	logger := setupLogger(logLevel, stderr)

	// Hardware is set up once, before the first tick.
	var pwm PWM
	if *dryRun {
		pwm = newLogPWM(logger)
	} else {
		pwm, err = openSysfsPWM(cfg.PWM)
		if err != nil {
			logger.Error("failed to initialize PWM", "chip", cfg.PWM.Chip, "channel", cfg.PWM.Channel, "error", err, "tip", "check the pwm overlay and run as root")
			return 1
		}
	}
	defer func() {
		if err := pwm.Close(); err != nil {
			logger.Warn("failed to release PWM", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := loopDeps{
		Reader:   NewBufferReader(),
		Driver:   newOutputDriver(pwm, cfg.PWM.MaxLevel),
		Renderer: newRenderer(stdout, *debugMode, *quiet),
		Logger:   logger,
	}

	if cfg.Playback.Enabled {
		poll := time.Duration(cfg.Playback.PollMS) * time.Millisecond
		deps.Oracle = newCachingOracle(newCommandOracle(cfg.Playback, logger), poll)
	}

	if cfg.Monitor.ListenAddr != "" {
		mon := NewMonitor(logger, HubConfig{})
		mux := http.NewServeMux()
		mon.Register(mux, cfg.Monitor.Path)
		deps.Publish = mon.Publish

		go mon.Run(ctx)
		go func() {
			if err := runMonitorServer(ctx, cfg.Monitor.ListenAddr, mux, logger); err != nil {
				logger.Error("monitor server error", "error", err)
			}
		}()
	}

	logger.Debug("configuration",
		"path", cfg.Source.Path,
		"interval_ms", cfg.Loop.IntervalMS,
		"max_failures", cfg.Loop.MaxFailures,
		"gain", cfg.Meter.Gain,
		"pwm_chip", cfg.PWM.Chip,
		"pwm_channel", cfg.PWM.Channel,
		"pwm_period_ns", cfg.PWM.PeriodNS(),
		"pwm_max_level", cfg.PWM.MaxLevel,
		"playback_gate", cfg.Playback.Enabled,
		"monitor_addr", cfg.Monitor.ListenAddr,
		"dry_run", *dryRun)

	loop := newControlLoop(cfg, deps)
	if err := loop.Run(ctx); err != nil {
		logger.Error("meter loop failed", "error", err)
		return 1
	}

	if loop.State() == StateTerminated {
		logger.Info("exiting gracefully", "reason", "pcm buffer unavailable")
	} else {
		logger.Info("shutting down")
	}
	return 0
}
