package main

// PCM buffer layout (squeezelite shared memory output)
const (
	bytesPerSample = 2
	channels       = 2
	frameSize      = bytesPerSample * channels

	maxSampleMagnitude = 32767 // Largest positive S16 value
)

// Meter defaults. These reproduce the behaviour of the original fixed build
// and are used whenever the config file does not override them.
const (
	defaultIntervalMS  = 30  // Delay between VU calculations (ms)
	defaultGain        = 2.5 // Scale applied to the RMS percentage
	defaultMaxFailures = 10  // Consecutive read failures before giving up (~300ms)
	defaultWarnEvery   = 5   // Log every Nth consecutive failure after the first

	historySize = 3 // Identical readings in a row that count as a stuck level

	// Snapshots larger than this are refused rather than allocated.
	// squeezelite's buffer is a few hundred KiB.
	maxSnapshotBytes = 64 << 20
)

// PWM defaults (Raspberry Pi GPIO18, PWM0)
const (
	defaultPWMChip         = 0
	defaultPWMChannel      = 0
	defaultPWMClockDivisor = 192
	defaultPWMRange        = 2000
	defaultPWMMaxLevel     = 500 // Ceiling well below range to protect the meter/LED
	defaultPWMBaseClockHz  = 19_200_000
	defaultPWMSysfsRoot    = "/sys/class/pwm"
)

// Playback oracle defaults (piCorePlayer)
const (
	defaultPlaybackCommand   = "pcp mode"
	defaultPlaybackToken     = "play"
	defaultPlaybackTimeoutMS = 500
	defaultPlaybackPollMS    = 1000 // Reuse the last answer for this long
)

const (
	defaultMonitorPath = "/ws"
	barWidth           = 100
)
