package main

import "math"

// estimateLoudness returns the mean of the left and right mean-square sample
// values. An empty snapshot is silent.
func estimateLoudness(s Snapshot) int64 {
	frames := s.Frames()
	if frames == 0 {
		return 0
	}

	var sumL, sumR int64
	for i := 0; i < frames; i++ {
		l, r := s.Frame(i)
		sumL += int64(int32(l) * int32(l))
		sumR += int64(int32(r) * int32(r))
	}

	meanL := sumL / int64(frames)
	meanR := sumR / int64(frames)

	return (meanL + meanR) / 2
}

// normalize converts a mean-square loudness into the 0-100 VU scale fed to
// the hysteresis filter.
//
// The RMS percentage is clamped before the gain is applied and the scaled
// value is clamped again.
func normalize(loudness int64, gain float64) int {
	rms := math.Sqrt(float64(loudness))
	pct := clampPercent(int(rms * 100 / maxSampleMagnitude))

	return clampPercent(int(float64(pct) * gain))
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}
