package main

// reading is one history slot. The zero value is unset, which is distinct
// from a genuine reading of 0.
type reading struct {
	pct int
	set bool
}

// hysteresisFilter silences the meter when the last historySize readings are
// identical, e.g. a held tone or a DC-like artifact after playback stops.
//
// Not safe for concurrent use; the control loop owns it.
type hysteresisFilter struct {
	slots      [historySize]reading
	cursor     int
	suppressed bool
}

func newHysteresisFilter() *hysteresisFilter {
	return &hysteresisFilter{}
}

// Feed records v and returns the value to display: 0 while suppressed,
// otherwise v unchanged.
func (h *hysteresisFilter) Feed(v int) int {
	h.slots[h.cursor] = reading{pct: v, set: true}
	h.cursor = (h.cursor + 1) % historySize

	h.suppressed = h.stuck()
	if h.suppressed {
		return 0
	}
	return v
}

// stuck reports whether every slot holds the same real reading.
func (h *hysteresisFilter) stuck() bool {
	first := h.slots[0]
	for _, s := range h.slots {
		if !s.set || s.pct != first.pct {
			return false
		}
	}
	return true
}

// Suppressed reports whether the last Feed was silenced.
func (h *hysteresisFilter) Suppressed() bool {
	return h.suppressed
}

// Reset forgets all history.
func (h *hysteresisFilter) Reset() {
	*h = hysteresisFilter{}
}
