package main

import (
	"slices"
	"testing"
)

func TestHysteresisFilter_Sequences(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{"three identical suppresses third", []int{10, 10, 10}, []int{10, 10, 0}},
		{"alternating passes", []int{10, 20, 10}, []int{10, 20, 10}},
		{"silence", []int{0, 0, 0}, []int{0, 0, 0}},
		{"held tone stays suppressed", []int{80, 80, 80, 80, 80}, []int{80, 80, 0, 0, 0}},
		{"change releases", []int{50, 50, 50, 51}, []int{50, 50, 0, 51}},
		{"two identical pass", []int{30, 30, 40, 40}, []int{30, 30, 40, 40}},
		{"ring wraps", []int{1, 2, 3, 4, 4, 4}, []int{1, 2, 3, 4, 4, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHysteresisFilter()
			var got []int
			for _, v := range tt.in {
				got = append(got, h.Feed(v))
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Feed(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// A fresh filter never treats its empty slots as a reading of 0.
func TestHysteresisFilter_UnsetSlotsDoNotMatchZero(t *testing.T) {
	h := newHysteresisFilter()

	if got := h.Feed(0); got != 0 || h.Suppressed() {
		t.Fatalf("first Feed(0) = %d suppressed=%v, want 0 unsuppressed", got, h.Suppressed())
	}
	if h.Feed(0); h.Suppressed() {
		t.Fatalf("second Feed(0) should not be suppressed")
	}
	if h.Feed(0); !h.Suppressed() {
		t.Fatalf("third Feed(0) should be suppressed")
	}
}

func TestHysteresisFilter_Reset(t *testing.T) {
	h := newHysteresisFilter()
	h.Feed(42)
	h.Feed(42)
	h.Reset()

	if got := h.Feed(42); got != 42 {
		t.Fatalf("after Reset, Feed(42) = %d, want 42", got)
	}
	if h.Suppressed() {
		t.Fatalf("after Reset, filter should not be suppressed")
	}
}
