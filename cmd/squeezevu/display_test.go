package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestDebugRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := newRenderer(&buf, true, false)

	r.Render(0)
	r.Render(42)
	r.Render(100)

	if got := buf.String(); got != "0\n42\n100\n" {
		t.Fatalf("debug output = %q", got)
	}
}

func TestBarRenderer(t *testing.T) {
	tests := []struct {
		pct    int
		hashes int
		suffix string
	}{
		{0, 0, "]   0\r"},
		{7, 7, "]   7\r"},
		{100, 100, "] 100\r"},
		{130, 100, "] 100\r"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		newRenderer(&buf, false, false).Render(tt.pct)
		got := buf.String()

		if !strings.HasPrefix(got, "[") || !strings.HasSuffix(got, tt.suffix) {
			t.Errorf("Render(%d) = %q, want [...%q", tt.pct, got, tt.suffix)
		}
		if n := strings.Count(got, "#"); n != tt.hashes {
			t.Errorf("Render(%d) drew %d hashes, want %d", tt.pct, n, tt.hashes)
		}
		// The bar is always barWidth wide so redraws overwrite the previous one.
		if len(got) != 1+barWidth+len(tt.suffix) {
			t.Errorf("Render(%d) length = %d, want %d", tt.pct, len(got), 1+barWidth+len(tt.suffix))
		}
	}
}

func TestQuietRendererWinsOverDebug(t *testing.T) {
	var buf bytes.Buffer
	newRenderer(&buf, true, true).Render(50)
	if buf.Len() != 0 {
		t.Fatalf("quiet renderer wrote %q", buf.String())
	}
}
