package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// levelRenderer shows the per-cycle meter value on the terminal.
type levelRenderer interface {
	Render(pct int)
}

// debugRenderer prints one integer per line for scripts.
type debugRenderer struct {
	w io.Writer
}

func (r debugRenderer) Render(pct int) {
	fmt.Fprintf(r.w, "%d\n", pct)
}

// barRenderer redraws a fixed-width bar in place.
type barRenderer struct {
	w *bufio.Writer
}

func newBarRenderer(w io.Writer) *barRenderer {
	return &barRenderer{w: bufio.NewWriter(w)}
}

func (r *barRenderer) Render(pct int) {
	pct = clampPercent(pct)
	fmt.Fprintf(r.w, "[%-*s] %3d\r", barWidth, strings.Repeat("#", pct*barWidth/100), pct)
	_ = r.w.Flush()
}

type nopRenderer struct{}

func (nopRenderer) Render(int) {}

// newRenderer picks the output style from the command-line switches.
func newRenderer(w io.Writer, debug, quiet bool) levelRenderer {
	switch {
	case quiet:
		return nopRenderer{}
	case debug:
		return debugRenderer{w: w}
	default:
		return newBarRenderer(w)
	}
}
