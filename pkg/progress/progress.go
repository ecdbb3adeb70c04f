// Package progress implements the percent-throttled progress sink used by
// long-running build/search/train operations. Grounded on
// original_source/src/progress.h, which reports a new percentage at most
// once per batch of calls rather than on every row.
package progress

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// Sink receives a (done, total) report. Build/train loops call it once per
// row; a Sink decides for itself how often to actually surface something.
type Sink interface {
	Report(done, total int)
}

// Nop discards every report.
type Nop struct{}

func (Nop) Report(done, total int) {}

// Console is a Sink that writes a line to w at most once per modulo rows,
// and only when the rounded-down percentage actually changed since the
// last report.
type Console struct {
	W           io.Writer
	Modulo      int
	lastPercent int
}

// NewConsole creates a Console reporting at most once every modulo rows
// (500, matching the original's throttle, if modulo <= 0).
func NewConsole(w io.Writer, modulo int) *Console {
	if modulo <= 0 {
		modulo = 500
	}
	return &Console{W: w, Modulo: modulo, lastPercent: -1}
}

func (c *Console) Report(done, total int) {
	if total <= 0 {
		return
	}
	if done == total {
		if c.lastPercent != 100 {
			fmt.Fprintln(c.W, "100%")
			c.lastPercent = 100
		}
		return
	}
	if done%c.Modulo != 0 {
		return
	}
	percent := done * 100 / total
	if percent != c.lastPercent {
		fmt.Fprintf(c.W, "%d%% (%s / %s)\n", percent, humanize.Comma(int64(done)), humanize.Comma(int64(total)))
		c.lastPercent = percent
	}
}
