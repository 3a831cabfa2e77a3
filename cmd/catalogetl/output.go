package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"catalogetl/internal/jobs"
	"catalogetl/internal/report"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// printer writes human readable summaries, coloured when w is a terminal.
type printer struct {
	w       io.Writer
	title   *color.Color
	added   *color.Color
	removed *color.Color
	faint   *color.Color
}

func newPrinter(w io.Writer) *printer {
	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return &printer{
		w:       w,
		title:   mk(color.FgCyan, color.Bold),
		added:   mk(color.FgGreen),
		removed: mk(color.FgRed),
		faint:   mk(color.Faint),
	}
}

func (p *printer) summary(sum jobs.Summary) {
	p.title.Fprintf(p.w, "%s", sum.Job)
	fmt.Fprintf(p.w, ": loaded=%d skipped=%d\n", sum.Loaded, sum.Skipped)
	if s := sum.Apply; s != nil {
		fmt.Fprintf(p.w, "  commands=%d applied=%d removed=%d missing=%d unknown=%d malformed=%d\n",
			s.Commands, s.Applied, s.Removed, s.Missing, s.Unknown, s.Malformed)
	}
	for _, a := range sum.Artifacts {
		fmt.Fprintf(p.w, "  %s ", a.Key)
		p.faint.Fprintf(p.w, "(%d bytes)\n", a.Size)
	}
}

func (p *printer) diff(a, b string, d report.Diff) {
	p.title.Fprintf(p.w, "%s -> %s", a, b)
	if d.Equal() {
		fmt.Fprintln(p.w, ": identical")
		return
	}
	fmt.Fprintf(p.w, ": +%d -%d\n", d.Added, d.Removed)
	for _, line := range strings.SplitAfter(d.Lines, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "+"):
			p.added.Fprint(p.w, line)
		case strings.HasPrefix(line, "-"):
			p.removed.Fprint(p.w, line)
		default:
			p.faint.Fprint(p.w, line)
		}
	}
	if !strings.HasSuffix(d.Lines, "\n") {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintf(p.w, "merge patch: %s\n", d.Patch)
}
