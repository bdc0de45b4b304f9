package main

import (
	"fmt"
	"io"
)

// streamPrinter renders assistant deltas as they arrive. On an interactive
// terminal the first delta clears the current line (the prompt the operator
// just typed on) and prints a label once; piped output stays free of
// control sequences.
type streamPrinter struct {
	out         io.Writer
	interactive bool
	active      bool
}

func newStreamPrinter(out io.Writer, interactive bool) *streamPrinter {
	return &streamPrinter{out: out, interactive: interactive}
}

func (p *streamPrinter) Delta(d string) {
	if d == "" {
		return
	}
	if !p.active {
		p.active = true
		if p.interactive {
			fmt.Fprint(p.out, "\r\033[2K")
			fmt.Fprint(p.out, "assistant: ")
		}
	}
	io.WriteString(p.out, d)
}

// Close ends the streaming line. Safe to call when nothing was printed.
func (p *streamPrinter) Close() {
	if p.active {
		fmt.Fprint(p.out, "\n")
		p.active = false
	}
}
