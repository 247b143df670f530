package main

import (
	"fmt"
	"io"

	"github.com/martinemde/caveagent/agentloop"
)

// tracePrinter writes the game/player transcript to stdout.
type tracePrinter struct {
	out io.Writer
}

func newTracePrinter(out io.Writer) *tracePrinter {
	return &tracePrinter{out: out}
}

func (p *tracePrinter) Handle(e agentloop.Event) {
	switch e.Kind {
	case agentloop.EventGameOutput:
		fmt.Fprintf(p.out, "---game--\n%s\n", e.Text())
	case agentloop.EventPlayerResponse:
		fmt.Fprintf(p.out, "---player---\n%s\n", e.Text())
	case agentloop.EventGameExit:
		fmt.Fprintln(p.out, "Game has terminated")
	}
}
