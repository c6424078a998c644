package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/janekbaraniewski/loginswap/internal/platform"
	"github.com/janekbaraniewski/loginswap/internal/swap"
)

// cliNotifier prints swap progress as one line per step.
type cliNotifier struct {
	out     io.Writer
	catalog *platform.Catalog
}

func (n *cliNotifier) name(id string) string {
	if spec, err := n.catalog.Get(id); err == nil && spec.Name != "" {
		return spec.Name
	}
	return id
}

func (n *cliNotifier) Status(id string, s swap.State) {
	if s == swap.Idle {
		return
	}
	fmt.Fprintln(n.out, statusStyle.Render("→ ")+dimStyle.Render(stateLine(n.name(id), s)))
}

func stateLine(name string, s swap.State) string {
	switch s {
	case swap.StoppingProcess:
		return "closing " + name
	case swap.CapturingCurrent:
		return "saving the current login"
	case swap.ClearingLive:
		return "clearing live data"
	case swap.InstallingTarget:
		return "restoring the selected login"
	case swap.StartingProcess:
		return "starting " + name
	default:
		return s.String()
	}
}

func (n *cliNotifier) Notify(id string, level swap.Level, msg string) {
	switch level {
	case swap.LevelError:
		fmt.Fprintln(n.out, errorStyle.Render(n.name(id)+": ")+msg)
	case swap.LevelWarn:
		fmt.Fprintln(n.out, warnStyle.Render(n.name(id)+": ")+msg)
	default:
		fmt.Fprintln(n.out, labelStyle.Render(n.name(id)+": ")+msg)
	}
}

// waiting is hooked into the process manager's poll loop.
func (n *cliNotifier) waiting(names []string, attempt, limit int) {
	fmt.Fprintln(n.out, dimStyle.Render(fmt.Sprintf("  waiting for %s to close (%d/%d)", strings.Join(names, ", "), attempt, limit)))
}
