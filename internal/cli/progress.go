package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/modelpull/modelpull/pkg/download"
	"github.com/modelpull/modelpull/pkg/orchestrator"
)

// eventSink returns hooks that write one line per orchestrator event.
// Events go to the given writer so stdout stays reserved for file paths.
func eventSink(out io.Writer) orchestrator.Hooks {
	return orchestrator.Hooks{
		OnEvent: func(e orchestrator.Event) {
			if e.Msg != "" {
				fmt.Fprintf(out, "%s: %s (%s)\n", e.Phase, e.Path, e.Msg)
				return
			}
			fmt.Fprintf(out, "%s: %s\n", e.Phase, e.Path)
		},
	}
}

// progressSink returns a progress callback that prints transfer totals, or
// nil when out is not a terminal so piped runs stay quiet.
func progressSink(out *os.File) download.ProgressFunc {
	if !term.IsTerminal(int(out.Fd())) {
		return nil
	}
	return func(ev download.Event) {
		switch {
		case ev.Done:
			fmt.Fprintf(out, "  %s done (%s)\n", ev.URL, humanize.Bytes(uint64(ev.Bytes)))
		case ev.Total > 0:
			percent := float64(ev.Bytes) / float64(ev.Total) * 100
			fmt.Fprintf(out, "  %s %s / %s (%.0f%%)\n", ev.URL,
				humanize.Bytes(uint64(ev.Bytes)), humanize.Bytes(uint64(ev.Total)), percent)
		default:
			fmt.Fprintf(out, "  %s %s\n", ev.URL, humanize.Bytes(uint64(ev.Bytes)))
		}
	}
}
