package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/arthur-debert/rollout/pkg/release"
	"github.com/pterm/pterm"
)

// NewProgress returns a listener that reports release events as phases run
// and revert. Machine-readable formats get no progress output and a nil
// listener.
func NewProgress(format Format, w io.Writer) func(release.Event) {
	if format == FormatAuto {
		format = FormatText
		if file, ok := w.(*os.File); ok {
			format = DetectFormat(file)
		}
	}

	var mu sync.Mutex
	switch format {
	case FormatTerminal:
		printers := map[release.EventKind]*pterm.PrefixPrinter{
			release.EventRun:      pterm.Info.WithWriter(w),
			release.EventRevert:   pterm.Warning.WithWriter(w),
			release.EventFailed:   pterm.Error.WithWriter(w),
			release.EventRevertOK: pterm.Success.WithWriter(w),
		}
		return func(ev release.Event) {
			mu.Lock()
			defer mu.Unlock()
			if printer, ok := printers[ev.Kind]; ok {
				printer.Println(progressLine(ev))
			}
		}
	case FormatText:
		return func(ev release.Event) {
			mu.Lock()
			defer mu.Unlock()
			if line := progressLine(ev); line != "" {
				_, _ = fmt.Fprintln(w, line)
			}
		}
	default:
		return nil
	}
}

func progressLine(ev release.Event) string {
	switch ev.Kind {
	case release.EventRun:
		return fmt.Sprintf("[%s] Executing %q...", ev.Host, ev.Phase)
	case release.EventRevert:
		return fmt.Sprintf("[%s] Reverting %q...", ev.Host, ev.Phase)
	case release.EventFailed:
		return fmt.Sprintf("[%s] %q failed: %v", ev.Host, ev.Phase, ev.Err)
	case release.EventRevertOK:
		return fmt.Sprintf("[%s] Reverted %q", ev.Host, ev.Phase)
	}
	return ""
}
