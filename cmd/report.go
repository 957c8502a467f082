package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/cmmoran/buildergen/internal/diag"
)

const (
	red   = "\x1b[31m"
	bold  = "\x1b[1m"
	reset = "\x1b[0m"
)

func colorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printErrors writes one line per diagnostic, sorted by position.
func printErrors(w io.Writer, err error) {
	color := colorize(w)
	for _, e := range diag.Sort(err) {
		var d *diag.Diagnostic
		switch {
		case !errors.As(e, &d):
			if color {
				_, _ = fmt.Fprintf(w, "%serror:%s %v\n", red, reset, e)
			} else {
				_, _ = fmt.Fprintf(w, "error: %v\n", e)
			}
		case color && d.Fset != nil && d.Pos.IsValid():
			_, _ = fmt.Fprintf(w, "%s%s:%s %s%s:%s %s\n", bold, d.Fset.Position(d.Pos), reset, red, d.Kind, reset, d.Msg)
		default:
			_, _ = fmt.Fprintf(w, "%v (%s)\n", e, d.Kind)
		}
	}
}
