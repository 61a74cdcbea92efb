package cmd

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"webauthz/pkg/webauthz"
)

// newTable creates a table writing to out with standard styling.
func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

func headerCell(s string) string {
	return text.FgHiCyan.Sprint(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}

func formatStatus(status webauthz.Status) string {
	switch status {
	case webauthz.StatusGranted:
		return text.FgGreen.Sprint(string(status))
	case webauthz.StatusDenied:
		return text.FgRed.Sprint(string(status))
	default:
		return text.FgYellow.Sprint(string(status))
	}
}
