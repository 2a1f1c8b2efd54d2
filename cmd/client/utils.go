package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/cloudstore/cloudstore/internal/client/fileview"
	"github.com/cloudstore/cloudstore/internal/client/notify"
)

var (
	// https://github.com/muesli/termenv/blob/master/ansicolors.go
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// termNotifier prints operation outcomes: successes and info to out,
// warnings and errors to errOut.
type termNotifier struct {
	out    io.Writer
	errOut io.Writer

	mu     sync.Mutex
	errors int
}

func newTermNotifier(out, errOut io.Writer) *termNotifier {
	return &termNotifier{out: out, errOut: errOut}
}

func (t *termNotifier) Notify(n notify.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch n.Level {
	case notify.LevelSuccess:
		fmt.Fprintf(t.out, "%s %s\n", green.Render("✓"), n.Message)
	case notify.LevelInfo:
		fmt.Fprintf(t.out, "%s %s\n", cyan.Render("i"), n.Message)
	case notify.LevelWarn:
		fmt.Fprintf(t.errOut, "%s %s: %s\n", yellow.Render("!"), n.Title, n.Message)
	case notify.LevelError:
		t.errors++
		fmt.Fprintf(t.errOut, "%s %s: %s\n", red.Render("ERROR:"), n.Title, n.Message)
	}
}

func (t *termNotifier) Errors() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errors
}

// printEntries writes one aligned row per entry: name, size, modified,
// owner. Folders end in "/".
func printEntries(w io.Writer, entries []fileview.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, gray.Render("(empty)"))
		return
	}

	rows := make([][4]string, 0, len(entries))
	widths := [4]int{}
	for _, e := range entries {
		row := [4]string{e.Name, "-", humanize.RelTime(e.Modified, now, "ago", "from now"), e.Owner}
		if e.IsFolder() {
			row[0] += "/"
		} else if e.Size != nil {
			row[1] = humanize.IBytes(uint64(max(*e.Size, 0)))
		}
		for i, col := range row {
			widths[i] = max(widths[i], lipgloss.Width(col))
		}
		rows = append(rows, row)
	}

	for i, row := range rows {
		name := padRight(row[0], widths[0])
		if entries[i].IsFolder() {
			name = cyan.Render(name)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			name,
			padLeft(row[1], widths[1]),
			gray.Render(padRight(row[2], widths[2])),
			row[3],
		)
	}
}

func padRight(s string, width int) string {
	return s + strings.Repeat(" ", max(width-lipgloss.Width(s), 0))
}

func padLeft(s string, width int) string {
	return strings.Repeat(" ", max(width-lipgloss.Width(s), 0)) + s
}

func printKV(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s %s\n", gray.Render(padRight(key, 9)), value)
}
