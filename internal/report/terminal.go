package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/moolen/mergetrace/internal/analyzer"
)

var (
	colorPrimary = lipgloss.Color("#00D4FF")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
)

// RenderTable writes a per-file overview, fitted to width when it is
// positive. Colors are dropped automatically when w is not a terminal.
func RenderTable(w io.Writer, outcomes []analyzer.Outcome, width int) {
	r := lipgloss.NewRenderer(w)
	headerStyle := r.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	cellStyle := r.NewStyle().Padding(0, 1)
	errorStyle := r.NewStyle().Foreground(colorError).Padding(0, 1)
	borderStyle := r.NewStyle().Foreground(colorMuted)

	failed := map[int]bool{}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("FILE", "NODES", "DEPTH", "JUMPS", "EVENTS", "SKIPPED", "REWARD")
	for i, o := range outcomes {
		if o.Err != nil {
			failed[i] = true
			t.Row(o.Path, "-", "-", "-", "-", "-", o.Err.Error())
			continue
		}
		res := o.Result
		c := res.Counters
		t.Row(
			o.Path,
			strconv.Itoa(res.Nodes),
			strconv.Itoa(res.MaxDepth()),
			strconv.Itoa(res.Jumps),
			strconv.Itoa(c.Events),
			strconv.Itoa(c.Unmatched+c.Malformed+c.TooSmall),
			fmt.Sprintf("%.3f..%.3f", res.MinReward, res.MaxReward),
		)
	}
	if width > 0 {
		t.Width(width)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case failed[row]:
			return errorStyle
		default:
			return cellStyle
		}
	})

	fmt.Fprintln(w, t.Render())
}

// WriteJumps prints "<file> <jumps>" per outcome, or the error of a failed file.
func WriteJumps(w io.Writer, outcomes []analyzer.Outcome) {
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "%s error: %v\n", o.Path, o.Err)
			continue
		}
		fmt.Fprintf(w, "%s %d\n", o.Path, o.Result.Jumps)
	}
}
