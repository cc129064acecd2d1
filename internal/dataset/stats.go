package dataset

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// TypeStats aggregates one game type.
type TypeStats struct {
	Count  int `json:"count"`
	Lines  int `json:"lines"`
	Tokens int `json:"tokens"`
}

func (t *TypeStats) add(r Result) {
	t.Count++
	t.Lines += r.Lines
	t.Tokens += r.Tokens
}

// Stats aggregates a dataset by game type.
type Stats struct {
	Base   TypeStats `json:"base"`
	Remix  TypeStats `json:"remix"`
	BugFix TypeStats `json:"bug_fix"`
}

// Add counts one routed script by where it was found. Every record from
// a bugs/ directory is a bug fix; the game directory itself contributes
// only base and remix counts.
func (s *Stats) Add(r Result, inBugs bool) {
	if inBugs {
		s.BugFix.add(r)
		return
	}
	switch r.Type {
	case GameTypeBase:
		s.Base.add(r)
	case GameTypeRemix:
		s.Remix.add(r)
	}
}

// Of returns the stats for one game type.
func (s Stats) Of(t GameType) TypeStats {
	switch t {
	case GameTypeBase:
		return s.Base
	case GameTypeRemix:
		return s.Remix
	case GameTypeBugFix:
		return s.BugFix
	}
	return TypeStats{}
}

// Total sums all game types.
func (s Stats) Total() TypeStats {
	return TypeStats{
		Count:  s.Base.Count + s.Remix.Count + s.BugFix.Count,
		Lines:  s.Base.Lines + s.Remix.Lines + s.BugFix.Lines,
		Tokens: s.Base.Tokens + s.Remix.Tokens + s.BugFix.Tokens,
	}
}

const tableWidth = 60

var titleStyle = lipgloss.NewStyle().Bold(true)

// Render prints the statistics table. withTokens adds a Tokens column.
func (s Stats) Render(w io.Writer, withTokens bool) {
	width := tableWidth
	if withTokens {
		width += 16
	}
	heavy := strings.Repeat("=", width)
	light := strings.Repeat("-", width)

	row := func(label string, count, lines, tokens string) {
		if withTokens {
			fmt.Fprintf(w, "%-20s %-15s %-20s %-15s\n", label, count, lines, tokens)
			return
		}
		fmt.Fprintf(w, "%-20s %-15s %-20s\n", label, count, lines)
	}
	stat := func(label string, t TypeStats) {
		row(label, fmt.Sprint(t.Count), humanize.Comma(int64(t.Lines)), humanize.Comma(int64(t.Tokens)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, heavy)
	fmt.Fprintln(w, titleStyle.Render("DATASET STATISTICS"))
	fmt.Fprintln(w, heavy)
	row("Game Type", "Count", "Lines of Code", "Tokens")
	fmt.Fprintln(w, light)
	stat("Base Games", s.Base)
	stat("Remix Games", s.Remix)
	stat("Bug Fix Games", s.BugFix)
	fmt.Fprintln(w, light)
	stat("TOTAL", s.Total())
	fmt.Fprintln(w, heavy)
}
