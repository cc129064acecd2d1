package dataset

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestStats_AddByLocation(t *testing.T) {
	var s Stats
	s.Add(Result{Type: GameTypeBase, Lines: 10, Tokens: 100}, false)
	s.Add(Result{Type: GameTypeBase, Lines: 5}, false)
	s.Add(Result{Type: GameTypeRemix, Lines: 7}, false)
	s.Add(Result{Type: GameTypeBugFix, Lines: 3, Tokens: 1}, true)
	// a create script under bugs/ still counts as a bug fix
	s.Add(Result{Type: GameTypeBase, Lines: 4}, true)
	// a bug pair outside bugs/ is emitted but not counted
	s.Add(Result{Type: GameTypeBugFix, Lines: 9}, false)

	if got := s.Of(GameTypeBase); got.Count != 2 || got.Lines != 15 || got.Tokens != 100 {
		t.Errorf("base = %+v", got)
	}
	if got := s.Of(GameTypeRemix); got.Count != 1 || got.Lines != 7 {
		t.Errorf("remix = %+v", got)
	}
	if got := s.Of(GameTypeBugFix); got.Count != 2 || got.Lines != 7 || got.Tokens != 1 {
		t.Errorf("bug_fix = %+v", got)
	}
	total := s.Total()
	if total.Count != 5 || total.Lines != 29 || total.Tokens != 101 {
		t.Errorf("total = %+v", total)
	}
}

func TestStats_Render(t *testing.T) {
	s := Stats{
		Base:   TypeStats{Count: 12, Lines: 4321},
		Remix:  TypeStats{Count: 3, Lines: 900},
		BugFix: TypeStats{Count: 2, Lines: 150},
	}

	var buf bytes.Buffer
	s.Render(&buf, false)
	out := buf.String()

	for _, want := range []string{
		"DATASET STATISTICS",
		strings.Repeat("=", 60) + "\n",
		fmt.Sprintf("%-20s %-15s %-20s\n", "Game Type", "Count", "Lines of Code"),
		fmt.Sprintf("%-20s %-15s %-20s\n", "Base Games", "12", "4,321"),
		fmt.Sprintf("%-20s %-15s %-20s\n", "TOTAL", "17", "5,371"),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Tokens") {
		t.Error("tokens column should be absent")
	}
}

func TestStats_RenderWithTokens(t *testing.T) {
	s := Stats{Remix: TypeStats{Count: 1, Lines: 10, Tokens: 123456}}

	var buf bytes.Buffer
	s.Render(&buf, true)
	out := buf.String()

	if !strings.Contains(out, strings.Repeat("=", 76)) {
		t.Error("table should widen for the tokens column")
	}
	want := fmt.Sprintf("%-20s %-15s %-20s %-15s\n", "Remix Games", "1", "10", "123,456")
	if !strings.Contains(out, want) {
		t.Errorf("missing row %q:\n%s", want, out)
	}
}
