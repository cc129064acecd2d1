package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

// writeScript writes content to root/rel, creating directories.
func writeScript(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

// buildCorpus lays out one game with a create, a remix and a bug/fix
// pair, a second game whose remix points at a missing base, and an
// underscore directory that must be ignored.
func buildCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeScript(t, root, "pong/pong.py", "# CREATE: a pong game\n\nimport pygame\npygame.init()\n")
	writeScript(t, root, "pong/pong_red.py", "# SOURCE: pong.py\n# REMIX: make the paddles red\n\nimport pygame\nRED = (255, 0, 0)\n")
	writeScript(t, root, "pong/bugs/pong_bug.py", "# CREATE: a pong game\n# ERROR: NameError: name 'x' is not defined\n\nprint(x)\n")
	writeScript(t, root, "pong/bugs/pong_fixed.py", "# CREATE: a pong game\n\nx = 1\nprint(x)\n")
	writeScript(t, root, "snake/snake_fast.py", "# SOURCE: snake.py\n# REMIX: faster\n\nSPEED = 20\n")
	writeScript(t, root, "_drafts/wip.py", "# CREATE: unfinished\n\npass\n")
	return root
}
