package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	createHeader = "# CREATE:"
	sourceHeader = "# SOURCE:"
	remixHeader  = "# REMIX:"
	errorHeader  = "# ERROR:"

	bugSuffix   = "_bug"
	fixedSuffix = "_fixed"

	// blank lines before this index are treated as header padding in bug files
	bugHeaderWindow = 10
)

// stem returns the file name without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// readScript reads a script that must be valid UTF-8. Read errors are
// returned unwrapped so os.IsNotExist still applies.
func readScript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrInvalidEncoding, path)
	}
	return string(data), nil
}

// FixedPathFor returns the *_fixed.py sibling of a *_bug.py script. Only
// the trailing _bug is replaced: x_bug_2_bug.py pairs with x_bug_2_fixed.py.
func FixedPathFor(bugPath string) string {
	s := strings.TrimSuffix(stem(bugPath), bugSuffix)
	return filepath.Join(filepath.Dir(bugPath), s+fixedSuffix+".py")
}

// Route classifies one script and builds its record.
//
// It returns ErrSkip for *_fixed.py files, ErrFixedNotFound or
// ErrSourceNotFound (wrapped) when the paired file is missing,
// ErrInvalidEncoding (wrapped) for scripts that are not UTF-8, and any
// read error as-is.
func Route(path string) (Result, error) {
	name := stem(path)

	if strings.HasSuffix(name, fixedSuffix) {
		return Result{}, ErrSkip
	}
	if strings.HasSuffix(name, bugSuffix) {
		return routeBugFix(path)
	}

	content, err := readScript(path)
	if err != nil {
		return Result{}, err
	}
	lines := splitLines(content)

	switch {
	case len(lines) >= 2 &&
		strings.HasPrefix(lines[0], sourceHeader) &&
		strings.HasPrefix(lines[1], remixHeader):
		return routeRemix(path, lines)

	case len(lines) >= 1 && strings.HasPrefix(lines[0], createHeader):
		prompt := headerValue(lines[0], createHeader)
		body := joinFrom(lines, 2)
		return Result{
			Record: FormatCreate(body, prompt),
			Type:   GameTypeBase,
			Lines:  countCodeLines(splitLines(body)),
			Source: path,
		}, nil

	default:
		// Scripts without a header are named after the game they create.
		prompt := strings.ReplaceAll(name, "_", " ")
		return Result{
			Record: FormatCreate(content, prompt),
			Type:   GameTypeBase,
			Lines:  countCodeLines(lines),
			Source: path,
		}, nil
	}
}

// headerValue strips every occurrence of prefix from line and trims it.
func headerValue(line, prefix string) string {
	return strings.TrimSpace(strings.ReplaceAll(line, prefix, ""))
}

func routeRemix(path string, lines []string) (Result, error) {
	source := headerValue(lines[0], sourceHeader)
	prompt := headerValue(lines[1], remixHeader)

	// SOURCE, REMIX and the blank separator line are dropped.
	body := joinFrom(lines, 3)

	basePath := filepath.Join(filepath.Dir(path), source)
	base, err := readScript(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrSourceNotFound, basePath)
		}
		return Result{}, err
	}

	return Result{
		Record: FormatRemix(body, base, prompt),
		Type:   GameTypeRemix,
		Lines:  countCodeLines(splitLines(body)),
		Source: path,
	}, nil
}

func routeBugFix(path string) (Result, error) {
	fixedPath := FixedPathFor(path)
	if _, err := os.Stat(fixedPath); err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrFixedNotFound, fixedPath)
		}
		return Result{}, err
	}

	bugData, err := readScript(path)
	if err != nil {
		return Result{}, err
	}
	fixedData, err := readScript(fixedPath)
	if err != nil {
		return Result{}, err
	}

	trace, bug := splitBugHeader(splitLines(bugData))
	fixed := stripCreateHeader(fixedData)

	return Result{
		Record: FormatBugFix(bug, fixed, trace),
		Type:   GameTypeBugFix,
		Lines:  countCodeLines(splitLines(fixed)),
		Source: path,
	}, nil
}

// splitBugHeader separates the ERROR trace from the script body.
// CREATE lines are dropped, blank lines inside the header window are
// skipped, and the body starts at the first other line. A blank line past
// the window ends the header and is dropped too.
func splitBugHeader(lines []string) (trace, body string) {
	var errorLines []string
	start := 0

scan:
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, errorHeader):
			errorLines = append(errorLines, strings.ReplaceAll(line, errorHeader+" ", ""))
		case strings.HasPrefix(line, createHeader):
			continue
		case strings.TrimSpace(line) == "":
			if i < bugHeaderWindow {
				continue
			}
			start = i + 1
			break scan
		default:
			start = i
			break scan
		}
	}

	return strings.Join(errorLines, "\n"), joinFrom(lines, start)
}

// stripCreateHeader drops a leading CREATE line and the blank line after it.
func stripCreateHeader(content string) string {
	lines := splitLines(content)
	if len(lines) >= 1 && strings.HasPrefix(lines[0], createHeader) {
		return joinFrom(lines, 2)
	}
	return content
}
