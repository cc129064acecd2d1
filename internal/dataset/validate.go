package dataset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Severity grades a pairing problem.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ProblemKind names a pairing problem.
type ProblemKind string

const (
	ProblemMissingSource ProblemKind = "missing_source" // remix names a base game that does not exist
	ProblemMissingFixed  ProblemKind = "missing_fixed"  // *_bug.py without *_fixed.py
	ProblemOrphanFixed   ProblemKind = "orphan_fixed"   // *_fixed.py without *_bug.py
	ProblemFixSuffix     ProblemKind = "fix_suffix"     // *_fix.py in bugs/ is routed as a create game
)

// Problem is one pairing violation.
type Problem struct {
	Path     string
	Kind     ProblemKind
	Severity Severity
	Detail   string
}

func (p Problem) String() string {
	return fmt.Sprintf("[%s] %s: %s (%s)", p.Severity, p.Kind, p.Path, p.Detail)
}

// Validation is the result of ValidatePairs.
type Validation struct {
	Scripts  int
	Problems []Problem
}

// Errors counts error-severity problems.
func (v *Validation) Errors() int { return v.count(SeverityError) }

// Warnings counts warning-severity problems.
func (v *Validation) Warnings() int { return v.count(SeverityWarning) }

func (v *Validation) count(s Severity) int {
	n := 0
	for _, p := range v.Problems {
		if p.Severity == s {
			n++
		}
	}
	return n
}

// OK reports whether no error-severity problem was found.
func (v *Validation) OK() bool { return v.Errors() == 0 }

// ValidatePairs checks the filesystem pairing rules over the same scripts
// Generate would route: every remix's SOURCE exists beside it and every
// *_bug.py has a *_fixed.py sibling.
func ValidatePairs(dataDir string) (*Validation, error) {
	jobs, err := planScripts(dataDir)
	if err != nil {
		return nil, err
	}

	v := &Validation{Scripts: len(jobs)}
	add := func(path string, kind ProblemKind, sev Severity, detail string) {
		v.Problems = append(v.Problems, Problem{Path: path, Kind: kind, Severity: sev, Detail: detail})
	}

	for _, j := range jobs {
		name := stem(j.path)
		switch {
		case strings.HasSuffix(name, bugSuffix):
			fixed := FixedPathFor(j.path)
			if !exists(fixed) {
				add(j.path, ProblemMissingFixed, SeverityError, "expected "+filepath.Base(fixed))
			}

		case strings.HasSuffix(name, fixedSuffix):
			bug := filepath.Join(filepath.Dir(j.path), strings.TrimSuffix(name, fixedSuffix)+bugSuffix+".py")
			if !exists(bug) {
				add(j.path, ProblemOrphanFixed, SeverityWarning, "no "+filepath.Base(bug)+"; file is never used")
			}

		default:
			if j.inBugs && strings.HasSuffix(name, "_fix") {
				add(j.path, ProblemFixSuffix, SeverityWarning, "rename to *_fixed.py to pair it with a bug file")
			}
			source, ok, err := remixSource(j.path)
			if err != nil {
				return nil, err
			}
			if ok {
				base := filepath.Join(filepath.Dir(j.path), source)
				if !exists(base) {
					add(j.path, ProblemMissingSource, SeverityError, "SOURCE "+source+" not found")
				}
			}
		}
	}
	return v, nil
}

// remixSource reads just the header lines of path and returns the
// SOURCE file name when the script is a remix.
func remixSource(path string) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var head []string
	for len(head) < 2 && sc.Scan() {
		head = append(head, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return "", false, err
	}
	if len(head) == 2 && strings.HasPrefix(head[0], sourceHeader) && strings.HasPrefix(head[1], remixHeader) {
		return headerValue(head[0], sourceHeader), true, nil
	}
	return "", false, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
