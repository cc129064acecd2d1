package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"playable/internal/logging"

	"golang.org/x/sync/errgroup"
)

// BugsDir is the per-game subdirectory holding bug/fix pairs.
const BugsDir = "bugs"

// Options configures a Generator.
type Options struct {
	DataDir string

	// Workers bounds concurrent routing; <= 0 means one.
	Workers int

	// Tokens, when set, fills Result.Tokens for every record.
	Tokens TokenCounter

	// Progress receives the per-directory/per-file progress lines.
	// nil discards them.
	Progress io.Writer
}

// FileError is a routing failure isolated to one script.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e FileError) Unwrap() error { return e.Err }

// Report is the outcome of one walk over the data directory.
type Report struct {
	Results []Result
	Stats   Stats
	Errors  []FileError
	Skipped []string
}

// Records returns the records in walk order.
func (r *Report) Records() []Record {
	out := make([]Record, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Record
	}
	return out
}

// Generator walks a data directory and routes every script.
type Generator struct {
	opts Options
}

// NewGenerator creates a Generator.
func NewGenerator(opts Options) *Generator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Generator{opts: opts}
}

// job is one script in walk order.
type job struct {
	path   string
	game   string
	inBugs bool
}

type outcome struct {
	result Result
	err    error
}

// Collect walks the data directory and routes every script. Per-file
// failures land in Report.Errors; only a failure to list the data
// directory itself (or cancellation) is returned as an error.
func (g *Generator) Collect(ctx context.Context) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryDataset, "Dataset collection")
	defer timer.StopWithInfo()

	jobs, err := planScripts(g.opts.DataDir)
	if err != nil {
		return nil, err
	}
	logging.Dataset("Planned %d scripts under %s", len(jobs), g.opts.DataDir)

	outcomes := make([]outcome, len(jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Workers)
	for i, j := range jobs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			res, err := Route(j.path)
			if err == nil && g.opts.Tokens != nil {
				res.Tokens, err = g.opts.Tokens.CountRecord(res.Record)
			}
			outcomes[i] = outcome{result: res, err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return g.assemble(jobs, outcomes), nil
}

// assemble reports outcomes in walk order.
func (g *Generator) assemble(jobs []job, outcomes []outcome) *Report {
	report := &Report{}
	out := g.opts.Progress
	lastGame := ""
	bugsAnnounced := false

	for i, j := range jobs {
		if j.game != lastGame {
			fmt.Fprintf(out, "Processing %s...\n", j.game)
			lastGame = j.game
			bugsAnnounced = false
		}
		indent := "  "
		if j.inBugs {
			if !bugsAnnounced {
				fmt.Fprintln(out, "  Processing bugs subdirectory...")
				bugsAnnounced = true
			}
			indent = "    "
		}
		name := filepath.Base(j.path)
		fmt.Fprintf(out, "%sProcessing %s...\n", indent, name)

		o := outcomes[i]
		switch {
		case errors.Is(o.err, ErrSkip):
			report.Skipped = append(report.Skipped, j.path)
			if j.inBugs {
				fmt.Fprintf(out, "%sSkipping %s (processed with bug pair)\n", indent, name)
			}
			logging.DatasetDebug("Skipped %s", j.path)
		case o.err != nil:
			report.Errors = append(report.Errors, FileError{Path: j.path, Err: o.err})
			fmt.Fprintf(out, "%sError processing %s: %v\n", indent, j.path, o.err)
			logging.DatasetWarn("Error processing %s: %v", j.path, o.err)
		default:
			report.Results = append(report.Results, o.result)
			report.Stats.Add(o.result, j.inBugs)
			logging.DatasetDebug("Routed %s as %s (%d lines)", j.path, o.result.Type, o.result.Lines)
		}
	}
	return report
}

// planScripts lists scripts in the order they are reported: game
// directories lexically (skipping names starting with "_"), each
// directory's *.py, then its bugs/*.py.
func planScripts(dataDir string) ([]job, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var jobs []job
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		gameDir := filepath.Join(dataDir, e.Name())

		scripts, err := listScripts(gameDir)
		if err != nil {
			return nil, err
		}
		for _, p := range scripts {
			jobs = append(jobs, job{path: p, game: e.Name()})
		}

		bugsDir := filepath.Join(gameDir, BugsDir)
		if info, err := os.Stat(bugsDir); err == nil && info.IsDir() {
			bugScripts, err := listScripts(bugsDir)
			if err != nil {
				return nil, err
			}
			for _, p := range bugScripts {
				jobs = append(jobs, job{path: p, game: e.Name(), inBugs: true})
			}
		}
	}
	return jobs, nil
}

// listScripts returns the regular *.py files in dir, sorted.
func listScripts(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.py"))
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			out = append(out, m)
		}
	}
	return out, nil
}

// Generate collects records and writes them as JSONL to outputFile,
// creating its directory if needed.
func (g *Generator) Generate(ctx context.Context, outputFile string) (*Report, error) {
	report, err := g.Collect(ctx)
	if err != nil {
		return nil, err
	}
	if err := WriteFile(outputFile, report.Records()); err != nil {
		return report, err
	}
	logging.Dataset("Wrote %d records to %s (%d errors)", len(report.Results), outputFile, len(report.Errors))
	return report, nil
}
