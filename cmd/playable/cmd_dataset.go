package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"playable/internal/blob"
	"playable/internal/config"
	"playable/internal/dataset"
	"playable/internal/logging"
	"playable/internal/metrics"
	"playable/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// dataset generate flags
	genDataDir    string
	genOutput     string
	genWorkers    int
	genTokens     bool
	genWatch      bool
	genNoManifest bool

	historyLimit int
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Build and check the instruction-tuning dataset",
}

var datasetGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate JSONL training records from the data directory",
	Long: `Walks every game directory under the data directory (skipping
names that start with "_"), routes each script as a create, remix or
bug-fix example, and writes one chat record per line.

With --watch, the dataset is regenerated whenever a script changes
until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runDatasetGenerate,
}

var datasetValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check remix sources and bug/fixed pairs in the data directory",
	Args:  cobra.NoArgs,
	RunE:  runDatasetValidate,
}

var datasetCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check that a JSONL file holds well-formed chat records",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDatasetCheck,
}

var datasetPushCmd = &cobra.Command{
	Use:   "push [file]",
	Short: "Upload a checked JSONL dataset to S3",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDatasetPush,
}

var datasetHistoryCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recent generation runs, or the records of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDatasetHistory,
}

func init() {
	datasetGenerateCmd.Flags().StringVar(&genDataDir, "data", "", "Data directory (default from config)")
	datasetGenerateCmd.Flags().StringVarP(&genOutput, "out", "o", "", "Output JSONL file (default from config)")
	datasetGenerateCmd.Flags().IntVar(&genWorkers, "workers", 0, "Concurrent script routing (0 = config/GOMAXPROCS)")
	datasetGenerateCmd.Flags().BoolVar(&genTokens, "tokens", false, "Count tokens per record")
	datasetGenerateCmd.Flags().BoolVar(&genWatch, "watch", false, "Regenerate when scripts change")
	datasetGenerateCmd.Flags().BoolVar(&genNoManifest, "no-manifest", false, "Do not record the run in the manifest")

	datasetHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to list")

	datasetCmd.AddCommand(datasetGenerateCmd)
	datasetCmd.AddCommand(datasetValidateCmd)
	datasetCmd.AddCommand(datasetCheckCmd)
	datasetCmd.AddCommand(datasetPushCmd)
	datasetCmd.AddCommand(datasetHistoryCmd)
}

// applyDatasetFlags copies set flags over the loaded config.
func applyDatasetFlags(c *config.Config) {
	if genDataDir != "" {
		c.Dataset.DataDir = genDataDir
	}
	if genOutput != "" {
		c.Dataset.OutputFile = genOutput
	}
	if genWorkers > 0 {
		c.Dataset.Workers = genWorkers
	}
	if genTokens {
		c.Dataset.CountTokens = true
	}
	if genNoManifest {
		c.Dataset.ManifestPath = ""
	}
}

func runDatasetGenerate(cmd *cobra.Command, args []string) error {
	applyDatasetFlags(cfg)
	out := cmd.OutOrStdout()

	if !genWatch {
		ctx, cancel := signalContext(timeout)
		defer cancel()
		_, err := generateOnce(ctx, out)
		return err
	}

	ctx, cancel := signalContext(0)
	defer cancel()

	if _, err := generateOnce(ctx, out); err != nil {
		return err
	}

	dataDir := resolvePath(cfg.Dataset.DataDir)
	debounce, err := time.ParseDuration(cfg.Dataset.WatchDebounce)
	if err != nil {
		debounce = 500 * time.Millisecond
	}

	watcher, err := dataset.NewWatcher(dataDir, debounce, func(ctx context.Context, changed []string) {
		fmt.Fprintf(out, "\nDetected changes in %d file(s), regenerating...\n", len(changed))
		for _, p := range changed {
			logger.Debug("Changed", zap.String("path", p))
		}
		if _, err := generateOnce(ctx, out); err != nil && ctx.Err() == nil {
			logger.Error("Regeneration failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Fprintf(out, "\nWatching %s for changes (Ctrl+C to stop)...\n", dataDir)
	<-ctx.Done()

	stats := watcher.Stats()
	logger.Info("Watch stopped",
		zap.Int("events", stats.Events),
		zap.Int("batches", stats.Batches),
		zap.Int("errors", stats.Errors))
	return nil
}

// generateOnce runs one generation, prints statistics, and records the
// run in the manifest and metrics textfile when configured.
func generateOnce(ctx context.Context, out io.Writer) (*dataset.Report, error) {
	started := time.Now()
	runID := store.NewRunID()
	dataDir := resolvePath(cfg.Dataset.DataDir)
	outputFile := resolvePath(cfg.Dataset.OutputFile)

	opts := dataset.Options{
		DataDir:  dataDir,
		Workers:  cfg.Dataset.EffectiveWorkers(),
		Progress: out,
	}
	if cfg.Dataset.CountTokens {
		counter, err := dataset.NewTiktokenCounter(cfg.Dataset.Encoding)
		if err != nil {
			return nil, err
		}
		opts.Tokens = counter
	}

	logger.Debug("Generating dataset",
		zap.String("run_id", runID),
		zap.String("data_dir", dataDir),
		zap.Int("workers", opts.Workers))

	report, err := dataset.NewGenerator(opts).Generate(ctx, outputFile)
	if err != nil {
		return nil, err
	}
	finished := time.Now()

	report.Stats.Render(out, opts.Tokens != nil)
	abs, err := filepath.Abs(outputFile)
	if err != nil {
		abs = outputFile
	}
	fmt.Fprintf(out, "\nOutput saved to: %s\n", abs)

	if len(report.Errors) > 0 {
		logger.Warn("Some scripts could not be routed", zap.Int("errors", len(report.Errors)))
	}

	run := store.Run{
		ID:         runID,
		StartedAt:  started,
		FinishedAt: finished,
		DataDir:    dataDir,
		OutputFile: abs,
		Records:    len(report.Results),
		Errors:     len(report.Errors),
		Base:       report.Stats.Base.Count,
		Remix:      report.Stats.Remix.Count,
		BugFix:     report.Stats.BugFix.Count,
		Lines:      report.Stats.Total().Lines,
		Tokens:     report.Stats.Total().Tokens,
	}
	if cfg.Dataset.ManifestPath != "" {
		if err := recordManifest(ctx, run, report); err != nil {
			// The dataset is already written; losing its history is not fatal.
			logger.Warn("Failed to record run in manifest", zap.Error(err))
		}
	}
	recordMetrics(report, finished.Sub(started), finished)

	logger.Info("Dataset generated",
		zap.String("run_id", runID),
		zap.Int("records", run.Records),
		zap.Int("errors", run.Errors),
		zap.Duration("elapsed", run.Duration()))
	return report, nil
}

func recordManifest(ctx context.Context, run store.Run, report *dataset.Report) error {
	m, err := store.Open(resolvePath(cfg.Dataset.ManifestPath))
	if err != nil {
		return err
	}
	defer m.Close()

	entries := make([]store.Entry, len(report.Results))
	for i, res := range report.Results {
		entries[i] = store.Entry{
			Seq:      i,
			Source:   res.Source,
			GameType: string(res.Type),
			Lines:    res.Lines,
			Tokens:   res.Tokens,
			SHA256:   store.HashContent(res.Record.Assistant()),
		}
	}
	return m.RecordRun(ctx, run, entries)
}

func recordMetrics(report *dataset.Report, elapsed time.Duration, finished time.Time) {
	for _, t := range []dataset.GameType{dataset.GameTypeBase, dataset.GameTypeRemix, dataset.GameTypeBugFix} {
		s := report.Stats.Of(t)
		metrics.SetDatasetType(string(t), s.Count, s.Lines, s.Tokens)
	}
	metrics.ObserveGeneration(len(report.Errors), elapsed, finished)
	writeMetrics()
}

func writeMetrics() {
	if cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := metrics.WriteTextfile(resolvePath(cfg.Metrics.TextfilePath)); err != nil {
		logger.Warn("Failed to write metrics", zap.Error(err))
	}
}

func runDatasetValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dataDir := resolvePath(cfg.Dataset.DataDir)

	v, err := dataset.ValidatePairs(dataDir)
	if err != nil {
		return err
	}

	for _, p := range v.Problems {
		rel, err := filepath.Rel(dataDir, p.Path)
		if err != nil {
			rel = p.Path
		}
		fmt.Fprintf(out, "%-7s %s: %s (%s)\n", strings.ToUpper(string(p.Severity)), rel, p.Kind, p.Detail)
	}
	fmt.Fprintf(out, "Checked %d scripts: %d error(s), %d warning(s)\n", v.Scripts, v.Errors(), v.Warnings())
	logging.Dataset("Validated %s: %d errors, %d warnings", dataDir, v.Errors(), v.Warnings())

	if !v.OK() {
		return fmt.Errorf("data directory has %d pairing error(s)", v.Errors())
	}
	return nil
}

// datasetFile returns the file argument or the configured output file.
func datasetFile(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return resolvePath(cfg.Dataset.OutputFile)
}

func runDatasetCheck(cmd *cobra.Command, args []string) error {
	file := datasetFile(args)
	n, err := dataset.CheckFile(file)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s valid records\n", file, humanize.Comma(int64(n)))
	return nil
}

func runDatasetPush(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateForPush(); err != nil {
		return err
	}
	ctx, cancel := signalContext(timeout)
	defer cancel()

	uploader, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	return pushDataset(ctx, cmd.OutOrStdout(), uploader, datasetFile(args))
}

func pushDataset(ctx context.Context, out io.Writer, uploader *blob.Uploader, file string) error {
	obj, err := uploader.Push(ctx, file)
	metrics.BlobPushes.WithLabelValues(metrics.Outcome(err)).Inc()
	if err == nil {
		metrics.BlobPushBytes.Add(float64(obj.Size))
	}
	writeMetrics()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pushed %s to %s (%s records, %s)\n",
		file, obj.URI(), humanize.Comma(int64(obj.Records)), humanize.Bytes(uint64(obj.Size)))
	logger.Info("Dataset pushed", zap.String("uri", obj.URI()), zap.String("sha256", obj.SHA256))
	return nil
}

func runDatasetHistory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if cfg.Dataset.ManifestPath == "" {
		fmt.Fprintln(out, "Run manifest is disabled (dataset.manifest_path is empty).")
		return nil
	}

	m, err := store.Open(resolvePath(cfg.Dataset.ManifestPath))
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 1 {
		return showRun(ctx, out, m, args[0])
	}

	runs, err := m.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No generation runs recorded yet.")
		return nil
	}
	fmt.Fprintf(out, "%-36s  %-16s  %7s  %5s  %5s  %7s  %6s\n", "RUN", "STARTED", "RECORDS", "BASE", "REMIX", "BUG_FIX", "ERRORS")
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-16s  %7d  %5d  %5d  %7d  %6d\n",
			r.ID, humanize.Time(r.StartedAt), r.Records, r.Base, r.Remix, r.BugFix, r.Errors)
	}
	return nil
}

func showRun(ctx context.Context, out io.Writer, m *store.Manifest, id string) error {
	run, err := m.GetRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no run %q in %s", id, m.Path())
	}
	if err != nil {
		return err
	}
	entries, err := m.Entries(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  Started:  %s (%s)\n", run.StartedAt.Format(time.RFC3339), humanize.Time(run.StartedAt))
	fmt.Fprintf(out, "  Duration: %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "  Output:   %s\n", run.OutputFile)
	fmt.Fprintf(out, "  Records:  %d (%s lines)\n", run.Records, humanize.Comma(int64(run.Lines)))
	for _, e := range entries {
		fmt.Fprintf(out, "  %4d  %-8s %6d  %s  %s\n", e.Seq, e.GameType, e.Lines, e.SHA256[:12], e.Source)
	}
	return nil
}
