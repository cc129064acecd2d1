package main

import (
	"fmt"
	"io"
	"os"

	"playable/internal/config"
	"playable/internal/publish"
	"playable/internal/store"
	"playable/internal/tactile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	production    string
	dryRun        bool
	uploadRetries int
)

var publishCmd = &cobra.Command{
	Use:   "publish <adapter_name> <output_dir>",
	Short: "Download a Fireworks adapter, convert it to GGUF and publish it",
	Long: `Runs the full adapter pipeline:
  1. firectl download model <adapter> <output_dir>/<adapter>
  2. Merge the adapter into the base model
  3. Convert the merged model to GGUF F16 with llama.cpp
  4. Quantize (default q4_k_m)
  5. Upload the GGUF and a model card to the Hugging Face Hub

With --production NAME, artifacts are named NAME-*.gguf and the merged
SafeTensors weights are also published to <org>/NAME.

Example:
  playable publish snake-v2 ./output
  playable publish snake-v2 ./output --production Playable1`,
	Args: cobra.ExactArgs(2),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&production, "production", "", "Production model name (also publishes SafeTensors)")
	publishCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the commands and uploads without running them")
	publishCmd.Flags().IntVar(&uploadRetries, "upload-retries", 2, "Retries for failed hub uploads")
}

func runPublish(cmd *cobra.Command, args []string) error {
	if !dryRun {
		if err := cfg.ValidateForPublish(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	opts := publishOptions(cfg, args[0], args[1])

	executor, hub := publishBackends(cfg, out)
	p, err := publish.New(opts, executor, hub, out)
	if err != nil {
		return err
	}

	// Each command carries its own timeout; only signals cancel the run.
	ctx, cancel := signalContext(0)
	defer cancel()

	logger.Info("Publishing adapter",
		zap.String("run_id", opts.RunID),
		zap.String("adapter", opts.Adapter),
		zap.String("production", opts.Production),
		zap.Bool("dry_run", opts.DryRun))

	res, err := p.Run(ctx)
	writeMetrics()
	if err != nil {
		return fmt.Errorf("publish %s: %w", opts.Adapter, err)
	}

	for _, w := range res.Warnings {
		logger.Warn("Publish warning", zap.String("warning", w))
	}
	logger.Info("Publish complete",
		zap.String("gguf", res.GGUFPath),
		zap.Int("uploads", len(res.Uploaded)))
	return nil
}

func publishOptions(c *config.Config, adapter, outputDir string) publish.Options {
	return publish.Options{
		Adapter:           adapter,
		OutputDir:         outputDir,
		Production:        production,
		BaseModel:         c.Publish.BaseModel,
		Quantization:      c.Publish.Quantization,
		Organization:      c.Hub.Organization,
		HubURL:            c.Hub.Endpoint,
		FirectlPath:       c.Publish.FirectlPath,
		LlamaCppDir:       resolvePath(c.Publish.LlamaCppDir),
		Python:            c.Publish.Python,
		SideFiles:         c.Publish.SideFiles,
		UploadConcurrency: c.Publish.UploadConcurrency,
		CommandTimeout:    c.Publish.GetCommandTimeout(),
		DryRun:            dryRun,
		RunID:             store.NewRunID(),
	}
}

// publishBackends wires the executor and hub client, or their dry-run
// stand-ins.
func publishBackends(c *config.Config, out io.Writer) (tactile.Executor, publish.Hub) {
	if dryRun {
		return tactile.NewDryRunExecutor(out), publish.DryRunHub{Out: out}
	}

	execCfg := tactile.DefaultExecutorConfig()
	execCfg.DefaultTimeout = c.Publish.GetCommandTimeout()
	execCfg.AllowedEnvironment = append(execCfg.AllowedEnvironment, c.Publish.PassEnv...)
	execCfg.Stream = os.Stdout
	executor := tactile.NewDirectExecutorWithConfig(execCfg)

	hub := publish.NewHubClient(publish.HubOptions{
		Endpoint: c.Hub.Endpoint,
		Token:    c.Hub.Token,
		CLI:      c.Hub.CLI,
		Timeout:  c.Hub.GetTimeout(),
	}, tactile.NewRetryExecutor(executor, uploadRetries))

	return executor, hub
}
