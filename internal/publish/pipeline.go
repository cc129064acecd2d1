// Package publish turns a fine-tuned LoRA adapter into published models:
// download, merge into the base model, convert to GGUF, quantize, and
// upload to the model hub.
package publish

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"playable/internal/logging"
	"playable/internal/metrics"
	"playable/internal/tactile"

	"golang.org/x/sync/errgroup"
)

//go:embed merge_adapter.py
var mergeScript []byte

// MergedDirName is the merged model directory under the output dir.
const MergedDirName = "merged_model"

const bannerWidth = 60

// Options configures one pipeline run.
type Options struct {
	Adapter    string
	OutputDir  string
	Production string

	BaseModel    string
	Quantization string
	Organization string
	HubURL       string

	FirectlPath string
	LlamaCppDir string
	Python      string

	// SideFiles are uploaded from the merged model next to the weights.
	SideFiles []string

	UploadConcurrency int
	CommandTimeout    time.Duration

	// DryRun prints the plan; the executor and hub should be dry-run too.
	DryRun bool

	RunID string
}

// Result records what a run produced.
type Result struct {
	AdapterPath string
	MergedPath  string
	F16Path     string
	GGUFPath    string

	GGUFRepo        string
	SafeTensorsRepo string

	// Uploaded lists "<repo>:<path in repo>" for every uploaded file.
	Uploaded []string
	Warnings []string
}

// Pipeline runs the publish steps in order; any step error aborts.
type Pipeline struct {
	opts   Options
	naming Naming
	exec   tactile.Executor
	hub    Hub
	out    io.Writer
	log    *logging.RunLogger

	mu sync.Mutex // guards out and Result during concurrent uploads
}

// New validates opts and builds a pipeline.
func New(opts Options, executor tactile.Executor, hub Hub, out io.Writer) (*Pipeline, error) {
	if opts.Adapter == "" {
		return nil, errors.New("adapter name is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}
	if opts.BaseModel == "" {
		opts.BaseModel = "Qwen/Qwen2.5-Coder-7B-Instruct"
	}
	if opts.Quantization == "" {
		opts.Quantization = "q4_k_m"
	}
	if opts.Organization == "" {
		opts.Organization = "playable"
	}
	if opts.HubURL == "" {
		opts.HubURL = "https://huggingface.co"
	}
	if opts.FirectlPath == "" {
		opts.FirectlPath = "firectl"
	}
	if opts.Python == "" {
		opts.Python = "python"
	}
	if opts.UploadConcurrency <= 0 {
		opts.UploadConcurrency = 1
	}
	if out == nil {
		out = io.Discard
	}

	return &Pipeline{
		opts: opts,
		naming: Naming{
			BaseModel:    opts.BaseModel,
			Adapter:      opts.Adapter,
			Production:   opts.Production,
			Quantization: opts.Quantization,
			Organization: opts.Organization,
		},
		exec: executor,
		hub:  hub,
		out:  out,
		log:  logging.WithRunID(logging.CategoryPublish, opts.RunID),
	}, nil
}

// Naming returns the artifact naming for this run.
func (p *Pipeline) Naming() Naming { return p.naming }

type step struct {
	name string
	run  func(ctx context.Context, res *Result) error
}

// Run executes every step.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	abs, err := filepath.Abs(p.opts.OutputDir)
	if err != nil {
		abs = p.opts.OutputDir
	}

	p.banner("FIREWORKS AI ADAPTER TO GGUF PIPELINE")
	p.printf("Adapter Name: %s\n", p.opts.Adapter)
	p.printf("Output Directory: %s\n", abs)
	if p.naming.IsProduction() {
		p.printf("Production Name: %s\n", p.opts.Production)
	}
	p.printf("%s\n", strings.Repeat("=", bannerWidth))

	if !p.opts.DryRun {
		if err := os.MkdirAll(p.opts.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	steps := []step{
		{"download", p.download},
		{"merge", p.merge},
		{"convert", p.convert},
		{"quantize", p.quantize},
		{"upload_gguf", p.uploadGGUF},
	}
	if p.naming.IsProduction() {
		steps = append(steps, step{"upload_safetensors", p.uploadSafeTensors})
	}

	res := &Result{GGUFRepo: p.naming.GGUFRepo()}
	for _, s := range steps {
		started := time.Now()
		p.log.WithField("step", s.name).Info("starting")
		err := s.run(ctx, res)
		metrics.ObserveStep(s.name, started, err)
		if err != nil {
			p.log.Error("step %s failed: %v", s.name, err)
			return res, fmt.Errorf("%s: %w", s.name, err)
		}
		logging.Publish("Step %s finished in %s", s.name, time.Since(started).Round(time.Millisecond))
	}

	p.banner("✓ ALL STEPS COMPLETED SUCCESSFULLY!")
	p.printf("Final GGUF model: %s\n", res.GGUFPath)
	if p.naming.IsProduction() {
		p.printf("GGUF repo: %s\n", res.GGUFRepo)
		p.printf("SafeTensors repo: %s\n", res.SafeTensorsRepo)
	}
	p.printf("%s\n", strings.Repeat("=", bannerWidth))
	return res, nil
}

func (p *Pipeline) download(ctx context.Context, res *Result) error {
	target := filepath.Join(p.opts.OutputDir, p.opts.Adapter)
	err := p.run(ctx, fmt.Sprintf("Downloading adapter '%s' from Fireworks AI", p.opts.Adapter),
		p.opts.FirectlPath, "download", "model", p.opts.Adapter, target)
	if err != nil {
		return err
	}

	// firectl nests the checkpoint a few directories down.
	if p.opts.DryRun {
		res.AdapterPath = target
	} else {
		dir, err := FindAdapterDir(target)
		if err != nil {
			return err
		}
		res.AdapterPath = dir
	}
	p.printf("Found adapter at: %s\n", res.AdapterPath)
	return nil
}

func (p *Pipeline) merge(ctx context.Context, res *Result) error {
	res.MergedPath = filepath.Join(p.opts.OutputDir, MergedDirName)

	script := filepath.Join(os.TempDir(), "merge_adapter.py")
	if !p.opts.DryRun {
		dir, err := os.MkdirTemp("", "playable-merge-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		script = filepath.Join(dir, "merge_adapter.py")
		if err := os.WriteFile(script, mergeScript, 0644); err != nil {
			return fmt.Errorf("failed to write merge helper: %w", err)
		}
	}

	return p.run(ctx, fmt.Sprintf("Merging adapter into base model: %s", p.opts.BaseModel),
		p.opts.Python, script,
		"--base-model", p.opts.BaseModel,
		"--adapter", res.AdapterPath,
		"--output", res.MergedPath)
}

func (p *Pipeline) convert(ctx context.Context, res *Result) error {
	script, err := FindConvertScript(p.opts.LlamaCppDir)
	if err != nil {
		if !p.opts.DryRun {
			return err
		}
		script = filepath.Join(p.opts.LlamaCppDir, convertScripts[0])
	}

	res.F16Path = filepath.Join(p.opts.OutputDir, p.naming.F16File())
	return p.run(ctx, "Converting merged model to GGUF F16 format",
		p.opts.Python, script, res.MergedPath, "--outfile", res.F16Path, "--outtype", "f16")
}

func (p *Pipeline) quantize(ctx context.Context, res *Result) error {
	bin, err := FindQuantizeBinary(p.opts.LlamaCppDir)
	if err != nil {
		if !p.opts.DryRun {
			return err
		}
		last := quantizeBinaries[len(quantizeBinaries)-1]
		bin = filepath.Join(append([]string{p.opts.LlamaCppDir}, last...)...)
	}

	res.GGUFPath = filepath.Join(p.opts.OutputDir, p.naming.QuantFile())
	return p.run(ctx, fmt.Sprintf("Quantizing to %s format", p.opts.Quantization),
		bin, res.F16Path, res.GGUFPath, p.opts.Quantization)
}

func (p *Pipeline) uploadGGUF(ctx context.Context, res *Result) error {
	repo := res.GGUFRepo
	p.banner("Creating/uploading to Hugging Face repository: "+repo)

	if err := p.hub.CreateRepo(ctx, repo); err != nil {
		return fmt.Errorf("error creating repository: %w", err)
	}
	p.printf("Repository created/verified: %s\n", repo)

	ggufName := filepath.Base(res.GGUFPath)
	if err := p.upload(ctx, res, "gguf", repo, res.GGUFPath, ggufName); err != nil {
		return err
	}

	card, err := GGUFCard(CardData{
		RepoName:     p.naming.GGUFRepoName(),
		RepoID:       repo,
		BaseModel:    p.opts.BaseModel,
		Adapter:      p.opts.Adapter,
		Quantization: p.opts.Quantization,
		GGUFFile:     ggufName,
	})
	if err != nil {
		return err
	}
	readme := filepath.Join(filepath.Dir(res.GGUFPath), "README.md")
	if err := p.writeFile(readme, card); err != nil {
		return err
	}
	if err := p.upload(ctx, res, "readme", repo, readme, "README.md"); err != nil {
		return err
	}

	p.banner("✓ Upload complete!")
	p.printf("Model available at: %s/%s\n", p.opts.HubURL, repo)
	p.printf("%s\n", strings.Repeat("=", bannerWidth))
	return nil
}

func (p *Pipeline) uploadSafeTensors(ctx context.Context, res *Result) error {
	repo := p.naming.SafeTensorsRepo()
	res.SafeTensorsRepo = repo
	p.banner("Creating/uploading safetensors to Hugging Face repository: "+repo)

	if err := p.hub.CreateRepo(ctx, repo); err != nil {
		return fmt.Errorf("error creating repository: %w", err)
	}
	p.printf("Repository created/verified: %s\n", repo)

	shards, err := filepath.Glob(filepath.Join(res.MergedPath, "*.safetensors"))
	if err != nil {
		return err
	}
	sort.Strings(shards)
	if len(shards) == 0 {
		if !p.opts.DryRun {
			p.warn(res, "No safetensors files found in %s", res.MergedPath)
			return nil
		}
		p.printf("[dry-run] upload %s/*.safetensors renamed to %s-*.safetensors\n", res.MergedPath, p.opts.Production)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.opts.UploadConcurrency)
	for _, shard := range shards {
		name := SafeTensorsName(filepath.Base(shard), p.opts.Production)
		eg.Go(func() error {
			if err := p.upload(egCtx, res, "safetensors", repo, shard, name); err != nil {
				return fmt.Errorf("error uploading %s: %w", filepath.Base(shard), err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, name := range p.opts.SideFiles {
		local := filepath.Join(res.MergedPath, name)
		if !p.opts.DryRun && !fileExists(local) {
			continue
		}
		if err := p.upload(ctx, res, "side", repo, local, name); err != nil {
			p.warn(res, "Error uploading %s: %v", name, err)
		}
	}

	card, err := SafeTensorsCard(CardData{
		RepoName:  p.opts.Production,
		RepoID:    repo,
		BaseModel: p.opts.BaseModel,
		Adapter:   p.opts.Adapter,
	})
	if err != nil {
		return err
	}
	readme := filepath.Join(res.MergedPath, "README_safetensors.md")
	if err := p.writeFile(readme, card); err != nil {
		p.warn(res, "Error uploading README: %v", err)
	} else if err := p.upload(ctx, res, "readme", repo, readme, "README.md"); err != nil {
		p.warn(res, "Error uploading README: %v", err)
	}

	p.banner("✓ SafeTensors upload complete!")
	p.printf("Model available at: %s/%s\n", p.opts.HubURL, repo)
	p.printf("%s\n", strings.Repeat("=", bannerWidth))
	return nil
}

// run executes one external command and fails on a non-zero exit.
func (p *Pipeline) run(ctx context.Context, description, binary string, args ...string) error {
	cmd := tactile.Command{
		Binary:      binary,
		Arguments:   args,
		Description: description,
	}
	if p.opts.CommandTimeout > 0 {
		cmd.Limits = &tactile.ResourceLimits{TimeoutMs: p.opts.CommandTimeout.Milliseconds()}
	}

	p.banner(description)
	p.printf("Running: %s\n", cmd.CommandString())

	if err := tactile.Check(p.exec.Execute(ctx, cmd)); err != nil {
		return fmt.Errorf("%s failed: %w", description, err)
	}
	return nil
}

func (p *Pipeline) upload(ctx context.Context, res *Result, kind, repo, local, pathInRepo string) error {
	err := p.hub.UploadFile(ctx, repo, local, pathInRepo)
	metrics.HubUploads.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		return err
	}

	p.mu.Lock()
	res.Uploaded = append(res.Uploaded, repo+":"+pathInRepo)
	p.mu.Unlock()
	p.printf("Successfully uploaded %s to %s\n", pathInRepo, repo)
	return nil
}

func (p *Pipeline) writeFile(path, content string) error {
	if p.opts.DryRun {
		p.printf("[dry-run] write %s\n", path)
		return nil
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func (p *Pipeline) warn(res *Result, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logging.PublishWarn("%s", msg)
	p.mu.Lock()
	res.Warnings = append(res.Warnings, msg)
	p.mu.Unlock()
	p.printf("Warning: %s\n", msg)
}

func (p *Pipeline) banner(title string) {
	rule := strings.Repeat("=", bannerWidth)
	p.printf("\n%s\n%s\n%s\n", rule, title, rule)
}

func (p *Pipeline) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}
