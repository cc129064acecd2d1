package publish

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"playable/internal/tactile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTools stands in for firectl, python and llama.cpp, creating the
// files each real tool would leave behind.
type fakeTools struct {
	mu       sync.Mutex
	commands []tactile.Command
	noConfig bool
	failOn   string
}

func (f *fakeTools) Validate(tactile.Command) error { return nil }

func (f *fakeTools) Execute(_ context.Context, cmd tactile.Command) (*tactile.ExecutionResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	res := &tactile.ExecutionResult{Success: true, Command: &cmd}
	if f.failOn != "" && strings.Contains(cmd.CommandString(), f.failOn) {
		res.ExitCode = 1
		res.Stderr = "boom"
		return res, nil
	}

	args := cmd.Arguments
	switch {
	case cmd.Binary == "firectl":
		target := args[3]
		nested := filepath.Join(target, "accounts", "me", "models", "ad")
		if err := os.MkdirAll(nested, 0755); err != nil {
			return nil, err
		}
		name := AdapterConfigFile
		if f.noConfig {
			name = "weights.bin"
		}
		if err := os.WriteFile(filepath.Join(nested, name), []byte("{}"), 0644); err != nil {
			return nil, err
		}
	case strings.HasSuffix(args[0], "merge_adapter.py"):
		if _, err := os.Stat(args[0]); err != nil {
			return nil, err
		}
		out := args[len(args)-1]
		if err := os.MkdirAll(out, 0755); err != nil {
			return nil, err
		}
		for _, name := range []string{
			"model-00002-of-00002.safetensors",
			"model-00001-of-00002.safetensors",
			"config.json",
			"tokenizer.json",
		} {
			if err := os.WriteFile(filepath.Join(out, name), []byte("w"), 0644); err != nil {
				return nil, err
			}
		}
	case strings.HasSuffix(args[0], "convert_hf_to_gguf.py"):
		if err := os.WriteFile(args[3], []byte("f16"), 0644); err != nil {
			return nil, err
		}
	case strings.HasSuffix(cmd.Binary, "llama-quantize"):
		if err := os.WriteFile(args[1], []byte("q"), 0644); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (f *fakeTools) binaries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.commands {
		out = append(out, filepath.Base(c.Binary))
	}
	return out
}

// fakeHub records hub calls and fails uploads named in fail.
type fakeHub struct {
	mu      sync.Mutex
	created []string
	uploads map[string]string // "<repo>:<path>" -> local
	fail    map[string]bool   // path in repo
}

func newFakeHub() *fakeHub {
	return &fakeHub{uploads: map[string]string{}, fail: map[string]bool{}}
}

func (h *fakeHub) CreateRepo(_ context.Context, repoID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, repoID)
	return nil
}

func (h *fakeHub) UploadFile(_ context.Context, repoID, localPath, pathInRepo string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail[pathInRepo] {
		return errors.New("hub unavailable")
	}
	h.uploads[repoID+":"+pathInRepo] = localPath
	return nil
}

func newLlamaDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "convert_hf_to_gguf.py"))
	touch(t, filepath.Join(dir, "build", "bin", "llama-quantize"))
	return dir
}

func testOptions(t *testing.T) Options {
	return Options{
		Adapter:           "snake-v2",
		OutputDir:         filepath.Join(t.TempDir(), "out"),
		BaseModel:         "Qwen/Qwen2.5-Coder-7B-Instruct",
		Quantization:      "q4_k_m",
		Organization:      "playable",
		LlamaCppDir:       newLlamaDir(t),
		SideFiles:         []string{"config.json", "tokenizer.json", "generation_config.json"},
		UploadConcurrency: 2,
		RunID:             "test",
	}
}

func TestNew_RequiresAdapterAndOutput(t *testing.T) {
	_, err := New(Options{OutputDir: "x"}, &fakeTools{}, newFakeHub(), nil)
	assert.Error(t, err)
	_, err = New(Options{Adapter: "a"}, &fakeTools{}, newFakeHub(), nil)
	assert.Error(t, err)

	p, err := New(Options{Adapter: "a", OutputDir: "x"}, &fakeTools{}, newFakeHub(), nil)
	require.NoError(t, err)
	assert.Equal(t, "playable/Qwen2.5-Coder-7B-Instruct-a-GGUF", p.Naming().GGUFRepo())
}

func TestPipeline_Development(t *testing.T) {
	opts := testOptions(t)
	tools := &fakeTools{}
	hub := newFakeHub()
	var out bytes.Buffer

	p, err := New(opts, tools, hub, &out)
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"firectl", "python", "python", "llama-quantize"}, tools.binaries())
	assert.Equal(t, filepath.Join(opts.OutputDir, "snake-v2", "accounts", "me", "models", "ad"), res.AdapterPath)
	assert.Equal(t, filepath.Join(opts.OutputDir, MergedDirName), res.MergedPath)
	assert.Equal(t, filepath.Join(opts.OutputDir, "Qwen2.5-Coder-7B-Instruct-snake-v2-f16.gguf"), res.F16Path)
	assert.Equal(t, filepath.Join(opts.OutputDir, "Qwen2.5-Coder-7B-Instruct-snake-v2-q4_k_m.gguf"), res.GGUFPath)

	repo := "playable/Qwen2.5-Coder-7B-Instruct-snake-v2-GGUF"
	assert.Equal(t, []string{repo}, hub.created)
	assert.Equal(t, []string{
		repo + ":Qwen2.5-Coder-7B-Instruct-snake-v2-q4_k_m.gguf",
		repo + ":README.md",
	}, res.Uploaded)
	assert.Empty(t, res.SafeTensorsRepo)
	assert.Empty(t, res.Warnings)

	card, err := os.ReadFile(filepath.Join(opts.OutputDir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(card), "# Qwen2.5-Coder-7B-Instruct-snake-v2-GGUF")

	// merge step gets the located adapter and the merged output path
	merge := tools.commands[1]
	assert.Equal(t, []string{"--base-model", opts.BaseModel, "--adapter", res.AdapterPath, "--output", res.MergedPath}, merge.Arguments[1:])
	assert.Equal(t, []string{res.F16Path, res.GGUFPath, "q4_k_m"}, tools.commands[3].Arguments)

	text := out.String()
	assert.Contains(t, text, "FIREWORKS AI ADAPTER TO GGUF PIPELINE")
	assert.Contains(t, text, "Adapter Name: snake-v2")
	assert.Contains(t, text, "✓ ALL STEPS COMPLETED SUCCESSFULLY!")
	assert.NotContains(t, text, "SafeTensors repo:")
}

func TestPipeline_Production(t *testing.T) {
	opts := testOptions(t)
	opts.Production = "Playable1"
	hub := newFakeHub()
	var out bytes.Buffer

	p, err := New(opts, &fakeTools{}, hub, &out)
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"playable/Playable1-GGUF", "playable/Playable1"}, hub.created)
	assert.Equal(t, "playable/Playable1", res.SafeTensorsRepo)
	assert.Equal(t, filepath.Join(opts.OutputDir, "Playable1-q4_k_m.gguf"), res.GGUFPath)

	assert.ElementsMatch(t, []string{
		"playable/Playable1-GGUF:Playable1-q4_k_m.gguf",
		"playable/Playable1-GGUF:README.md",
		"playable/Playable1:Playable1-00001-of-00002.safetensors",
		"playable/Playable1:Playable1-00002-of-00002.safetensors",
		"playable/Playable1:config.json",
		"playable/Playable1:tokenizer.json",
		"playable/Playable1:README.md",
	}, res.Uploaded)
	assert.Equal(t, filepath.Join(res.MergedPath, "README_safetensors.md"), hub.uploads["playable/Playable1:README.md"])
	assert.Equal(t, filepath.Join(res.MergedPath, "model-00001-of-00002.safetensors"),
		hub.uploads["playable/Playable1:Playable1-00001-of-00002.safetensors"])
	assert.Empty(t, res.Warnings)
	assert.Contains(t, out.String(), "SafeTensors repo: playable/Playable1")
}

func TestPipeline_SideFileFailureWarns(t *testing.T) {
	opts := testOptions(t)
	opts.Production = "Playable1"
	hub := newFakeHub()
	hub.fail["tokenizer.json"] = true

	p, err := New(opts, &fakeTools{}, hub, nil)
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Error uploading tokenizer.json")
	assert.NotContains(t, res.Uploaded, "playable/Playable1:tokenizer.json")
	assert.Contains(t, res.Uploaded, "playable/Playable1:README.md")
}

func TestPipeline_ShardFailureAborts(t *testing.T) {
	opts := testOptions(t)
	opts.Production = "Playable1"
	hub := newFakeHub()
	hub.fail["Playable1-00002-of-00002.safetensors"] = true

	p, err := New(opts, &fakeTools{}, hub, nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "upload_safetensors: "), err.Error())
	assert.Contains(t, err.Error(), "model-00002-of-00002.safetensors")
}

func TestPipeline_GGUFUploadFailureAborts(t *testing.T) {
	opts := testOptions(t)
	hub := newFakeHub()
	hub.fail["README.md"] = true

	p, err := New(opts, &fakeTools{}, hub, nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "upload_gguf: "))
}

func TestPipeline_AdapterNotFound(t *testing.T) {
	opts := testOptions(t)
	tools := &fakeTools{noConfig: true}

	p, err := New(opts, tools, newFakeHub(), nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, ErrAdapterNotFound)
	assert.Contains(t, err.Error(), "weights.bin")
	assert.Equal(t, []string{"firectl"}, tools.binaries())
}

func TestPipeline_CommandFailureStops(t *testing.T) {
	opts := testOptions(t)
	tools := &fakeTools{failOn: "convert_hf_to_gguf.py"}
	hub := newFakeHub()

	p, err := New(opts, tools, hub, nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.ErrorIs(t, err, tactile.ErrCommandFailed)
	assert.True(t, strings.HasPrefix(err.Error(), "convert: "))
	assert.Contains(t, err.Error(), "Error output: boom")
	assert.Len(t, tools.binaries(), 3, "quantize never runs")
	assert.Empty(t, hub.created)
}

func TestPipeline_MissingLlamaCpp(t *testing.T) {
	opts := testOptions(t)
	opts.LlamaCppDir = filepath.Join(t.TempDir(), "nope")

	p, err := New(opts, &fakeTools{}, newFakeHub(), nil)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "convert: "))
}

func TestPipeline_DryRun(t *testing.T) {
	opts := testOptions(t)
	opts.Production = "Playable1"
	opts.DryRun = true
	opts.LlamaCppDir = "/opt/llama.cpp"

	var out bytes.Buffer
	exec := tactile.NewDryRunExecutor(&out)
	p, err := New(opts, exec, DryRunHub{Out: &out}, &out)
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	_, statErr := os.Stat(opts.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "dry run creates nothing")
	assert.Len(t, exec.Commands(), 4)

	text := out.String()
	assert.Contains(t, text, "[dry-run] firectl download model snake-v2 "+filepath.Join(opts.OutputDir, "snake-v2"))
	assert.Contains(t, text, "[dry-run] create repo playable/Playable1-GGUF (exist ok)")
	assert.Contains(t, text, "[dry-run] upload "+filepath.Join(opts.OutputDir, "Playable1-q4_k_m.gguf")+" -> playable/Playable1-GGUF:Playable1-q4_k_m.gguf")
	assert.Contains(t, text, "[dry-run] write "+filepath.Join(opts.OutputDir, "README.md"))
	assert.Contains(t, text, "[dry-run] upload "+filepath.Join(opts.OutputDir, MergedDirName, "config.json")+" -> playable/Playable1:config.json")
	assert.Contains(t, res.Uploaded, "playable/Playable1:README.md")
}
