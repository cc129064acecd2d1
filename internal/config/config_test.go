package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable applyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PLAYABLE_DATA_DIR", "PLAYABLE_OUTPUT", "PLAYABLE_WORKERS",
		"FIRECTL_PATH", "LLAMACPP_DIR", "PLAYABLE_PYTHON", "PLAYABLE_BASE_MODEL",
		"HF_TOKEN", "HF_ENDPOINT", "PLAYABLE_HF_ORG",
		"PLAYABLE_S3_BUCKET", "PLAYABLE_S3_REGION", "PLAYABLE_S3_ENDPOINT",
		"PLAYABLE_S3_ACCESS_KEY_ID", "PLAYABLE_S3_SECRET_ACCESS_KEY", "PLAYABLE_S3_PATH_STYLE",
		"PLAYABLE_METRICS_TEXTFILE", "PLAYABLE_DEBUG",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "playable", cfg.Name)
	assert.Equal(t, "data", cfg.Dataset.DataDir)
	assert.Equal(t, "output/dataset.jsonl", cfg.Dataset.OutputFile)
	assert.Equal(t, "Qwen/Qwen2.5-Coder-7B-Instruct", cfg.Publish.BaseModel)
	assert.Equal(t, "q4_k_m", cfg.Publish.Quantization)
	assert.Equal(t, "playable", cfg.Hub.Organization)
	assert.Contains(t, cfg.Publish.SideFiles, "tokenizer.json")
	assert.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Dataset.DataDir = "games"
	cfg.Publish.Quantization = "q8_0"
	cfg.Hub.Token = "must-not-persist"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "games", loaded.Dataset.DataDir)
	assert.Equal(t, "q8_0", loaded.Publish.Quantization)
	assert.Empty(t, loaded.Hub.Token, "secrets are never written to YAML")
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HF_TOKEN", "hf_env")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.Dataset.DataDir)
	assert.Equal(t, "hf_env", cfg.Hub.Token, "env overrides apply without a file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset: [not: a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAYABLE_DATA_DIR", "/srv/data")
	t.Setenv("PLAYABLE_WORKERS", "3")
	t.Setenv("LLAMACPP_DIR", "/opt/llama.cpp")
	t.Setenv("PLAYABLE_S3_BUCKET", "datasets")
	t.Setenv("PLAYABLE_S3_PATH_STYLE", "TRUE")
	t.Setenv("PLAYABLE_DEBUG", "1")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/srv/data", cfg.Dataset.DataDir)
	assert.Equal(t, 3, cfg.Dataset.Workers)
	assert.Equal(t, "/opt/llama.cpp", cfg.Publish.LlamaCppDir)
	assert.Equal(t, "datasets", cfg.Storage.Bucket)
	assert.True(t, cfg.Storage.PathStyle)
	assert.True(t, cfg.Logging.DebugMode)
}

func TestEnvOverrides_BadWorkersIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAYABLE_WORKERS", "many")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	assert.Equal(t, 0, cfg.Dataset.Workers)
	assert.Positive(t, cfg.Dataset.EffectiveWorkers())
}

func TestLoadWorkspace_ReadsDotEnv(t *testing.T) {
	clearEnv(t)
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".env"), []byte("HF_TOKEN=hf_dotenv\n"), 0644))
	// godotenv.Load never overrides variables that are already set, and
	// t.Setenv("") counts as set, so unset it for this test.
	require.NoError(t, os.Unsetenv("HF_TOKEN"))
	t.Cleanup(func() { os.Unsetenv("HF_TOKEN") })

	cfg, err := LoadWorkspace(ws)
	require.NoError(t, err)
	assert.Equal(t, "hf_dotenv", cfg.Hub.Token)
}

func TestValidate(t *testing.T) {
	t.Run("empty data dir", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Dataset.DataDir = ""
		assert.True(t, errors.Is(cfg.Validate(), ErrInvalidConfig))
	})

	t.Run("bad level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Level = "loud"
		assert.Error(t, cfg.Validate())
	})

	t.Run("publish needs token", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.ErrorIs(t, cfg.ValidateForPublish(), ErrInvalidConfig)
		cfg.Hub.Token = "hf_x"
		assert.NoError(t, cfg.ValidateForPublish())
	})

	t.Run("push needs bucket", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Error(t, cfg.ValidateForPush())
		cfg.Storage.Bucket = "b"
		assert.NoError(t, cfg.ValidateForPush())
	})
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2*time.Hour, cfg.Publish.GetCommandTimeout())
	assert.Equal(t, 60*time.Second, cfg.Hub.GetTimeout())

	cfg.Publish.CommandTimeout = "garbage"
	assert.Equal(t, 2*time.Hour, cfg.Publish.GetCommandTimeout())
}
