package config

import "time"

// PublishConfig configures the adapter → GGUF → Hub pipeline.
type PublishConfig struct {
	// FirectlPath is the Fireworks CLI; a bare name is resolved on PATH.
	FirectlPath string `yaml:"firectl_path"`

	// LlamaCppDir is a llama.cpp checkout with a built llama-quantize.
	LlamaCppDir string `yaml:"llamacpp_dir"`

	// Python runs the merge helper and the GGUF conversion script.
	Python string `yaml:"python"`

	BaseModel    string `yaml:"base_model"`
	Quantization string `yaml:"quantization"`

	// CommandTimeout bounds each external command (merge and convert are slow).
	CommandTimeout string `yaml:"command_timeout"`

	// UploadConcurrency bounds parallel SafeTensors shard uploads.
	UploadConcurrency int `yaml:"upload_concurrency"`

	// SideFiles are uploaded next to the SafeTensors shards when present.
	SideFiles []string `yaml:"side_files"`

	// PassEnv lists environment variables forwarded to child processes.
	PassEnv []string `yaml:"pass_env"`
}

func defaultPublishConfig() PublishConfig {
	return PublishConfig{
		FirectlPath:       "firectl",
		LlamaCppDir:       "llama.cpp",
		Python:            "python",
		BaseModel:         "Qwen/Qwen2.5-Coder-7B-Instruct",
		Quantization:      "q4_k_m",
		CommandTimeout:    "2h",
		UploadConcurrency: 2,
		SideFiles: []string{
			"config.json",
			"generation_config.json",
			"tokenizer.json",
			"tokenizer_config.json",
			"merges.txt",
			"vocab.json",
			"special_tokens_map.json",
		},
		PassEnv: []string{
			"PATH", "HOME", "USERPROFILE", "SYSTEMROOT", "TEMP", "TMP",
			"HF_TOKEN", "HF_HOME", "HF_ENDPOINT", "FIREWORKS_API_KEY",
			"PYTHONPATH", "VIRTUAL_ENV", "CUDA_VISIBLE_DEVICES",
		},
	}
}

// GetCommandTimeout returns the per-command timeout as a duration.
func (p PublishConfig) GetCommandTimeout() time.Duration {
	return parseDuration(p.CommandTimeout, 2*time.Hour)
}

// HubConfig configures the Hugging Face Hub client.
type HubConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Organization string `yaml:"organization"`
	Token        string `yaml:"-"`

	// CLI is the huggingface_hub command used for file uploads.
	CLI     string `yaml:"cli"`
	Timeout string `yaml:"timeout"`
}

// GetTimeout returns the REST call timeout.
func (h HubConfig) GetTimeout() time.Duration {
	return parseDuration(h.Timeout, 60*time.Second)
}

// StorageConfig configures the S3 dataset push.
type StorageConfig struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // optional, for MinIO and other S3-compatible stores
	Prefix   string `yaml:"prefix"`

	PathStyle bool `yaml:"path_style"`

	// Static credentials; empty falls back to the default AWS chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"-"`
}
