package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DirName is the per-workspace state directory.
const DirName = ".playable"

// Config holds all playable configuration.
type Config struct {
	Name string `yaml:"name"`

	// Dataset generation
	Dataset DatasetConfig `yaml:"dataset"`

	// Adapter publishing pipeline
	Publish PublishConfig `yaml:"publish"`

	// Hugging Face Hub
	Hub HubConfig `yaml:"hub"`

	// S3 dataset push
	Storage StorageConfig `yaml:"storage"`

	// Prometheus textfile export
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// MetricsConfig configures the prometheus textfile export.
type MetricsConfig struct {
	// TextfilePath is written after each run when non-empty
	// (node_exporter textfile collector format).
	TextfilePath string `yaml:"textfile_path"`
}

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "playable",
		Dataset: defaultDatasetConfig(),
		Publish: defaultPublishConfig(),
		Hub: HubConfig{
			Endpoint:     "https://huggingface.co",
			Organization: "playable",
			CLI:          "huggingface-cli",
			Timeout:      "60s",
		},
		Storage: StorageConfig{
			Region: "us-east-1",
			Prefix: "datasets",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, DirName, "config.yaml")
}

// LoadWorkspace loads <workspace>/.env (if present) into the process
// environment and then the workspace config file.
func LoadWorkspace(workspace string) (*Config, error) {
	envPath := filepath.Join(workspace, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}
	return Load(Path(workspace))
}

// Load loads configuration from a YAML file.
// A missing file yields defaults (with environment overrides applied).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PLAYABLE_DATA_DIR"); v != "" {
		c.Dataset.DataDir = v
	}
	if v := os.Getenv("PLAYABLE_OUTPUT"); v != "" {
		c.Dataset.OutputFile = v
	}
	if v := os.Getenv("PLAYABLE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dataset.Workers = n
		}
	}

	if v := os.Getenv("FIRECTL_PATH"); v != "" {
		c.Publish.FirectlPath = v
	}
	if v := os.Getenv("LLAMACPP_DIR"); v != "" {
		c.Publish.LlamaCppDir = v
	}
	if v := os.Getenv("PLAYABLE_PYTHON"); v != "" {
		c.Publish.Python = v
	}
	if v := os.Getenv("PLAYABLE_BASE_MODEL"); v != "" {
		c.Publish.BaseModel = v
	}

	// HF_TOKEN is the name huggingface_hub itself reads.
	if v := os.Getenv("HF_TOKEN"); v != "" {
		c.Hub.Token = v
	}
	if v := os.Getenv("HF_ENDPOINT"); v != "" {
		c.Hub.Endpoint = v
	}
	if v := os.Getenv("PLAYABLE_HF_ORG"); v != "" {
		c.Hub.Organization = v
	}

	if v := os.Getenv("PLAYABLE_S3_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("PLAYABLE_S3_REGION"); v != "" {
		c.Storage.Region = v
	}
	if v := os.Getenv("PLAYABLE_S3_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("PLAYABLE_S3_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv("PLAYABLE_S3_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretAccessKey = v
	}
	if v := os.Getenv("PLAYABLE_S3_PATH_STYLE"); v != "" {
		c.Storage.PathStyle = strings.EqualFold(v, "true")
	}

	if v := os.Getenv("PLAYABLE_METRICS_TEXTFILE"); v != "" {
		c.Metrics.TextfilePath = v
	}
	if v := os.Getenv("PLAYABLE_DEBUG"); v != "" {
		c.Logging.DebugMode = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks the settings every command relies on.
// Command-specific requirements (hub token, bucket) are checked by
// ValidateForPublish and ValidateForPush.
func (c *Config) Validate() error {
	if c.Dataset.DataDir == "" {
		return fmt.Errorf("%w: dataset.data_dir is empty", ErrInvalidConfig)
	}
	if c.Dataset.OutputFile == "" {
		return fmt.Errorf("%w: dataset.output_file is empty", ErrInvalidConfig)
	}
	if c.Dataset.Workers < 0 {
		return fmt.Errorf("%w: dataset.workers must be >= 0, got %d", ErrInvalidConfig, c.Dataset.Workers)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

// ValidateForPublish checks what the publish pipeline needs.
func (c *Config) ValidateForPublish() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Publish.BaseModel == "" {
		return fmt.Errorf("%w: publish.base_model is empty", ErrInvalidConfig)
	}
	if c.Publish.Quantization == "" {
		return fmt.Errorf("%w: publish.quantization is empty", ErrInvalidConfig)
	}
	if c.Hub.Organization == "" {
		return fmt.Errorf("%w: hub.organization is empty", ErrInvalidConfig)
	}
	if c.Hub.Token == "" {
		return fmt.Errorf("%w: Hugging Face token not configured (set HF_TOKEN)", ErrInvalidConfig)
	}
	return nil
}

// ValidateForPush checks what the S3 dataset push needs.
func (c *Config) ValidateForPush() error {
	if c.Storage.Bucket == "" {
		return fmt.Errorf("%w: storage.bucket is empty (set PLAYABLE_S3_BUCKET)", ErrInvalidConfig)
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
