package config

import "runtime"

// DatasetConfig configures dataset generation.
type DatasetConfig struct {
	DataDir    string `yaml:"data_dir"`
	OutputFile string `yaml:"output_file"`

	// Workers bounds concurrent script routing. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	// CountTokens adds a tiktoken column to the statistics table.
	CountTokens bool   `yaml:"count_tokens"`
	Encoding    string `yaml:"encoding"`

	// ManifestPath is the SQLite run manifest; empty disables it.
	ManifestPath string `yaml:"manifest_path"`

	// WatchDebounce is the quiet period before watch mode regenerates.
	WatchDebounce string `yaml:"watch_debounce"`
}

func defaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		DataDir:       "data",
		OutputFile:    "output/dataset.jsonl",
		Encoding:      "cl100k_base",
		ManifestPath:  DirName + "/manifest.db",
		WatchDebounce: "500ms",
	}
}

// EffectiveWorkers resolves Workers to a positive count.
func (d DatasetConfig) EffectiveWorkers() int {
	if d.Workers > 0 {
		return d.Workers
	}
	return runtime.GOMAXPROCS(0)
}
