// Package metrics holds the prometheus collectors for dataset runs and
// publish pipelines. The CLI is short-lived, so metrics are exported by
// writing a node_exporter textfile rather than serving /metrics.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds only playable's collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Dataset metrics
	DatasetRecords = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playable_dataset_records",
			Help: "Records in the last generated dataset",
		},
		[]string{"game_type"},
	)

	DatasetLines = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playable_dataset_lines",
			Help: "Non-blank code lines in the last generated dataset",
		},
		[]string{"game_type"},
	)

	DatasetTokens = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playable_dataset_tokens",
			Help: "Tokens in the last generated dataset (0 when not counted)",
		},
		[]string{"game_type"},
	)

	DatasetErrors = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "playable_dataset_script_errors",
			Help: "Scripts that failed to route in the last run",
		},
	)

	GenerationSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "playable_dataset_generation_seconds",
			Help: "Wall time of the last generation run",
		},
	)

	LastGeneration = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "playable_dataset_last_generation_timestamp_seconds",
			Help: "Unix time the last generation run finished",
		},
	)

	// Publish metrics
	PublishStepDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playable_publish_step_duration_seconds",
			Help:    "Publish pipeline step duration",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"step"},
	)

	PublishStepFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playable_publish_step_failures_total",
			Help: "Publish pipeline step failures",
		},
		[]string{"step"},
	)

	HubUploads = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playable_hub_uploads_total",
			Help: "Files uploaded to the model hub",
		},
		[]string{"kind", "outcome"}, // kind: gguf|safetensors|side|readme
	)

	// Storage metrics
	BlobPushes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playable_blob_pushes_total",
			Help: "Dataset pushes to object storage",
		},
		[]string{"outcome"},
	)

	BlobPushBytes = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "playable_blob_push_bytes_total",
			Help: "Bytes pushed to object storage",
		},
	)
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// SetDatasetType records one game type's totals for the last run.
func SetDatasetType(gameType string, records, lines, tokens int) {
	DatasetRecords.WithLabelValues(gameType).Set(float64(records))
	DatasetLines.WithLabelValues(gameType).Set(float64(lines))
	DatasetTokens.WithLabelValues(gameType).Set(float64(tokens))
}

// ObserveGeneration records run-level dataset gauges.
func ObserveGeneration(scriptErrors int, elapsed time.Duration, finished time.Time) {
	DatasetErrors.Set(float64(scriptErrors))
	GenerationSeconds.Set(elapsed.Seconds())
	LastGeneration.Set(float64(finished.Unix()))
}

// ObserveStep records a publish step's duration, counting it as a
// failure when err is non-nil.
func ObserveStep(step string, started time.Time, err error) {
	PublishStepDuration.WithLabelValues(step).Observe(time.Since(started).Seconds())
	if err != nil {
		PublishStepFailures.WithLabelValues(step).Inc()
	}
}

// WriteTextfile writes every collector in Registry to path in the text
// exposition format, creating the directory if needed.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
