package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(tempDir, Config{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot,
		CategoryDataset,
		CategoryStore,
		CategoryWatch,
		CategoryPublish,
		CategoryHub,
		CategoryBlob,
		CategoryTactile,
	}

	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("Category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("Test info message for %s", cat)
		logger.Debug("Test debug message for %s", cat)
		logger.Warn("Test warn message for %s", cat)
		logger.Error("Test error message for %s", cat)
	}

	Dataset("Convenience dataset log")
	Publish("Convenience publish log")
	Hub("Convenience hub log")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".playable", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), "_"+string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				if err != nil {
					t.Errorf("Failed to read log file for %s: %v", cat, err)
					continue
				}
				if !strings.Contains(string(content), "[ERROR] Test error message") {
					t.Errorf("Log file for %s missing error line: %q", cat, content)
				}
				break
			}
		}
		if !found {
			t.Errorf("No log file found for category: %s", cat)
		}
	}
}

// TestDebugModeDisabled tests that no logs are created when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(tempDir, Config{DebugMode: false}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	Dataset("should not be written")
	Get(CategoryPublish).Error("should not be written either")

	if _, err := os.Stat(filepath.Join(tempDir, ".playable", "logs")); !os.IsNotExist(err) {
		t.Errorf("logs directory should not exist in production mode, stat err=%v", err)
	}
}

func TestCategoryFilter(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	cfg := Config{
		DebugMode:  true,
		Categories: map[string]bool{"hub": false, "dataset": true},
	}
	if err := Initialize(tempDir, cfg); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	if IsCategoryEnabled(CategoryHub) {
		t.Error("hub should be disabled")
	}
	if !IsCategoryEnabled(CategoryDataset) {
		t.Error("dataset should be enabled")
	}
	if !IsCategoryEnabled(CategoryPublish) {
		t.Error("unlisted categories default to enabled")
	}
}

func TestLevelFiltering(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(tempDir, Config{DebugMode: true, Level: "warn"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	l := Get(CategoryDataset)
	l.Info("info is filtered")
	l.Warn("warn is kept")
	CloseAll()

	content := readCategoryLog(t, tempDir, CategoryDataset)
	if strings.Contains(content, "info is filtered") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(content, "warn is kept") {
		t.Error("warn line missing")
	}
}

func TestJSONFormat(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(tempDir, Config{DebugMode: true, Level: "info", JSONFormat: true}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}
	Get(CategoryStore).Info("run %d recorded", 7)
	CloseAll()

	content := readCategoryLog(t, tempDir, CategoryStore)
	line := strings.TrimSpace(content)
	idx := strings.Index(line, "{")
	if idx < 0 {
		t.Fatalf("no JSON object in %q", line)
	}
	var entry StructuredLogEntry
	if err := json.Unmarshal([]byte(line[idx:]), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry.Message != "run 7 recorded" || entry.Category != "store" || entry.Level != "info" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestRunLoggerAndTimer(t *testing.T) {
	tempDir := t.TempDir()
	t.Cleanup(CloseAll)

	if err := Initialize(tempDir, Config{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Failed to initialize logging: %v", err)
	}

	WithRunID(CategoryPublish, "abc123").WithField("step", "quantize").Info("starting")
	timer := StartTimer(CategoryPublish, "quantize")
	time.Sleep(time.Millisecond)
	if d := timer.StopWithThreshold(time.Hour); d <= 0 {
		t.Errorf("expected positive duration, got %v", d)
	}
	CloseAll()

	content := readCategoryLog(t, tempDir, CategoryPublish)
	if !strings.Contains(content, "[run:abc123] starting") {
		t.Errorf("missing run-scoped line: %q", content)
	}
	if !strings.Contains(content, "quantize completed in") {
		t.Errorf("missing timer line: %q", content)
	}
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	if err := Initialize("", Config{}); err == nil {
		t.Error("expected error for empty workspace")
	}
}

func readCategoryLog(t *testing.T, ws string, cat Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(ws, ".playable", "logs", date+"_"+string(cat)+".log"))
	if err != nil {
		t.Fatalf("read %s log: %v", cat, err)
	}
	return string(data)
}
