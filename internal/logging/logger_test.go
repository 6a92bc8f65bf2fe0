package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// resetState clears package globals between tests.
func resetState() {
	CloseAll()
	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()

	configMu.Lock()
	config = loggingConfig{}
	configMu.Unlock()

	logsDir = ""
	workspace = ""
	logLevel = LevelInfo
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, ".wisebot"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".wisebot", "config.json"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestInitializeProductionMode(t *testing.T) {
	defer resetState()
	resetState()

	dir := t.TempDir()
	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsDebugMode() {
		t.Error("debug mode should be off without config")
	}

	// No logs directory in production mode.
	if _, err := os.Stat(filepath.Join(dir, ".wisebot", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not be created in production mode")
	}

	// Logging calls are silent no-ops.
	Decider("this goes nowhere: %d", 42)
}

func TestInitializeDebugMode(t *testing.T) {
	defer resetState()
	resetState()

	dir := t.TempDir()
	writeConfig(t, dir, `{"logging": {"debug_mode": true, "level": "debug"}}`)

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("debug mode should be on")
	}

	Fetcher("fetched %d sources", 3)
	FetcherDebug("detail line")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, ".wisebot", "logs", date+"_fetcher.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("fetcher log missing: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "fetched 3 sources") {
		t.Errorf("log missing info line:\n%s", content)
	}
	if !strings.Contains(content, "detail line") {
		t.Errorf("log missing debug line:\n%s", content)
	}
}

func TestCategoryFiltering(t *testing.T) {
	defer resetState()
	resetState()

	dir := t.TempDir()
	writeConfig(t, dir, `{"logging": {"debug_mode": true, "categories": {"ranker": false}}}`)

	if err := Initialize(dir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if IsCategoryEnabled(CategoryRanker) {
		t.Error("ranker category should be disabled")
	}
	if !IsCategoryEnabled(CategoryFetcher) {
		t.Error("unlisted categories default to enabled")
	}

	Ranker("should not be written")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(dir, ".wisebot", "logs", date+"_ranker.log")); !os.IsNotExist(err) {
		t.Error("disabled category produced a log file")
	}
}

func TestTimer(t *testing.T) {
	defer resetState()
	resetState()

	timer := StartTimer(CategoryDecider, "test-op")
	time.Sleep(5 * time.Millisecond)
	elapsed := timer.Stop()
	if elapsed < 5*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 5ms", elapsed)
	}
}
