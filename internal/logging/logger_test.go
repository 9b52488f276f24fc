package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetLogging() {
	CloseAll()
	CloseAudit()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	homeDir = ""
	config = loggingConfig{}
	configLoaded = false
}

func writeConfig(t *testing.T, home, content string) {
	t.Helper()
	if err := os.MkdirAll(home, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestAllCategoriesLog(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, `
logging:
  debug_mode: true
  level: debug
`)

	resetLogging()
	if err := Initialize(home); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer resetLogging()

	if !IsDebugMode() {
		t.Fatal("expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot, CategoryStore, CategoryVector, CategoryEmbedding,
		CategoryCluster, CategoryCollector, CategorySearch, CategoryAssembler,
		CategoryWorktree, CategoryReview, CategoryDispatch, CategoryHooks,
		CategoryDaemon, CategoryConfig,
	}
	for _, cat := range categories {
		if !IsCategoryEnabled(cat) {
			t.Errorf("category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("info message for %s", cat)
		logger.Debug("debug message for %s", cat)
		logger.Warn("warn message for %s", cat)
		logger.Error("error message for %s", cat)
	}

	Store("convenience store log")
	Vector("convenience vector log")
	Cluster("convenience cluster log")
	Dispatch("convenience dispatch log")
	Hooks("convenience hooks log")

	for _, cat := range categories {
		path := filepath.Join(home, "logs", string(cat)+".log")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("log file missing for %s: %v", cat, err)
			continue
		}
		if !strings.Contains(string(data), "message for "+string(cat)) {
			t.Errorf("log file for %s missing expected content", cat)
		}
	}
}

func TestProductionModeIsSilent(t *testing.T) {
	home := t.TempDir()
	// No config file at all: production mode.
	resetLogging()
	if err := Initialize(home); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer resetLogging()

	if IsDebugMode() {
		t.Fatal("expected debug mode to be disabled without config")
	}

	Store("should not be written")
	Get(CategoryDispatch).Error("should not be written either")

	if _, err := os.Stat(filepath.Join(home, "logs")); !os.IsNotExist(err) {
		t.Error("logs directory should not exist in production mode")
	}
}

func TestCategoryFilter(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, `
logging:
  debug_mode: true
  level: info
  categories:
    store: true
    vector: false
`)

	resetLogging()
	if err := Initialize(home); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer resetLogging()

	if !IsCategoryEnabled(CategoryStore) {
		t.Error("store should be enabled")
	}
	if IsCategoryEnabled(CategoryVector) {
		t.Error("vector should be disabled")
	}
	// Unlisted categories default to enabled.
	if !IsCategoryEnabled(CategoryDispatch) {
		t.Error("dispatch should default to enabled")
	}
}

func TestLogLevelGate(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, `
logging:
  debug_mode: true
  level: warn
`)

	resetLogging()
	if err := Initialize(home); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer resetLogging()

	l := Get(CategoryStore)
	l.Debug("debug suppressed")
	l.Info("info suppressed")
	l.Warn("warn visible")
	l.Error("error visible")

	data, err := os.ReadFile(filepath.Join(home, "logs", "store.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "suppressed") {
		t.Errorf("suppressed lines leaked into log:\n%s", s)
	}
	if !strings.Contains(s, "warn visible") || !strings.Contains(s, "error visible") {
		t.Errorf("warn/error lines missing:\n%s", s)
	}
}

func TestAuditTrail(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, `
logging:
  debug_mode: true
  level: debug
`)

	resetLogging()
	if err := Initialize(home); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer resetLogging()

	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit: %v", err)
	}
	Audit().ToolInvoke("req-1", "ping")
	Audit().ToolComplete("req-1", "ping", 0)
	AuditWithSession("sess-9").ToolError("req-2", "start_ghap", "validation_error", 0)
	CloseAudit()

	data, err := os.ReadFile(filepath.Join(home, "logs", "audit.ndjson"))
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("audit lines = %d, want 3", len(lines))
	}
	if !strings.Contains(lines[2], `"session":"sess-9"`) {
		t.Errorf("session scope missing: %s", lines[2])
	}
	if !strings.Contains(lines[2], `"error":"validation_error"`) {
		t.Errorf("error kind missing: %s", lines[2])
	}
}

func TestTimer(t *testing.T) {
	home := t.TempDir()
	writeConfig(t, home, `
logging:
  debug_mode: true
  level: debug
`)

	resetLogging()
	if err := Initialize(home); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer resetLogging()

	timer := StartTimer(CategoryStore, "TestOp")
	if d := timer.Stop(); d < 0 {
		t.Errorf("timer duration negative: %v", d)
	}

	data, err := os.ReadFile(filepath.Join(home, "logs", "store.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "TestOp completed in") {
		t.Errorf("timer line missing:\n%s", string(data))
	}
}
