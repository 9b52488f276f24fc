package daemon

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"engram/internal/bus"
	"engram/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig(t.TempDir())
	cfg.Embedding.Provider = config.ProviderMock
	cfg.Embedding.Dimensions = 32
	cfg.Daemon.ShutdownGraceSeconds = 2.0
	return cfg
}

func TestStatusWithoutPIDFile(t *testing.T) {
	cfg := testConfig(t)
	if pid, running := Status(cfg); running || pid != 0 {
		t.Errorf("Status = (%d, %v), want (0, false)", pid, running)
	}
}

func TestStatusSeesLiveProcess(t *testing.T) {
	cfg := testConfig(t)
	if err := bus.WritePIDFile(cfg.PIDPath(), os.Getpid()); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	pid, running := Status(cfg)
	if !running || pid != os.Getpid() {
		t.Errorf("Status = (%d, %v), want (%d, true)", pid, running, os.Getpid())
	}
}

func TestStopWithoutDaemonClearsStaleFile(t *testing.T) {
	cfg := testConfig(t)
	// A PID far beyond pid_max cannot belong to a live process.
	if err := bus.WritePIDFile(cfg.PIDPath(), 1<<30); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}

	if err := Stop(cfg); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop = %v, want ErrNotRunning", err)
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Errorf("stale PID file survived: %v", err)
	}
}

func TestStopTerminatesProcess(t *testing.T) {
	cfg := testConfig(t)
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot spawn sleep: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	// Reap promptly so the child never lingers as a zombie, which would
	// still answer signal 0.
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	if err := bus.WritePIDFile(cfg.PIDPath(), cmd.Process.Pid); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	if err := Stop(cfg); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after Stop")
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Error("PID file survived Stop")
	}
}

func TestSpawnRefusesWhenRunning(t *testing.T) {
	cfg := testConfig(t)
	if err := bus.WritePIDFile(cfg.PIDPath(), os.Getpid()); err != nil {
		t.Fatalf("WritePIDFile: %v", err)
	}
	if _, err := Spawn(cfg); err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("Spawn = %v, want already-running error", err)
	}
}

func TestConfigWatcherTriggersReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Add(dir); err != nil {
		t.Fatalf("watch %s: %v", dir, err)
	}

	reloaded := make(chan struct{}, 1)
	cw := &configWatcher{
		watcher:  w,
		path:     filepath.Clean(path),
		debounce: 50 * time.Millisecond,
		reload: func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		},
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go cw.run()
	t.Cleanup(cw.Close)

	if err := os.WriteFile(path, []byte("logging:\n  debug_mode: true\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatal("config write never triggered a reload")
	}

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write other file: %v", err)
	}
	select {
	case <-reloaded:
		t.Error("unrelated file triggered a reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDaemonServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.Port = 38537

	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	if !WaitHealthy(cfg, 5*time.Second) {
		cancel()
		t.Fatal("daemon never became healthy")
	}
	if pid, running := Status(cfg); !running || pid != os.Getpid() {
		t.Errorf("Status = (%d, %v) while serving, want this process", pid, running)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Error("PID file survived shutdown")
	}
}
