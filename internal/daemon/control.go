package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"engram/internal/bus"
	"engram/internal/config"
	"engram/internal/logging"
	"engram/internal/rpc"
)

// ErrNotRunning reports a stop or status request with no live daemon.
var ErrNotRunning = errors.New("daemon is not running")

// Spawn starts the background server by re-executing the current binary with
// the serve command in its own session. Stdout and stderr append to the
// server log; the child's PID lands in the PID file immediately so status
// and stop can find it before the server finishes booting.
func Spawn(cfg *config.Config) (int, error) {
	if pid, running := bus.IsRunning(cfg.PIDPath()); running {
		return pid, fmt.Errorf("daemon already running with PID %d", pid)
	}
	if err := cfg.EnsureLayout(); err != nil {
		return 0, err
	}

	bin, err := os.Executable()
	if err != nil {
		bin = os.Args[0]
	}
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open server log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(bin, "serve")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Dir = cfg.Home
	cmd.Env = append(os.Environ(), "ENGRAM_HOME="+cfg.Home)
	detachProcess(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	if err := bus.WritePIDFile(cfg.PIDPath(), pid); err != nil {
		return pid, fmt.Errorf("write PID file: %w", err)
	}
	// The child outlives us; reap it here only if it dies before detaching.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

// WaitHealthy polls the health endpoint until the daemon answers or the
// timeout runs out.
func WaitHealthy(cfg *config.Config, timeout time.Duration) bool {
	client := rpc.New(rpc.BaseURL(cfg), time.Second)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, err := client.Health(ctx)
		cancel()
		if err == nil {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// Stop signals the daemon with SIGTERM, waits out the shutdown grace, then
// falls back to SIGKILL. Every path that ends with the process gone also
// removes the PID file.
func Stop(cfg *config.Config) error {
	pid, running := bus.IsRunning(cfg.PIDPath())
	if !running {
		// A stale file with a dead PID should not survive a stop request.
		_ = bus.RemovePIDFile(cfg.PIDPath())
		return ErrNotRunning
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find PID %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return bus.RemovePIDFile(cfg.PIDPath())
		}
		return fmt.Errorf("signal PID %d: %w", pid, err)
	}

	deadline := time.Now().Add(cfg.GetShutdownGrace())
	for time.Now().Before(deadline) {
		if !bus.ProcessAlive(pid) {
			return bus.RemovePIDFile(cfg.PIDPath())
		}
		time.Sleep(100 * time.Millisecond)
	}

	logging.Daemon("PID %d ignored SIGTERM for %s, killing", pid, cfg.GetShutdownGrace())
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill PID %d: %w", pid, err)
	}
	return bus.RemovePIDFile(cfg.PIDPath())
}

// Status reports the recorded PID and whether that process is alive.
func Status(cfg *config.Config) (int, bool) {
	return bus.IsRunning(cfg.PIDPath())
}
