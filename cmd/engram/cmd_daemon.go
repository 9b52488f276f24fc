// Package main implements the engram command line interface.
// This file handles daemon process control: start, stop, status, restart,
// and the foreground serve loop the background process re-enters.
package main

import (
	"errors"
	"fmt"
	"time"

	"engram/internal/daemon"
	"engram/internal/rpc"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Control the engram background daemon",
	Long: `Control the engram background daemon.

Subcommands:
  start    - Spawn the daemon in the background
  stop     - Terminate the running daemon
  status   - Report whether the daemon is up and healthy
  restart  - Stop then start`,
	RunE: runDaemonStatus,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Spawn the daemon in the background",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Terminate the running daemon",
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is up and healthy",
	RunE:  runDaemonStatus,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop the daemon if running, then start it",
	RunE:  runDaemonRestart,
}

// serveCmd runs the daemon in the foreground. 'daemon start' execs the same
// binary with this subcommand and detaches it.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon in the foreground",
	Long: `Run the daemon in the foreground, serving RPC until interrupted.

'engram daemon start' uses this entry point internally; running it directly
is useful for debugging and for process supervisors.`,
	RunE: runServe,
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	pid, err := daemon.Spawn(cfg)
	if err != nil {
		return err
	}
	if !daemon.WaitHealthy(cfg, 5*time.Second) {
		return fmt.Errorf("daemon started with PID %d but did not answer /health; check %s", pid, cfg.LogPath())
	}
	fmt.Printf("%s engram daemon started (PID %d)\n", okStyle.Render("●"), pid)
	fmt.Println(mutedStyle.Render("   endpoint " + rpc.BaseURL(cfg)))
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	if err := daemon.Stop(cfg); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Println(warnStyle.Render("engram daemon is not running"))
			return nil
		}
		return err
	}
	fmt.Printf("%s engram daemon stopped\n", okStyle.Render("●"))
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	pid, running := daemon.Status(cfg)
	if !running {
		fmt.Printf("%s engram daemon is not running\n", warnStyle.Render("○"))
		fmt.Println(mutedStyle.Render("   start it with 'engram daemon start'"))
		return nil
	}

	h, err := client().Health(cmd.Context())
	if err != nil {
		fmt.Printf("%s engram daemon process %d is alive but not answering %s\n",
			warnStyle.Render("●"), pid, rpc.BaseURL(cfg))
		return nil
	}

	fmt.Printf("%s engram daemon %s is %s (PID %d)\n",
		okStyle.Render("●"), h.Version, h.Status, pid)
	fmt.Println(mutedStyle.Render("   endpoint " + rpc.BaseURL(cfg)))
	fmt.Println(mutedStyle.Render("   home     " + cfg.Home))

	if env, err := call(cmd.Context(), "get_stats", nil); err == nil && jsonOutput {
		return printJSON(env)
	}
	return nil
}

func runDaemonRestart(cmd *cobra.Command, args []string) error {
	if err := daemon.Stop(cfg); err != nil && !errors.Is(err, daemon.ErrNotRunning) {
		return err
	}
	return runDaemonStart(cmd, args)
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	return d.Run(cmd.Context())
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd, daemonRestartCmd)
	rootCmd.AddCommand(daemonCmd, serveCmd)
}
