// Package main implements the engram command line interface.
// This file handles shared counters, session handoffs, backups, and the
// administrative stats and reindex operations.
package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	handoffNoContinue   bool
	backupSkipConfirm   bool
	handoffListMaxItems int
)

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Shared named counters",
	Long: `Shared named counters.

Counters coordinate cross-session behavior: merge_lock serializes merges,
merges_since_e2e schedules end-to-end runs. Values never go below zero.`,
}

var counterIncCmd = &cobra.Command{
	Use:   "inc <name>",
	Short: "Increment a counter",
	Args:  cobra.ExactArgs(1),
	RunE:  runCounterInc,
}

var counterDecCmd = &cobra.Command{
	Use:   "dec <name>",
	Short: "Decrement a counter, not below zero",
	Args:  cobra.ExactArgs(1),
	RunE:  runCounterDec,
}

var counterGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Read a counter",
	Args:  cobra.ExactArgs(1),
	RunE:  runCounterGet,
}

var counterSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Set a counter",
	Args:  cobra.ExactArgs(2),
	RunE:  runCounterSet,
}

var counterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all counters",
	RunE:  runCounterList,
}

var handoffCmd = &cobra.Command{
	Use:   "handoff",
	Short: "Session handoff notes",
	Long: `Session handoff notes.

A handoff captures where a session left off so the next one can resume.
At most one pending handoff is surfaced at session start.`,
}

var handoffSaveCmd = &cobra.Command{
	Use:   "save <content>",
	Short: "Save a handoff note",
	Args:  cobra.ExactArgs(1),
	RunE:  runHandoffSave,
}

var handoffPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show the pending handoff, if any",
	RunE:  runHandoffPending,
}

var handoffResumeCmd = &cobra.Command{
	Use:   "resume <handoff-id>",
	Short: "Mark a handoff as resumed",
	Args:  cobra.ExactArgs(1),
	RunE:  runHandoffResume,
}

var handoffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List handoffs newest first",
	RunE:  runHandoffList,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot and restore the metadata store",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the metadata store",
	RunE:  runBackupCreate,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Replace the live metadata store with a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupRestore,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots newest first",
	RunE:  runBackupList,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daemon statistics",
	RunE:  runStats,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the axis collections from every resolved entry",
	RunE:  runReindex,
}

func runCounterInc(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "increment_counter", map[string]interface{}{"name": args[0]})
}

func runCounterDec(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "decrement_counter", map[string]interface{}{"name": args[0]})
}

func runCounterGet(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "get_counter", map[string]interface{}{"name": args[0]})
}

func runCounterSet(cmd *cobra.Command, args []string) error {
	value, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("value must be an integer: %q", args[1])
	}
	return callAndPrint(cmd.Context(), "set_counter", map[string]interface{}{
		"name":  args[0],
		"value": value,
	})
}

func runCounterList(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "list_counters", nil)
}

func runHandoffSave(cmd *cobra.Command, args []string) error {
	env, err := call(cmd.Context(), "save_session_handoff", map[string]interface{}{
		"content":            args[0],
		"needs_continuation": !handoffNoContinue,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s handoff %s saved\n", okStyle.Render("●"), envString(env, "id"))
	return nil
}

func runHandoffPending(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "get_pending_handoff", nil)
}

func runHandoffResume(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "mark_handoff_resumed", map[string]interface{}{"handoff_id": args[0]})
}

func runHandoffList(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "list_handoffs", map[string]interface{}{"limit": handoffListMaxItems})
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	env, err := call(cmd.Context(), "create_backup", nil)
	if err != nil {
		return err
	}
	fmt.Printf("%s snapshot written to %s\n", okStyle.Render("●"), envString(env, "path"))
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	if !backupSkipConfirm && !confirm(fmt.Sprintf("Replace the live metadata store with %s?", args[0])) {
		fmt.Println(mutedStyle.Render("aborted"))
		return nil
	}
	env, err := call(cmd.Context(), "restore_backup", map[string]interface{}{"path": args[0]})
	if err != nil {
		return err
	}
	fmt.Printf("%s restored from %s\n", okStyle.Render("●"), args[0])
	fmt.Println(warnStyle.Render("   " + envString(env, "hint")))
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "list_backups", nil)
}

func runStats(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "get_stats", nil)
}

func runReindex(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "reindex_vectors", nil)
}

func init() {
	handoffSaveCmd.Flags().BoolVar(&handoffNoContinue, "no-continuation", false, "Record the handoff without asking a later session to resume it")
	handoffListCmd.Flags().IntVar(&handoffListMaxItems, "limit", 0, "Max rows (0 = all)")
	backupRestoreCmd.Flags().BoolVar(&backupSkipConfirm, "yes", false, "Skip the confirmation prompt")

	counterCmd.AddCommand(counterIncCmd, counterDecCmd, counterGetCmd, counterSetCmd, counterListCmd)
	handoffCmd.AddCommand(handoffSaveCmd, handoffPendingCmd, handoffResumeCmd, handoffListCmd)
	backupCmd.AddCommand(backupCreateCmd, backupRestoreCmd, backupListCmd)
	rootCmd.AddCommand(counterCmd, handoffCmd, backupCmd, statsCmd, reindexCmd)
}
