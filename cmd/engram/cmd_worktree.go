// Package main implements the engram command line interface.
// This file handles git worktree orchestration for parallel task work.
package main

import (
	"github.com/spf13/cobra"
)

var (
	worktreeRepoDir       string
	worktreeForce         bool
	worktreeCheckOverlaps bool
	worktreeSkipSync      bool
	worktreeFix           bool
	worktreeDryRun        bool
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Manage per-task git worktrees",
	Long: `Manage per-task git worktrees.

Each task gets an isolated worktree on its own branch. Merging squashes the
branch back onto the default branch, honoring the merge_lock counter; health
reconciles git state against task state.`,
}

var worktreeCreateCmd = &cobra.Command{
	Use:   "create <task-id>",
	Short: "Create a worktree and branch for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreeCreate,
}

var worktreeMergeCmd = &cobra.Command{
	Use:   "merge <task-id>",
	Short: "Squash-merge a task's branch back",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreeMerge,
}

var worktreeRemoveCmd = &cobra.Command{
	Use:   "remove <task-id>",
	Short: "Remove a task's worktree and branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreeRemove,
}

var worktreeConflictsCmd = &cobra.Command{
	Use:   "conflicts <task-id>",
	Short: "Preview merge conflicts for a task's branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreeConflicts,
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List worktrees with their task state",
	RunE:  runWorktreeList,
}

var worktreeHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Reconcile git worktrees against task state",
	RunE:  runWorktreeHealth,
}

func runWorktreeCreate(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{"task_id": args[0]}
	if worktreeRepoDir != "" {
		callArgs["repo_dir"] = worktreeRepoDir
	}
	if worktreeForce {
		callArgs["force"] = true
	}
	if worktreeCheckOverlaps {
		callArgs["check_overlaps"] = true
	}
	return callAndPrint(cmd.Context(), "create_worktree", callArgs)
}

func runWorktreeMerge(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{"task_id": args[0]}
	if worktreeSkipSync {
		callArgs["skip_sync"] = true
	}
	if worktreeForce {
		callArgs["force"] = true
	}
	return callAndPrint(cmd.Context(), "merge_worktree", callArgs)
}

func runWorktreeRemove(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "remove_worktree", map[string]interface{}{"task_id": args[0]})
}

func runWorktreeConflicts(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "check_conflicts", map[string]interface{}{"task_id": args[0]})
}

func runWorktreeList(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{}
	if worktreeRepoDir != "" {
		callArgs["repo_dir"] = worktreeRepoDir
	}
	return callAndPrint(cmd.Context(), "list_worktrees", callArgs)
}

func runWorktreeHealth(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{}
	if worktreeRepoDir != "" {
		callArgs["repo_dir"] = worktreeRepoDir
	}
	if worktreeFix {
		callArgs["fix"] = true
	}
	if worktreeDryRun {
		callArgs["dry_run"] = true
	}
	return callAndPrint(cmd.Context(), "worktree_health", callArgs)
}

func init() {
	worktreeCreateCmd.Flags().StringVar(&worktreeRepoDir, "repo-dir", "", "Any directory inside the target repository")
	worktreeCreateCmd.Flags().BoolVar(&worktreeForce, "force", false, "Skip the overlap check")
	worktreeCreateCmd.Flags().BoolVar(&worktreeCheckOverlaps, "check-overlaps", false, "Fail instead of warning on overlapping work")

	worktreeMergeCmd.Flags().BoolVar(&worktreeSkipSync, "skip-sync", false, "Skip the post-merge dependency sync")
	worktreeMergeCmd.Flags().BoolVar(&worktreeForce, "force", false, "Merge even while the merge lock is held")

	worktreeListCmd.Flags().StringVar(&worktreeRepoDir, "repo-dir", "", "Any directory inside the repository")

	worktreeHealthCmd.Flags().StringVar(&worktreeRepoDir, "repo-dir", "", "Any directory inside the repository")
	worktreeHealthCmd.Flags().BoolVar(&worktreeFix, "fix", false, "Remove orphaned and merged-done worktrees")
	worktreeHealthCmd.Flags().BoolVar(&worktreeDryRun, "dry-run", false, "Report what fix would do without touching anything")

	worktreeCmd.AddCommand(worktreeCreateCmd, worktreeMergeCmd, worktreeRemoveCmd, worktreeConflictsCmd, worktreeListCmd, worktreeHealthCmd)
	rootCmd.AddCommand(worktreeCmd)
}
