// Package main implements the engram command line interface.
// This file handles task lifecycle and worker registration.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	taskTitle       string
	taskType        string
	taskSpecID      string
	taskSpecialist  string
	taskNotes       string
	taskProjectPath string
	taskBlockedBy   []string
	taskPhase       string

	workerRole   string
	workerReason string
	workerStatus string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks and their phase machine",
	Long: `Manage tasks and their phase machine.

A task moves through backlog, planned, in_progress, review, and done (or
cancelled). Transitions are validated against the phase machine and the
review gates; blocked tasks refuse to enter in_progress.`,
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <task-id>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCreate,
}

var taskGetCmd = &cobra.Command{
	Use:   "get <task-id>",
	Short: "Fetch one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGet,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Replace a task's notes",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskTransitionCmd = &cobra.Command{
	Use:   "transition <task-id> <phase>",
	Short: "Move a task to a new phase",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskTransition,
}

var taskBlockCmd = &cobra.Command{
	Use:   "block <task-id>",
	Short: "Set the tasks this one waits on",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskBlock,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task and its workers",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Register and track task workers",
}

var workerRegisterCmd = &cobra.Command{
	Use:   "register <task-id>",
	Short: "Register a worker on a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkerRegister,
}

var workerStatusCmd = &cobra.Command{
	Use:   "status <worker-id> <status>",
	Short: "Update a worker's status",
	Args:  cobra.ExactArgs(2),
	RunE:  runWorkerStatus,
}

var workerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workers",
	RunE:  runWorkerList,
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"id":        args[0],
		"title":     taskTitle,
		"task_type": taskType,
	}
	if taskSpecID != "" {
		callArgs["spec_id"] = taskSpecID
	}
	if taskSpecialist != "" {
		callArgs["specialist"] = taskSpecialist
	}
	if taskNotes != "" {
		callArgs["notes"] = taskNotes
	}
	if taskProjectPath != "" {
		callArgs["project_path"] = taskProjectPath
	}
	if len(taskBlockedBy) > 0 {
		callArgs["blocked_by"] = taskBlockedBy
	}
	env, err := call(cmd.Context(), "create_task", callArgs)
	if err != nil {
		return err
	}
	fmt.Printf("%s task %s created\n", okStyle.Render("●"), args[0])
	if jsonOutput {
		return printJSON(env)
	}
	return nil
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "get_task", map[string]interface{}{"task_id": args[0]})
}

func runTaskList(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{}
	if taskPhase != "" {
		callArgs["phase"] = taskPhase
	}
	return callAndPrint(cmd.Context(), "list_tasks", callArgs)
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "update_task", map[string]interface{}{
		"task_id": args[0],
		"notes":   taskNotes,
	})
}

func runTaskTransition(cmd *cobra.Command, args []string) error {
	env, err := call(cmd.Context(), "transition_task", map[string]interface{}{
		"task_id": args[0],
		"to":      args[1],
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s task %s is now %s\n", okStyle.Render("●"), args[0], args[1])
	if jsonOutput {
		return printJSON(env)
	}
	return nil
}

func runTaskBlock(cmd *cobra.Command, args []string) error {
	blockers := make([]interface{}, len(taskBlockedBy))
	for i, b := range taskBlockedBy {
		blockers[i] = b
	}
	return callAndPrint(cmd.Context(), "set_task_blockers", map[string]interface{}{
		"task_id":    args[0],
		"blocked_by": blockers,
	})
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "delete_task", map[string]interface{}{"task_id": args[0]})
}

func runWorkerRegister(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"task_id": args[0],
		"role":    workerRole,
	}
	if workerReason != "" {
		callArgs["reason"] = workerReason
	}
	return callAndPrint(cmd.Context(), "register_worker", callArgs)
}

func runWorkerStatus(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"worker_id": args[0],
		"status":    args[1],
	}
	if workerReason != "" {
		callArgs["reason"] = workerReason
	}
	return callAndPrint(cmd.Context(), "update_worker_status", callArgs)
}

func runWorkerList(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{}
	if workerStatus != "" {
		callArgs["status"] = workerStatus
	}
	return callAndPrint(cmd.Context(), "list_workers", callArgs)
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskTitle, "title", "", "Short human title")
	taskCreateCmd.Flags().StringVar(&taskType, "type", "", "Workflow the task follows")
	taskCreateCmd.Flags().StringVar(&taskSpecID, "spec-id", "", "Spec document id")
	taskCreateCmd.Flags().StringVar(&taskSpecialist, "specialist", "", "Specialist role assigned to the task")
	taskCreateCmd.Flags().StringVar(&taskNotes, "notes", "", "Free-form notes")
	taskCreateCmd.Flags().StringVar(&taskProjectPath, "project-path", "", "Repository the task works against")
	taskCreateCmd.Flags().StringSliceVar(&taskBlockedBy, "blocked-by", nil, "Task ids this task waits on")
	_ = taskCreateCmd.MarkFlagRequired("title")
	_ = taskCreateCmd.MarkFlagRequired("type")

	taskListCmd.Flags().StringVar(&taskPhase, "phase", "", "Only tasks currently in this phase")

	taskUpdateCmd.Flags().StringVar(&taskNotes, "notes", "", "New notes; empty clears them")

	taskBlockCmd.Flags().StringSliceVar(&taskBlockedBy, "blocked-by", nil, "Blocking task ids; empty unblocks")

	workerRegisterCmd.Flags().StringVar(&workerRole, "role", "", "Worker role, e.g. implementer or reviewer")
	workerRegisterCmd.Flags().StringVar(&workerReason, "reason", "", "Why the worker was spawned")
	_ = workerRegisterCmd.MarkFlagRequired("role")

	workerStatusCmd.Flags().StringVar(&workerReason, "reason", "", "Why the status changed")

	workerListCmd.Flags().StringVar(&workerStatus, "status", "", "Only workers in this status")

	taskCmd.AddCommand(taskCreateCmd, taskGetCmd, taskListCmd, taskUpdateCmd, taskTransitionCmd, taskBlockCmd, taskDeleteCmd)
	workerCmd.AddCommand(workerRegisterCmd, workerStatusCmd, workerListCmd)
	rootCmd.AddCommand(taskCmd, workerCmd)
}
