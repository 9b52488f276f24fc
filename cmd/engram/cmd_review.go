// Package main implements the engram command line interface.
// This file handles review records, quorum checks, and transition gates.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reviewWorkerID string
	reviewNotes    string
	reviewType     string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Record reviews and check quorums",
	Long: `Record reviews and check quorums.

Reviews accumulate per task and type; a quorum of distinct approving
reviewers satisfies the gate for the guarded transitions. A rejection
after an approval invalidates it.`,
}

var reviewRecordCmd = &cobra.Command{
	Use:   "record <task-id> <review-type> <result>",
	Short: "Record one review verdict",
	Args:  cobra.ExactArgs(3),
	RunE:  runReviewRecord,
}

var reviewListCmd = &cobra.Command{
	Use:   "list <task-id>",
	Short: "List a task's reviews",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewList,
}

var reviewCheckCmd = &cobra.Command{
	Use:   "check <task-id> <review-type>",
	Short: "Check whether a review type has quorum",
	Args:  cobra.ExactArgs(2),
	RunE:  runReviewCheck,
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Inspect transition gates",
}

var gateRequirementsCmd = &cobra.Command{
	Use:   "requirements <task-id> <phase>",
	Short: "Show what entering a phase requires",
	Args:  cobra.ExactArgs(2),
	RunE:  runGateRequirements,
}

var gateCheckCmd = &cobra.Command{
	Use:   "check <task-id> <phase>",
	Short: "Check whether a transition would pass its gate",
	Args:  cobra.ExactArgs(2),
	RunE:  runGateCheck,
}

func runReviewRecord(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"task_id":     args[0],
		"review_type": args[1],
		"result":      args[2],
	}
	if reviewWorkerID != "" {
		callArgs["worker_id"] = reviewWorkerID
	}
	if reviewNotes != "" {
		callArgs["notes"] = reviewNotes
	}
	env, err := call(cmd.Context(), "record_review", callArgs)
	if err != nil {
		return err
	}
	fmt.Printf("%s review recorded for %s\n", okStyle.Render("●"), args[0])
	if jsonOutput {
		return printJSON(env)
	}
	return nil
}

func runReviewList(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{"task_id": args[0]}
	if reviewType != "" {
		callArgs["review_type"] = reviewType
	}
	return callAndPrint(cmd.Context(), "list_reviews", callArgs)
}

func runReviewCheck(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "check_reviews", map[string]interface{}{
		"task_id":     args[0],
		"review_type": args[1],
	})
}

func runGateRequirements(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "gate_requirements", map[string]interface{}{
		"task_id": args[0],
		"to":      args[1],
	})
}

func runGateCheck(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "check_gate", map[string]interface{}{
		"task_id":    args[0],
		"transition": args[1],
	})
}

func init() {
	reviewRecordCmd.Flags().StringVar(&reviewWorkerID, "worker", "", "Reviewer identity; quorum counts distinct reviewers")
	reviewRecordCmd.Flags().StringVar(&reviewNotes, "notes", "", "Free-form review notes")

	reviewListCmd.Flags().StringVar(&reviewType, "type", "", "Only reviews of this type")

	reviewCmd.AddCommand(reviewRecordCmd, reviewListCmd, reviewCheckCmd)
	gateCmd.AddCommand(gateRequirementsCmd, gateCheckCmd)
	rootCmd.AddCommand(reviewCmd, gateCmd)
}
