// Package main implements the engram command line interface.
// This file handles the GHAP lifecycle: starting, steering, and resolving
// hypothesis entries from the shell.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	ghapDomain     string
	ghapStrategy   string
	ghapGoal       string
	ghapHypothesis string
	ghapAction     string
	ghapPrediction string

	ghapStatus        string
	ghapResult        string
	ghapSurprise      string
	ghapCauseCategory string
	ghapCauseDetail   string
	ghapWhatWorked    string
	ghapTakeaway      string

	ghapLimit  int
	ghapOffset int
)

var ghapCmd = &cobra.Command{
	Use:   "ghap",
	Short: "Record hypothesis-driven work (goal, hypothesis, action, prediction)",
	Long: `Record hypothesis-driven work as GHAP entries.

One entry is active at a time. Start it before an experiment, update it when
the hypothesis shifts, and resolve it with what actually happened. Resolved
entries are embedded on four axes and become searchable experience.`,
}

var ghapStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open a new active entry",
	RunE:  runGhapStart,
}

var ghapUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Revise the active entry's hypothesis or prediction",
	RunE:  runGhapUpdate,
}

var ghapResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Close the active entry with its outcome",
	Long: `Close the active entry with its outcome.

Status must be confirmed, falsified, or abandoned. A falsified entry needs a
root cause (--cause-category and --cause-description).`,
	RunE: runGhapResolve,
}

var ghapShowCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active entry, if any",
	RunE:  runGhapShow,
}

var ghapListCmd = &cobra.Command{
	Use:   "list",
	Short: "Page resolved entries newest first",
	RunE:  runGhapList,
}

func runGhapStart(cmd *cobra.Command, args []string) error {
	env, err := call(cmd.Context(), "start_ghap", map[string]interface{}{
		"domain":     ghapDomain,
		"strategy":   ghapStrategy,
		"goal":       ghapGoal,
		"hypothesis": ghapHypothesis,
		"action":     ghapAction,
		"prediction": ghapPrediction,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s entry %s started\n", okStyle.Render("●"), envString(env, "id"))
	return nil
}

func runGhapUpdate(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{}
	if ghapHypothesis != "" {
		callArgs["hypothesis"] = ghapHypothesis
	}
	if ghapPrediction != "" {
		callArgs["prediction"] = ghapPrediction
	}
	if len(callArgs) == 0 {
		return fmt.Errorf("nothing to update; pass --hypothesis or --prediction")
	}
	env, err := call(cmd.Context(), "update_ghap", callArgs)
	if err != nil {
		return err
	}
	fmt.Printf("%s entry updated (iteration %d)\n", okStyle.Render("●"), envInt(env, "iteration_count"))
	return nil
}

func runGhapResolve(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"status": ghapStatus,
		"result": ghapResult,
	}
	if ghapSurprise != "" {
		callArgs["surprise"] = ghapSurprise
	}
	if ghapCauseCategory != "" || ghapCauseDetail != "" {
		callArgs["root_cause"] = map[string]interface{}{
			"category":    ghapCauseCategory,
			"description": ghapCauseDetail,
		}
	}
	if ghapWhatWorked != "" || ghapTakeaway != "" {
		callArgs["lesson"] = map[string]interface{}{
			"what_worked": ghapWhatWorked,
			"takeaway":    ghapTakeaway,
		}
	}
	env, err := call(cmd.Context(), "resolve_ghap", callArgs)
	if err != nil {
		return err
	}
	fmt.Printf("%s entry %s resolved as %s\n", okStyle.Render("●"), envString(env, "id"), ghapStatus)
	return nil
}

func runGhapShow(cmd *cobra.Command, args []string) error {
	env, err := call(cmd.Context(), "get_active_ghap", nil)
	if err != nil {
		return err
	}
	entry, _ := env["active"].(map[string]interface{})
	if entry == nil {
		fmt.Println(mutedStyle.Render("no active entry"))
		return nil
	}
	if jsonOutput {
		return printJSON(entry)
	}
	fmt.Printf("%s %s (iteration %d)\n", infoStyle.Render("▸"),
		envString(entry, "id"), envInt(entry, "iteration_count"))
	fmt.Printf("  goal:       %s\n", envString(entry, "goal"))
	fmt.Printf("  hypothesis: %s\n", envString(entry, "hypothesis"))
	fmt.Printf("  action:     %s\n", envString(entry, "action"))
	fmt.Printf("  prediction: %s\n", envString(entry, "prediction"))
	return nil
}

func runGhapList(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "list_ghap_entries", map[string]interface{}{
		"limit":  ghapLimit,
		"offset": ghapOffset,
	})
}

func init() {
	ghapStartCmd.Flags().StringVar(&ghapDomain, "domain", "", "Kind of work (debugging, implementation, refactoring, ...)")
	ghapStartCmd.Flags().StringVar(&ghapStrategy, "strategy", "", "Problem-solving approach")
	ghapStartCmd.Flags().StringVar(&ghapGoal, "goal", "", "What the work is trying to achieve")
	ghapStartCmd.Flags().StringVar(&ghapHypothesis, "hypothesis", "", "The belief under test")
	ghapStartCmd.Flags().StringVar(&ghapAction, "action", "", "What will be done to test it")
	ghapStartCmd.Flags().StringVar(&ghapPrediction, "prediction", "", "The expected observation if the hypothesis holds")
	for _, name := range []string{"domain", "strategy", "goal", "hypothesis", "action", "prediction"} {
		_ = ghapStartCmd.MarkFlagRequired(name)
	}

	ghapUpdateCmd.Flags().StringVar(&ghapHypothesis, "hypothesis", "", "Replacement hypothesis")
	ghapUpdateCmd.Flags().StringVar(&ghapPrediction, "prediction", "", "Replacement prediction")

	ghapResolveCmd.Flags().StringVar(&ghapStatus, "status", "", "Terminal outcome: confirmed, falsified, or abandoned")
	ghapResolveCmd.Flags().StringVar(&ghapResult, "result", "", "What actually happened")
	ghapResolveCmd.Flags().StringVar(&ghapSurprise, "surprise", "", "What differed from the prediction")
	ghapResolveCmd.Flags().StringVar(&ghapCauseCategory, "cause-category", "", "Root cause category (required when falsified)")
	ghapResolveCmd.Flags().StringVar(&ghapCauseDetail, "cause-description", "", "Root cause description")
	ghapResolveCmd.Flags().StringVar(&ghapWhatWorked, "what-worked", "", "Lesson: what worked")
	ghapResolveCmd.Flags().StringVar(&ghapTakeaway, "takeaway", "", "Lesson: the takeaway")
	_ = ghapResolveCmd.MarkFlagRequired("status")
	_ = ghapResolveCmd.MarkFlagRequired("result")

	ghapListCmd.Flags().IntVar(&ghapLimit, "limit", 20, "Page size")
	ghapListCmd.Flags().IntVar(&ghapOffset, "offset", 0, "Rows to skip")

	ghapCmd.AddCommand(ghapStartCmd, ghapUpdateCmd, ghapResolveCmd, ghapShowCmd, ghapListCmd)
	rootCmd.AddCommand(ghapCmd)
}
