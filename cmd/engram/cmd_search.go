// Package main implements the engram command line interface.
// This file handles semantic search across the five indexes and the
// token-budgeted context assembler.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchAxis     string
	searchDomain   string
	searchOutcome  string
	searchCategory string
	searchLanguage string
	searchLimit    int

	contextKinds   []string
	contextBudget  int
	contextPerKind int
	contextPreview bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Semantic search over experiences, memories, values, code, and commits",
}

var searchExperiencesCmd = &cobra.Command{
	Use:   "experiences <query>",
	Short: "Search resolved GHAP entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchExperiences,
}

var searchMemoriesCmd = &cobra.Command{
	Use:   "memories <query>",
	Short: "Search stored notes",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchMemories,
}

var searchValuesCmd = &cobra.Command{
	Use:   "values <query>",
	Short: "Search distilled values",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchValues,
}

var searchCodeCmd = &cobra.Command{
	Use:   "code <query>",
	Short: "Search indexed code units",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchCode,
}

var searchCommitsCmd = &cobra.Command{
	Use:   "commits <query>",
	Short: "Search indexed commits",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchCommits,
}

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Assemble a token-budgeted context pack",
	Long: `Assemble a token-budgeted markdown context pack around a query.

The pack interleaves experiences, memories, values, code, and commits by
relevance until the budget is spent. Use --preview to render it in the
terminal instead of printing the raw response.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func runSearchExperiences(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"query_text": args[0],
		"limit":      searchLimit,
	}
	if searchAxis != "" {
		callArgs["axis"] = searchAxis
	}
	if searchDomain != "" {
		callArgs["domain"] = searchDomain
	}
	if searchOutcome != "" {
		callArgs["outcome"] = searchOutcome
	}
	return callAndPrint(cmd.Context(), "search_experiences", callArgs)
}

func runSearchMemories(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"query_text": args[0],
		"limit":      searchLimit,
	}
	if searchCategory != "" {
		callArgs["category"] = searchCategory
	}
	return callAndPrint(cmd.Context(), "search_memories", callArgs)
}

func runSearchValues(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"query_text": args[0],
		"limit":      searchLimit,
	}
	if searchAxis != "" {
		callArgs["axis"] = searchAxis
	}
	return callAndPrint(cmd.Context(), "search_values", callArgs)
}

func runSearchCode(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"query_text": args[0],
		"limit":      searchLimit,
	}
	if searchLanguage != "" {
		callArgs["language"] = searchLanguage
	}
	return callAndPrint(cmd.Context(), "search_code", callArgs)
}

func runSearchCommits(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "search_commits", map[string]interface{}{
		"query_text": args[0],
		"limit":      searchLimit,
	})
}

func runContext(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{"query": args[0]}
	if len(contextKinds) > 0 {
		callArgs["kinds"] = contextKinds
	}
	if contextBudget > 0 {
		callArgs["token_budget"] = contextBudget
	}
	if contextPerKind > 0 {
		callArgs["per_kind_limit"] = contextPerKind
	}
	env, err := call(cmd.Context(), "assemble_context", callArgs)
	if err != nil {
		return err
	}
	if contextPreview {
		fmt.Print(renderMarkdown(envString(env, "markdown")))
		fmt.Println(mutedStyle.Render(fmt.Sprintf("~%d tokens", envInt(env, "token_estimate"))))
		return nil
	}
	return printJSON(env)
}

func init() {
	for _, c := range []*cobra.Command{searchExperiencesCmd, searchMemoriesCmd, searchValuesCmd, searchCodeCmd, searchCommitsCmd} {
		c.Flags().IntVar(&searchLimit, "limit", 5, "Max results (1-50)")
	}
	searchExperiencesCmd.Flags().StringVar(&searchAxis, "axis", "", "Axis collection: full, goal, strategy, error, context")
	searchExperiencesCmd.Flags().StringVar(&searchDomain, "domain", "", "Restrict to one domain")
	searchExperiencesCmd.Flags().StringVar(&searchOutcome, "outcome", "", "Restrict to one terminal status")
	searchMemoriesCmd.Flags().StringVar(&searchCategory, "category", "", "Restrict to one category")
	searchValuesCmd.Flags().StringVar(&searchAxis, "axis", "", "Restrict to one axis")
	searchCodeCmd.Flags().StringVar(&searchLanguage, "language", "", "Restrict to one language")

	contextCmd.Flags().StringSliceVar(&contextKinds, "kinds", nil, "Context kinds to include (default all)")
	contextCmd.Flags().IntVar(&contextBudget, "budget", 0, "Approximate token cap (default 2000)")
	contextCmd.Flags().IntVar(&contextPerKind, "per-kind", 0, "Max items per kind (default 5)")
	contextCmd.Flags().BoolVar(&contextPreview, "preview", false, "Render the pack in the terminal")

	searchCmd.AddCommand(searchExperiencesCmd, searchMemoriesCmd, searchValuesCmd, searchCodeCmd, searchCommitsCmd)
	rootCmd.AddCommand(searchCmd, contextCmd)
}
