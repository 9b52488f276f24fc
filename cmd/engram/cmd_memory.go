// Package main implements the engram command line interface.
// This file handles long-lived memories and the reflection journal.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	memoryCategory   string
	memoryImportance float64
	memoryLimit      int

	journalCategory     string
	journalTags         []string
	journalUnreflected  bool
	journalListMaxItems int
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Store and manage long-lived notes",
	Long: `Store and manage long-lived notes.

Notes are classified as fact, preference, error, decision, or workflow, and
every note is indexed for semantic search the moment it is stored.`,
}

var memoryStoreCmd = &cobra.Command{
	Use:   "store <content>",
	Short: "Store a note and index it",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryStore,
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <memory-id>",
	Short: "Fetch one note",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryGet,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes newest first",
	RunE:  runMemoryList,
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <memory-id>",
	Short: "Delete a note and its vector",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryDelete,
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Append and review reflection notes",
}

var journalAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Append a journal entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalAdd,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries newest first",
	RunE:  runJournalList,
}

var journalGetCmd = &cobra.Command{
	Use:   "get <entry-id>",
	Short: "Fetch one journal entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalGet,
}

var journalReflectCmd = &cobra.Command{
	Use:   "reflect <entry-id>...",
	Short: "Mark entries as consumed by a reflection pass",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runJournalReflect,
}

func runMemoryStore(cmd *cobra.Command, args []string) error {
	env, err := call(cmd.Context(), "store_memory", map[string]interface{}{
		"content":    args[0],
		"category":   memoryCategory,
		"importance": memoryImportance,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s stored %s\n", okStyle.Render("●"), envString(env, "id"))
	return nil
}

func runMemoryGet(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "get_memory", map[string]interface{}{"memory_id": args[0]})
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{"limit": memoryLimit}
	if memoryCategory != "" {
		callArgs["category"] = memoryCategory
	}
	return callAndPrint(cmd.Context(), "list_memories", callArgs)
}

func runMemoryDelete(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "delete_memory", map[string]interface{}{"memory_id": args[0]})
}

func runJournalAdd(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{"content": args[0]}
	if journalCategory != "" {
		callArgs["category"] = journalCategory
	}
	if len(journalTags) > 0 {
		callArgs["tags"] = journalTags
	}
	env, err := call(cmd.Context(), "store_journal_entry", callArgs)
	if err != nil {
		return err
	}
	fmt.Printf("%s journal entry %s added\n", okStyle.Render("●"), envString(env, "id"))
	return nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "list_journal_entries", map[string]interface{}{
		"unreflected_only": journalUnreflected,
		"limit":            journalListMaxItems,
	})
}

func runJournalGet(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "get_journal_entry", map[string]interface{}{"entry_id": args[0]})
}

func runJournalReflect(cmd *cobra.Command, args []string) error {
	ids := make([]interface{}, len(args))
	for i, id := range args {
		ids[i] = id
	}
	return callAndPrint(cmd.Context(), "mark_entries_reflected", map[string]interface{}{"entry_ids": ids})
}

func init() {
	memoryStoreCmd.Flags().StringVar(&memoryCategory, "category", "", "Note classification: fact, preference, error, decision, workflow")
	memoryStoreCmd.Flags().Float64Var(&memoryImportance, "importance", 0.5, "Weight in [0, 1]")
	_ = memoryStoreCmd.MarkFlagRequired("category")

	memoryListCmd.Flags().StringVar(&memoryCategory, "category", "", "Restrict to one category")
	memoryListCmd.Flags().IntVar(&memoryLimit, "limit", 20, "Max rows")

	journalAddCmd.Flags().StringVar(&journalCategory, "category", "", "Free-form grouping label")
	journalAddCmd.Flags().StringSliceVar(&journalTags, "tags", nil, "Free-form tags")

	journalListCmd.Flags().BoolVar(&journalUnreflected, "unreflected", false, "Only entries not yet reflected")
	journalListCmd.Flags().IntVar(&journalListMaxItems, "limit", 0, "Max rows (0 = all)")

	memoryCmd.AddCommand(memoryStoreCmd, memoryGetCmd, memoryListCmd, memoryDeleteCmd)
	journalCmd.AddCommand(journalAddCmd, journalListCmd, journalGetCmd, journalReflectCmd)
	rootCmd.AddCommand(memoryCmd, journalCmd)
}
