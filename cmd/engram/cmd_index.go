// Package main implements the engram command line interface.
// This file handles pushing code units and commits into the search index.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	indexUnitName     string
	indexUnitKind     string
	indexUnitLanguage string
	indexUnitContent  string

	indexCommitMessage string
	indexCommitAuthor  string
	indexCommitFiles   []string
	indexCommitTime    string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Push code units and commits into the search index",
	Long: `Push code units and commits into the search index.

Indexing is push-based: an external watcher or CI step extracts units and
commits and hands them to the daemon. Re-pushing an id replaces its vector.`,
}

var indexUnitCmd = &cobra.Command{
	Use:   "unit <unit-id> <path>",
	Short: "Index one code unit",
	Long: `Index one code unit.

The unit source comes from --content, or from stdin when the flag is not
given, so extractors can pipe straight in.`,
	Args: cobra.ExactArgs(2),
	RunE: runIndexUnit,
}

var indexCommitCmd = &cobra.Command{
	Use:   "commit <sha>",
	Short: "Index one commit",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexCommit,
}

var indexForgetFileCmd = &cobra.Command{
	Use:   "forget-file <path>",
	Short: "Drop every unit indexed for a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexForgetFile,
}

func runIndexUnit(cmd *cobra.Command, args []string) error {
	content := indexUnitContent
	if content == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read unit content from stdin: %w", err)
		}
		content = string(data)
	}
	callArgs := map[string]interface{}{
		"id":      args[0],
		"path":    args[1],
		"name":    indexUnitName,
		"content": content,
	}
	if indexUnitKind != "" {
		callArgs["kind"] = indexUnitKind
	}
	if indexUnitLanguage != "" {
		callArgs["language"] = indexUnitLanguage
	}
	return callAndPrint(cmd.Context(), "index_code_unit", callArgs)
}

func runIndexCommit(cmd *cobra.Command, args []string) error {
	callArgs := map[string]interface{}{
		"sha":     args[0],
		"message": indexCommitMessage,
	}
	if indexCommitAuthor != "" {
		callArgs["author"] = indexCommitAuthor
	}
	if len(indexCommitFiles) > 0 {
		callArgs["files"] = indexCommitFiles
	}
	if indexCommitTime != "" {
		callArgs["committed_at"] = indexCommitTime
	}
	return callAndPrint(cmd.Context(), "index_commit", callArgs)
}

func runIndexForgetFile(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "delete_file_units", map[string]interface{}{"path": args[0]})
}

func init() {
	indexUnitCmd.Flags().StringVar(&indexUnitName, "name", "", "Unit name")
	indexUnitCmd.Flags().StringVar(&indexUnitKind, "kind", "", "Construct kind, e.g. function or class")
	indexUnitCmd.Flags().StringVar(&indexUnitLanguage, "language", "", "Source language")
	indexUnitCmd.Flags().StringVar(&indexUnitContent, "content", "", "Unit source text (default stdin)")
	_ = indexUnitCmd.MarkFlagRequired("name")

	indexCommitCmd.Flags().StringVar(&indexCommitMessage, "message", "", "Full commit message")
	indexCommitCmd.Flags().StringVar(&indexCommitAuthor, "author", "", "Author identity")
	indexCommitCmd.Flags().StringSliceVar(&indexCommitFiles, "files", nil, "Paths touched by the commit")
	indexCommitCmd.Flags().StringVar(&indexCommitTime, "committed-at", "", "ISO-8601 commit time (default now)")
	_ = indexCommitCmd.MarkFlagRequired("message")

	indexCmd.AddCommand(indexUnitCmd, indexCommitCmd, indexForgetFileCmd)
	rootCmd.AddCommand(indexCmd)
}
