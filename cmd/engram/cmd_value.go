// Package main implements the engram command line interface.
// This file handles distilled values and the axis clustering they are
// gated against.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var valueAxis string

var valueCmd = &cobra.Command{
	Use:   "value",
	Short: "Manage distilled values",
	Long: `Manage distilled values.

A value is a short generalization backed by lived experience. Admission is
similarity-gated: the candidate must sit close enough to the centroid of the
cluster it claims to generalize. Validate first, then store.`,
}

var valueValidateCmd = &cobra.Command{
	Use:   "validate <text> <cluster-id>",
	Short: "Check whether a candidate would be admitted",
	Args:  cobra.ExactArgs(2),
	RunE:  runValueValidate,
}

var valueStoreCmd = &cobra.Command{
	Use:   "store <text> <cluster-id>",
	Short: "Admit a value anchored to a cluster",
	Args:  cobra.ExactArgs(2),
	RunE:  runValueStore,
}

var valueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List admitted values newest first",
	RunE:  runValueList,
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect axis clusters",
}

var clusterRunCmd = &cobra.Command{
	Use:   "run <axis>",
	Short: "Cluster one axis and print its labeled clusters",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusterAxis,
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "Summarize the clusters of every axis",
	RunE:  runClusterList,
}

func runValueValidate(cmd *cobra.Command, args []string) error {
	env, err := call(cmd.Context(), "validate_value", map[string]interface{}{
		"text":       args[0],
		"cluster_id": args[1],
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(env)
	}
	similarity := ""
	if s, ok := env["similarity"].(float64); ok {
		similarity = fmt.Sprintf(" (similarity %.3f)", s)
	}
	if valid, _ := env["valid"].(bool); valid {
		fmt.Printf("%s candidate would be admitted%s\n", okStyle.Render("●"), similarity)
		return nil
	}
	fmt.Printf("%s candidate rejected%s\n", warnStyle.Render("○"), similarity)
	return nil
}

func runValueStore(cmd *cobra.Command, args []string) error {
	env, err := call(cmd.Context(), "store_value", map[string]interface{}{
		"text":       args[0],
		"cluster_id": args[1],
		"axis":       valueAxis,
	})
	if err != nil {
		return err
	}
	if stored, _ := env["stored"].(bool); !stored {
		fmt.Println(warnStyle.Render("value rejected by the similarity gate"))
		return printJSON(env["validation"])
	}
	value, _ := env["value"].(map[string]interface{})
	fmt.Printf("%s value %s stored\n", okStyle.Render("●"), envString(value, "id"))
	return nil
}

func runValueList(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "list_values", nil)
}

func runClusterAxis(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "cluster_axis", map[string]interface{}{"axis": args[0]})
}

func runClusterList(cmd *cobra.Command, args []string) error {
	return callAndPrint(cmd.Context(), "list_clusters", nil)
}

func init() {
	valueStoreCmd.Flags().StringVar(&valueAxis, "axis", "", "Axis the value belongs to: goal, strategy, error, context")
	_ = valueStoreCmd.MarkFlagRequired("axis")

	valueCmd.AddCommand(valueValidateCmd, valueStoreCmd, valueListCmd)
	clusterCmd.AddCommand(clusterRunCmd, clusterListCmd)
	rootCmd.AddCommand(valueCmd, clusterCmd)
}
