// Package main implements the engram command line interface.
// This file holds the shared output styling and RPC helpers used by every
// subcommand that talks to the daemon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"engram/internal/rpc"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Semantic colors, shared with the daemon log viewer conventions.
var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#848b98"))
)

// client builds an RPC client against the configured daemon endpoint.
func client() *rpc.Client {
	return rpc.New(rpc.BaseURL(cfg), cfg.GetRequestTimeout())
}

// call invokes one daemon tool. Tool-level failures come back as typed
// errors; transport failures get a hint about starting the daemon so the
// two are never confused.
func call(ctx context.Context, tool string, args map[string]interface{}) (map[string]interface{}, error) {
	env, err := client().Call(ctx, tool, args)
	if err != nil {
		var cerr *rpc.CallError
		if errors.As(err, &cerr) {
			return nil, err
		}
		return nil, fmt.Errorf("daemon unreachable at %s (start it with 'engram daemon start'): %w", rpc.BaseURL(cfg), err)
	}
	return env, nil
}

// printJSON pretty-prints a tool response to stdout.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render response: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// callAndPrint is the common body of the plain pass-through commands.
func callAndPrint(ctx context.Context, tool string, args map[string]interface{}) error {
	env, err := call(ctx, tool, args)
	if err != nil {
		return err
	}
	return printJSON(env)
}

// renderMarkdown pipes assembled context through glamour when stdout is a
// terminal, falling back to the raw text when rendering fails.
func renderMarkdown(md string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// envString digs a string field out of a tool response.
func envString(env map[string]interface{}, key string) string {
	s, _ := env[key].(string)
	return s
}

// envInt digs a numeric field out of a tool response. JSON numbers decode
// as float64.
func envInt(env map[string]interface{}, key string) int {
	f, _ := env[key].(float64)
	return int(f)
}

// confirm asks a yes/no question on stderr and reads the answer from stdin.
func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
