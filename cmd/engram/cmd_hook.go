// Package main implements the engram command line interface.
// This file handles the agent hook entry points and installing them into
// Claude settings. Hook processes read one JSON document from stdin, write
// at most one document to stdout, and always exit 0: a broken daemon must
// never break the agent session that invoked the hook.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"engram/internal/hooks"
	"engram/internal/logging"

	"github.com/spf13/cobra"
)

var (
	hookSettingsPath string
	hookDryRun       bool
	hookForce        bool
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Agent hook entry points and settings installation",
	Long: `Agent hook entry points, invoked by the coding agent on its lifecycle events.

Entry points (read hook JSON from stdin):
  session-start       - Inject pending handoff and unresolved hypothesis state
  user-prompt-submit  - Inject a context pack assembled around the prompt
  pre-tool-use        - Count tool calls and emit periodic GHAP check-ins
  post-tool-use       - Propose a GHAP resolution after test runs

'engram hook install' wires all four into Claude settings.`,
}

var hookSessionStartCmd = &cobra.Command{
	Use:   "session-start",
	Short: "SessionStart entry point",
	RunE:  runHookEntry((*hooks.Runner).SessionStart),
}

var hookUserPromptSubmitCmd = &cobra.Command{
	Use:   "user-prompt-submit",
	Short: "UserPromptSubmit entry point",
	RunE:  runHookEntry((*hooks.Runner).UserPromptSubmit),
}

var hookPreToolUseCmd = &cobra.Command{
	Use:   "pre-tool-use",
	Short: "PreToolUse entry point",
	RunE:  runHookEntry((*hooks.Runner).PreToolUse),
}

var hookPostToolUseCmd = &cobra.Command{
	Use:   "post-tool-use",
	Short: "PostToolUse entry point",
	RunE:  runHookEntry((*hooks.Runner).PostToolUse),
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the engram hooks into Claude settings",
	Long: `Install the four engram hooks into Claude settings.

Existing hooks from other tools are preserved; engram only appends its own
groups. Re-running is a no-op unless --force, which replaces any previously
installed engram groups. The old settings file is kept as a .bak backup.`,
	RunE: runHookInstall,
}

// runHookEntry adapts a hook runner method into a cobra handler. Hook
// failures are logged and swallowed.
func runHookEntry(fn func(*hooks.Runner, context.Context, io.Reader, io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_ = logging.Initialize(cfg.Home)
		defer logging.CloseAll()
		runner := hooks.New(cfg)
		if err := fn(runner, cmd.Context(), os.Stdin, os.Stdout); err != nil {
			logging.Get(logging.CategoryHooks).Warn("hook %s failed: %v", cmd.Use, err)
		}
		return nil
	}
}

// hookEntry and hookGroup mirror the Claude settings hook schema.
type hookEntry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

type hookGroup struct {
	Matcher string      `json:"matcher,omitempty"`
	Hooks   []hookEntry `json:"hooks"`
}

// engramHookGroups builds the four groups, one per lifecycle event. No
// matcher: every event instance routes through engram.
func engramHookGroups(bin string) map[string]hookGroup {
	command := func(entry string, timeout int) hookGroup {
		c := fmt.Sprintf("%s hook %s", bin, entry)
		if homeDir != "" {
			c = fmt.Sprintf("%s --home %s hook %s", bin, homeDir, entry)
		}
		return hookGroup{Hooks: []hookEntry{{Type: "command", Command: c, Timeout: timeout}}}
	}
	return map[string]hookGroup{
		"SessionStart":     command("session-start", 10),
		"UserPromptSubmit": command("user-prompt-submit", 10),
		"PreToolUse":       command("pre-tool-use", 5),
		"PostToolUse":      command("post-tool-use", 5),
	}
}

func runHookInstall(cmd *cobra.Command, args []string) error {
	settingsPath := hookSettingsPath
	if settingsPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		settingsPath = filepath.Join(home, ".claude", "settings.json")
	}

	settings, err := loadClaudeSettings(settingsPath)
	if err != nil {
		return err
	}

	hooksMap, _ := settings["hooks"].(map[string]interface{})
	if hooksMap == nil {
		hooksMap = map[string]interface{}{}
	}

	if hasEngramHook(hooksMap) {
		if !hookForce {
			fmt.Println("engram hooks already installed. Use --force to reinstall.")
			return nil
		}
		removeEngramGroups(hooksMap)
	}

	bin, err := os.Executable()
	if err != nil || bin == "" {
		bin = "engram"
	}
	groups := engramHookGroups(bin)
	events := []string{"SessionStart", "UserPromptSubmit", "PreToolUse", "PostToolUse"}
	for _, event := range events {
		appendHookGroup(hooksMap, event, groups[event])
	}
	settings["hooks"] = hooksMap

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	data = append(data, '\n')

	if hookDryRun {
		fmt.Println(string(data))
		return nil
	}

	if err := backupFile(settingsPath); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(settingsPath), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(settingsPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	fmt.Printf("%s engram hooks installed to %s\n", okStyle.Render("●"), settingsPath)
	for _, event := range events {
		fmt.Println(mutedStyle.Render("   " + event))
	}
	return nil
}

// loadClaudeSettings reads the settings file as a generic tree so keys
// engram does not know about survive the round trip.
func loadClaudeSettings(path string) (map[string]interface{}, error) {
	settings := map[string]interface{}{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("%s is not valid JSON: %w", path, err)
	}
	return settings, nil
}

// appendHookGroup adds one group to an event list, keeping whatever was
// there before.
func appendHookGroup(hooksMap map[string]interface{}, event string, group hookGroup) {
	existing, _ := hooksMap[event].([]interface{})
	hooksMap[event] = append(existing, toJSONValue(group))
}

// toJSONValue round-trips a typed value through JSON so the settings tree
// stays uniform map[string]interface{} wherever it came from.
func toJSONValue(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// hasEngramHook reports whether any event already carries an engram group.
func hasEngramHook(hooksMap map[string]interface{}) bool {
	for _, raw := range hooksMap {
		groups, _ := raw.([]interface{})
		for _, g := range groups {
			if groupRunsEngram(g) {
				return true
			}
		}
	}
	return false
}

// removeEngramGroups strips engram-managed groups from every event, leaving
// other tools' hooks alone.
func removeEngramGroups(hooksMap map[string]interface{}) {
	for event, raw := range hooksMap {
		groups, ok := raw.([]interface{})
		if !ok {
			continue
		}
		kept := groups[:0]
		for _, g := range groups {
			if !groupRunsEngram(g) {
				kept = append(kept, g)
			}
		}
		if len(kept) == 0 {
			delete(hooksMap, event)
			continue
		}
		hooksMap[event] = kept
	}
}

func groupRunsEngram(group interface{}) bool {
	m, ok := group.(map[string]interface{})
	if !ok {
		return false
	}
	entries, _ := m["hooks"].([]interface{})
	for _, e := range entries {
		entry, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		command, _ := entry["command"].(string)
		if strings.Contains(command, "engram") && strings.Contains(command, " hook ") {
			return true
		}
	}
	return false
}

// backupFile copies an existing file aside before it gets rewritten.
func backupFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s for backup: %w", path, err)
	}
	if err := os.WriteFile(path+".bak", data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

func init() {
	hookInstallCmd.Flags().StringVar(&hookSettingsPath, "settings", "", "Claude settings file (default ~/.claude/settings.json)")
	hookInstallCmd.Flags().BoolVar(&hookDryRun, "dry-run", false, "Print the merged settings without writing")
	hookInstallCmd.Flags().BoolVar(&hookForce, "force", false, "Replace previously installed engram hooks")

	hookCmd.AddCommand(hookSessionStartCmd, hookUserPromptSubmitCmd, hookPreToolUseCmd, hookPostToolUseCmd, hookInstallCmd)
	rootCmd.AddCommand(hookCmd)
}
