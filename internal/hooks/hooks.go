// Package hooks implements the four short-lived entry points the host editor
// spawns around a session: SessionStart, UserPromptSubmit, PreToolUse and
// PostToolUse. Each reads one JSON object from stdin, talks to the daemon
// over local RPC, and writes at most one response to stdout. A hook never
// blocks the host: any storage or RPC failure degrades to empty output and a
// zero exit.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"engram/internal/bus"
	"engram/internal/config"
	"engram/internal/logging"
	"engram/internal/rpc"
)

// Runner binds the entry points to one daemon address and one counter file.
type Runner struct {
	cfg     *config.Config
	client  *rpc.Client
	counter *bus.ToolCounter
}

// New wires a runner against the configured daemon.
func New(cfg *config.Config) *Runner {
	return &Runner{
		cfg:     cfg,
		client:  rpc.New(rpc.BaseURL(cfg), cfg.GetHookRPCTimeout()),
		counter: bus.NewToolCounter(cfg.CounterPath()),
	}
}

// hookInput is the superset of fields the entry points read. Hosts send more
// keys than these; unknown ones are ignored, and an empty stream decodes to
// the zero value because some hosts send nothing at all on SessionStart.
type hookInput struct {
	SessionID    string          `json:"session_id"`
	Prompt       string          `json:"prompt"`
	ToolName     string          `json:"tool_name"`
	ToolInput    json.RawMessage `json:"tool_input"`
	ToolResponse json.RawMessage `json:"tool_response"`
}

func decodeInput(in io.Reader) hookInput {
	var input hookInput
	if err := json.NewDecoder(in).Decode(&input); err != nil && err != io.EOF {
		logging.HooksDebug("malformed hook input: %v", err)
	}
	return input
}

// hookOutput is the only JSON shape the JSON-emitting entry points produce.
// Hosts parse hookSpecificOutput strictly; the retired top-level
// {type, content} form must never come back.
type hookOutput struct {
	HookSpecificOutput hookPayload `json:"hookSpecificOutput"`
}

type hookPayload struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext"`
}

func writeHookOutput(out io.Writer, event, additional string) error {
	return json.NewEncoder(out).Encode(hookOutput{
		HookSpecificOutput: hookPayload{HookEventName: event, AdditionalContext: additional},
	})
}

// SessionStart records the new session id, resets the tool counter for it,
// and surfaces the pending handoff plus any unresolved GHAP entry as markdown
// context. With the daemon down it stays silent.
func (r *Runner) SessionStart(ctx context.Context, in io.Reader, out io.Writer) error {
	input := decodeInput(in)
	if input.SessionID != "" {
		if err := bus.WriteSessionID(r.cfg.SessionPath(), input.SessionID); err != nil {
			logging.HooksDebug("SessionStart: persist session id: %v", err)
		}
		if err := r.counter.Reset(input.SessionID); err != nil {
			logging.HooksDebug("SessionStart: reset counter: %v", err)
		}
	}
	md := r.sessionContext(ctx)
	if md == "" {
		return nil
	}
	return writeHookOutput(out, "SessionStart", md)
}

func (r *Runner) sessionContext(ctx context.Context) string {
	health, err := r.client.Health(ctx)
	if err != nil {
		logging.HooksDebug("SessionStart: daemon unreachable: %v", err)
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s memory daemon %s is running.\n", health.Server, health.Version)

	if handoff := r.callObject(ctx, "get_pending_handoff", "handoff"); handoff != nil {
		fmt.Fprintf(&b, "\n## Pending handoff (%s)\n\n", str(handoff, "id"))
		b.WriteString(str(handoff, "handoff_content"))
		b.WriteString("\n\nMark it resumed with mark_handoff_resumed once picked up.\n")
	}
	if active := r.callObject(ctx, "get_active_ghap", "active"); active != nil {
		fmt.Fprintf(&b, "\n## Unresolved hypothesis (%s, iteration %d)\n\n", str(active, "id"), num(active, "iteration_count"))
		fmt.Fprintf(&b, "Goal: %s\n", str(active, "goal"))
		fmt.Fprintf(&b, "Hypothesis: %s\n", str(active, "hypothesis"))
		b.WriteString("\nResolve it with resolve_ghap or amend it with update_ghap before starting new work.\n")
	}
	return b.String()
}

// UserPromptSubmit assembles a compact context pack around the prompt and
// injects it as additionalContext. Oversized prompts are cut to the
// configured cap before they reach the embedding layer, and the pack itself
// is capped separately.
func (r *Runner) UserPromptSubmit(ctx context.Context, in io.Reader, out io.Writer) error {
	input := decodeInput(in)
	prompt := strings.TrimSpace(truncate(input.Prompt, r.cfg.Hooks.PromptMaxChars))
	if prompt == "" {
		return nil
	}

	// The assembler counts four chars per token, so aiming the budget at the
	// char cap keeps it from assembling text the cap would throw away.
	env, err := r.client.Call(ctx, "assemble_context", map[string]interface{}{
		"query":        prompt,
		"token_budget": r.cfg.Hooks.ContextMaxChars / 4,
	})
	if err != nil {
		logging.HooksDebug("UserPromptSubmit: assemble_context: %v", err)
		return nil
	}
	pack, _ := env["markdown"].(string)
	pack = strings.TrimSpace(truncate(pack, r.cfg.Hooks.ContextMaxChars))
	if pack == "" {
		return nil
	}
	return writeHookOutput(out, "UserPromptSubmit", pack)
}

// callObject runs a tool and plucks one object field out of the envelope.
// Any failure, including a null field, comes back as nil.
func (r *Runner) callObject(ctx context.Context, tool, key string) map[string]interface{} {
	env, err := r.client.Call(ctx, tool, nil)
	if err != nil {
		logging.HooksDebug("%s: %v", tool, err)
		return nil
	}
	obj, _ := env[key].(map[string]interface{})
	return obj
}

func str(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

func num(obj map[string]interface{}, key string) int {
	f, _ := obj[key].(float64)
	return int(f)
}

// truncate cuts s to max runes. Hook caps count characters, not bytes, so
// multi-byte text never splits mid-rune.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
