package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"engram/internal/bus"
	"engram/internal/logging"
)

// PreToolUse ticks the per-session tool counter and, once it reaches the
// configured frequency with a GHAP entry still active, emits a plain-text
// check-in and resets the counter. The counter only resets when a check-in
// actually goes out, so a hypothesis started mid-window is still caught on
// the next call.
func (r *Runner) PreToolUse(ctx context.Context, in io.Reader, out io.Writer) error {
	input := decodeInput(in)
	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = bus.ReadSessionID(r.cfg.SessionPath())
	}
	count, err := r.counter.Increment(sessionID)
	if err != nil {
		logging.HooksDebug("PreToolUse: counter: %v", err)
		return nil
	}
	if count < r.cfg.Hooks.CheckinFrequency {
		return nil
	}
	active := r.callObject(ctx, "get_active_ghap", "active")
	if active == nil {
		return nil
	}
	if err := r.counter.Reset(sessionID); err != nil {
		logging.HooksDebug("PreToolUse: reset counter: %v", err)
	}
	_, err = io.WriteString(out, renderCheckin(active, count, r.cfg.Hooks.CheckinMaxChars))
	return err
}

// PostToolUse watches tool output for a test verdict. A detected pass or
// fail while a GHAP entry is active becomes a short resolution proposal;
// anything else stays silent.
func (r *Runner) PostToolUse(ctx context.Context, in io.Reader, out io.Writer) error {
	input := decodeInput(in)
	outcome := parseTestOutcome(responseText(input.ToolResponse))
	if outcome == outcomeNone {
		return nil
	}
	active := r.callObject(ctx, "get_active_ghap", "active")
	if active == nil {
		return nil
	}
	_, err := io.WriteString(out, renderProposal(active, outcome, r.cfg.Hooks.CheckinMaxChars))
	return err
}

func renderCheckin(active map[string]interface{}, count, maxChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GHAP Check-in: %s is still active after %d tool calls (iteration %d).\n",
		str(active, "id"), count, num(active, "iteration_count"))
	fmt.Fprintf(&b, "Goal: %s\n", str(active, "goal"))
	fmt.Fprintf(&b, "Hypothesis: %s\n", str(active, "hypothesis"))
	fmt.Fprintf(&b, "Prediction: %s\n", str(active, "prediction"))
	b.WriteString("If the prediction has been tested, call resolve_ghap with the outcome; if the approach changed, call update_ghap first.")
	return truncate(b.String(), maxChars)
}

func renderProposal(active map[string]interface{}, outcome testOutcome, maxChars int) string {
	var b strings.Builder
	id := str(active, "id")
	switch outcome {
	case outcomePassed:
		fmt.Fprintf(&b, "Tests passed while %s is active.\n", id)
		fmt.Fprintf(&b, "Prediction was: %s\n", str(active, "prediction"))
		b.WriteString("If this is the predicted result, resolve_ghap with status \"confirmed\"; otherwise record what actually happened before resolving.")
	case outcomeFailed:
		fmt.Fprintf(&b, "Tests failed while %s is active.\n", id)
		fmt.Fprintf(&b, "Hypothesis was: %s\n", str(active, "hypothesis"))
		b.WriteString("If the failure disproves it, resolve_ghap with status \"falsified\" and a root_cause_category; if the hypothesis just shifted, update_ghap with the revision.")
	}
	return truncate(b.String(), maxChars)
}

type testOutcome int

const (
	outcomeNone testOutcome = iota
	outcomePassed
	outcomeFailed
)

// Verdict markers for the common runners: go test ("ok ", "PASS", "FAIL"),
// pytest ("N passed", "N failed") and jest ("Tests: ... failed").
var (
	failPattern = regexp.MustCompile(`(?m)^(--- )?FAIL|\bFAILED\b|\b\d+ failed\b`)
	passPattern = regexp.MustCompile(`(?m)^ok\s|^(--- )?PASS|\b\d+ passed\b`)
)

// parseTestOutcome reads a test verdict out of raw runner output. Any
// failure marker wins over pass markers because a partly red run is red.
func parseTestOutcome(text string) testOutcome {
	if text == "" {
		return outcomeNone
	}
	if failPattern.MatchString(text) {
		return outcomeFailed
	}
	if passPattern.MatchString(text) {
		return outcomePassed
	}
	return outcomeNone
}

// responseText digs the printable output out of a tool_response, which hosts
// send either as a bare string or as an object with a conventional field.
func responseText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"output", "stdout", "content", "result"} {
		if v, ok := obj[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
