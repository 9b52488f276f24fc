// Package rpc is the local HTTP client for the daemon's tool surface. Hook
// processes and CLI commands both speak POST /api/call with a {tool,
// arguments} body and read the dispatcher envelope back; error envelopes
// surface as *CallError so callers can branch on the dispatcher's kind.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"engram/internal/config"
)

// CallError is a decoded error envelope. Type carries the dispatcher kind
// (validation_error, not_found, ...) verbatim.
type CallError struct {
	Type    string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Is reports whether err is a CallError of the given dispatcher kind.
func Is(err error, kind string) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Type == kind
}

// Client talks to one daemon address.
type Client struct {
	base  string
	httpc *http.Client
}

// New builds a client for a base URL such as "http://127.0.0.1:7377".
// The timeout bounds each whole exchange, not just dialing.
func New(base string, timeout time.Duration) *Client {
	return &Client{base: base, httpc: &http.Client{Timeout: timeout}}
}

// BaseURL derives the daemon's RPC base from the configured listen address.
func BaseURL(cfg *config.Config) string {
	return fmt.Sprintf("http://%s:%d", cfg.Daemon.Host, cfg.Daemon.Port)
}

// Call posts one tool invocation and decodes the envelope. An error envelope
// becomes a *CallError; transport and decode failures come back as plain
// errors, so Is() only matches answers the daemon actually gave.
func (c *Client) Call(ctx context.Context, tool string, args map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{"tool": tool, "arguments": args})
	if err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/call", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon answered %s for %s", resp.Status, tool)
	}
	var env map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if raw, ok := env["error"]; ok {
		return nil, decodeError(raw)
	}
	return env, nil
}

// Health describes GET /health.
type Health struct {
	Status  string `json:"status"`
	Server  string `json:"server"`
	Version string `json:"version"`
}

// Health asks the daemon whether it is up. Any answer other than 200 with a
// decodable body counts as down.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon answered %s", resp.Status)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &h, nil
}

func decodeError(raw interface{}) error {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return &CallError{Type: "internal_error", Message: fmt.Sprintf("%v", raw)}
	}
	ce := &CallError{}
	ce.Type, _ = obj["type"].(string)
	ce.Message, _ = obj["message"].(string)
	if ce.Type == "" {
		ce.Type = "internal_error"
	}
	return ce
}
