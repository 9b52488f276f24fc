// Package dispatch owns the tool catalog and the response envelope. Every
// callable tool lives in a name-keyed registry; the dispatcher validates
// arguments against the tool's schema, runs the handler under the configured
// request deadline, and renders exactly one of the three envelope shapes:
// {"result": string}, a structured object, or {"error": {type, message}}.
// Failures never cross the boundary as anything but the error envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"engram/internal/config"
	"engram/internal/logging"
	"engram/internal/metrics"
)

// ============================================================================
// TOOL & SCHEMA
// ============================================================================

// ToolFunc is the handler signature. The returned value is envelope-shaped by
// the dispatcher: a string becomes {"result": s}, anything else must
// serialize to a JSON object. A non-nil ToolError wins over the value.
type ToolFunc func(ctx context.Context, args map[string]interface{}) (interface{}, *ToolError)

// Property describes one schema property for catalog introspection.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema declares a tool's arguments. Required names must appear in
// Properties; the dispatcher enforces presence before the handler runs, and
// enum membership is validated by the handler through the types parsers so
// the advertised and accepted sets share one source.
type Schema struct {
	Required   []string            `json:"required,omitempty"`
	Properties map[string]Property `json:"properties,omitempty"`
}

// Tool is one registered callable.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Func        ToolFunc
}

// ============================================================================
// REGISTRY
// ============================================================================

// Registry holds the tool catalog. It is safe for concurrent lookup;
// registration happens once during daemon wiring.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Duplicate names and nil handlers are rejected.
func (r *Registry) Register(t *Tool) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Func == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}
	for _, req := range t.Schema.Required {
		if _, ok := t.Schema.Properties[req]; !ok {
			return fmt.Errorf("tool %s requires undeclared property %s", t.Name, req)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister registers a tool and panics on error. Catalog wiring is
// static, so a failure here is a programming error caught at startup.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", t.Name, err))
	}
}

// Get returns a tool by name, or nil when absent.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the catalog size.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ============================================================================
// DISPATCHER
// ============================================================================

// Dispatcher runs tool calls against the registry under the request
// deadline. It is shared by the RPC endpoint and the hook entry points.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
}

// New builds a dispatcher with the full catalog wired over the services.
func New(svc Services, cfg *config.Config) *Dispatcher {
	r := NewRegistry()
	registerCoreTools(r, svc)
	registerGHAPTools(r, svc)
	registerSearchTools(r, svc)
	registerIndexTools(r, svc)
	registerMemoryTools(r, svc)
	registerValueTools(r, svc)
	registerTaskTools(r, svc)
	registerReviewTools(r, svc)
	registerWorktreeTools(r, svc)
	registerSessionTools(r, svc)

	d := &Dispatcher{registry: r, timeout: cfg.GetRequestTimeout()}
	logging.Dispatch("Catalog ready: %d tools, request timeout %s", r.Count(), d.timeout)
	return d
}

// Registry exposes the catalog for introspection.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

type outcome struct {
	value interface{}
	terr  *ToolError
}

// Dispatch runs one tool call and always returns an envelope. The handler
// runs on its own goroutine so a stuck tool cannot hold the caller past the
// deadline; the context it receives is canceled at the same moment.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]interface{}) map[string]interface{} {
	if strings.TrimSpace(name) == "" {
		return errorEnvelope(Errorf(KindBadRequest, "tool is required"))
	}
	tool := d.registry.Get(name)
	if tool == nil {
		logging.DispatchDebug("Unknown tool %q requested", name)
		return errorEnvelope(Errorf(KindUnknownTool, "unknown tool %q", name))
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if terr := validateRequired(tool, args); terr != nil {
		d.observe(name, terr, 0)
		return errorEnvelope(terr)
	}

	reqID := uuid.NewString()
	logging.Audit().ToolInvoke(reqID, name)
	start := time.Now()

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logging.DispatchError("Tool %s panicked: %v", name, rec)
				ch <- outcome{terr: Errorf(KindInternalError, "tool %s failed internally", name)}
			}
		}()
		v, terr := tool.Func(cctx, args)
		ch <- outcome{value: v, terr: terr}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-cctx.Done():
		out = outcome{terr: Errorf(KindTimeout, "tool %s timed out after %s", name, d.timeout)}
	}

	dur := time.Since(start)
	if out.terr != nil {
		logging.Audit().ToolError(reqID, name, string(out.terr.Kind), dur)
		d.observe(name, out.terr, dur)
		return errorEnvelope(out.terr)
	}

	env, terr := successEnvelope(out.value)
	if terr != nil {
		logging.DispatchError("Tool %s produced an unserializable result: %s", name, terr.Message)
		logging.Audit().ToolError(reqID, name, string(terr.Kind), dur)
		d.observe(name, terr, dur)
		return errorEnvelope(terr)
	}
	logging.Audit().ToolComplete(reqID, name, dur)
	d.observe(name, nil, dur)
	logging.DispatchDebug("Tool %s completed in %s", name, dur)
	return env
}

// observe records the call on the prometheus instruments. Only registered
// tool names reach here, so the tool label stays bounded.
func (d *Dispatcher) observe(name string, terr *ToolError, dur time.Duration) {
	status := "ok"
	if terr != nil {
		status = string(terr.Kind)
	}
	metrics.ToolCalls.WithLabelValues(name, status).Inc()
	metrics.ToolDuration.WithLabelValues(name).Observe(dur.Seconds())
}

// validateRequired checks schema-required arguments, reporting every missing
// one at once.
func validateRequired(tool *Tool, args map[string]interface{}) *ToolError {
	var missing []string
	for _, req := range tool.Schema.Required {
		if v, ok := args[req]; !ok || v == nil {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return Errorf(KindValidationError, "missing required arguments: %s", strings.Join(missing, ", "))
	}
	return nil
}

// successEnvelope shapes a handler value for the wire. Strings wrap under
// "result"; maps pass through; everything else round-trips through JSON and
// must come out an object.
func successEnvelope(v interface{}) (map[string]interface{}, *ToolError) {
	switch val := v.(type) {
	case nil:
		return map[string]interface{}{"result": "ok"}, nil
	case string:
		return map[string]interface{}{"result": val}, nil
	case map[string]interface{}:
		return val, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, Errorf(KindInternalError, "encode result: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, Errorf(KindInternalError, "tool result is not an object")
	}
	return m, nil
}
