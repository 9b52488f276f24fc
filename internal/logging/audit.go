// Audit logging: structured NDJSON events recording every dispatcher call,
// daemon lifecycle change, and hook firing. One JSON object per line so the
// trail can be replayed or grepped without a parser.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event.
type AuditEventType string

const (
	// Tool dispatch events.
	AuditToolInvoke   AuditEventType = "tool_invoke"
	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"

	// Daemon lifecycle events.
	AuditDaemonStart AuditEventType = "daemon_start"
	AuditDaemonStop  AuditEventType = "daemon_stop"

	// Hook entry points.
	AuditHookFire AuditEventType = "hook_fire"

	// Worktree mutations.
	AuditWorktreeCreate AuditEventType = "worktree_create"
	AuditWorktreeMerge  AuditEventType = "worktree_merge"
	AuditWorktreeRemove AuditEventType = "worktree_remove"

	// Maintenance jobs.
	AuditReindex AuditEventType = "reindex"
	AuditBackup  AuditEventType = "backup"
)

// AuditEvent is one structured audit line.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	SessionID  string                 `json:"session,omitempty"`
	RequestID  string                 `json:"req,omitempty"`
	Target     string                 `json:"target,omitempty"` // tool name, task id, path
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
	auditOnce sync.Once
	auditLog  *AuditLogger
)

// AuditLogger writes audit events, optionally scoped to a session.
type AuditLogger struct {
	sessionID string
}

// InitAudit opens the audit trail. No-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	path := filepath.Join(logsDir, "audit.ndjson")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit trail.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	auditOnce.Do(func() {
		auditLog = &AuditLogger{}
	})
	return auditLog
}

// AuditWithSession returns an audit logger scoped to a session id.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes one audit event.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() {
		return
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" {
		event.SessionID = a.sessionID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// ToolInvoke records a dispatcher call starting.
func (a *AuditLogger) ToolInvoke(requestID, tool string) {
	a.Log(AuditEvent{EventType: AuditToolInvoke, RequestID: requestID, Target: tool, Success: true})
}

// ToolComplete records a dispatcher call finishing.
func (a *AuditLogger) ToolComplete(requestID, tool string, dur time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditToolComplete,
		RequestID:  requestID,
		Target:     tool,
		Success:    true,
		DurationMs: dur.Milliseconds(),
	})
}

// ToolError records a dispatcher call failing.
func (a *AuditLogger) ToolError(requestID, tool, errKind string, dur time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditToolError,
		RequestID:  requestID,
		Target:     tool,
		Success:    false,
		Error:      errKind,
		DurationMs: dur.Milliseconds(),
	})
}
