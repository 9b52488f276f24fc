package dispatch

import (
	"context"
	"errors"
	"fmt"

	"engram/internal/store"
	"engram/internal/vector"
)

// ============================================================================
// ERROR ENVELOPE
// ============================================================================

// ErrorKind is the closed set of error types a tool call can surface. Clients
// branch on the kind, never on message text.
type ErrorKind string

const (
	KindValidationError    ErrorKind = "validation_error"
	KindNotFound           ErrorKind = "not_found"
	KindActiveGHAPExists   ErrorKind = "active_ghap_exists"
	KindInsufficientData   ErrorKind = "insufficient_data"
	KindCollectionNotFound ErrorKind = "collection_not_found"
	KindTimeout            ErrorKind = "timeout"
	KindBadRequest         ErrorKind = "bad_request"
	KindUnknownTool        ErrorKind = "unknown_tool"
	KindInternalError      ErrorKind = "internal_error"
)

// ToolError is the typed failure every handler returns. It reaches the wire
// as {"error": {"type": kind, "message": text}} and never as a bare string.
type ToolError struct {
	Kind    ErrorKind `json:"type"`
	Message string    `json:"message"`
}

// Error implements error so a ToolError can travel through error returns
// inside the daemon before the dispatcher unwraps it at the boundary.
func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Errorf builds a ToolError with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Translate normalizes a service-layer error into a ToolError. Sentinels map
// to their dedicated kinds; everything else is a validation_error, because
// the service layers reject bad input with plain errors and reserve panics
// for genuine bugs. internal_error is minted only by the dispatcher itself.
func Translate(err error) *ToolError {
	if err == nil {
		return nil
	}
	var terr *ToolError
	if errors.As(err, &terr) {
		return terr
	}
	var active *store.ActiveEntryError
	switch {
	case errors.As(err, &active):
		return &ToolError{Kind: KindActiveGHAPExists, Message: err.Error()}
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNoActiveEntry):
		return &ToolError{Kind: KindNotFound, Message: err.Error()}
	case errors.Is(err, vector.ErrCollectionNotFound):
		return &ToolError{Kind: KindCollectionNotFound, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &ToolError{Kind: KindTimeout, Message: err.Error()}
	}
	return &ToolError{Kind: KindValidationError, Message: err.Error()}
}

// errorEnvelope renders a ToolError as the wire envelope.
func errorEnvelope(terr *ToolError) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    string(terr.Kind),
			"message": terr.Message,
		},
	}
}
