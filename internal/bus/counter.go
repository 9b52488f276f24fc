package bus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// ============================================================================
// TOOL COUNTER
// ============================================================================

// CounterState is the on-disk shape of the tool counter file.
type CounterState struct {
	Count     int    `json:"count"`
	SessionID string `json:"session_id"`
}

// ToolCounter is the file-backed per-session tool-invocation counter. Hook
// processes from different sessions share one file; the stored session id
// decides when the count starts over. The flock excludes other processes;
// the mutex excludes goroutines sharing this instance, which the flock alone
// does not (a held flock handle short-circuits re-acquisition).
type ToolCounter struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewToolCounter binds a counter to its file. The read-modify-write cycle is
// guarded by a sidecar lock file so the data file itself can be replaced by
// rename.
func NewToolCounter(path string) *ToolCounter {
	return &ToolCounter{path: path, lock: flock.New(path + ".lock")}
}

// Read returns the stored count and session id. Read failures are non-fatal:
// a missing or corrupted file reads as (0, "").
func (c *ToolCounter) Read() (int, string) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, ""
	}
	var st CounterState
	if err := json.Unmarshal(data, &st); err != nil {
		return 0, ""
	}
	return st.Count, st.SessionID
}

// Increment bumps the count under the cross-process lock and returns the new
// value. A session id differing from the stored one resets the count first,
// so the first call of a new session returns 1.
func (c *ToolCounter) Increment(sessionID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.lock.Lock(); err != nil {
		return 0, fmt.Errorf("failed to lock counter %s: %w", c.path, err)
	}
	defer func() { _ = c.lock.Unlock() }()

	count, stored := c.Read()
	if stored != sessionID {
		count = 0
	}
	count++
	if err := c.write(CounterState{Count: count, SessionID: sessionID}); err != nil {
		return 0, err
	}
	return count, nil
}

// Reset zeroes the count for the given session.
func (c *ToolCounter) Reset(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock counter %s: %w", c.path, err)
	}
	defer func() { _ = c.lock.Unlock() }()
	return c.write(CounterState{Count: 0, SessionID: sessionID})
}

func (c *ToolCounter) write(st CounterState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode counter state: %w", err)
	}
	return writeAtomic(c.path, data)
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
