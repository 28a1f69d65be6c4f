package governance

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/contract"
)

// auditCapacity bounds the in-memory ring buffer so a long-running process
// cannot grow it unbounded.
const auditCapacity = 10000

// AuditEntry records one Check call.
type AuditEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Action    contract.Action `json:"action"`
	Allowed   bool            `json:"allowed"`
	Detail    string          `json:"detail,omitempty"`
}

// AuditLog is an in-memory ring buffer of governance decisions, optionally
// mirrored to a JSONL file for durable inspection.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	path    string
}

// NewAuditLog returns an AuditLog. If path is non-empty, every record is
// also appended to that JSONL file.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Record appends one decision to the ring buffer and, if configured, to the
// backing JSONL file.
func (a *AuditLog) Record(action contract.Action, err error) {
	entry := AuditEntry{Timestamp: time.Now().UTC(), Action: action, Allowed: err == nil}
	if err != nil {
		entry.Detail = err.Error()
	}

	a.mu.Lock()
	a.entries = append(a.entries, entry)
	if len(a.entries) > auditCapacity {
		a.entries = a.entries[len(a.entries)-auditCapacity:]
	}
	a.mu.Unlock()

	if a.path != "" {
		_ = a.appendFile(entry)
	}
}

func (a *AuditLog) appendFile(entry AuditEntry) error {
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Recent returns up to limit of the most recently recorded entries, oldest
// first.
func (a *AuditLog) Recent(limit int) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 || limit > len(a.entries) {
		limit = len(a.entries)
	}
	start := len(a.entries) - limit
	result := make([]AuditEntry, limit)
	copy(result, a.entries[start:])
	return result
}
