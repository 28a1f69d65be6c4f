// Package queue implements the persistent work queue: an ordered registry
// of Tasks with a status/attempt lifecycle, backed by a single JSON document
// and an append-only chain log of transitions.
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status is a Task's position in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusBlocked    Status = "blocked"
	StatusAbandoned  Status = "abandoned"
)

// TaskType is the closed vocabulary of task kinds.
type TaskType string

const (
	TypeBugfix     TaskType = "bugfix"
	TypeCodequality TaskType = "codequality"
	TypeQATeam     TaskType = "qa-team"
	TypeDevTeam    TaskType = "dev-team"
	TypeFeature    TaskType = "feature"
)

// Task is one unit of automated work in the queue.
type Task struct {
	ID          string    `json:"id"`
	Type        TaskType  `json:"type"`
	Description string    `json:"description"`
	File        string    `json:"file"`
	Tests       []string  `json:"tests,omitempty"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   *string   `json:"last_error"`
	CommitRef   string    `json:"commit_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Queue is an ordered sequence of Tasks plus a project label.
type Queue struct {
	Project string  `json:"project"`
	Tasks   []*Task `json:"tasks"`
}

// Stats summarizes task counts by status.
type Stats struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Complete   int `json:"complete"`
	Blocked    int `json:"blocked"`
	Abandoned  int `json:"abandoned"`
}

var (
	// ErrTaskNotFound is returned when an operation references an unknown task id.
	ErrTaskNotFound = fmt.Errorf("queue: task not found")
	// ErrDuplicateID is returned when a task id already exists in the queue.
	ErrDuplicateID = fmt.Errorf("queue: duplicate task id")
)

// Load reads a Queue from disk, returning an empty Queue for the given
// project if the file does not exist yet.
func Load(path, project string) (*Queue, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Queue{Project: project, Tasks: []*Task{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: read %s: %w", path, err)
	}

	var q Queue
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("queue: parse %s: %w", path, err)
	}
	if q.Tasks == nil {
		q.Tasks = []*Task{}
	}
	return &q, nil
}

// Save persists the queue atomically (write-to-temp then rename).
func Save(q *Queue, path string) error {
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return fmt.Errorf("queue: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("queue: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".queue-*.tmp")
	if err != nil {
		return fmt.Errorf("queue: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("queue: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("queue: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("queue: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("queue: rename to %s: %w", path, err)
	}
	return nil
}

func (q *Queue) find(id string) *Task {
	for _, t := range q.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// GetNextPending returns the first pending task in declared order, or nil.
func (q *Queue) GetNextPending() *Task {
	for _, t := range q.Tasks {
		if t.Status == StatusPending {
			return t
		}
	}
	return nil
}

// InProgress returns the first task in declared order that is in_progress,
// if any. MarkInProgress does not check whether another task is already
// in_progress, so nothing in this package keeps the count at one.
func (q *Queue) InProgress() *Task {
	for _, t := range q.Tasks {
		if t.Status == StatusInProgress {
			return t
		}
	}
	return nil
}

// MarkInProgress transitions a task to in_progress.
func (q *Queue) MarkInProgress(id string) error {
	t := q.find(id)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t.Status = StatusInProgress
	t.UpdatedAt = stamp()
	return nil
}

// MarkComplete transitions a task to complete and records its commit reference.
func (q *Queue) MarkComplete(id, commitRef string) error {
	t := q.find(id)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t.Status = StatusComplete
	t.CommitRef = commitRef
	t.UpdatedAt = stamp()
	return nil
}

// MarkBlocked transitions a task to blocked with a reason.
func (q *Queue) MarkBlocked(id, reason string) error {
	t := q.find(id)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t.Status = StatusBlocked
	t.LastError = &reason
	t.UpdatedAt = stamp()
	return nil
}

// UpdateProgress records a non-terminal note against the task's last error
// slot, used for "last known state" reporting without changing status.
func (q *Queue) UpdateProgress(id, note string) error {
	t := q.find(id)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t.LastError = &note
	t.UpdatedAt = stamp()
	return nil
}

// IncrementAttempt bumps a task's attempt counter. Attempt counters only increase.
func (q *Queue) IncrementAttempt(id string) error {
	t := q.find(id)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t.Attempts++
	t.UpdatedAt = stamp()
	return nil
}

// Add appends a new task to the queue. Returns ErrDuplicateID if the id
// already exists.
func (q *Queue) Add(t *Task) error {
	if q.find(t.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
	}
	now := stamp()
	if t.Status == "" {
		t.Status = StatusPending
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	q.Tasks = append(q.Tasks, t)
	return nil
}

// StatsSummary summarizes the queue by status. Invariant under operations that do
// not add/remove tasks.
func (q *Queue) StatsSummary() Stats {
	var s Stats
	for _, t := range q.Tasks {
		switch t.Status {
		case StatusPending:
			s.Pending++
		case StatusInProgress:
			s.InProgress++
		case StatusComplete:
			s.Complete++
		case StatusBlocked:
			s.Blocked++
		case StatusAbandoned:
			s.Abandoned++
		}
	}
	return s
}

// stamp is overridable in tests that need deterministic timestamps.
var stamp = func() time.Time { return time.Now().UTC() }
