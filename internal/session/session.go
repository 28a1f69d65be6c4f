// Package session persists per-task progress as append-only checkpoint
// files: a YAML frontmatter block carrying Session State fields, followed by
// a markdown body of iteration entries. Checkpoints are immutable once
// written; the highest ordinal for a task_id is authoritative.
package session

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StatusToken is the lifecycle state of a Session State checkpoint.
type StatusToken string

const (
	StatusActive    StatusToken = "active"
	StatusResumable StatusToken = "resumable"
	StatusFinalized StatusToken = "finalized"
)

// State is the frontmatter header of one checkpoint.
type State struct {
	TaskID        string      `yaml:"task_id"`
	AgentType     string      `yaml:"agent_type"`
	Iteration     int         `yaml:"iteration"`
	MaxIterations int         `yaml:"max_iterations"`
	StartedAt     time.Time   `yaml:"started_at"`
	LastUpdated   time.Time   `yaml:"last_updated"`
	StatusToken   StatusToken `yaml:"status_token"`
	SessionID     string      `yaml:"session_id"`
}

// Resumable reports whether this state can be resumed: iteration is still
// under budget and the session hasn't been finalized.
func (s *State) Resumable() bool {
	return s.Iteration < s.MaxIterations && s.StatusToken != StatusFinalized
}

// Store reads and writes checkpoint files under a session directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

var ordinalPattern = regexp.MustCompile(`^session-(.+)-(\d+)\.md$`)

// ordinals lists every checkpoint file for task_id along with its ordinal,
// sorted ascending.
func (st *Store) ordinals(taskID string) ([]int, error) {
	entries, err := os.ReadDir(st.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read dir %s: %w", st.dir, err)
	}

	var nums []int
	for _, e := range entries {
		m := ordinalPattern.FindStringSubmatch(e.Name())
		if m == nil || m[1] != taskID {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums, nil
}

func (st *Store) path(taskID string, ordinal int) string {
	return filepath.Join(st.dir, fmt.Sprintf("session-%s-%d.md", taskID, ordinal))
}

// Save appends a new checkpoint file with the next ordinal for task_id,
// written atomically via write-to-temp-then-rename.
func (st *Store) Save(taskID string, state State, bodyEntry string) error {
	nums, err := st.ordinals(taskID)
	if err != nil {
		return err
	}
	next := 1
	if len(nums) > 0 {
		next = nums[len(nums)-1] + 1
	}

	state.TaskID = taskID
	state.Iteration = next - 1
	if state.LastUpdated.IsZero() {
		state.LastUpdated = time.Now().UTC()
	}

	return st.writeCheckpoint(st.path(taskID, next), state, bodyEntry, nums)
}

// writeCheckpoint atomically writes one checkpoint, appending bodyEntry to
// the accumulated log of prior entries for display continuity.
func (st *Store) writeCheckpoint(path string, state State, bodyEntry string, priorOrdinals []int) error {
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return fmt.Errorf("session: mkdir %s: %w", st.dir, err)
	}

	frontmatter, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: marshal frontmatter: %w", err)
	}

	var body strings.Builder
	body.WriteString("---\n")
	body.Write(frontmatter)
	body.WriteString("---\n\n")
	if n := len(priorOrdinals); n > 0 {
		if m := ordinalPattern.FindStringSubmatch(filepath.Base(path)); m != nil {
			if _, prevBody, err := st.read(st.path(m[1], priorOrdinals[n-1])); err == nil {
				body.WriteString(strings.TrimPrefix(prevBody, "\n"))
			}
		}
	}
	body.WriteString(bodyEntry)
	if !strings.HasSuffix(bodyEntry, "\n") {
		body.WriteString("\n")
	}

	tmp, err := os.CreateTemp(st.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("session: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(body.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("session: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close temp: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Latest reads the highest-ordinal checkpoint for task_id. Returns nil, nil
// if no checkpoint exists. A malformed file is logged-and-skipped by
// falling back to the next-highest ordinal, treating corruption as absence.
func (st *Store) Latest(taskID string) (*State, error) {
	nums, err := st.ordinals(taskID)
	if err != nil {
		return nil, err
	}
	for i := len(nums) - 1; i >= 0; i-- {
		state, _, err := st.read(st.path(taskID, nums[i]))
		if err != nil {
			log.Printf("session: skipping unreadable checkpoint: %v", err)
			continue
		}
		return state, nil
	}
	return nil, nil
}

func (st *Store) read(path string) (*State, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	parts := strings.SplitN(string(data), "---\n", 3)
	if len(parts) < 3 {
		return nil, "", fmt.Errorf("session: malformed checkpoint %s", path)
	}
	var state State
	if err := yaml.Unmarshal([]byte(parts[1]), &state); err != nil {
		return nil, "", fmt.Errorf("session: bad frontmatter in %s: %w", path, err)
	}
	return &state, parts[2], nil
}

// Resume returns the latest state for task_id only if it is resumable.
func (st *Store) Resume(taskID string) (*State, error) {
	state, err := st.Latest(taskID)
	if err != nil || state == nil {
		return nil, err
	}
	if !state.Resumable() {
		return nil, nil
	}
	return state, nil
}

// Finalize writes a terminal checkpoint with status_token=finalized.
// Finalized sessions are never rewritten afterward.
func (st *Store) Finalize(taskID, outcome string) error {
	nums, err := st.ordinals(taskID)
	if err != nil {
		return err
	}
	prev, err := st.Latest(taskID)
	if err != nil {
		return err
	}

	state := State{
		TaskID:      taskID,
		StatusToken: StatusFinalized,
		LastUpdated: time.Now().UTC(),
	}
	if prev != nil {
		state.AgentType = prev.AgentType
		state.Iteration = prev.Iteration
		state.MaxIterations = prev.MaxIterations
		state.StartedAt = prev.StartedAt
		state.SessionID = prev.SessionID
	}

	next := 1
	if len(nums) > 0 {
		next = nums[len(nums)-1] + 1
	}
	return st.writeCheckpoint(st.path(taskID, next), state, "outcome: "+outcome, nums)
}
