// Package contract loads and validates per-agent-type policy documents: the
// iteration budget, action whitelist, diff caps, and branch policy that
// bound what an agent is allowed to do for one task attempt.
package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Action is a member of the closed vocabulary of externally observable
// operations the Governance Enforcer mediates.
type Action string

const (
	ActionReadFile       Action = "read_file"
	ActionWriteFile      Action = "write_file"
	ActionCreateFile     Action = "create_file"
	ActionDeleteFile     Action = "delete_file"
	ActionRunTests       Action = "run_tests"
	ActionRunLint        Action = "run_lint"
	ActionRunTypecheck   Action = "run_typecheck"
	ActionGitCommit      Action = "git_commit"
	ActionGitPush        Action = "git_push"
	ActionRunBuild       Action = "run_build"
)

// knownActions is the closed vocabulary used to validate contract files.
var knownActions = map[Action]bool{
	ActionReadFile:     true,
	ActionWriteFile:    true,
	ActionCreateFile:   true,
	ActionDeleteFile:   true,
	ActionRunTests:     true,
	ActionRunLint:      true,
	ActionRunTypecheck: true,
	ActionGitCommit:    true,
	ActionGitPush:      true,
	ActionRunBuild:     true,
}

// Limits bounds a single task attempt.
type Limits struct {
	MaxIterations   int `yaml:"max_iterations"`
	MaxFilesChanged int `yaml:"max_files_changed"`
	MaxLinesAdded   int `yaml:"max_lines_added"`
	MaxLinesRemoved int `yaml:"max_lines_removed"`
}

// Contract is the policy document for one agent type.
type Contract struct {
	AgentType       string   `yaml:"agent_type"`
	Limits          Limits   `yaml:"limits"`
	AllowedActions  []Action `yaml:"allowed_actions"`
	ForbiddenActions []Action `yaml:"forbidden_actions"`
	BranchPolicy    string   `yaml:"branch_policy"`
	RequiresReview  []string `yaml:"requires_review"`

	allowedSet    map[Action]bool
	forbiddenSet  map[Action]bool
	branchPattern *regexp.Regexp
}

// IsAllowed reports whether action is in the allowed set.
func (c *Contract) IsAllowed(a Action) bool {
	return c.allowedSet[a]
}

// IsForbidden reports whether action is in the forbidden set.
func (c *Contract) IsForbidden(a Action) bool {
	return c.forbiddenSet[a]
}

// MatchesBranchPolicy reports whether branch satisfies the contract's policy.
// An empty policy matches everything.
func (c *Contract) MatchesBranchPolicy(branch string) bool {
	if c.branchPattern == nil {
		return true
	}
	return c.branchPattern.MatchString(branch)
}

// RequiresHumanReview reports whether path matches one of the requires_review globs.
func (c *Contract) RequiresHumanReview(path string) bool {
	for _, pattern := range c.RequiresReview {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func (c *Contract) index() error {
	c.allowedSet = make(map[Action]bool, len(c.AllowedActions))
	for _, a := range c.AllowedActions {
		c.allowedSet[a] = true
	}
	c.forbiddenSet = make(map[Action]bool, len(c.ForbiddenActions))
	for _, a := range c.ForbiddenActions {
		c.forbiddenSet[a] = true
	}
	for a := range c.allowedSet {
		if c.forbiddenSet[a] {
			return fmt.Errorf("%w: action %q in both allowed and forbidden", ErrContractInvalid, a)
		}
	}
	if c.BranchPolicy != "" {
		re, err := regexp.Compile(c.BranchPolicy)
		if err != nil {
			return fmt.Errorf("%w: invalid branch_policy: %v", ErrContractInvalid, err)
		}
		c.branchPattern = re
	}
	return nil
}

func (c *Contract) validate() error {
	if c.Limits.MaxIterations < 1 || c.Limits.MaxIterations > 200 {
		return fmt.Errorf("%w: max_iterations must be 1-200, got %d", ErrContractInvalid, c.Limits.MaxIterations)
	}
	for _, a := range append(append([]Action{}, c.AllowedActions...), c.ForbiddenActions...) {
		if !knownActions[a] {
			return fmt.Errorf("%w: unknown action %q", ErrContractInvalid, a)
		}
	}
	return c.index()
}

// loadFile parses one contract YAML file from disk.
func loadFile(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contract: read %s: %w", path, err)
	}
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrContractInvalid, path, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
