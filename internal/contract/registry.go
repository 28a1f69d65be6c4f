package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Registry caches loaded contracts for the life of one process, reloading
// only at Autonomous Loop startup or on an explicit operator command.
type Registry struct {
	dir string

	mu        sync.RWMutex
	contracts map[string]*Contract
}

// NewRegistry returns a Registry reading contract files from dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, contracts: make(map[string]*Contract)}
}

// Load returns the Contract for agentType, loading and caching it on first use.
func (r *Registry) Load(agentType string) (*Contract, error) {
	r.mu.RLock()
	if c, ok := r.contracts[agentType]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	path := filepath.Join(r.dir, agentType+".yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, agentType)
	}

	c, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if c.AgentType == "" {
		c.AgentType = agentType
	}

	r.mu.Lock()
	r.contracts[agentType] = c
	r.mu.Unlock()
	return c, nil
}

// Reload clears the cache so the next Load re-reads from disk. The
// `orchestrator contracts reload` command does not call it.
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts = make(map[string]*Contract)
}
