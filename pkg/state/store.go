// Package state persists the bot's registries as flat keyed JSON blobs and
// provides the access contract each component uses to read and mutate them.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Fixed region names. Each region is one flat mapping persisted
// independently so state survives process restarts.
const (
	RegionLedger  = "fairness_ledger"
	RegionQueue   = "review_queue"
	RegionTeams   = "team_registry"
	RegionAliases = "alias_registry"
)

const (
	stateDirPerms  = 0o700
	stateFilePerms = 0o600
)

// Store loads and saves one named region at a time.
type Store interface {
	// Load reads a region into v. The bool reports whether the region existed.
	Load(name string, v any) (bool, error)
	// Save writes a region atomically.
	Save(name string, v any) error
}

// DiskStore persists each region as a JSON file under a state directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the state directory if needed. The path must be
// absolute so a cwd change can never silently fork the state.
func NewDiskStore(dir string) (*DiskStore, error) {
	cleanPath := filepath.Clean(dir)
	if !filepath.IsAbs(cleanPath) {
		return nil, errors.New("state directory must be absolute path")
	}
	if err := os.MkdirAll(cleanPath, stateDirPerms); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &DiskStore{dir: cleanPath}, nil
}

// Load reads a region file into v.
func (s *DiskStore) Load(name string, v any) (bool, error) {
	path := s.regionPath(name)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open state region %s: %w", name, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("Failed to close state file", "component", "state", "path", path, "error", err)
		}
	}()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return false, fmt.Errorf("failed to decode state region %s: %w", name, err)
	}
	return true, nil
}

// Save writes a region file via temp+rename so a crash mid-write can never
// leave a truncated region behind.
func (s *DiskStore) Save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state region %s: %w", name, err)
	}

	path := s.regionPath(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, stateFilePerms); err != nil {
		return fmt.Errorf("failed to write state region %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to publish state region %s: %w", name, err)
	}
	return nil
}

func (s *DiskStore) regionPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// MemoryStore keeps regions in memory. Used in tests and when no state
// directory is configured.
type MemoryStore struct {
	regions map[string]json.RawMessage
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{regions: make(map[string]json.RawMessage)}
}

// Load reads a region into v.
func (s *MemoryStore) Load(name string, v any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.regions[name]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode state region %s: %w", name, err)
	}
	return true, nil
}

// Save stores a region.
func (s *MemoryStore) Save(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal state region %s: %w", name, err)
	}
	s.mu.Lock()
	s.regions[name] = raw
	s.mu.Unlock()
	return nil
}
