package loop

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLoopActive indicates a loop start was rejected because an active
// state already exists. The caller must cancel first.
var ErrLoopActive = errors.New("a loop is already active; cancel it first")

// ErrNoActiveLoop indicates no loop state exists.
var ErrNoActiveLoop = errors.New("no active loop")

// Store persists the LoopState file. The file is always rewritten in
// full, its parent directory is created on demand, and a corrupt or
// missing file reads as Idle rather than an error.
type Store struct {
	path string
}

// NewStore creates a Store for the state file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted state. A missing file, unparsable JSON, or a
// record with Active false all return (nil, nil): the loop is Idle.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read loop state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		// Corrupt state is treated identically to no state.
		return nil, nil
	}
	if !st.Active {
		return nil, nil
	}
	return &st, nil
}

// Save rewrites the state file in full, creating its parent directory
// first.
func (s *Store) Save(st *State) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal loop state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write loop state: %w", err)
	}
	return nil
}

// Clear deletes the state file. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear loop state: %w", err)
	}
	return nil
}

// staleLockAge is how old a lockfile may be before it is presumed
// abandoned and taken over.
const staleLockAge = 30 * time.Second

// lockRetryInterval is the pause between lock acquisition attempts.
const lockRetryInterval = 50 * time.Millisecond

// lockAttempts bounds how long an acquisition waits before giving up.
const lockAttempts = 100

// WithLock runs fn while holding an advisory on-disk lock next to the
// state file, serializing the read-modify-write cycle against
// overlapping idle notifications from the host.
func (s *Store) WithLock(fn func() error) error {
	lockPath := s.path + ".lock"
	if dir := filepath.Dir(lockPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create lock directory: %w", err)
		}
	}

	acquired := false
	for i := 0; i < lockAttempts; i++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			acquired = true
			break
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to acquire state lock: %w", err)
		}
		// A crashed holder leaves the lockfile behind; take it over once
		// it is old enough.
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			_ = os.Remove(lockPath)
			continue
		}
		time.Sleep(lockRetryInterval)
	}
	if !acquired {
		return fmt.Errorf("timed out waiting for state lock at %s", lockPath)
	}
	defer os.Remove(lockPath)

	return fn()
}
