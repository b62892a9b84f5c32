package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the progress record kept between runs.
type State struct {
	RunID       string            `json:"run_id"`
	CurrentStep int               `json:"current_step"`
	Completed   []string          `json:"completed_steps"`
	Failed      map[string]string `json:"failed_steps"`
	LastRun     time.Time         `json:"last_run"`
}

// StateFile reads and writes State as indented JSON.
type StateFile struct {
	Path string
}

// Load returns the stored state, or a fresh one when the file does not
// exist.
func (f StateFile) Load() (*State, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{Failed: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", f.Path, err)
	}
	if st.Failed == nil {
		st.Failed = map[string]string{}
	}
	return st, nil
}

// Save stamps LastRun and replaces the file atomically.
func (f StateFile) Save(st *State) error {
	st.LastRun = time.Now()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func (st *State) markCompleted(i int, name string) {
	st.CurrentStep = i + 1
	st.Completed = append(st.Completed, name)
	delete(st.Failed, name)
}

func (st *State) markFailed(i int, name string, err error) {
	st.CurrentStep = i
	st.Failed[name] = err.Error()
}
