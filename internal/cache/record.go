package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/buildloom/buildloom/internal/task"
)

// StepStatus is the recorded outcome of a single build or install step.
type StepStatus string

const (
	// StepUnknown means the step has never completed on this cache.
	StepUnknown StepStatus = ""
	// StepSuccess means the step completed successfully.
	StepSuccess StepStatus = "success"
	// StepFailed means the last attempt of the step failed.
	StepFailed StepStatus = "failed"
)

// Record is the persisted per-task cache state consulted for the build-once
// and install-once flags. It is written only after a step completes.
type Record struct {
	BuildStatus   StepStatus `json:"build_status,omitempty"`
	BuildTime     time.Time  `json:"build_time,omitzero"`
	InstallStatus StepStatus `json:"install_status,omitempty"`
	InstallTime   time.Time  `json:"install_time,omitzero"`
}

// BuildCached reports whether a prior successful build output exists.
func (r Record) BuildCached() bool {
	return r.BuildStatus == StepSuccess
}

// InstallCached reports whether a prior successful install exists.
func (r Record) InstallCached() bool {
	return r.InstallStatus == StepSuccess
}

// Store reads and writes cache records under <root>/state. The scheduler is
// the only writer; records are mutated exclusively after a step finishes.
type Store struct {
	layout Layout
}

// NewStore returns a record store over the given layout.
func NewStore(layout Layout) *Store {
	return &Store{layout: layout}
}

func (s *Store) recordPath(id task.Identity) string {
	return filepath.Join(s.layout.Root, "state", id.Slug()+".json")
}

// Load returns the record for the given identity. A missing record is not
// an error; it loads as the zero Record.
func (s *Store) Load(id task.Identity) (Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("reading cache record for %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding cache record for %s: %w", id, err)
	}
	return rec, nil
}

// Save writes the record for the given identity.
func (s *Store) Save(id task.Identity, rec Record) error {
	path := s.recordPath(id)
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache record for %s: %w", id, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache record for %s: %w", id, err)
	}
	return nil
}

// Clear removes the record for the given identity, if present.
func (s *Store) Clear(id task.Identity) error {
	err := os.Remove(s.recordPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing cache record for %s: %w", id, err)
	}
	return nil
}
