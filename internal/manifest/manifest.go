// Package manifest maintains data.yaml, the class registry and pool
// pointers read by the detector trainer.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/NourAchahlaou/detectionSystemAirbus/internal/common"
)

// Manifest is the trainer contract. Field names and types must not change.
type Manifest struct {
	Names map[int]string `yaml:"names"`
	NC    int            `yaml:"nc"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
}

// ClassIDs returns the registered ids in ascending order.
func (m *Manifest) ClassIDs() []int {
	ids := make([]int, 0, len(m.Names))
	for id := range m.Names {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Store reads and rewrites one manifest file. Writes from all Stores in the
// process are serialized, and each write replaces the whole file.
type Store struct {
	Path  string
	Train string // default train pointer for a new manifest
	Val   string // default val pointer for a new manifest
}

// fileMu serializes read-modify-write cycles across Stores.
var fileMu sync.Mutex

// NewStore returns a store for path with default pool pointers.
func NewStore(path, train, val string) *Store {
	return &Store{Path: path, Train: train, Val: val}
}

// Load returns the manifest on disk, or an empty one carrying the default
// pointers when the file does not exist yet.
func (s *Store) Load() (*Manifest, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Manifest{Names: map[int]string{}, Train: s.Train, Val: s.Val}, nil
		}
		return nil, common.IOFailure("load manifest", "failed to read "+s.Path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, common.InvalidPrecondition("load manifest", "corrupt manifest %s: %v", s.Path, err)
	}
	if m.Names == nil {
		m.Names = map[int]string{}
	}
	if m.Train == "" {
		m.Train = s.Train
	}
	if m.Val == "" {
		m.Val = s.Val
	}
	m.NC = len(m.Names)
	return &m, nil
}

// Register records classID -> label and rewrites the manifest. Registering
// the same pair twice is a no-op apart from the rewrite.
func (s *Store) Register(classID int, label string) (*Manifest, error) {
	if classID < 0 {
		return nil, common.InvalidPrecondition("register class", "class id %d is negative", classID)
	}
	if label == "" {
		return nil, common.InvalidPrecondition("register class", "empty label for class %d", classID)
	}

	fileMu.Lock()
	defer fileMu.Unlock()

	m, err := s.Load()
	if err != nil {
		return nil, err
	}

	if prev, ok := m.Names[classID]; ok && prev != label {
		slog.Warn("Replacing class name in manifest", "class_id", classID, "old", prev, "new", label)
	}
	m.Names[classID] = label

	if err := s.save(m); err != nil {
		return nil, err
	}
	slog.Info("Registered class in manifest", "class_id", classID, "label", label, "nc", m.NC, "path", s.Path)
	return m, nil
}

// Unregister removes classID and rewrites the manifest.
func (s *Store) Unregister(classID int) (*Manifest, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	m, err := s.Load()
	if err != nil {
		return nil, err
	}
	if _, ok := m.Names[classID]; !ok {
		return m, nil
	}
	delete(m.Names, classID)
	if err := s.save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// UnregisterIf removes classID only while it still maps to label, so a class
// re-registered for another label survives.
func (s *Store) UnregisterIf(classID int, label string) (*Manifest, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	m, err := s.Load()
	if err != nil {
		return nil, err
	}
	if m.Names[classID] != label {
		return m, nil
	}
	delete(m.Names, classID)
	if err := s.save(m); err != nil {
		return nil, err
	}
	slog.Info("Unregistered class from manifest", "class_id", classID, "label", label, "path", s.Path)
	return m, nil
}

// save writes the manifest to a temp file next to the target and renames it
// into place.
func (s *Store) save(m *Manifest) error {
	m.NC = len(m.Names)

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return common.IOFailure("save manifest", "failed to create "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".data-*.yaml")
	if err != nil {
		return common.IOFailure("save manifest", "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return common.IOFailure("save manifest", "failed to write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return common.IOFailure("save manifest", "failed to sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return common.IOFailure("save manifest", "failed to close temp file", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return common.IOFailure("save manifest", "failed to replace "+s.Path, err)
	}
	return nil
}
