package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/kernforge/internal/fsutil"
)

// Stamp records a successful build of one node.
type Stamp struct {
	Node string `json:"node"`
	Key  string `json:"key"`
	// Target is the descriptor hash the outputs were built for.
	Target string `json:"target,omitempty"`
	// Outputs maps output path to content digest.
	Outputs map[string]string `json:"outputs"`
}

// Store keeps one stamp file per node in a directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory stamps are kept in.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load returns the stamp for id, or nil when there is none. An unreadable
// stamp is treated as missing.
func (s *Store) Load(id string) (*Stamp, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read stamp %s: %w", id, err)
	}
	var st Stamp
	if err := json.Unmarshal(data, &st); err != nil || st.Node != id {
		return nil, nil
	}
	return &st, nil
}

// Save writes st atomically.
func (s *Store) Save(st *Stamp) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create stamp dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stamp %s: %w", st.Node, err)
	}
	return fsutil.WriteFileAtomic(s.path(st.Node), append(data, '\n'), 0o644)
}

// Remove deletes the stamp for id. A missing stamp is not an error.
func (s *Store) Remove(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stamp %s: %w", id, err)
	}
	return nil
}
