package poller

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CursorStore persists the highest mailbox UID already handed to the
// pipeline as a single JSON-encoded integer. Single writer; read once at
// startup.
type CursorStore struct {
	path string
}

// NewCursorStore creates a store backed by the given file path.
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{path: path}
}

// Load reads the persisted cursor. A missing file means no mail has been
// processed yet and yields zero.
func (s *CursorStore) Load() (uint32, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor file: %w", err)
	}

	var cursor uint32
	if err := json.Unmarshal(data, &cursor); err != nil {
		return 0, fmt.Errorf("parse cursor file %s: %w", s.path, err)
	}
	return cursor, nil
}

// Store atomically overwrites the cursor via a temp file and rename, so a
// crash mid-write never leaves a corrupt cursor.
func (s *CursorStore) Store(uid uint32) error {
	data, err := json.Marshal(uid)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".cursor-*")
	if err != nil {
		return fmt.Errorf("create cursor temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cursor temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close cursor temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace cursor file: %w", err)
	}
	return nil
}
