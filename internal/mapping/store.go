package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dynaccess/pkg/dynaccess"
)

// Store persists the domain mapping as a JSON object on disk. The file is
// replaced wholesale, exactly once per pass.
type Store struct {
	path string
}

// NewStore creates a store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the mapping from disk. A missing file is a valid first-run
// state and yields an empty mapping; a corrupt file is a fatal error.
func (s *Store) Load() (dynaccess.Mapping, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return dynaccess.Mapping{}, nil
		}
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var m dynaccess.Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	if m == nil {
		m = dynaccess.Mapping{}
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping file: %w", err)
	}

	return m, nil
}

// Save writes the full mapping to disk. The data goes to a temporary file
// in the same directory first and is then renamed into place, so a crash
// mid-write cannot leave a truncated file behind.
func (s *Store) Save(m dynaccess.Mapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create mapping directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp mapping: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename mapping file: %w", err)
	}

	return nil
}
