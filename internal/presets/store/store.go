// Package store persists presets to a TOML or YAML file.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/lightnode/internal/light"
	"github.com/smazurov/lightnode/internal/presets"
)

const currentVersion = 1

// file is the on-disk layout shared by both encodings.
type file struct {
	Version int                        `toml:"version" yaml:"version"`
	Presets map[string]light.Durations `toml:"presets" yaml:"presets"`
}

// codec converts a file to and from bytes.
type codec interface {
	marshal(f *file) ([]byte, error)
	unmarshal(data []byte, f *file) error
	name() string
}

// fileStore implements presets.Store on top of a codec.
type fileStore struct {
	path  string
	codec codec
}

// New picks the encoding from the file extension: .yaml and .yml use YAML,
// anything else TOML.
func New(path string) presets.Store {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAML(path)
	default:
		return NewTOML(path)
	}
}

func (s *fileStore) Path() string {
	return s.path
}

// Load reads the preset file. A missing file returns (nil, nil); an empty
// file returns an empty map.
func (s *fileStore) Load() (map[string]light.Durations, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}

	var f file
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := s.codec.unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse %s presets file: %w", s.codec.name(), err)
		}
	}
	if f.Version > currentVersion {
		return nil, fmt.Errorf("presets file version %d is newer than supported version %d", f.Version, currentVersion)
	}
	if f.Presets == nil {
		f.Presets = make(map[string]light.Durations)
	}
	return f.Presets, nil
}

// Save writes the mapping to a temporary file in the same directory and
// renames it over the store file.
func (s *fileStore) Save(p map[string]light.Durations) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create presets directory: %w", err)
	}

	data, err := s.codec.marshal(&file{Version: currentVersion, Presets: p})
	if err != nil {
		return fmt.Errorf("failed to marshal presets: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary presets file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write presets file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync presets file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close presets file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set presets file mode: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace presets file: %w", err)
	}
	return nil
}
