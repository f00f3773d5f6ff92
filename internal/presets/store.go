package presets

import "github.com/smazurov/lightnode/internal/light"

// Store persists the full preset mapping.
type Store interface {
	// Load returns the persisted mapping. A missing file yields a nil map
	// and no error; a file that cannot be parsed yields an error.
	Load() (map[string]light.Durations, error)

	// Save replaces the persisted mapping atomically.
	Save(presets map[string]light.Durations) error

	// Path is the backing file, watched for external edits.
	Path() string
}
