package store

import (
	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/lightnode/internal/presets"
)

// NewTOML creates a TOML-backed store.
func NewTOML(path string) presets.Store {
	if path == "" {
		path = "presets.toml"
	}
	return &fileStore{path: path, codec: tomlCodec{}}
}

type tomlCodec struct{}

func (tomlCodec) marshal(f *file) ([]byte, error)      { return toml.Marshal(f) }
func (tomlCodec) unmarshal(data []byte, f *file) error { return toml.Unmarshal(data, f) }
func (tomlCodec) name() string                         { return "toml" }
