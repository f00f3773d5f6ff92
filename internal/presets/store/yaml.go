package store

import (
	"gopkg.in/yaml.v3"

	"github.com/smazurov/lightnode/internal/presets"
)

// NewYAML creates a YAML-backed store.
func NewYAML(path string) presets.Store {
	if path == "" {
		path = "presets.yaml"
	}
	return &fileStore{path: path, codec: yamlCodec{}}
}

type yamlCodec struct{}

func (yamlCodec) marshal(f *file) ([]byte, error)      { return yaml.Marshal(f) }
func (yamlCodec) unmarshal(data []byte, f *file) error { return yaml.Unmarshal(data, f) }
func (yamlCodec) name() string                         { return "yaml" }
