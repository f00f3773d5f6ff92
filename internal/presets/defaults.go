package presets

import "github.com/smazurov/lightnode/internal/light"

// DefaultName is the preset seeded into an empty store.
const DefaultName = "default"

// Builtin returns the presets used when nothing is persisted yet.
func Builtin() map[string]light.Durations {
	return map[string]light.Durations{
		DefaultName: light.DefaultDurations(),
		"quick":     {Red: 2, Yellow: 1, Green: 2, Flash: 0.25},
	}
}
