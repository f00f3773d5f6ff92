package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type constants for kelindar/event.
const (
	TypeModeChanged uint32 = iota + 1
	TypeOutputChanged
	TypeDurationsChanged
	TypePresetsChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Outputs maps colour names (red, yellow, green) to their current level.
type Outputs map[string]bool

// Durations is the wire form of the live timing set, in seconds.
type Durations struct {
	Red    float64 `json:"red" example:"5" doc:"Red phase length in seconds"`
	Yellow float64 `json:"yellow" example:"3" doc:"Yellow phase length in seconds"`
	Green  float64 `json:"green" example:"5" doc:"Green phase length in seconds"`
	Flash  float64 `json:"flash" example:"0.5" doc:"Flash half-period in seconds"`
}

// ModeChangedEvent is published after every mode transition.
type ModeChangedEvent struct {
	ID        string  `json:"id" doc:"Unique transition identifier"`
	Mode      string  `json:"mode" example:"FLASH_RED" doc:"New mode"`
	Previous  string  `json:"previous" example:"SEQUENCE" doc:"Mode before the transition"`
	Outputs   Outputs `json:"outputs" doc:"Output levels after the transition"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ModeChangedEvent.
func (e ModeChangedEvent) Type() uint32 { return TypeModeChanged }

// OutputChangedEvent is published whenever a worker or transition writes the outputs.
type OutputChangedEvent struct {
	Mode      string  `json:"mode" example:"SEQUENCE" doc:"Mode that issued the write"`
	Outputs   Outputs `json:"outputs" doc:"Output levels after the write"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for OutputChangedEvent.
func (e OutputChangedEvent) Type() uint32 { return TypeOutputChanged }

// DurationsChangedEvent is published when the live timings change.
type DurationsChangedEvent struct {
	Durations    Durations `json:"durations" doc:"Live timings"`
	ActivePreset string    `json:"active_preset" example:"default" doc:"Last applied preset"`
	Timestamp    string    `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DurationsChangedEvent.
func (e DurationsChangedEvent) Type() uint32 { return TypeDurationsChanged }

// PresetsChangedEvent is published after a preset is saved, deleted or reloaded.
type PresetsChangedEvent struct {
	Action    string   `json:"action" example:"saved" doc:"saved, deleted or reloaded"`
	Name      string   `json:"name,omitempty" example:"night" doc:"Affected preset"`
	Presets   []string `json:"presets" doc:"All preset names after the change"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PresetsChangedEvent.
func (e PresetsChangedEvent) Type() uint32 { return TypePresetsChanged }

// NewID returns an identifier for a published event.
func NewID() string {
	return uuid.NewString()
}

// Now formats the current time the way all events carry it.
func Now() string {
	return time.Now().Format(time.RFC3339Nano)
}
