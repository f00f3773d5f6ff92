// Package presets keeps the named timing presets and their durable copy.
//
// Every mutation is written through the Store before memory is updated, so
// a failed write leaves both the file and the in-memory mapping unchanged.
// The mapping is never empty.
package presets

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/light"
	"github.com/smazurov/lightnode/internal/logging"
)

// Controller is the part of the light controller presets drive.
type Controller interface {
	ApplyPreset(name string, durations light.Durations) (light.State, error)
	Durations() light.Durations
	Snapshot() light.State
}

// Preset is a named duration set.
type Preset struct {
	Name      string
	Durations light.Durations
}

// Options configures a Service.
type Options struct {
	Store       Store
	Controller  Controller
	DefaultName string
	EventBus    *events.Bus
	Logger      *slog.Logger
}

// Service owns the preset mapping.
type Service struct {
	mu          sync.Mutex
	presets     map[string]light.Durations
	store       Store
	ctrl        Controller
	defaultName string
	bus         *events.Bus
	logger      *slog.Logger
}

// NewService creates a service holding the built-in presets. Call Load to
// read the store and seed the controller.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("presets")
	}
	defaultName := strings.TrimSpace(opts.DefaultName)
	if defaultName == "" {
		defaultName = DefaultName
	}
	return &Service{
		presets:     Builtin(),
		store:       opts.Store,
		ctrl:        opts.Controller,
		defaultName: defaultName,
		bus:         opts.EventBus,
		logger:      logger,
	}
}

// Load reads the persisted presets and applies the default one to the
// controller. A missing, empty or unreadable file falls back to the
// built-in presets; only a missing file is written back, so a corrupt file
// is left for the operator to inspect.
func (s *Service) Load() (light.State, error) {
	stored, err := s.store.Load()
	persist := false

	switch {
	case err != nil:
		s.logger.Warn("Preset file unreadable, using built-in presets",
			"path", s.store.Path(), "error", err)
		stored = nil
	case stored == nil:
		s.logger.Info("No preset file, using built-in presets", "path", s.store.Path())
		persist = true
	}

	valid := s.sanitize(stored)
	if len(valid) == 0 {
		if len(stored) > 0 {
			s.logger.Warn("Preset file has no usable presets, using built-in presets")
		}
		valid = Builtin()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if persist {
		if saveErr := s.store.Save(valid); saveErr != nil {
			s.logger.Warn("Failed to write initial preset file", "error", saveErr)
		}
	}
	s.presets = valid

	seed := s.fallbackLocked()
	state, err := s.ctrl.ApplyPreset(seed, s.presets[seed])
	if err != nil {
		return state, fmt.Errorf("failed to apply preset %q: %w", seed, err)
	}

	s.logger.Info("Presets loaded", "count", len(s.presets), "active", seed)
	s.publishLocked("loaded", "")
	return state, nil
}

// sanitize drops entries with a blank name or out-of-range durations.
// Names equal after trimming keep the entry whose raw name sorts first.
func (s *Service) sanitize(in map[string]light.Durations) map[string]light.Durations {
	out := make(map[string]light.Durations, len(in))
	for _, name := range slices.Sorted(maps.Keys(in)) {
		d := in[name]
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			s.logger.Warn("Dropping preset with empty name")
			continue
		}
		if err := d.Validate(); err != nil {
			s.logger.Warn("Dropping invalid preset", "preset", trimmed, "error", err)
			continue
		}
		if _, dup := out[trimmed]; dup {
			s.logger.Warn("Dropping duplicate preset name", "preset", trimmed, "raw", name)
			continue
		}
		out[trimmed] = d
	}
	return out
}

// Names returns the preset names in lexicographic order.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namesLocked()
}

// List returns every preset ordered by name.
func (s *Service) List() []Preset {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]Preset, 0, len(s.presets))
	for _, name := range s.namesLocked() {
		list = append(list, Preset{Name: name, Durations: s.presets[name]})
	}
	return list
}

// Get returns the durations stored under name.
func (s *Service) Get(name string) (light.Durations, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.presets[strings.TrimSpace(name)]
	if !ok {
		return light.Durations{}, notFound(name)
	}
	return d, nil
}

// Save stores durations under name, replacing any preset of that name.
func (s *Service) Save(name string, durations light.Durations) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewError(ErrCodeInvalid, "preset name is empty", nil)
	}
	if err := durations.Validate(); err != nil {
		return NewError(ErrCodeInvalid, fmt.Sprintf("preset %q has invalid durations", name), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.presets)
	next[name] = durations
	if err := s.persistLocked(next); err != nil {
		return err
	}

	s.logger.Info("Preset saved", "preset", name)
	s.publishLocked("saved", name)
	return nil
}

// SaveCurrent stores the controller's live durations under name.
func (s *Service) SaveCurrent(name string) error {
	return s.Save(name, s.ctrl.Durations())
}

// Apply copies the named preset into the live durations and marks it
// active.
func (s *Service) Apply(name string) (light.State, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.presets[name]
	if !ok {
		return s.ctrl.Snapshot(), notFound(name)
	}
	return s.ctrl.ApplyPreset(name, d)
}

// Delete removes the named preset. The last preset cannot be deleted. If
// the deleted preset was active, the default preset (or the first
// remaining one) is applied in its place.
func (s *Service) Delete(name string) (light.State, error) {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presets[name]; !ok {
		return s.ctrl.Snapshot(), notFound(name)
	}
	if len(s.presets) == 1 {
		return s.ctrl.Snapshot(), NewError(ErrCodeLastPresetProtected,
			fmt.Sprintf("preset %q is the last one and cannot be deleted", name), nil)
	}

	next := maps.Clone(s.presets)
	delete(next, name)
	if err := s.persistLocked(next); err != nil {
		return s.ctrl.Snapshot(), err
	}
	s.logger.Info("Preset deleted", "preset", name)

	state := s.ctrl.Snapshot()
	if state.ActivePreset == name {
		fallback := s.fallbackLocked()
		applied, err := s.ctrl.ApplyPreset(fallback, s.presets[fallback])
		if err != nil {
			s.logger.Error("Failed to apply fallback preset", "preset", fallback, "error", err)
		} else {
			s.logger.Info("Active preset deleted, fell back", "deleted", name, "active", fallback)
			state = applied
		}
	}

	s.publishLocked("deleted", name)
	return state, nil
}

// Reload replaces the mapping after the store file was edited by hand.
// Invalid entries are dropped; a mapping with nothing usable is ignored.
// If the active preset changed on disk, its new values are applied.
func (s *Service) Reload(mapping map[string]light.Durations) {
	valid := s.sanitize(mapping)
	if len(valid) == 0 {
		s.logger.Warn("Ignoring reloaded preset file without usable presets")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if maps.Equal(valid, s.presets) {
		return
	}
	active := s.ctrl.Snapshot().ActivePreset
	previous, had := s.presets[active]
	s.presets = valid

	// Live timings stay untouched unless the active preset itself was edited.
	if d, ok := valid[active]; ok && (!had || d != previous) {
		if _, err := s.ctrl.ApplyPreset(active, d); err != nil {
			s.logger.Warn("Failed to apply reloaded preset", "preset", active, "error", err)
		}
	}

	s.logger.Info("Presets reloaded", "count", len(valid))
	s.publishLocked("reloaded", "")
}

// persistLocked writes next through the store and only then adopts it.
func (s *Service) persistLocked(next map[string]light.Durations) error {
	if err := s.store.Save(next); err != nil {
		s.logger.Error("Failed to persist presets", "path", s.store.Path(), "error", err)
		return NewError(ErrCodePersistence, "failed to persist presets", err)
	}
	s.presets = next
	return nil
}

// fallbackLocked picks the configured default if present, else the first
// name in lexicographic order.
func (s *Service) fallbackLocked() string {
	if _, ok := s.presets[s.defaultName]; ok {
		return s.defaultName
	}
	return s.namesLocked()[0]
}

func (s *Service) namesLocked() []string {
	return slices.Sorted(maps.Keys(s.presets))
}

func (s *Service) publishLocked(action, name string) {
	s.bus.Publish(events.PresetsChangedEvent{
		Action:    action,
		Name:      name,
		Presets:   s.namesLocked(),
		Timestamp: events.Now(),
	})
}

func notFound(name string) error {
	return NewError(ErrCodeNotFound, fmt.Sprintf("preset %q not found", name), nil)
}
