package output

import (
	"log/slog"
	"maps"
	"sync"
)

// Simulated keeps pin levels in memory. It is the default on machines
// without GPIO and the driver used by tests.
type Simulated struct {
	mu     sync.Mutex
	levels map[int]bool
	writes int
	closed bool
	logger *slog.Logger
}

// NewSimulated creates an in-memory driver. logger may be nil.
func NewSimulated(logger *slog.Logger) *Simulated {
	return &Simulated{
		levels: make(map[int]bool),
		logger: logger,
	}
}

// Write records the level for pin.
func (s *Simulated) Write(pin int, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.levels[pin] = high
	s.writes++

	if s.logger != nil {
		s.logger.Debug("[sim] output write", "pin", pin, "high", high)
	}
	return nil
}

// Level reports the last level written to pin (LOW if never written).
func (s *Simulated) Level(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[pin]
}

// Levels returns a copy of all pin levels written so far.
func (s *Simulated) Levels() map[int]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.levels)
}

// Writes returns the number of successful writes.
func (s *Simulated) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Name returns "simulated".
func (s *Simulated) Name() string {
	return "simulated"
}

// Close marks the driver closed; later writes fail with ErrClosed.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
