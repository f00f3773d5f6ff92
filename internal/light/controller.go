// Package light implements the traffic-light state machine.
//
// A Controller owns the three outputs. Exactly one mode is active at a time
// and at most one worker goroutine (sequencer or blinker) runs on its
// behalf. Every mode change cancels the previous worker, joins it with a
// bounded timeout and bumps a generation counter; workers check that
// counter under the state lock before each write, so a superseded worker
// can never touch the outputs again.
package light

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/output"
)

// DefaultJoinTimeout bounds how long a transition waits for the previous
// worker to exit.
const DefaultJoinTimeout = 50 * time.Millisecond

// Pins maps each colour (indexed by Color) to a driver pin.
type Pins [3]int

// DefaultPins returns the BCM pins of the reference wiring.
func DefaultPins() Pins {
	return Pins{Red: 22, Yellow: 27, Green: 17}
}

// Validate rejects negative or duplicate pins.
func (p Pins) Validate() error {
	seen := make(map[int]Color, len(p))
	for _, c := range Colors {
		pin := p[c]
		if pin < 0 {
			return fmt.Errorf("%s pin %d is negative", c.Key(), pin)
		}
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("%s and %s share pin %d", other.Key(), c.Key(), pin)
		}
		seen[pin] = c
	}
	return nil
}

// Levels holds the output level last written per colour.
type Levels [3]bool

// Map converts the levels into the colour-keyed form used by events.
func (l Levels) Map() events.Outputs {
	out := make(events.Outputs, len(l))
	for _, c := range Colors {
		out[c.Key()] = l[c]
	}
	return out
}

// High returns the colours currently on.
func (l Levels) High() []Color {
	var on []Color
	for _, c := range Colors {
		if l[c] {
			on = append(on, c)
		}
	}
	return on
}

// State is an immutable snapshot of the controller.
type State struct {
	Mode         Mode
	Durations    Durations
	ActivePreset string
	Outputs      Levels
	Driver       string
}

// Options configures a Controller.
type Options struct {
	Driver       output.Driver
	Pins         Pins
	Durations    Durations
	ActivePreset string
	JoinTimeout  time.Duration
	EventBus     *events.Bus
	Logger       *slog.Logger
}

// Controller is the single owner of the output driver.
type Controller struct {
	// transitionMu serializes mode changes. It may be held across the
	// bounded join, mu never is.
	transitionMu sync.Mutex

	mu           sync.Mutex
	mode         Mode
	durations    Durations
	activePreset string
	outputs      Levels
	gen          uint64
	worker       *worker
	closed       bool

	workers sync.WaitGroup

	driver      output.Driver
	pins        Pins
	joinTimeout time.Duration
	bus         *events.Bus
	logger      *slog.Logger
}

type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
	gen    uint64
	mode   Mode
}

// New creates a controller in Stop mode and drives every output LOW.
func New(opts Options) (*Controller, error) {
	if opts.Driver == nil {
		return nil, errors.New("light: output driver is required")
	}

	pins := opts.Pins
	if pins == (Pins{}) {
		pins = DefaultPins()
	}
	if err := pins.Validate(); err != nil {
		return nil, fmt.Errorf("light: %w", err)
	}

	durations := opts.Durations
	if durations == (Durations{}) {
		durations = DefaultDurations()
	}
	if err := durations.Validate(); err != nil {
		return nil, fmt.Errorf("light: %w", err)
	}

	joinTimeout := opts.JoinTimeout
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("light")
	}

	c := &Controller{
		mode:         StopMode(),
		durations:    durations,
		activePreset: opts.ActivePreset,
		driver:       opts.Driver,
		pins:         pins,
		joinTimeout:  joinTimeout,
		bus:          opts.EventBus,
		logger:       logger,
	}

	c.mu.Lock()
	c.allOffLocked()
	c.mu.Unlock()

	logger.Info("Light controller ready",
		"driver", opts.Driver.Name(),
		"pins", map[string]int{"red": pins[Red], "yellow": pins[Yellow], "green": pins[Green]},
		"join_timeout", joinTimeout)

	return c, nil
}

// StartSequence cycles red, green, yellow. Calling it while already
// sequencing restarts the cycle from red.
func (c *Controller) StartSequence() State {
	return c.mustApply(SequenceMode())
}

// Stop cancels any worker and turns every output off.
func (c *Controller) Stop() State {
	return c.mustApply(StopMode())
}

// Hold keeps color on and the other outputs off.
func (c *Controller) Hold(color Color) State {
	return c.mustApply(HoldMode(color))
}

// StartFlash blinks color with the live flash interval. The other outputs
// are turned off.
func (c *Controller) StartFlash(color Color) State {
	return c.mustApply(FlashMode(color))
}

func (c *Controller) mustApply(mode Mode) State {
	state, err := c.Apply(mode)
	if err != nil {
		c.logger.Warn("Mode change ignored", "mode", mode.String(), "error", err)
	}
	return state
}

// Apply switches to mode. It fails only for a malformed mode or after Close.
func (c *Controller) Apply(mode Mode) (State, error) {
	if !mode.Valid() {
		return c.Snapshot(), fmt.Errorf("invalid mode %v", mode)
	}

	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	return c.transitionLocked(mode)
}

// transitionLocked requires transitionMu.
func (c *Controller) transitionLocked(target Mode) (State, error) {
	c.mu.Lock()
	if c.closed {
		state := c.snapshotLocked()
		c.mu.Unlock()
		return state, ErrClosed
	}
	old := c.worker
	c.worker = nil
	c.mu.Unlock()

	c.join(old)

	c.mu.Lock()
	previous := c.mode
	c.gen++
	c.mode = target
	changed := c.enterLocked(target)
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("Mode changed", "mode", target.String(), "previous", previous.String())

	if changed {
		c.publishOutputs(state)
	}
	c.bus.Publish(events.ModeChangedEvent{
		ID:        events.NewID(),
		Mode:      target.String(),
		Previous:  previous.String(),
		Outputs:   state.Outputs.Map(),
		Timestamp: events.Now(),
	})

	return state, nil
}

// join cancels w and waits for it to exit, at most joinTimeout. A worker
// that misses the deadline is harmless: the generation bump that follows
// disables all of its writes.
func (c *Controller) join(w *worker) {
	if w == nil {
		return
	}
	w.cancel()

	timer := time.NewTimer(c.joinTimeout)
	defer timer.Stop()

	select {
	case <-w.done:
	case <-timer.C:
		c.logger.Warn("Worker did not exit in time",
			"mode", w.mode.String(),
			"generation", w.gen,
			"timeout", c.joinTimeout)
	}
}

// enterLocked issues the first writes of mode and starts its worker.
// Requires mu.
func (c *Controller) enterLocked(mode Mode) bool {
	switch mode.Kind {
	case ModeSequence:
		changed := c.showOnlyLocked(Red)
		c.spawnLocked(mode, c.durations.Phase(Red))
		return changed
	case ModeHold:
		return c.showOnlyLocked(mode.Color)
	case ModeFlash:
		changed := c.showOnlyLocked(mode.Color)
		c.spawnLocked(mode, c.durations.FlashInterval())
		return changed
	default:
		return c.allOffLocked()
	}
}

// SetDurations applies the accepted fields of update to the live timings.
// Rejected fields are returned in a *ValidationError and keep their
// previous value. A running sequence picks the new values up at its next
// phase.
func (c *Controller) SetDurations(update DurationUpdate) (State, error) {
	c.mu.Lock()
	if c.closed {
		state := c.snapshotLocked()
		c.mu.Unlock()
		return state, ErrClosed
	}
	next, changed, err := update.applyTo(c.durations)
	c.durations = next
	state := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("Rejected duration fields", "error", err)
	}
	if changed {
		c.logger.Info("Durations updated",
			"red", state.Durations.Red,
			"yellow", state.Durations.Yellow,
			"green", state.Durations.Green,
			"flash", state.Durations.Flash)
		c.publishDurations(state)
	}
	return state, err
}

// ApplyPreset replaces the live timings and records name as the active
// preset.
func (c *Controller) ApplyPreset(name string, durations Durations) (State, error) {
	if err := durations.Validate(); err != nil {
		return c.Snapshot(), err
	}

	c.mu.Lock()
	if c.closed {
		state := c.snapshotLocked()
		c.mu.Unlock()
		return state, ErrClosed
	}
	c.durations = durations
	c.activePreset = name
	state := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("Preset applied", "preset", name)
	c.publishDurations(state)
	return state, nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Durations returns the live timings.
func (c *Controller) Durations() Durations {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.durations
}

// Close stops the controller, waits for every worker to exit and releases
// the output driver. Later mode changes fail with ErrClosed.
func (c *Controller) Close() error {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	if _, err := c.transitionLocked(StopMode()); errors.Is(err, ErrClosed) {
		return nil
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.workers.Wait()

	c.logger.Info("Light controller closed")
	if err := c.driver.Close(); err != nil {
		return fmt.Errorf("failed to close output driver: %w", err)
	}
	return nil
}

func (c *Controller) snapshotLocked() State {
	return State{
		Mode:         c.mode,
		Durations:    c.durations,
		ActivePreset: c.activePreset,
		Outputs:      c.outputs,
		Driver:       c.driver.Name(),
	}
}

// showOnlyLocked turns every other output off before turning color on, so
// two outputs are never on together. Requires mu.
func (c *Controller) showOnlyLocked(color Color) bool {
	changed := false
	for _, other := range Colors {
		if other != color {
			changed = c.writeLocked(other, false) || changed
		}
	}
	return c.writeLocked(color, true) || changed
}

func (c *Controller) allOffLocked() bool {
	changed := false
	for _, color := range Colors {
		changed = c.writeLocked(color, false) || changed
	}
	return changed
}

// writeLocked drives one output and reports whether its level changed.
// Failures are logged and not retried. Requires mu.
func (c *Controller) writeLocked(color Color, high bool) bool {
	pin := c.pins[color]
	if err := c.driver.Write(pin, high); err != nil {
		c.logger.Error("Output write failed",
			"color", color.Key(),
			"pin", pin,
			"high", high,
			"error", err)
		return false
	}
	changed := c.outputs[color] != high
	c.outputs[color] = high
	return changed
}

func (c *Controller) publishOutputs(state State) {
	c.bus.Publish(events.OutputChangedEvent{
		Mode:      state.Mode.String(),
		Outputs:   state.Outputs.Map(),
		Timestamp: events.Now(),
	})
}

func (c *Controller) publishDurations(state State) {
	c.bus.Publish(events.DurationsChangedEvent{
		Durations:    state.Durations.Event(),
		ActivePreset: state.ActivePreset,
		Timestamp:    events.Now(),
	})
}

// Event converts d into its wire form.
func (d Durations) Event() events.Durations {
	return events.Durations{Red: d.Red, Yellow: d.Yellow, Green: d.Green, Flash: d.Flash}
}
