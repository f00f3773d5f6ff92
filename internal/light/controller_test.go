package light

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/output"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T, d Durations) (*Controller, *output.Simulated) {
	t.Helper()
	drv := output.NewSimulated(nil)
	c, err := New(Options{
		Driver:    drv,
		Durations: d,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, drv
}

// levels reads the simulated pins back in colour order.
func levels(drv *output.Simulated) Levels {
	pins := DefaultPins()
	var l Levels
	for _, c := range Colors {
		l[c] = drv.Level(pins[c])
	}
	return l
}

// sampleAt sleeps until start+offset and returns the pin levels.
func sampleAt(drv *output.Simulated, start time.Time, offset time.Duration) Levels {
	time.Sleep(time.Until(start.Add(offset)))
	return levels(drv)
}

func only(c Color) Levels {
	var l Levels
	l[c] = true
	return l
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Logger: quietLogger()})
	assert.Error(t, err)

	_, err = New(Options{
		Driver: output.NewSimulated(nil),
		Pins:   Pins{1, 1, 2},
		Logger: quietLogger(),
	})
	assert.Error(t, err)

	_, err = New(Options{
		Driver:    output.NewSimulated(nil),
		Durations: Durations{Red: 0.01, Yellow: 1, Green: 1, Flash: 1},
		Logger:    quietLogger(),
	})
	assert.True(t, IsValidation(err))
}

func TestNew_StartsStopped(t *testing.T) {
	c, drv := newTestController(t, Durations{})

	state := c.Snapshot()
	assert.Equal(t, StopMode(), state.Mode)
	assert.Equal(t, DefaultDurations(), state.Durations)
	assert.Equal(t, "simulated", state.Driver)
	assert.Equal(t, Levels{}, levels(drv))
	assert.Equal(t, 3, drv.Writes())
}

func TestHold_Exact(t *testing.T) {
	c, drv := newTestController(t, Durations{})

	for _, color := range Colors {
		state := c.Hold(color)
		assert.Equal(t, HoldMode(color), state.Mode)
		assert.Equal(t, only(color), state.Outputs)
		assert.Equal(t, only(color), levels(drv))
	}

	// Nothing runs in hold mode, so the levels stay put.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, only(Green), levels(drv))
}

func TestStop_AllLow(t *testing.T) {
	c, drv := newTestController(t, Durations{})

	c.StartSequence()
	state := c.Stop()
	assert.Equal(t, StopMode(), state.Mode)
	assert.Equal(t, Levels{}, state.Outputs)
	assert.Equal(t, Levels{}, levels(drv))

	// Stop is idempotent.
	state = c.Stop()
	assert.Equal(t, StopMode(), state.Mode)
}

func TestStartFlash_ThenStop(t *testing.T) {
	c, drv := newTestController(t, Durations{Red: 5, Yellow: 3, Green: 5, Flash: 0.1})

	c.StartFlash(Red)
	time.Sleep(150 * time.Millisecond) // mid off-phase or later

	c.Stop()
	assert.Equal(t, Levels{}, levels(drv))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, Levels{}, levels(drv), "no write after stop")
}

func TestStartFlash_Sampling(t *testing.T) {
	c, drv := newTestController(t, DefaultDurations())

	start := time.Now()
	state := c.StartFlash(Yellow)
	assert.Equal(t, only(Yellow), state.Outputs)

	assert.Equal(t, only(Yellow), sampleAt(drv, start, 200*time.Millisecond))
	assert.Equal(t, Levels{}, sampleAt(drv, start, 700*time.Millisecond))
	assert.Equal(t, only(Yellow), sampleAt(drv, start, 1200*time.Millisecond))
}

func TestStartFlash_ReplacesFlash(t *testing.T) {
	c, drv := newTestController(t, Durations{Red: 5, Yellow: 3, Green: 5, Flash: 0.1})

	c.StartFlash(Red)
	time.Sleep(30 * time.Millisecond)
	state := c.StartFlash(Green)
	assert.Equal(t, FlashMode(Green), state.Mode)
	assert.Equal(t, only(Green), levels(drv))

	for range 10 {
		time.Sleep(25 * time.Millisecond)
		assert.False(t, levels(drv)[Red], "red must stay off after switching to green")
	}
}

func TestSequence_Scaled(t *testing.T) {
	c, drv := newTestController(t, Durations{Red: 0.3, Yellow: 0.3, Green: 0.3, Flash: 0.5})

	start := time.Now()
	c.StartSequence()

	assert.Equal(t, only(Red), sampleAt(drv, start, 150*time.Millisecond))
	assert.Equal(t, only(Green), sampleAt(drv, start, 450*time.Millisecond))
	assert.Equal(t, only(Yellow), sampleAt(drv, start, 750*time.Millisecond))
	assert.Equal(t, only(Red), sampleAt(drv, start, 1050*time.Millisecond))
}

func TestSequence_RealTime(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time sequence takes 14s")
	}
	c, drv := newTestController(t, DefaultDurations())

	start := time.Now()
	c.StartSequence()

	assert.Equal(t, only(Red), sampleAt(drv, start, 1*time.Second))
	assert.Equal(t, only(Green), sampleAt(drv, start, 6*time.Second))
	assert.Equal(t, only(Yellow), sampleAt(drv, start, 11*time.Second))
	assert.Equal(t, only(Red), sampleAt(drv, start, 14*time.Second))
}

func TestSequence_Restart(t *testing.T) {
	c, drv := newTestController(t, Durations{Red: 0.2, Yellow: 0.2, Green: 0.2, Flash: 0.5})

	c.StartSequence()
	time.Sleep(300 * time.Millisecond) // green
	require.Equal(t, only(Green), levels(drv))

	c.StartSequence()
	assert.Equal(t, only(Red), levels(drv))
}

func TestSetDurations_AppliesAtNextPhase(t *testing.T) {
	c, drv := newTestController(t, Durations{Red: 0.3, Yellow: 0.3, Green: 0.3, Flash: 0.5})

	start := time.Now()
	c.StartSequence()

	time.Sleep(100 * time.Millisecond)
	state, err := c.SetDurations(DurationUpdate{Red: ptr(1.0)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, state.Durations.Red)

	// The red phase already running keeps its 0.3s.
	assert.Equal(t, only(Green), sampleAt(drv, start, 450*time.Millisecond))
	assert.Equal(t, only(Yellow), sampleAt(drv, start, 750*time.Millisecond))
	// The next red phase (0.9s to 1.9s) uses the new value.
	assert.Equal(t, only(Red), sampleAt(drv, start, 1350*time.Millisecond))
}

func TestSetDurations_PartialReject(t *testing.T) {
	c, _ := newTestController(t, Durations{})

	u, perr := RawDurations{Red: "abc", Green: "7"}.Parse()
	state, err := c.SetDurations(u)
	require.NoError(t, err)
	require.Error(t, perr)

	assert.Equal(t, 5.0, state.Durations.Red)
	assert.Equal(t, 7.0, state.Durations.Green)

	state, err = c.SetDurations(DurationUpdate{Yellow: ptr(0.05)})
	assert.True(t, IsValidation(err))
	assert.Equal(t, 3.0, state.Durations.Yellow)

	state, err = c.SetDurations(DurationUpdate{Red: ptr(1e10)})
	assert.True(t, IsValidation(err))
	assert.Equal(t, 5.0, state.Durations.Red)
}

func TestApplyPreset_KeepsNameOnEdit(t *testing.T) {
	c, _ := newTestController(t, Durations{})

	night := Durations{Red: 8, Yellow: 2, Green: 4, Flash: 1}
	state, err := c.ApplyPreset("night", night)
	require.NoError(t, err)
	assert.Equal(t, night, state.Durations)
	assert.Equal(t, "night", state.ActivePreset)

	state, err = c.SetDurations(DurationUpdate{Red: ptr(9)})
	require.NoError(t, err)
	assert.Equal(t, "night", state.ActivePreset)

	_, err = c.ApplyPreset("bad", Durations{Red: 0})
	assert.Error(t, err)
	assert.Equal(t, "night", c.Snapshot().ActivePreset)
}

func TestApply_Invalid(t *testing.T) {
	c, _ := newTestController(t, Durations{})
	_, err := c.Apply(Mode{Kind: ModeFlash, Color: Color(9)})
	assert.Error(t, err)
	assert.Equal(t, StopMode(), c.Snapshot().Mode)
}

func TestClose(t *testing.T) {
	drv := output.NewSimulated(nil)
	c, err := New(Options{Driver: drv, Logger: quietLogger()})
	require.NoError(t, err)

	c.StartFlash(Green)
	require.NoError(t, c.Close())
	assert.Equal(t, Levels{}, levels(drv))

	_, err = c.Apply(HoldMode(Red))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.SetDurations(DurationUpdate{Red: ptr(2)})
	assert.ErrorIs(t, err, ErrClosed)

	// Second close is a no-op.
	assert.NoError(t, c.Close())

	// The driver was released.
	assert.ErrorIs(t, drv.Write(1, true), output.ErrClosed)
}

func TestEvents(t *testing.T) {
	bus := events.New()
	modes := make(chan events.ModeChangedEvent, 4)
	unsub := bus.Subscribe(func(e events.ModeChangedEvent) { modes <- e })
	defer unsub()

	durations := make(chan events.DurationsChangedEvent, 4)
	unsubD := bus.Subscribe(func(e events.DurationsChangedEvent) { durations <- e })
	defer unsubD()

	c, err := New(Options{Driver: output.NewSimulated(nil), EventBus: bus, Logger: quietLogger()})
	require.NoError(t, err)
	defer c.Close()

	c.Hold(Red)
	select {
	case e := <-modes:
		assert.Equal(t, "HOLD_RED", e.Mode)
		assert.Equal(t, "STOP", e.Previous)
		assert.True(t, e.Outputs["red"])
		assert.NotEmpty(t, e.ID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for mode event")
	}

	_, err = c.SetDurations(DurationUpdate{Flash: ptr(0.25)})
	require.NoError(t, err)
	select {
	case e := <-durations:
		assert.Equal(t, 0.25, e.Durations.Flash)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for durations event")
	}
}

// recordingDriver checks that no two outputs are ever on together and
// counts writes.
type recordingDriver struct {
	mu        sync.Mutex
	levels    map[int]bool
	writes    int
	conflicts int
	delay     time.Duration
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{levels: make(map[int]bool)}
}

func (d *recordingDriver) Write(pin int, high bool) error {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.levels[pin] = high
	d.writes++

	on := 0
	for _, v := range d.levels {
		if v {
			on++
		}
	}
	if on > 1 {
		d.conflicts++
	}
	return nil
}

func (d *recordingDriver) Name() string { return "recording" }
func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) stats() (writes, conflicts int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes, d.conflicts
}

func TestStress_ConcurrentModeChanges(t *testing.T) {
	drv := newRecordingDriver()
	c, err := New(Options{
		Driver:    drv,
		Durations: Durations{Red: 0.1, Yellow: 0.1, Green: 0.1, Flash: 0.1},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	defer c.Close()

	modes := []Mode{
		SequenceMode(),
		FlashMode(Red),
		FlashMode(Green),
		HoldMode(Yellow),
		StopMode(),
		FlashMode(Yellow),
	}

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 40 {
				_, _ = c.Apply(modes[(g+i)%len(modes)])
				if i%7 == 0 {
					time.Sleep(15 * time.Millisecond)
				}
			}
		}(g)
	}
	wg.Wait()

	c.Stop()
	after, conflicts := drv.stats()
	assert.Zero(t, conflicts, "two outputs were on at once")

	time.Sleep(250 * time.Millisecond)
	final, _ := drv.stats()
	assert.Equal(t, after, final, "a worker wrote after Stop returned")
	assert.Equal(t, Levels{}, c.Snapshot().Outputs)
}

func TestFlashToHold_NoLateWrites(t *testing.T) {
	drv := newRecordingDriver()
	c, err := New(Options{
		Driver:      drv,
		Durations:   Durations{Red: 0.1, Yellow: 0.1, Green: 0.1, Flash: 0.1},
		JoinTimeout: 10 * time.Millisecond,
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	defer c.Close()

	c.StartFlash(Red)
	time.Sleep(120 * time.Millisecond)
	state := c.Hold(Green)
	assert.Equal(t, only(Green), state.Outputs)
	writes, conflicts := drv.stats()
	assert.Zero(t, conflicts)

	time.Sleep(250 * time.Millisecond)
	after, _ := drv.stats()
	assert.Equal(t, writes, after)
}

func TestWriteFailureIsLogged(t *testing.T) {
	drv := output.NewSimulated(nil)
	c, err := New(Options{Driver: drv, Logger: quietLogger()})
	require.NoError(t, err)

	require.NoError(t, drv.Close())
	state := c.Hold(Red)
	assert.Equal(t, HoldMode(Red), state.Mode)
	assert.Equal(t, Levels{}, state.Outputs, "failed writes do not change tracked levels")

	assert.NoError(t, c.Close())
}
