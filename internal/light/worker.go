package light

import (
	"context"
	"time"
)

// spawnLocked starts the worker for mode with the current generation.
// first is the length of the phase the transition already entered.
// Requires mu.
func (c *Controller) spawnLocked(mode Mode, first time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		cancel: cancel,
		done:   make(chan struct{}),
		gen:    c.gen,
		mode:   mode,
	}
	c.worker = w
	c.workers.Add(1)

	go func() {
		defer c.workers.Done()
		defer close(w.done)
		defer cancel()

		switch mode.Kind {
		case ModeSequence:
			c.runSequence(ctx, w.gen, first)
		case ModeFlash:
			c.runFlash(ctx, w.gen, mode.Color, first)
		}
	}()
}

// runSequence waits out the red phase entered by the transition, then
// steps green, yellow, red, ... until cancelled. It exits without writing.
func (c *Controller) runSequence(ctx context.Context, gen uint64, first time.Duration) {
	phase := Red
	wait := first
	for {
		if !sleep(ctx, wait) {
			return
		}
		next := nextPhase(phase)
		d, ok := c.enterPhase(ctx, gen, next)
		if !ok {
			return
		}
		phase, wait = next, d
		c.logger.Debug("Sequence phase", "color", phase.Key(), "duration", wait)
	}
}

func nextPhase(c Color) Color {
	switch c {
	case Red:
		return Green
	case Green:
		return Yellow
	default:
		return Red
	}
}

// enterPhase lights color if this worker still owns the outputs and
// returns the phase length read from the live timings.
func (c *Controller) enterPhase(ctx context.Context, gen uint64, color Color) (time.Duration, bool) {
	c.mu.Lock()
	if ctx.Err() != nil || gen != c.gen {
		c.mu.Unlock()
		return 0, false
	}
	changed := c.showOnlyLocked(color)
	d := c.durations.Phase(color)
	state := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		c.publishOutputs(state)
	}
	return d, true
}

// runFlash toggles color every flash interval. The transition already
// turned it on. On exit the lamp is forced off if this worker still owns
// the outputs.
func (c *Controller) runFlash(ctx context.Context, gen uint64, color Color, first time.Duration) {
	defer c.releaseFlash(gen, color)

	on := true
	wait := first
	for {
		if !sleep(ctx, wait) {
			return
		}
		on = !on
		d, ok := c.flashStep(ctx, gen, color, on)
		if !ok {
			return
		}
		wait = d
	}
}

func (c *Controller) flashStep(ctx context.Context, gen uint64, color Color, on bool) (time.Duration, bool) {
	c.mu.Lock()
	if ctx.Err() != nil || gen != c.gen || c.mode != FlashMode(color) {
		c.mu.Unlock()
		return 0, false
	}
	changed := c.writeLocked(color, on)
	d := c.durations.FlashInterval()
	state := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		c.publishOutputs(state)
	}
	return d, true
}

// releaseFlash runs after cancellation, while the transition that
// cancelled us is still joining: the generation has not moved yet, so the
// final LOW write is allowed. A worker that outlived the join finds a newer
// generation and leaves the outputs alone.
func (c *Controller) releaseFlash(gen uint64, color Color) {
	c.mu.Lock()
	if gen != c.gen || c.mode != FlashMode(color) {
		c.mu.Unlock()
		return
	}
	changed := c.writeLocked(color, false)
	state := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		c.publishOutputs(state)
	}
}

// sleep waits for d or until ctx is cancelled, whichever comes first. It
// reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
