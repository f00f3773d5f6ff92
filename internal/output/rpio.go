package output

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// rpioDriver drives Raspberry Pi GPIO through /dev/gpiomem (BCM numbering).
type rpioDriver struct {
	mu   sync.Mutex
	pins map[int]rpio.Pin
}

// newRpio maps the GPIO registers. Fails on anything that is not a Pi.
func newRpio() (*rpioDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("error opening rpio: %w", err)
	}
	return &rpioDriver{pins: make(map[int]rpio.Pin)}, nil
}

// Write switches pin to output on first use and sets its level.
func (r *rpioDriver) Write(pin int, high bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pins == nil {
		return ErrClosed
	}

	p, ok := r.pins[pin]
	if !ok {
		p = rpio.Pin(pin)
		p.Output()
		r.pins[pin] = p
	}

	if high {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

// Name returns "rpio".
func (r *rpioDriver) Name() string {
	return "rpio"
}

// Close returns used pins to input mode and unmaps the registers.
func (r *rpioDriver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pins {
		p.Input()
	}
	r.pins = nil
	return rpio.Close()
}
