// Package output drives the three lamp outputs of the fixture.
//
// A Driver knows nothing about colours or modes: it sets a numbered pin
// HIGH or LOW. The light controller owns the colour to pin mapping and
// guarantees that only one goroutine writes at a time.
package output

// Driver abstracts "set logical pin P to HIGH/LOW" across boards.
type Driver interface {
	// Write sets pin to HIGH (true) or LOW (false).
	Write(pin int, high bool) error

	// Name identifies the implementation in logs and the state API.
	Name() string

	// Close releases the device handle. Outputs are not touched.
	Close() error
}

// activeLow inverts every level before handing it to the wrapped driver,
// for relay boards that switch on a LOW input.
type activeLow struct {
	Driver
}

func (a activeLow) Write(pin int, high bool) error {
	return a.Driver.Write(pin, !high)
}

func (a activeLow) Name() string {
	return a.Driver.Name() + " (active-low)"
}
