package light

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MinSeconds is the floor for every duration.
const MinSeconds = 0.1

// MaxSeconds caps every duration at one day, well inside time.Duration range.
const MaxSeconds = 24 * 60 * 60

// Durations holds the phase lengths and the flash half-period, in seconds.
type Durations struct {
	Red    float64 `json:"red" toml:"red" yaml:"red"`
	Yellow float64 `json:"yellow" toml:"yellow" yaml:"yellow"`
	Green  float64 `json:"green" toml:"green" yaml:"green"`
	Flash  float64 `json:"flash" toml:"flash" yaml:"flash"`
}

// DefaultDurations is used when nothing else seeds the controller.
func DefaultDurations() Durations {
	return Durations{Red: 5, Yellow: 3, Green: 5, Flash: 0.5}
}

// Phase returns how long colour c stays on during a sequence.
func (d Durations) Phase(c Color) time.Duration {
	switch c {
	case Red:
		return seconds(d.Red)
	case Yellow:
		return seconds(d.Yellow)
	default:
		return seconds(d.Green)
	}
}

// FlashInterval returns how long a flashing lamp stays on (and off).
func (d Durations) FlashInterval() time.Duration {
	return seconds(d.Flash)
}

// Validate checks every field against the floor and the cap.
func (d Durations) Validate() error {
	verr := &ValidationError{}
	for _, f := range d.fields() {
		if reason := checkSeconds(*f.value); reason != "" {
			verr.add(f.name, formatSeconds(*f.value), reason)
		}
	}
	return verr.orNil()
}

type durationField struct {
	name  string
	value *float64
}

func (d *Durations) fields() []durationField {
	return []durationField{
		{"red", &d.Red},
		{"yellow", &d.Yellow},
		{"green", &d.Green},
		{"flash", &d.Flash},
	}
}

// DurationUpdate is a partial update of the live timings. Nil fields are
// left unchanged.
type DurationUpdate struct {
	Red    *float64
	Yellow *float64
	Green  *float64
	Flash  *float64
}

// Empty reports whether the update carries no fields.
func (u DurationUpdate) Empty() bool {
	return u.Red == nil && u.Yellow == nil && u.Green == nil && u.Flash == nil
}

// applyTo copies every valid field of u into d. Invalid fields are skipped
// and reported; the corresponding value in d is kept.
func (u DurationUpdate) applyTo(d Durations) (Durations, bool, error) {
	updates := []*float64{u.Red, u.Yellow, u.Green, u.Flash}
	verr := &ValidationError{}
	changed := false

	for i, f := range d.fields() {
		v := updates[i]
		if v == nil {
			continue
		}
		if reason := checkSeconds(*v); reason != "" {
			verr.add(f.name, formatSeconds(*v), reason)
			continue
		}
		if *f.value != *v {
			*f.value = *v
			changed = true
		}
	}
	return d, changed, verr.orNil()
}

// RawDurations carries unparsed duration input such as form or query
// values. Empty fields mean "not provided".
type RawDurations struct {
	Red    string
	Yellow string
	Green  string
	Flash  string
}

// Parse converts the provided fields. Fields that are not numbers are
// left out of the update and reported in the returned *ValidationError.
func (r RawDurations) Parse() (DurationUpdate, error) {
	var u DurationUpdate
	verr := &ValidationError{}

	for _, f := range []struct {
		name string
		raw  string
		dst  **float64
	}{
		{"red", r.Red, &u.Red},
		{"yellow", r.Yellow, &u.Yellow},
		{"green", r.Green, &u.Green},
		{"flash", r.Flash, &u.Flash},
	} {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			continue
		}
		v, err := ParseSeconds(raw)
		if err != nil {
			verr.add(f.name, raw, "not a number")
			continue
		}
		*f.dst = &v
	}
	return u, verr.orNil()
}

// ParseSeconds parses a finite number of seconds.
func ParseSeconds(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

// checkSeconds returns why v is unacceptable, or "" if it is fine.
func checkSeconds(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "not a finite number"
	}
	if v < MinSeconds {
		return fmt.Sprintf("below minimum %gs", MinSeconds)
	}
	if v > MaxSeconds {
		return fmt.Sprintf("above maximum %ds", MaxSeconds)
	}
	return ""
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
