package light

import (
	"fmt"
	"strings"
)

// Color identifies one of the three lamp outputs.
type Color int

// Lamp colours, in pin order.
const (
	Red Color = iota
	Yellow
	Green
)

// Colors lists every lamp in pin order.
var Colors = [...]Color{Red, Yellow, Green}

// String returns the upper-case colour name used in actions.
func (c Color) String() string {
	switch c {
	case Red:
		return "RED"
	case Yellow:
		return "YELLOW"
	case Green:
		return "GREEN"
	default:
		return fmt.Sprintf("Color(%d)", int(c))
	}
}

// Key returns the lower-case name used for JSON fields and config keys.
func (c Color) Key() string {
	return strings.ToLower(c.String())
}

// Valid reports whether c is one of the three lamps.
func (c Color) Valid() bool {
	return c >= Red && c <= Green
}

// ParseColor accepts a colour name in any case.
func ParseColor(s string) (Color, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RED":
		return Red, nil
	case "YELLOW":
		return Yellow, nil
	case "GREEN":
		return Green, nil
	default:
		return 0, fmt.Errorf("unknown color %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid color %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ModeKind is the tag of a Mode.
type ModeKind int

// Mode kinds.
const (
	ModeStop ModeKind = iota
	ModeSequence
	ModeHold
	ModeFlash
)

// Mode is the behaviour currently governing the outputs. Color is only
// meaningful for ModeHold and ModeFlash and is zero otherwise, so two
// modes can be compared with ==.
type Mode struct {
	Kind  ModeKind
	Color Color
}

// StopMode turns every output off.
func StopMode() Mode { return Mode{Kind: ModeStop} }

// SequenceMode cycles red, green, yellow.
func SequenceMode() Mode { return Mode{Kind: ModeSequence} }

// HoldMode keeps a single colour on.
func HoldMode(c Color) Mode { return Mode{Kind: ModeHold, Color: c} }

// FlashMode blinks a single colour.
func FlashMode(c Color) Mode { return Mode{Kind: ModeFlash, Color: c} }

// AllModes lists every valid mode.
func AllModes() []Mode {
	modes := []Mode{StopMode(), SequenceMode()}
	for _, c := range Colors {
		modes = append(modes, HoldMode(c), FlashMode(c))
	}
	return modes
}

// String returns STOP, SEQUENCE, HOLD_<COLOR> or FLASH_<COLOR>.
func (m Mode) String() string {
	switch m.Kind {
	case ModeStop:
		return "STOP"
	case ModeSequence:
		return "SEQUENCE"
	case ModeHold:
		return "HOLD_" + m.Color.String()
	case ModeFlash:
		return "FLASH_" + m.Color.String()
	default:
		return fmt.Sprintf("Mode(%d)", int(m.Kind))
	}
}

// Valid reports whether m is a well-formed mode.
func (m Mode) Valid() bool {
	switch m.Kind {
	case ModeStop, ModeSequence:
		return m.Color == 0
	case ModeHold, ModeFlash:
		return m.Color.Valid()
	default:
		return false
	}
}

// ParseMode parses an action name. START_SEQUENCE is accepted as an alias
// for SEQUENCE.
func ParseMode(s string) (Mode, error) {
	action := strings.ToUpper(strings.TrimSpace(s))

	switch action {
	case "STOP":
		return StopMode(), nil
	case "SEQUENCE", "START_SEQUENCE":
		return SequenceMode(), nil
	}

	for prefix, build := range map[string]func(Color) Mode{
		"HOLD_":  HoldMode,
		"FLASH_": FlashMode,
	} {
		if name, ok := strings.CutPrefix(action, prefix); ok {
			c, err := ParseColor(name)
			if err != nil {
				return Mode{}, fmt.Errorf("invalid action %q: %w", s, err)
			}
			return build(c), nil
		}
	}

	return Mode{}, fmt.Errorf("unknown action %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mode %v", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
