package light

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"STOP", StopMode(), false},
		{"stop", StopMode(), false},
		{"SEQUENCE", SequenceMode(), false},
		{"START_SEQUENCE", SequenceMode(), false},
		{" hold_red ", HoldMode(Red), false},
		{"HOLD_YELLOW", HoldMode(Yellow), false},
		{"FLASH_GREEN", FlashMode(Green), false},
		{"HOLD_BLUE", Mode{}, true},
		{"FLASH_", Mode{}, true},
		{"DANCE", Mode{}, true},
		{"", Mode{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "STOP", StopMode().String())
	assert.Equal(t, "SEQUENCE", SequenceMode().String())
	assert.Equal(t, "HOLD_GREEN", HoldMode(Green).String())
	assert.Equal(t, "FLASH_YELLOW", FlashMode(Yellow).String())
}

func TestModeTextRoundTrip(t *testing.T) {
	for _, m := range []Mode{StopMode(), SequenceMode(), HoldMode(Red), FlashMode(Green)} {
		text, err := m.MarshalText()
		require.NoError(t, err)

		var got Mode
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, m, got)
	}

	_, err := Mode{Kind: ModeHold, Color: Color(7)}.MarshalText()
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("yellow")
	require.NoError(t, err)
	assert.Equal(t, Yellow, c)
	assert.Equal(t, "yellow", c.Key())

	_, err = ParseColor("amber")
	assert.Error(t, err)
	assert.False(t, Color(3).Valid())
}
