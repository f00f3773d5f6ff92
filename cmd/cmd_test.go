package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/lightnode/internal/api"
	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/client"
	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/light"
	"github.com/smazurov/lightnode/internal/output"
	"github.com/smazurov/lightnode/internal/presets"
	"github.com/smazurov/lightnode/internal/presets/store"
)

// startController runs a real controller behind an httptest server.
func startController(t *testing.T) (*httptest.Server, *light.Controller) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.New()

	ctrl, err := light.New(light.Options{Driver: output.NewSimulated(nil), EventBus: bus, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })

	svc := presets.NewService(presets.Options{
		Store:      store.New(filepath.Join(t.TempDir(), "presets.toml")),
		Controller: ctrl,
		EventBus:   bus,
		Logger:     logger,
	})
	_, err = svc.Load()
	require.NoError(t, err)

	ts := httptest.NewServer(api.NewServer(&api.Options{Controller: ctrl, Presets: svc, EventBus: bus}).Handler())
	t.Cleanup(ts.Close)
	return ts, ctrl
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestParseConsoleAction(t *testing.T) {
	tests := []struct {
		line    string
		want    models.ControlRequestData
		wantErr bool
	}{
		{"static green", models.ControlRequestData{Action: "HOLD_GREEN"}, false},
		{"2", models.ControlRequestData{Action: "HOLD_YELLOW"}, false},
		{"red", models.ControlRequestData{Action: "HOLD_RED"}, false},
		{"normal loop", models.ControlRequestData{Action: "SEQUENCE"}, false},
		{"everything off", models.ControlRequestData{Action: "STOP"}, false},
		{"flash yellow", models.ControlRequestData{Action: "FLASH_YELLOW"}, false},
		{"set green 7.5", models.ControlRequestData{Green: "7.5"}, false},
		{"set flash abc", models.ControlRequestData{}, true},
		{"set blue 3", models.ControlRequestData{}, true},
		{"dance", models.ControlRequestData{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseConsoleAction(strings.Fields(tt.line))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsole_Session(t *testing.T) {
	ts, ctrl := startController(t)
	c, err := client.New(ts.URL)
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	con := &console{
		api:    c,
		out:    &out,
		errOut: &errOut,
		timeout: func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 2*time.Second)
		},
	}

	require.NoError(t, con.execute("Static Red"))
	assert.Equal(t, light.HoldMode(light.Red), ctrl.Snapshot().Mode)
	assert.Contains(t, out.String(), "HOLD_RED")

	require.NoError(t, con.execute("set red 0.01"))
	assert.Contains(t, errOut.String(), "red")
	assert.Equal(t, 5.0, ctrl.Durations().Red)

	require.NoError(t, con.execute("save Night"))
	require.NoError(t, con.execute("preset Night"))
	assert.Equal(t, "Night", ctrl.Snapshot().ActivePreset)

	assert.Error(t, con.execute("preset ghost"))
	assert.Error(t, con.execute("preset"))
	assert.NoError(t, con.execute("   "))

	assert.ErrorIs(t, con.execute("quit"), errQuit)
	assert.Equal(t, light.HoldMode(light.Red), ctrl.Snapshot().Mode, "quit leaves the lamps alone")

	assert.ErrorIs(t, con.execute("exit"), errQuit)
	assert.Equal(t, light.StopMode(), ctrl.Snapshot().Mode, "exit turns everything off")
}

func TestControlCmd(t *testing.T) {
	ts, ctrl := startController(t)

	stdout, stderr, err := run(t, CreateControlCmd(), "flash_green", "--server", ts.URL, "--yellow", "2", "--red", "x")
	require.NoError(t, err)
	assert.Equal(t, light.FlashMode(light.Green), ctrl.Snapshot().Mode)
	assert.Equal(t, 2.0, ctrl.Durations().Yellow)
	assert.Contains(t, stdout, "FLASH_GREEN")
	assert.Contains(t, stderr, "red")

	_, _, err = run(t, CreateControlCmd(), "bogus", "--server", ts.URL)
	assert.Error(t, err)

	_, _, err = run(t, CreateControlCmd(), "--server", ts.URL)
	assert.Error(t, err)
}

func TestStateCmd(t *testing.T) {
	ts, _ := startController(t)

	stdout, _, err := run(t, CreateStateCmd(), "--server", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "STOP")
	assert.Contains(t, stdout, "default")
}

func TestPresetsCmd(t *testing.T) {
	ts, ctrl := startController(t)

	stdout, _, err := run(t, CreatePresetsCmd(), "save", "rush", "--server", ts.URL,
		"--red", "2", "--yellow", "1", "--green", "9", "--flash", "0.3")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rush")

	_, _, err = run(t, CreatePresetsCmd(), "save", "partial", "--server", ts.URL, "--red", "2")
	assert.Error(t, err)

	_, _, err = run(t, CreatePresetsCmd(), "apply", "rush", "--server", ts.URL)
	require.NoError(t, err)
	assert.Equal(t, 9.0, ctrl.Durations().Green)

	stdout, _, err = run(t, CreatePresetsCmd(), "list", "--server", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "* rush")

	_, _, err = run(t, CreatePresetsCmd(), "delete", "rush", "--server", ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "default", ctrl.Snapshot().ActivePreset)

	_, _, err = run(t, CreatePresetsCmd(), "delete", "ghost", "--server", ts.URL)
	assert.Equal(t, 404, client.StatusCode(err))
}

func TestRenderState(t *testing.T) {
	var buf bytes.Buffer
	renderState(&buf, &models.StateData{
		Mode:         "HOLD_GREEN",
		Outputs:      map[string]bool{"green": true},
		Durations:    models.Durations{Red: 5, Yellow: 3, Green: 5, Flash: 0.5},
		ActivePreset: "default",
		Driver:       "simulated",
	})
	out := buf.String()
	assert.Contains(t, out, "● GREEN")
	assert.Contains(t, out, "○ RED")
	assert.Contains(t, out, "flash 0.5s")
	assert.Contains(t, out, "simulated")
}
