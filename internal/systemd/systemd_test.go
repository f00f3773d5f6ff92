package systemd

import (
	"errors"
	"testing"
)

func TestUnitName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", DefaultUnit},
		{"lightnode", "lightnode.service"},
		{"lightnode.service", "lightnode.service"},
		{"lightnode-update.timer", "lightnode-update.timer"},
	}
	for _, tt := range tests {
		if got := UnitName(tt.in); got != tt.want {
			t.Errorf("UnitName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNotifier(t *testing.T) {
	var states []string
	orig := notifyFunc
	notifyFunc = func(_ bool, state string) (bool, error) {
		states = append(states, state)
		return true, nil
	}
	defer func() { notifyFunc = orig }()

	n := NewNotifier()
	n.Ready("listening on :8090")
	n.Status("HOLD_RED")
	n.Stopping()

	want := []string{
		"READY=1\nSTATUS=listening on :8090",
		"STATUS=HOLD_RED",
		"STOPPING=1",
	}
	if len(states) != len(want) {
		t.Fatalf("got %d notifications, want %d: %q", len(states), len(want), states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("notification %d = %q, want %q", i, states[i], want[i])
		}
	}
}

func TestNotifier_ErrorIsNotFatal(t *testing.T) {
	orig := notifyFunc
	notifyFunc = func(bool, string) (bool, error) { return false, errors.New("socket gone") }
	defer func() { notifyFunc = orig }()

	NewNotifier().Ready("ok")
}

func TestWatchdog_Disabled(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	done := make(chan struct{})
	go func() {
		NewNotifier().Watchdog(make(chan struct{}))
		close(done)
	}()
	<-done
}
