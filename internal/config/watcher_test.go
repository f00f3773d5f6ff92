package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type testPresets struct {
	Version int                `toml:"version"`
	Red     map[string]float64 `toml:"red"`
}

func loadTestPresets(path string) (testPresets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testPresets{}, err
	}
	var p testPresets
	err = toml.Unmarshal(data, &p)
	return p, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// startWatcher creates a watcher on path and stops it when the test ends.
func startWatcher(t *testing.T, path string, opts ...WatcherOption[testPresets]) *Watcher[testPresets] {
	t.Helper()
	opts = append([]WatcherOption[testPresets]{WithDebounce[testPresets](50 * time.Millisecond)}, opts...)
	w := NewWatcher(path, loadTestPresets, newTestLogger(), opts...)
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	return w
}

func TestWatcher_InPlaceWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	writeFile(t, path, "version = 1\n")

	received := make(chan testPresets, 1)
	w := startWatcher(t, path)
	w.OnReload(func(p testPresets) { received <- p })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "version = 1\n[red]\nnight = 8.0\n")

	select {
	case p := <-received:
		if p.Red["night"] != 8 {
			t.Errorf("got %+v, want red.night = 8", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcher_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.toml")
	writeFile(t, path, "version = 1\n")

	received := make(chan testPresets, 4)
	w := startWatcher(t, path)
	w.OnReload(func(p testPresets) { received <- p })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	for i := 1; i <= 2; i++ {
		tmp := filepath.Join(dir, ".presets.toml.tmp")
		writeFile(t, tmp, fmt.Sprintf("version = %d\n", i+1))
		if err := os.Rename(tmp, path); err != nil {
			t.Fatal(err)
		}

		select {
		case p := <-received:
			if p.Version != i+1 {
				t.Errorf("replace %d: version = %d, want %d", i, p.Version, i+1)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for reload after replace %d", i)
		}
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.toml")
	writeFile(t, path, "version = 1\n")

	var count atomic.Int32
	w := startWatcher(t, path)
	w.OnReload(func(testPresets) { count.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "other.toml"), "version = 5\n")
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected no reloads, got %d", got)
	}
}

func TestWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	writeFile(t, path, "version = 1\n")

	var count1, count2 atomic.Int32
	w := startWatcher(t, path)
	w.OnReload(func(testPresets) { count1.Add(1) })
	unsub2 := w.OnReload(func(testPresets) { count2.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "version = 2\n")
	time.Sleep(200 * time.Millisecond)

	unsub2()

	writeFile(t, path, "version = 3\n")
	time.Sleep(200 * time.Millisecond)

	if got := count1.Load(); got != 2 {
		t.Errorf("handler1: expected 2 calls, got %d", got)
	}
	if got := count2.Load(); got != 1 {
		t.Errorf("handler2: expected 1 call, got %d", got)
	}
}

func TestWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	writeFile(t, path, "version = 1\n")

	errorReceived := make(chan error, 1)
	reloaded := make(chan testPresets, 1)
	w := startWatcher(t, path, WithErrorHandler[testPresets](func(err error) {
		errorReceived <- err
	}))
	w.OnReload(func(p testPresets) { reloaded <- p })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "invalid toml [[[")

	select {
	case <-errorReceived:
	case <-reloaded:
		t.Fatal("handler should not be called on load error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	writeFile(t, path, "version = 0\n")

	var count, last atomic.Int32
	w := startWatcher(t, path, WithDebounce[testPresets](200*time.Millisecond))
	w.OnReload(func(p testPresets) {
		count.Add(1)
		last.Store(int32(p.Version))
	})
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	for i := 1; i <= 5; i++ {
		writeFile(t, path, fmt.Sprintf("version = %d\n", i))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("expected final version 5, got %d", got)
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w := NewWatcher("presets.toml", loadTestPresets, newTestLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop without Start: %v", err)
	}
}
