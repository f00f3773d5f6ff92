package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const sysfsGPIOPath = "/sys/class/gpio"

// sysfs implements Driver using the Linux sysfs GPIO interface.
type sysfs struct {
	root     string
	mu       sync.Mutex
	prepared map[int]bool // pins with direction set to out
	exported []int        // pins exported by us, unexported on Close
}

// newSysfs creates a sysfs driver rooted at root (normally /sys/class/gpio).
func newSysfs(root string) *sysfs {
	if root == "" {
		root = sysfsGPIOPath
	}
	return &sysfs{
		root:     root,
		prepared: make(map[int]bool),
	}
}

// Write exports and configures pin on first use, then sets its value.
func (s *sysfs) Write(pin int, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.prepared[pin] {
		if err := s.prepare(pin); err != nil {
			return err
		}
		s.prepared[pin] = true
	}

	value := "0"
	if high {
		value = "1"
	}

	valuePath := filepath.Join(s.pinPath(pin), "value")
	if err := os.WriteFile(valuePath, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to set gpio%d value: %w", pin, err)
	}
	return nil
}

// prepare exports the pin if needed and switches it to output.
func (s *sysfs) prepare(pin int) error {
	pinPath := s.pinPath(pin)

	if _, err := os.Stat(pinPath); errors.Is(err, os.ErrNotExist) {
		exportPath := filepath.Join(s.root, "export")
		if writeErr := os.WriteFile(exportPath, []byte(strconv.Itoa(pin)), 0o644); writeErr != nil {
			return fmt.Errorf("failed to export gpio%d: %w", pin, writeErr)
		}
		s.exported = append(s.exported, pin)
	}

	directionPath := filepath.Join(pinPath, "direction")
	if err := os.WriteFile(directionPath, []byte("out"), 0o644); err != nil {
		return fmt.Errorf("failed to set gpio%d direction: %w", pin, err)
	}
	return nil
}

func (s *sysfs) pinPath(pin int) string {
	return filepath.Join(s.root, "gpio"+strconv.Itoa(pin))
}

// Name returns "sysfs".
func (s *sysfs) Name() string {
	return "sysfs"
}

// Close unexports the pins this driver exported.
func (s *sysfs) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	unexportPath := filepath.Join(s.root, "unexport")
	for _, pin := range s.exported {
		if err := os.WriteFile(unexportPath, []byte(strconv.Itoa(pin)), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("failed to unexport gpio%d: %w", pin, err))
		}
	}
	s.exported = nil
	s.prepared = make(map[int]bool)
	return errors.Join(errs...)
}
