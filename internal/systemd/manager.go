// Package systemd integrates lightnode with systemd: readiness
// notifications for Type=notify units and unit control over D-Bus.
package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DefaultUnit is the unit name the packaged service is installed as.
const DefaultUnit = "lightnode.service"

// Manager controls units over D-Bus.
type Manager struct {
	conn *dbus.Conn
}

// NewManager connects to the user manager when user is true, otherwise to
// the system manager.
func NewManager(ctx context.Context, user bool) (*Manager, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	if user {
		conn, err = dbus.NewUserConnectionContext(ctx)
	} else {
		conn, err = dbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &Manager{conn: conn}, nil
}

// UnitStatus returns the ActiveState of unit, e.g. "active".
func (m *Manager) UnitStatus(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, UnitName(unit), "ActiveState")
	if err != nil {
		return "", err
	}
	return strings.Trim(prop.Value.String(), `"`), nil
}

// Restart restarts unit and waits for the job to finish.
func (m *Manager) Restart(ctx context.Context, unit string) error {
	done := make(chan string, 1)
	if _, err := m.conn.RestartUnitContext(ctx, UnitName(unit), "replace", done); err != nil {
		return fmt.Errorf("restart %s: %w", unit, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("restart %s: job %s", unit, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}

// UnitName appends ".service" when unit has no type suffix.
func UnitName(unit string) string {
	if unit == "" {
		return DefaultUnit
	}
	if strings.Contains(unit, ".") {
		return unit
	}
	return unit + ".service"
}
