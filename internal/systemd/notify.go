package systemd

import (
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/lightnode/internal/logging"
)

// notifyFunc is daemon.SdNotify, replaceable in tests.
var notifyFunc = daemon.SdNotify

// Notifier sends sd_notify messages. Outside a Type=notify unit every
// call is a no-op.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier returns a notifier logging under the "systemd" module.
func NewNotifier() *Notifier {
	return &Notifier{logger: logging.GetLogger("systemd")}
}

// Ready reports that start-up finished, with a status line.
func (n *Notifier) Ready(status string) {
	n.send(daemon.SdNotifyReady, "STATUS="+status)
}

// Status updates the status line shown by systemctl status.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

// Stopping reports that shutdown has begun.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Watchdog pings the watchdog at half the configured interval until stop
// is closed. It returns immediately when no watchdog is configured.
func (n *Notifier) Watchdog(stop <-chan struct{}) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) send(lines ...string) {
	state := strings.Join(lines, "\n")
	sent, err := notifyFunc(false, state)
	switch {
	case err != nil:
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
	case sent:
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
