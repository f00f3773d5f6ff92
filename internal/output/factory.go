package output

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Driver names accepted by New.
const (
	DriverAuto      = "auto"
	DriverSimulated = "simulated"
	DriverSysfs     = "sysfs"
	DriverRpio      = "rpio"
)

// Config selects and configures an output driver.
type Config struct {
	Driver    string // auto, simulated, sysfs or rpio
	SysfsRoot string // defaults to /sys/class/gpio
	ActiveLow bool   // invert every level (relay boards)
}

// New creates the configured driver. With "auto" it detects the board and
// falls back to the simulated driver when no GPIO is usable.
func New(cfg Config, logger *slog.Logger) (Driver, error) {
	d, err := newDriver(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.ActiveLow {
		d = activeLow{d}
	}
	return d, nil
}

func newDriver(cfg Config, logger *slog.Logger) (Driver, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverSimulated:
		return NewSimulated(logger), nil
	case DriverSysfs:
		return newSysfs(cfg.SysfsRoot), nil
	case DriverRpio:
		return newRpio()
	case DriverAuto, "":
		return detect(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown output driver %q", cfg.Driver)
	}
}

// detect picks a driver for the board we are running on.
func detect(cfg Config, logger *slog.Logger) Driver {
	boardModel := detectBoard()
	logger.Info("Detecting board for output control", "board_model", boardModel)

	if strings.Contains(boardModel, "Raspberry Pi") {
		d, err := newRpio()
		if err == nil {
			logger.Info("Detected Raspberry Pi, using rpio output driver")
			return d
		}
		logger.Warn("rpio unavailable, trying sysfs", "error", err)
	}

	root := cfg.SysfsRoot
	if root == "" {
		root = sysfsGPIOPath
	}
	if boardModel != "unknown" {
		if _, err := os.Stat(root); err == nil {
			logger.Info("Using sysfs output driver", "root", root)
			return newSysfs(root)
		}
	}

	logger.Info("No GPIO support detected, using simulated outputs", "board_model", boardModel)
	return NewSimulated(logger)
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	// Device tree model contains null bytes, trim them
	return strings.TrimRight(string(data), "\x00")
}
