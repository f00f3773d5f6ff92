// Package logging provides structured logging with per-module levels.
//
// Records go to stdout (text or json) and, when journald is reachable, to
// the systemd journal under the identifier "lightnode". Both are used when
// both are available.
//
// Initialize once at startup, then ask for a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"light": "debug", "mqtt": "warn"},
//	})
//
//	logger := logging.GetLogger("light")
//	logger.Info("Mode changed", "mode", "SEQUENCE")
//
// Modules used by the daemon: main, light, presets, output, api, http,
// mqtt, discovery, config.
//
// In the config file, keys under [logging] other than level and format are
// module overrides:
//
//	[logging]
//	level = "info"
//	format = "text"
//	light = "debug"
//
// Journal entries carry every attribute as an upper-case field:
//
//	journalctl -t lightnode MODULE=light
//	journalctl -t lightnode -p err
package logging
