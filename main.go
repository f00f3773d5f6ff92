package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"

	"github.com/smazurov/lightnode/cmd"
	"github.com/smazurov/lightnode/internal/api"
	"github.com/smazurov/lightnode/internal/config"
	"github.com/smazurov/lightnode/internal/discovery"
	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/light"
	"github.com/smazurov/lightnode/internal/logging"
	"github.com/smazurov/lightnode/internal/metrics"
	"github.com/smazurov/lightnode/internal/mqtt"
	"github.com/smazurov/lightnode/internal/output"
	"github.com/smazurov/lightnode/internal/presets"
	"github.com/smazurov/lightnode/internal/presets/store"
	"github.com/smazurov/lightnode/internal/systemd"
	"github.com/smazurov/lightnode/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Preset settings
	PresetsFile    string `help:"Preset file (.toml, .yaml or .yml)" default:"presets.toml" toml:"presets.file" env:"PRESETS_FILE"`
	PresetsDefault string `help:"Preset applied at start and after the active one is deleted" default:"default" toml:"presets.default" env:"PRESETS_DEFAULT"`
	PresetsWatch   bool   `help:"Reload presets when the file is edited" default:"true" toml:"presets.watch" env:"PRESETS_WATCH"`

	// Output settings
	OutputDriver    string `help:"Output driver (auto, simulated, sysfs, rpio)" default:"auto" toml:"output.driver" env:"OUTPUT_DRIVER"`
	OutputPinRed    int    `help:"BCM pin of the red lamp" default:"22" toml:"output.pin_red" env:"OUTPUT_PIN_RED"`
	OutputPinYellow int    `help:"BCM pin of the yellow lamp" default:"27" toml:"output.pin_yellow" env:"OUTPUT_PIN_YELLOW"`
	OutputPinGreen  int    `help:"BCM pin of the green lamp" default:"17" toml:"output.pin_green" env:"OUTPUT_PIN_GREEN"`
	OutputActiveLow bool   `help:"Invert output levels (relay boards)" default:"false" toml:"output.active_low" env:"OUTPUT_ACTIVE_LOW"`
	OutputSysfsRoot string `help:"sysfs GPIO root" default:"/sys/class/gpio" toml:"output.sysfs_root" env:"OUTPUT_SYSFS_ROOT"`

	// Light settings
	LightJoinTimeoutMs int `help:"How long a mode change waits for the previous worker (ms)" default:"50" toml:"light.join_timeout_ms" env:"LIGHT_JOIN_TIMEOUT_MS"`

	// MQTT settings
	MQTTBroker   string `help:"MQTT broker URL; empty disables the bridge" default:"" toml:"mqtt.broker" env:"MQTT_BROKER"`
	MQTTClientID string `help:"MQTT client id" default:"lightnode-1" toml:"mqtt.client_id" env:"MQTT_CLIENT_ID"`
	MQTTPrefix   string `help:"MQTT topic prefix" default:"lightnode" toml:"mqtt.prefix" env:"MQTT_PREFIX"`

	// Discovery settings
	DiscoveryEnabled bool   `help:"Advertise over mDNS" default:"true" toml:"discovery.enabled" env:"DISCOVERY_ENABLED"`
	DiscoveryName    string `help:"mDNS instance name (default lightnode-<hostname>)" default:"" toml:"discovery.name" env:"DISCOVERY_NAME"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics at /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingLight     string `help:"Light controller logging level" default:"info" toml:"logging.light" env:"LOGGING_LIGHT"`
	LoggingPresets   string `help:"Presets logging level" default:"info" toml:"logging.presets" env:"LOGGING_PRESETS"`
	LoggingOutput    string `help:"Output driver logging level" default:"info" toml:"logging.output" env:"LOGGING_OUTPUT"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP      string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingMQTT      string `help:"MQTT logging level" default:"info" toml:"logging.mqtt" env:"LOGGING_MQTT"`
	LoggingDiscovery string `help:"mDNS logging level" default:"info" toml:"logging.discovery" env:"LOGGING_DISCOVERY"`
	LoggingConfig    string `help:"Config watcher logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

// daemon holds everything started by the root command so OnStop can
// release it in order.
type daemon struct {
	server     *api.Server
	ctrl       *light.Controller
	watcher    *config.Watcher[map[string]light.Durations]
	bridge     *mqtt.Bridge
	advertiser *discovery.Advertiser
	notifier   *systemd.Notifier
	unsubs     []func()
	stopDog    chan struct{}
}

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(config.LoggingConfig(opts))

		logger := logging.GetLogger("main")
		d := &daemon{notifier: systemd.NewNotifier()}

		hooks.OnStart(func() {
			logger.Info("Starting lightnode", "version", version.Version)
			if err := d.start(opts, logger); err != nil {
				logger.Error("Failed to start", "error", err)
				d.stop(logger)
				os.Exit(1)
			}

			if serveErr := d.server.Serve(); serveErr != nil {
				logger.Error("HTTP server failed", "error", serveErr)
				d.stop(logger)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			d.stop(logger)
		})
	})

	cli.Root().Use = "lightnode"
	cli.Root().Version = version.Version
	cli.Root().AddCommand(
		cmd.CreateControlCmd(),
		cmd.CreateStateCmd(),
		cmd.CreatePresetsCmd(),
		cmd.CreateConsoleCmd(),
		cmd.CreateDiscoverCmd(),
		cmd.CreateUpdateCmd(),
	)

	// Run the CLI
	cli.Run()
}

func (d *daemon) start(opts *Options, logger *slog.Logger) error {
	eventBus := events.New()

	driver, err := output.New(output.Config{
		Driver:    opts.OutputDriver,
		SysfsRoot: opts.OutputSysfsRoot,
		ActiveLow: opts.OutputActiveLow,
	}, logging.GetLogger("output"))
	if err != nil {
		return err
	}

	var pins light.Pins
	pins[light.Red] = opts.OutputPinRed
	pins[light.Yellow] = opts.OutputPinYellow
	pins[light.Green] = opts.OutputPinGreen

	d.ctrl, err = light.New(light.Options{
		Driver:      driver,
		Pins:        pins,
		JoinTimeout: time.Duration(opts.LightJoinTimeoutMs) * time.Millisecond,
		EventBus:    eventBus,
	})
	if err != nil {
		_ = driver.Close()
		return err
	}

	presetStore := store.New(opts.PresetsFile)
	presetService := presets.NewService(presets.Options{
		Store:       presetStore,
		Controller:  d.ctrl,
		DefaultName: opts.PresetsDefault,
		EventBus:    eventBus,
	})
	state, err := presetService.Load()
	if err != nil {
		logger.Warn("Presets not loaded from file, using built-in defaults", "error", err)
	}
	logger.Info("Light controller ready",
		"driver", state.Driver,
		"preset", state.ActivePreset,
		"presets_file", presetStore.Path())

	if opts.PresetsWatch {
		d.watcher = config.NewWatcher(presetStore.Path(), func(path string) (map[string]light.Durations, error) {
			return store.New(path).Load()
		}, logging.GetLogger("config"))
		d.watcher.OnReload(presetService.Reload)
		if err := d.watcher.Start(); err != nil {
			logger.Warn("Preset file watching disabled", "error", err)
			d.watcher = nil
		}
	}

	apiOpts := &api.Options{
		Controller: d.ctrl,
		Presets:    presetService,
		EventBus:   eventBus,
	}
	if opts.MetricsEnabled {
		exporter := metrics.New()
		exporter.Seed(d.ctrl.Snapshot(), len(presetService.Names()))
		d.unsubs = append(d.unsubs, exporter.Subscribe(eventBus))
		apiOpts.PrometheusHandler = exporter.Handler()
	}
	d.server = api.NewServer(apiOpts)

	addr, err := d.server.Listen(opts.Port)
	if err != nil {
		return err
	}

	if opts.MQTTBroker != "" {
		d.bridge, err = mqtt.New(mqtt.Options{
			Broker:     opts.MQTTBroker,
			ClientID:   opts.MQTTClientID,
			Prefix:     opts.MQTTPrefix,
			Controller: d.ctrl,
			EventBus:   eventBus,
		})
		if err != nil {
			return err
		}
		if err := d.bridge.Start(); err != nil {
			return err
		}
	}

	if opts.DiscoveryEnabled {
		if tcp, ok := addr.(*net.TCPAddr); ok {
			d.advertiser, err = discovery.NewAdvertiser(opts.DiscoveryName, tcp.Port, discovery.Info{
				Version: version.Version,
				APIPath: "/api",
				Driver:  state.Driver,
			})
			if err == nil {
				err = d.advertiser.Start()
			}
			if err != nil {
				logger.Warn("mDNS advertisement disabled", "error", err)
				d.advertiser = nil
			}
		}
	}

	d.notifier.Ready("listening on " + addr.String())
	d.stopDog = make(chan struct{})
	go d.notifier.Watchdog(d.stopDog)
	return nil
}

func (d *daemon) stop(logger *slog.Logger) {
	logger.Info("Shutting down")
	d.notifier.Stopping()
	if d.stopDog != nil {
		close(d.stopDog)
		d.stopDog = nil
	}

	if d.server != nil {
		if err := d.server.Stop(context.Background()); err != nil {
			logger.Error("Error stopping HTTP server", "error", err)
		}
	}
	if d.bridge != nil {
		d.bridge.Stop()
	}
	if d.advertiser != nil {
		d.advertiser.Stop()
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Warn("Error stopping preset watcher", "error", err)
		}
	}
	for _, unsub := range d.unsubs {
		unsub()
	}
	d.unsubs = nil

	// Controller last: workers stopped, lamps LOW, driver released.
	if d.ctrl != nil {
		if err := d.ctrl.Close(); err != nil {
			logger.Error("Error closing light controller", "error", err)
		}
	}
}
