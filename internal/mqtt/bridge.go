// Package mqtt mirrors the controller onto an MQTT broker: the state is
// published retained under <prefix>/state and commands are accepted on
// <prefix>/control.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/light"
	"github.com/smazurov/lightnode/internal/logging"
)

// Defaults for Options.
const (
	DefaultBroker   = "tcp://localhost:1883"
	DefaultClientID = "lightnode-1"
	DefaultPrefix   = "lightnode"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	retryInterval  = 10 * time.Second
	quiesceMillis  = 250
)

// Controller is the part of the light controller the bridge drives.
type Controller interface {
	Apply(mode light.Mode) (light.State, error)
	SetDurations(update light.DurationUpdate) (light.State, error)
	Snapshot() light.State
}

// Options configures a Bridge.
type Options struct {
	// Broker URL. mqtt:// and mqtts:// are accepted, user info is used
	// for authentication and a path overrides Prefix.
	Broker     string
	ClientID   string
	Prefix     string
	Controller Controller
	EventBus   *events.Bus
	Logger     *slog.Logger
}

// Bridge connects the controller to a broker.
type Bridge struct {
	opts   *paho.ClientOptions
	prefix string
	ctrl   Controller
	bus    *events.Bus
	logger *slog.Logger

	mu     sync.Mutex
	client paho.Client
	unsub  func()
	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// New validates opts and prepares the client options. It does not connect.
func New(opts Options) (*Bridge, error) {
	if opts.Controller == nil {
		return nil, errors.New("mqtt: controller is required")
	}
	broker := opts.Broker
	if broker == "" {
		broker = DefaultBroker
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("mqtt")
	}

	brokerURI, prefix, err := parseBroker(broker, opts.Prefix)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		prefix: prefix,
		ctrl:   opts.Controller,
		bus:    opts.EventBus,
		logger: logger,
	}

	co := paho.NewClientOptions()
	co.AddBroker(brokerURI.String())
	if brokerURI.User != nil {
		username := brokerURI.User.Username()
		co.SetUsername(username)
		password, _ := brokerURI.User.Password()
		co.SetPassword(password)
		logger.Debug("Authenticating to MQTT broker", "username", username)
	}
	co.SetClientID(clientID)
	co.SetCleanSession(true)
	co.SetConnectTimeout(connectTimeout)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(retryInterval)
	co.SetWill(b.topic("connected"), "false", qos, true)
	co.SetOnConnectHandler(b.onConnect)
	co.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.logger.Warn("Lost connection to MQTT broker", "error", err)
	})
	b.opts = co

	return b, nil
}

// parseBroker normalises the broker URL and derives the topic prefix.
func parseBroker(broker, prefix string) (*url.URL, string, error) {
	u, err := url.Parse(broker)
	if err != nil {
		return nil, "", fmt.Errorf("parse mqtt broker %q: %w", broker, err)
	}
	switch u.Scheme {
	case "mqtt", "":
		u.Scheme = "tcp"
	case "mqtts":
		u.Scheme = "ssl"
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("mqtt broker %q has no host", broker)
	}

	if p := strings.Trim(u.Path, "/"); p != "" {
		prefix = p
	}
	u.Path = ""
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return u, prefix, nil
}

// Prefix returns the topic prefix in use.
func (b *Bridge) Prefix() string {
	return b.prefix
}

func (b *Bridge) topic(name string) string {
	return b.prefix + "/" + name
}

// Start connects in the background and begins mirroring state. Connection
// failures are retried by the client, so Start only fails if called twice.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.client != nil {
		b.mu.Unlock()
		return errors.New("mqtt: bridge already started")
	}
	b.client = paho.NewClient(b.opts)
	b.notify = make(chan struct{}, 1)
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	client := b.client
	b.mu.Unlock()

	b.unsub = b.subscribeEvents()
	go b.run(client)

	b.logger.Info("Connecting to MQTT broker", "broker", b.opts.Servers[0].String(), "prefix", b.prefix)
	client.Connect()
	return nil
}

// Stop publishes connected=false and disconnects.
func (b *Bridge) Stop() {
	b.mu.Lock()
	client := b.client
	b.client = nil
	b.mu.Unlock()
	if client == nil {
		return
	}

	b.unsub()
	close(b.stop)
	<-b.done

	if client.IsConnected() {
		b.logger.Info("Disconnecting from MQTT broker")
		b.publish(client, "connected", true, "false")
	}
	client.Disconnect(quiesceMillis)
}

func (b *Bridge) subscribeEvents() func() {
	unsubs := []func(){
		b.bus.Subscribe(func(events.ModeChangedEvent) { b.changed() }),
		b.bus.Subscribe(func(events.OutputChangedEvent) { b.changed() }),
		b.bus.Subscribe(func(events.DurationsChangedEvent) { b.changed() }),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// changed coalesces bursts of events into a single state publish.
func (b *Bridge) changed() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *Bridge) run(client paho.Client) {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case <-b.notify:
			if client.IsConnected() {
				b.publishState(client, b.ctrl.Snapshot())
			}
		}
	}
}

func (b *Bridge) onConnect(client paho.Client) {
	b.logger.Info("Connected to MQTT broker")
	b.publish(client, "connected", true, "true")

	control := b.topic("control")
	token := client.Subscribe(control, qos, func(c paho.Client, msg paho.Message) {
		result := b.handleControl(msg.Payload())
		payload, err := json.Marshal(result)
		if err != nil {
			b.logger.Error("Failed to encode control result", "error", err)
			return
		}
		b.publish(c, "control/result", false, payload)
	})
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		b.logger.Error("Failed to subscribe", "topic", control, "error", token.Error())
	}

	b.publishState(client, b.ctrl.Snapshot())
}

func (b *Bridge) publishState(client paho.Client, state light.State) {
	payload, err := json.Marshal(newStatePayload(state))
	if err != nil {
		b.logger.Error("Failed to encode state", "error", err)
		return
	}
	b.publish(client, "state", true, payload)
}

func (b *Bridge) publish(client paho.Client, name string, retained bool, payload any) {
	token := client.Publish(b.topic(name), qos, retained, payload)
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		b.logger.Warn("MQTT publish failed", "topic", b.topic(name), "error", token.Error())
	}
}

// handleControl applies a control message: either a bare action name or a
// JSON object with an action and duration overrides.
func (b *Bridge) handleControl(payload []byte) controlResult {
	req, err := parseControl(payload)
	if err != nil {
		return controlResult{Error: err.Error()}
	}

	var mode light.Mode
	if req.Action != "" {
		if mode, err = light.ParseMode(req.Action); err != nil {
			return controlResult{Error: err.Error()}
		}
	}

	update, parseErr := light.RawDurations{
		Red:    req.Red.String(),
		Yellow: req.Yellow.String(),
		Green:  req.Green.String(),
		Flash:  req.Flash.String(),
	}.Parse()

	state, setErr := b.ctrl.SetDurations(update)
	if setErr != nil && !light.IsValidation(setErr) {
		return controlResult{Error: setErr.Error()}
	}

	if req.Action != "" {
		if state, err = b.ctrl.Apply(mode); err != nil {
			return controlResult{Error: err.Error()}
		}
		b.logger.Info("Applied MQTT command", "mode", mode.String())
	}

	return controlResult{
		OK:       true,
		State:    ptr(newStatePayload(state)),
		Warnings: light.FieldErrors(parseErr, setErr),
	}
}

func parseControl(payload []byte) (controlRequest, error) {
	var req controlRequest
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return req, errors.New("empty control message")
	}
	if !strings.HasPrefix(text, "{") {
		req.Action = text
		return req, nil
	}
	if err := json.Unmarshal([]byte(text), &req); err != nil {
		return req, fmt.Errorf("invalid control message: %w", err)
	}
	return req, nil
}

// controlRequest mirrors the HTTP control body. Durations may be sent as
// strings or numbers.
type controlRequest struct {
	Action string  `json:"action"`
	Red    seconds `json:"red"`
	Yellow seconds `json:"yellow"`
	Green  seconds `json:"green"`
	Flash  seconds `json:"flash"`
}

// seconds keeps the raw text of a duration field so that parsing and
// validation happen in one place.
type seconds string

func (s *seconds) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = seconds(str)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("duration must be a string or number: %w", err)
	}
	*s = seconds(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func (s seconds) String() string { return string(s) }

type controlResult struct {
	OK       bool               `json:"ok"`
	Error    string             `json:"error,omitempty"`
	State    *statePayload      `json:"state,omitempty"`
	Warnings []light.FieldError `json:"warnings,omitempty"`
}

type statePayload struct {
	Mode         string           `json:"mode"`
	Outputs      events.Outputs   `json:"outputs"`
	Durations    events.Durations `json:"durations"`
	ActivePreset string           `json:"active_preset"`
	Timestamp    string           `json:"timestamp"`
}

func newStatePayload(s light.State) statePayload {
	return statePayload{
		Mode:         s.Mode.String(),
		Outputs:      s.Outputs.Map(),
		Durations:    s.Durations.Event(),
		ActivePreset: s.ActivePreset,
		Timestamp:    events.Now(),
	}
}

func ptr[T any](v T) *T { return &v }
