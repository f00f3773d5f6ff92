package mqtt

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/lightnode/internal/events"
	"github.com/smazurov/lightnode/internal/light"
	"github.com/smazurov/lightnode/internal/output"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes and keeps subscription handlers so tests
// can deliver messages.
type fakeClient struct {
	mu        sync.Mutex
	published []published
	handlers  map[string]paho.MessageHandler
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]paho.MessageHandler)}
}

func (f *fakeClient) IsConnected() bool { return true }

func (f *fakeClient) IsConnectionOpen() bool { return true }

func (f *fakeClient) Connect() paho.Token { return doneToken{} }

func (f *fakeClient) Disconnect(uint) {}

func (f *fakeClient) Unsubscribe(...string) paho.Token { return doneToken{} }

func (f *fakeClient) AddRoute(string, paho.MessageHandler) {}

func (f *fakeClient) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload any) paho.Token {
	var data []byte
	switch p := payload.(type) {
	case string:
		data = []byte(p)
	case []byte:
		data = p
	}
	f.mu.Lock()
	f.published = append(f.published, published{topic: topic, retained: retained, payload: data})
	f.mu.Unlock()
	return doneToken{}
}

func (f *fakeClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	f.mu.Lock()
	f.handlers[topic] = cb
	f.mu.Unlock()
	return doneToken{}
}

func (f *fakeClient) SubscribeMultiple(filters map[string]byte, cb paho.MessageHandler) paho.Token {
	for topic := range filters {
		f.Subscribe(topic, 0, cb)
	}
	return doneToken{}
}

func (f *fakeClient) deliver(topic, payload string) {
	f.mu.Lock()
	cb := f.handlers[topic]
	f.mu.Unlock()
	cb(f, &fakeMessage{topic: topic, payload: []byte(payload)})
}

func (f *fakeClient) last(topic string) (published, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.published) - 1; i >= 0; i-- {
		if f.published[i].topic == topic {
			return f.published[i], true
		}
	}
	return published{}, false
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return qos }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func newTestBridge(t *testing.T) (*Bridge, *light.Controller) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl, err := light.New(light.Options{Driver: output.NewSimulated(nil), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })

	b, err := New(Options{Broker: "mqtt://broker.local:1883", Controller: ctrl, EventBus: events.New(), Logger: logger})
	require.NoError(t, err)
	return b, ctrl
}

func TestParseBroker(t *testing.T) {
	tests := []struct {
		broker     string
		prefix     string
		wantURL    string
		wantPrefix string
		wantErr    bool
	}{
		{"tcp://localhost:1883", "", "tcp://localhost:1883", "lightnode", false},
		{"mqtt://host:1883", "crossing", "tcp://host:1883", "crossing", false},
		{"mqtts://user:pw@host:8883/site/north", "", "ssl://user:pw@host:8883", "site/north", false},
		{"ws://host:9001", "/lights/", "ws://host:9001", "lights", false},
		{"localhost", "", "", "", true},
		{"://bad", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.broker, func(t *testing.T) {
			u, prefix, err := parseBroker(tt.broker, tt.prefix)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, u.String())
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}

func TestNew_RequiresController(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestHandleControl(t *testing.T) {
	b, ctrl := newTestBridge(t)

	res := b.handleControl([]byte("hold_yellow"))
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "HOLD_YELLOW", res.State.Mode)
	assert.True(t, res.State.Outputs["yellow"])

	res = b.handleControl([]byte(`{"action":"FLASH_GREEN","red":"4","yellow":2.5,"flash":"x"}`))
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "FLASH_GREEN", res.State.Mode)
	assert.Equal(t, 4.0, ctrl.Durations().Red)
	assert.Equal(t, 2.5, ctrl.Durations().Yellow)
	assert.Equal(t, 0.5, ctrl.Durations().Flash)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "flash", res.Warnings[0].Field)

	res = b.handleControl([]byte(`{"action":"BOGUS","red":"9"}`))
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, 4.0, ctrl.Durations().Red, "a bad action must not apply overrides")

	for _, payload := range []string{"", "  ", "{not json"} {
		res = b.handleControl([]byte(payload))
		assert.False(t, res.OK, "payload %q", payload)
	}
}

func TestOnConnect_PublishesAndSubscribes(t *testing.T) {
	b, ctrl := newTestBridge(t)
	client := newFakeClient()

	ctrl.Hold(light.Red)
	b.onConnect(client)

	connected, ok := client.last("lightnode/connected")
	require.True(t, ok)
	assert.True(t, connected.retained)
	assert.Equal(t, "true", string(connected.payload))

	state, ok := client.last("lightnode/state")
	require.True(t, ok)
	assert.True(t, state.retained)
	var payload statePayload
	require.NoError(t, json.Unmarshal(state.payload, &payload))
	assert.Equal(t, "HOLD_RED", payload.Mode)

	client.deliver("lightnode/control", "STOP")
	result, ok := client.last("lightnode/control/result")
	require.True(t, ok)
	assert.False(t, result.retained)

	var res controlResult
	require.NoError(t, json.Unmarshal(result.payload, &res))
	assert.True(t, res.OK)
	assert.Equal(t, light.StopMode(), ctrl.Snapshot().Mode)
}

func TestRun_PublishesOnEvents(t *testing.T) {
	b, ctrl := newTestBridge(t)
	client := newFakeClient()

	b.notify = make(chan struct{}, 1)
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.run(client)
	defer func() {
		close(b.stop)
		<-b.done
	}()

	ctrl.Hold(light.Green)
	b.changed()
	b.changed()

	require.Eventually(t, func() bool {
		p, ok := client.last("lightnode/state")
		if !ok {
			return false
		}
		var payload statePayload
		return json.Unmarshal(p.payload, &payload) == nil && payload.Mode == "HOLD_GREEN"
	}, time.Second, 5*time.Millisecond)
}
