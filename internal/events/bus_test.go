package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan ModeChangedEvent, 1)

	unsub := bus.Subscribe(func(e ModeChangedEvent) {
		received <- e
	})
	defer unsub()

	ev := ModeChangedEvent{
		ID:        NewID(),
		Mode:      "HOLD_RED",
		Previous:  "STOP",
		Outputs:   Outputs{"red": true, "yellow": false, "green": false},
		Timestamp: Now(),
	}
	bus.Publish(ev)

	select {
	case got := <-received:
		if got.Mode != ev.Mode || got.ID != ev.ID {
			t.Errorf("got %+v, want %+v", got, ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan PresetsChangedEvent, 1)
	received2 := make(chan PresetsChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e PresetsChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e PresetsChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(PresetsChangedEvent{Action: "saved", Name: "night", Presets: []string{"default", "night"}})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan OutputChangedEvent, 1)

	unsub := bus.Subscribe(func(e OutputChangedEvent) {
		received <- e
	})

	bus.Publish(OutputChangedEvent{Mode: "SEQUENCE"})
	<-received

	unsub()

	bus.Publish(OutputChangedEvent{Mode: "STOP"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_NilIsSafe(t *testing.T) {
	var bus *Bus
	bus.Publish(ModeChangedEvent{Mode: "STOP"})
	unsub := bus.Subscribe(func(ModeChangedEvent) {})
	unsub()
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("expected no-op unsubscribe for unknown handler type")
	}
	unsub()
}

func TestSubscribeToChannel_DropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	unsub := SubscribeToChannel[DurationsChangedEvent](bus, ch)
	defer unsub()

	bus.Publish(DurationsChangedEvent{ActivePreset: "a"})
	bus.Publish(DurationsChangedEvent{ActivePreset: "b"})

	deadline := time.After(time.Second)
	select {
	case ev := <-ch:
		if _, ok := ev.(DurationsChangedEvent); !ok {
			t.Fatalf("unexpected event type %T", ev)
		}
	case <-deadline:
		t.Fatal("timeout waiting for event")
	}
}

func TestSubscribeAllToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 8)
	unsub := SubscribeAllToChannel(bus, ch)

	bus.Publish(ModeChangedEvent{Mode: "SEQUENCE"})
	bus.Publish(OutputChangedEvent{Mode: "SEQUENCE"})
	bus.Publish(DurationsChangedEvent{ActivePreset: "default"})
	bus.Publish(PresetsChangedEvent{Action: "saved", Name: "night"})

	seen := map[uint32]bool{}
	deadline := time.After(time.Second)
	for len(seen) < 4 {
		select {
		case ev := <-ch:
			seen[ev.(Event).Type()] = true
		case <-deadline:
			t.Fatalf("timeout, saw %v", seen)
		}
	}

	unsub()
	bus.Publish(ModeChangedEvent{Mode: "STOP"})
	select {
	case ev := <-ch:
		t.Fatalf("received %T after unsubscribe", ev)
	case <-time.After(10 * time.Millisecond):
	}

	var nilBus *Bus
	SubscribeAllToChannel(nilBus, ch)()
}

func TestEventJSON(t *testing.T) {
	ev := DurationsChangedEvent{
		Durations:    Durations{Red: 5, Yellow: 3, Green: 5, Flash: 0.5},
		ActivePreset: "default",
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	durations, ok := decoded["durations"].(map[string]any)
	if !ok {
		t.Fatalf("durations missing in %s", data)
	}
	if durations["flash"] != 0.5 {
		t.Errorf("flash = %v, want 0.5", durations["flash"])
	}
	if decoded["active_preset"] != "default" {
		t.Errorf("active_preset = %v, want default", decoded["active_preset"])
	}
}
