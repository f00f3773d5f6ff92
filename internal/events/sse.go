package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch without blocking the
// publisher. A slow SSE client loses events rather than stalling a light
// transition; it resynchronises from the next state or output change.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	if bus == nil {
		return func() {}
	}
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeAllToChannel forwards every lightnode event kind into ch and
// returns one function that removes all subscriptions.
func SubscribeAllToChannel(bus *Bus, ch chan<- any) func() {
	unsubs := []func(){
		SubscribeToChannel[ModeChangedEvent](bus, ch),
		SubscribeToChannel[OutputChangedEvent](bus, ch),
		SubscribeToChannel[DurationsChangedEvent](bus, ch),
		SubscribeToChannel[PresetsChangedEvent](bus, ch),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
