package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Current state on connect, then mode, output, timing and preset changes as they happen",
		Tags:        []string{"events"},
	}, map[string]any{
		"state":             models.StateData{},
		"mode-changed":      events.ModeChangedEvent{},
		"output-changed":    events.OutputChangedEvent{},
		"durations-changed": events.DurationsChangedEvent{},
		"presets-changed":   events.PresetsChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribe := events.SubscribeAllToChannel(s.eventBus, eventCh)
		defer unsubscribe()

		// Subscribe before the snapshot so no change is lost in between.
		if err := send.Data(s.stateData(s.ctrl.Snapshot())); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
