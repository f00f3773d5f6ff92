package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/light"
)

func (s *Server) registerLightRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/api/state",
		Summary:     "Get State",
		Description: "Current mode, output levels, live timings and presets",
		Tags:        []string{"light"},
	}, func(_ context.Context, _ *struct{}) (*models.StateResponse, error) {
		return &models.StateResponse{Body: s.stateData(s.ctrl.Snapshot())}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "control",
		Method:      http.MethodPost,
		Path:        "/api/control",
		Summary:     "Control",
		Description: "Apply duration overrides, then switch mode. Rejected overrides are reported as warnings and do not stop the action.",
		Tags:        []string{"light"},
		Errors:      []int{422},
	}, func(_ context.Context, input *models.ControlRequest) (*models.ControlResponse, error) {
		body := input.Body

		// Parse the action first so a bad action changes nothing.
		var mode light.Mode
		hasAction := body.Action != ""
		if hasAction {
			parsed, err := light.ParseMode(body.Action)
			if err != nil {
				return nil, huma.Error422UnprocessableEntity("Unknown action", &huma.ErrorDetail{
					Location: "body.action",
					Message:  err.Error(),
					Value:    body.Action,
				})
			}
			mode = parsed
		}

		update, parseErr := light.RawDurations{
			Red:    body.Red,
			Yellow: body.Yellow,
			Green:  body.Green,
			Flash:  body.Flash,
		}.Parse()

		state, setErr := s.ctrl.SetDurations(update)
		if err := internalOnly(setErr); err != nil {
			return nil, err
		}

		if hasAction {
			var err error
			if state, err = s.ctrl.Apply(mode); err != nil {
				return nil, huma.Error503ServiceUnavailable("Controller unavailable", err)
			}
		}

		return &models.ControlResponse{
			Body: models.ControlData{
				State:    s.stateData(state),
				Warnings: warnings(parseErr, setErr),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "patch-durations",
		Method:      http.MethodPatch,
		Path:        "/api/durations",
		Summary:     "Update Durations",
		Description: "Update the live timings. Fields below the minimum are rejected and keep their value; the request fails only if nothing was accepted.",
		Tags:        []string{"light"},
		Errors:      []int{422},
	}, func(_ context.Context, input *models.DurationsPatchRequest) (*models.ControlResponse, error) {
		update := light.DurationUpdate{
			Red:    input.Body.Red,
			Yellow: input.Body.Yellow,
			Green:  input.Body.Green,
			Flash:  input.Body.Flash,
		}
		if update.Empty() {
			return nil, huma.Error422UnprocessableEntity("No duration fields given")
		}

		state, err := s.ctrl.SetDurations(update)
		if ierr := internalOnly(err); ierr != nil {
			return nil, ierr
		}

		rejected := light.FieldErrors(err)
		if len(rejected) == countSet(update) {
			return nil, huma.Error422UnprocessableEntity("Invalid durations", fieldDetails(rejected)...)
		}

		return &models.ControlResponse{
			Body: models.ControlData{
				State:    s.stateData(state),
				Warnings: warnings(err),
			},
		}, nil
	})
}

func countSet(u light.DurationUpdate) int {
	n := 0
	for _, f := range []*float64{u.Red, u.Yellow, u.Green, u.Flash} {
		if f != nil {
			n++
		}
	}
	return n
}

func (s *Server) stateData(state light.State) models.StateData {
	var names []string
	if s.presets != nil {
		names = s.presets.Names()
	}
	return models.StateData{
		Mode:         state.Mode.String(),
		Outputs:      state.Outputs.Map(),
		Durations:    durationsData(state.Durations),
		ActivePreset: state.ActivePreset,
		Presets:      names,
		Driver:       state.Driver,
	}
}

func durationsData(d light.Durations) models.Durations {
	return models.Durations{Red: d.Red, Yellow: d.Yellow, Green: d.Green, Flash: d.Flash}
}
