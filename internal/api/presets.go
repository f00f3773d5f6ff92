package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/light"
)

func (s *Server) registerPresetRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-presets",
		Method:      http.MethodGet,
		Path:        "/api/presets",
		Summary:     "List Presets",
		Description: "All stored timing presets and the active one",
		Tags:        []string{"presets"},
	}, func(_ context.Context, _ *struct{}) (*models.PresetListResponse, error) {
		return &models.PresetListResponse{Body: s.presetList()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "save-preset",
		Method:        http.MethodPost,
		Path:          "/api/presets",
		Summary:       "Save Preset",
		Description:   "Store the given timings, or the live ones, under a name. An existing preset of that name is replaced.",
		Tags:          []string{"presets"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{422, 500},
	}, func(_ context.Context, input *models.PresetSaveRequest) (*models.PresetListResponse, error) {
		var err error
		if d := input.Body.Durations; d != nil {
			err = s.presets.Save(input.Body.Name, light.Durations{
				Red:    d.Red,
				Yellow: d.Yellow,
				Green:  d.Green,
				Flash:  d.Flash,
			})
		} else {
			err = s.presets.SaveCurrent(input.Body.Name)
		}
		if err != nil {
			return nil, mapPresetError(err)
		}
		return &models.PresetListResponse{Body: s.presetList()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "apply-preset",
		Method:      http.MethodPost,
		Path:        "/api/presets/{name}/apply",
		Summary:     "Apply Preset",
		Description: "Copy a preset into the live timings and mark it active",
		Tags:        []string{"presets"},
		Errors:      []int{404},
	}, func(_ context.Context, input *models.PresetNameRequest) (*models.StateResponse, error) {
		state, err := s.presets.Apply(input.Name)
		if err != nil {
			return nil, mapPresetError(err)
		}
		return &models.StateResponse{Body: s.stateData(state)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-preset",
		Method:      http.MethodDelete,
		Path:        "/api/presets/{name}",
		Summary:     "Delete Preset",
		Description: "Remove a preset. The last preset cannot be removed; deleting the active one applies the default.",
		Tags:        []string{"presets"},
		Errors:      []int{404, 409, 500},
	}, func(_ context.Context, input *models.PresetNameRequest) (*models.StateResponse, error) {
		state, err := s.presets.Delete(input.Name)
		if err != nil {
			return nil, mapPresetError(err)
		}
		return &models.StateResponse{Body: s.stateData(state)}, nil
	})
}

func (s *Server) presetList() models.PresetListData {
	list := s.presets.List()
	data := models.PresetListData{
		Presets: make([]models.PresetData, 0, len(list)),
		Active:  s.ctrl.Snapshot().ActivePreset,
		Count:   len(list),
	}
	for _, p := range list {
		data.Presets = append(data.Presets, models.PresetData{
			Name:      p.Name,
			Durations: durationsData(p.Durations),
		})
	}
	return data
}
