package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/light"
	"github.com/smazurov/lightnode/internal/presets"
)

// mapPresetError converts preset service errors to HTTP errors.
func mapPresetError(err error) error {
	switch {
	case presets.IsInvalid(err):
		return huma.Error422UnprocessableEntity(err.Error(), fieldDetails(light.FieldErrors(err))...)
	case presets.IsNotFound(err):
		return huma.Error404NotFound(err.Error())
	case presets.IsLastPresetProtected(err):
		return huma.Error409Conflict(err.Error())
	case presets.IsPersistence(err):
		return huma.Error500InternalServerError("Failed to persist presets", err)
	default:
		return huma.Error500InternalServerError("Preset operation failed", err)
	}
}

// internalOnly passes validation errors through as nil so callers can
// report them as warnings; anything else becomes an HTTP error.
func internalOnly(err error) error {
	if err == nil || light.IsValidation(err) {
		return nil
	}
	return huma.Error503ServiceUnavailable("Controller unavailable", err)
}

func fieldDetails(fields []light.FieldError) []error {
	details := make([]error, 0, len(fields))
	for _, f := range fields {
		details = append(details, &huma.ErrorDetail{
			Location: "body." + f.Field,
			Message:  f.Reason,
			Value:    f.Value,
		})
	}
	return details
}

func warnings(errs ...error) []models.Warning {
	var out []models.Warning
	for _, f := range light.FieldErrors(errs...) {
		out = append(out, models.Warning{Field: f.Field, Value: f.Value, Reason: f.Reason})
	}
	return out
}
