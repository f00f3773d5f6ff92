// Package client talks to a lightnode HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/smazurov/lightnode/internal/api/models"
	"github.com/smazurov/lightnode/internal/version"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 5 * time.Second

// ErrorDetail is one entry of a problem response.
type ErrorDetail struct {
	Message  string `json:"message"`
	Location string `json:"location"`
	Value    any    `json:"value"`
}

// APIError is the RFC 9457 problem body the server returns on failure.
type APIError struct {
	Status int           `json:"status"`
	Title  string        `json:"title"`
	Detail string        `json:"detail"`
	Errors []ErrorDetail `json:"errors"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", e.Status, e.Title)
	if e.Detail != "" && e.Detail != e.Title {
		b.WriteString(": " + e.Detail)
	}
	for _, d := range e.Errors {
		fmt.Fprintf(&b, "; %s: %s", strings.TrimPrefix(d.Location, "body."), d.Message)
	}
	return b.String()
}

// StatusCode returns the HTTP status of err if it is an *APIError, else 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Client is a typed wrapper around the HTTP API.
type Client struct {
	http *resty.Client
}

// New creates a client for baseURL. A bare host[:port] gets http://.
func New(baseURL string) (*Client, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q", baseURL)
	}

	r := resty.New().
		SetBaseURL(strings.TrimRight(u.String(), "/")).
		SetTimeout(DefaultTimeout).
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader("Accept", "application/json")

	return &Client{http: r}, nil
}

// BaseURL returns the server address in use.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.http.R().
		SetContext(ctx).
		SetError(&APIError{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*APIError); ok && apiErr.Status != 0 {
			return apiErr
		}
		return &APIError{Status: resp.StatusCode(), Title: resp.Status()}
	}
	return nil
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) (*models.HealthData, error) {
	var out models.HealthData
	if err := c.do(ctx, resty.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the server's build information.
func (c *Client) Version(ctx context.Context) (*models.VersionData, error) {
	var out models.VersionData
	if err := c.do(ctx, resty.MethodGet, "/api/version", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// State returns the controller state.
func (c *Client) State(ctx context.Context) (*models.StateData, error) {
	var out models.StateData
	if err := c.do(ctx, resty.MethodGet, "/api/state", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Control applies duration overrides and then an action.
func (c *Client) Control(ctx context.Context, req models.ControlRequestData) (*models.ControlData, error) {
	var out models.ControlData
	if err := c.do(ctx, resty.MethodPost, "/api/control", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetDurations updates the live timings.
func (c *Client) SetDurations(ctx context.Context, patch models.DurationsPatchData) (*models.ControlData, error) {
	var out models.ControlData
	if err := c.do(ctx, resty.MethodPatch, "/api/durations", patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Presets lists stored presets.
func (c *Client) Presets(ctx context.Context) (*models.PresetListData, error) {
	var out models.PresetListData
	if err := c.do(ctx, resty.MethodGet, "/api/presets", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SavePreset stores durations under name, or the live timings when
// durations is nil.
func (c *Client) SavePreset(ctx context.Context, name string, durations *models.Durations) (*models.PresetListData, error) {
	var out models.PresetListData
	body := models.PresetSaveData{Name: name, Durations: durations}
	if err := c.do(ctx, resty.MethodPost, "/api/presets", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApplyPreset makes name the live timing set.
func (c *Client) ApplyPreset(ctx context.Context, name string) (*models.StateData, error) {
	var out models.StateData
	if err := c.do(ctx, resty.MethodPost, "/api/presets/"+url.PathEscape(name)+"/apply", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePreset removes name.
func (c *Client) DeletePreset(ctx context.Context, name string) (*models.StateData, error) {
	var out models.StateData
	if err := c.do(ctx, resty.MethodDelete, "/api/presets/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
