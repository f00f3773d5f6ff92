package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Durations is the live timing set in seconds.
type Durations struct {
	Red    float64 `json:"red" example:"5" doc:"Red phase length in seconds"`
	Yellow float64 `json:"yellow" example:"3" doc:"Yellow phase length in seconds"`
	Green  float64 `json:"green" example:"5" doc:"Green phase length in seconds"`
	Flash  float64 `json:"flash" example:"0.5" doc:"Flash half-period in seconds"`
}

// State models
type StateData struct {
	Mode         string          `json:"mode" example:"SEQUENCE" doc:"Active mode: STOP, SEQUENCE, HOLD_<COLOR> or FLASH_<COLOR>"`
	Outputs      map[string]bool `json:"outputs" doc:"Level last written to each lamp"`
	Durations    Durations       `json:"durations" doc:"Live timings"`
	ActivePreset string          `json:"active_preset" example:"default" doc:"Last applied preset; not cleared by live edits"`
	Presets      []string        `json:"presets" doc:"All preset names"`
	Driver       string          `json:"driver" example:"simulated" doc:"Output driver in use"`
}

type StateResponse struct {
	Body StateData
}

// Warning reports one rejected duration field of an otherwise accepted request.
type Warning struct {
	Field  string `json:"field" example:"red" doc:"Duration field"`
	Value  string `json:"value" example:"abc" doc:"Rejected input"`
	Reason string `json:"reason" example:"not a number" doc:"Why the input was rejected"`
}

// Control models
type ControlRequestData struct {
	Action string `json:"action,omitempty" example:"FLASH_RED" doc:"STOP, SEQUENCE (or START_SEQUENCE), HOLD_<COLOR>, FLASH_<COLOR>; empty to only update durations"`
	Red    string `json:"red,omitempty" example:"5" doc:"Optional red duration override in seconds"`
	Yellow string `json:"yellow,omitempty" example:"3" doc:"Optional yellow duration override in seconds"`
	Green  string `json:"green,omitempty" example:"5" doc:"Optional green duration override in seconds"`
	Flash  string `json:"flash,omitempty" example:"0.5" doc:"Optional flash duration override in seconds"`
}

type ControlRequest struct {
	Body ControlRequestData
}

type ControlData struct {
	State    StateData `json:"state" doc:"State after the request"`
	Warnings []Warning `json:"warnings,omitempty" doc:"Duration fields that were rejected"`
}

type ControlResponse struct {
	Body ControlData
}

// Duration update models
type DurationsPatchData struct {
	Red    *float64 `json:"red,omitempty" example:"5" doc:"Red phase length in seconds"`
	Yellow *float64 `json:"yellow,omitempty" example:"3" doc:"Yellow phase length in seconds"`
	Green  *float64 `json:"green,omitempty" example:"5" doc:"Green phase length in seconds"`
	Flash  *float64 `json:"flash,omitempty" example:"0.5" doc:"Flash half-period in seconds"`
}

type DurationsPatchRequest struct {
	Body DurationsPatchData
}

// Preset models
type PresetData struct {
	Name      string    `json:"name" example:"night" doc:"Preset name"`
	Durations Durations `json:"durations" doc:"Stored timings"`
}

type PresetListData struct {
	Presets []PresetData `json:"presets" doc:"All presets ordered by name"`
	Active  string       `json:"active" example:"default" doc:"Active preset"`
	Count   int          `json:"count" example:"2" doc:"Number of presets"`
}

type PresetListResponse struct {
	Body PresetListData
}

type PresetSaveData struct {
	Name      string     `json:"name" minLength:"1" example:"night" doc:"Preset name"`
	Durations *Durations `json:"durations,omitempty" doc:"Timings to store; the live timings are stored when omitted"`
}

type PresetSaveRequest struct {
	Body PresetSaveData
}

type PresetNameRequest struct {
	Name string `path:"name" example:"night" doc:"Preset name"`
}
