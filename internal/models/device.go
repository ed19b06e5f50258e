package models

import "time"

// WhitelistEntry is a controllable device as recorded in the external
// store. Only whitelisted entities are ever surfaced or controlled.
type WhitelistEntry struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Emoji    string `json:"emoji"`
	Type     string `json:"type"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// Active reports whether the entry may be surfaced. Absent means enabled;
// only an explicit false disables it.
func (e WhitelistEntry) Active() bool {
	return e.Enabled == nil || *e.Enabled
}

// Device is the public shape of a whitelist entry.
type Device struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Type  string `json:"type"`
}

// DeviceState is the per-entity state reported by /api/state. The generic
// fields are always set; the optional ones depend on the entity category.
type DeviceState struct {
	State string `json:"state"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Type  string `json:"type"`

	// Lights
	Brightness    *int  `json:"brightness,omitempty"` // 0-100
	RGBColor      []int `json:"rgb_color,omitempty"`
	SupportsColor *bool `json:"supports_color,omitempty"`

	// Fans
	Percentage *int   `json:"percentage,omitempty"`
	PresetMode string `json:"preset_mode,omitempty"`

	// Media players
	Title       string `json:"title,omitempty"`
	AppName     string `json:"app_name,omitempty"`
	Artist      string `json:"artist,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// ControlRequest is an incoming device-control request. Optional fields
// are only forwarded when they apply to the entity's category.
type ControlRequest struct {
	EntityID   string `json:"entity_id"`
	Action     Action `json:"action"`
	RGBColor   []int  `json:"rgb_color,omitempty"`
	Brightness *int   `json:"brightness,omitempty"` // 0-100
	Percentage *int   `json:"percentage,omitempty"` // 0-100
}

// ControlResult is the success response for a control request.
type ControlResult struct {
	Success  bool   `json:"success"`
	EntityID string `json:"entity_id"`
	Action   Action `json:"action"`
	Message  string `json:"message"`
}

// AuditEntry is one append-only activity-log record. Action carries the
// raw action annotated with "(color)" / "(N%)" when those parameters were
// set; Label is the humanized form for display.
type AuditEntry struct {
	ID         string    `json:"id"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Label      string    `json:"label"`
	DeviceName string    `json:"device_name"`
	Timestamp  time.Time `json:"timestamp"`
}
