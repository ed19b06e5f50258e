// Package control implements the device-control pipeline: rate limiting,
// kill-switch and whitelist enforcement, parameter shaping, the downstream
// service call and the audit-log append.
package control

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/homectl/control-proxy/internal/hub"
	"github.com/homectl/control-proxy/internal/models"
)

// Pipeline failure modes, mapped to status codes at the API boundary.
var (
	ErrRateLimited      = errors.New("too many requests")
	ErrServiceDisabled  = errors.New("control is disabled")
	ErrInvalidAction    = errors.New("invalid action")
	ErrDeviceNotAllowed = errors.New("device not allowed")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUpstream         = errors.New("upstream error")
)

// Store is the slice of the external store the pipeline reads and appends.
type Store interface {
	Enabled(ctx context.Context) bool
	Whitelist(ctx context.Context) (map[string]models.WhitelistEntry, error)
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
}

// Hub is the downstream home-automation hub.
type Hub interface {
	States(ctx context.Context) ([]hub.EntityState, error)
	CallService(ctx context.Context, category models.Category, action models.Action, payload hub.ServicePayload) error
}

// Limiter admits or rejects a request for a caller key.
type Limiter interface {
	Allow(key string) bool
}

// Publisher mirrors audit entries to subscribers. May be a no-op.
type Publisher interface {
	PublishAudit(entry models.AuditEntry)
}

// Controller is the injected pipeline context. Everything it touches comes
// in through the constructor so tests can swap in fakes.
type Controller struct {
	store   Store
	hub     Hub
	limiter Limiter
	events  Publisher
	now     func() time.Time
}

// New creates a Controller. events may be nil.
func New(store Store, h Hub, limiter Limiter, events Publisher) *Controller {
	return &Controller{
		store:   store,
		hub:     h,
		limiter: limiter,
		events:  events,
		now:     time.Now,
	}
}

// SetClock overrides the audit timestamp clock. Test hook.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// Status reports the global kill switch. Fails closed on store errors.
func (c *Controller) Status(ctx context.Context) bool {
	return c.store.Enabled(ctx)
}

// Devices returns the whitelisted devices keyed by entity id. On store
// failure it returns an empty map: unknown devices are never exposed.
func (c *Controller) Devices(ctx context.Context) map[string]models.Device {
	entries, err := c.store.Whitelist(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("control: whitelist fetch failed, returning no devices")
		return map[string]models.Device{}
	}

	devices := make(map[string]models.Device, len(entries))
	for id, entry := range entries {
		devices[id] = models.Device{Name: entry.Name, Emoji: entry.Emoji, Type: entry.Type}
	}
	return devices
}

// States returns the current state of every whitelisted entity. Entities
// the hub reports but the whitelist does not are dropped; an empty
// whitelist short-circuits without calling the hub.
func (c *Controller) States(ctx context.Context) (map[string]models.DeviceState, error) {
	entries, err := c.store.Whitelist(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("control: whitelist fetch failed, returning no state")
		return map[string]models.DeviceState{}, nil
	}
	if len(entries) == 0 {
		return map[string]models.DeviceState{}, nil
	}

	states, err := c.hub.States(ctx)
	if err != nil {
		log.Error().Err(err).Msg("control: hub state fetch failed")
		return nil, ErrUpstream
	}

	out := make(map[string]models.DeviceState, len(entries))
	for _, st := range states {
		entry, ok := entries[st.EntityID]
		if !ok {
			continue
		}
		out[st.EntityID] = buildDeviceState(entry, st)
	}
	return out, nil
}

// Control runs the full pipeline for one request. Preconditions are
// checked in a fixed order, each with a distinct failure mode: rate limit,
// kill switch, action validity, whitelist membership. The whitelist is not
// consulted until the action has been validated.
func (c *Controller) Control(ctx context.Context, callerIP string, req models.ControlRequest) (models.ControlResult, error) {
	if !c.limiter.Allow(callerIP) {
		return models.ControlResult{}, ErrRateLimited
	}

	if !c.store.Enabled(ctx) {
		return models.ControlResult{}, ErrServiceDisabled
	}

	if !req.Action.Valid() {
		return models.ControlResult{}, ErrInvalidAction
	}

	entries, err := c.store.Whitelist(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("control: whitelist fetch failed, rejecting")
	}
	entry, ok := entries[req.EntityID]
	if !ok {
		return models.ControlResult{}, ErrDeviceNotAllowed
	}

	category := models.ParseCategory(req.EntityID)
	if category == models.CategoryUnknown {
		return models.ControlResult{}, ErrDeviceNotAllowed
	}

	payload, annotation, err := shapePayload(category, req)
	if err != nil {
		return models.ControlResult{}, err
	}

	if err := c.hub.CallService(ctx, category, req.Action, payload); err != nil {
		log.Error().Err(err).
			Str("entity_id", req.EntityID).
			Str("action", string(req.Action)).
			Msg("control: hub service call failed")
		return models.ControlResult{}, ErrUpstream
	}

	c.recordAudit(ctx, entry, req.Action, annotation)

	name := entry.Name
	if name == "" {
		name = req.EntityID
	}
	return models.ControlResult{
		Success:  true,
		EntityID: req.EntityID,
		Action:   req.Action,
		Message:  name + " updated",
	}, nil
}

// recordAudit appends an activity-log entry and mirrors it to the event
// feed. Failures are logged and never fail the request.
func (c *Controller) recordAudit(ctx context.Context, entry models.WhitelistEntry, action models.Action, annotation string) {
	audit := models.AuditEntry{
		ID:         uuid.New().String(),
		EntityID:   entry.EntityID,
		Action:     string(action) + annotation,
		Label:      action.Label(),
		DeviceName: entry.Name,
		Timestamp:  c.now(),
	}

	if err := c.store.AppendAudit(ctx, audit); err != nil {
		log.Warn().Err(err).Str("entity_id", entry.EntityID).Msg("control: audit append failed")
	}
	if c.events != nil {
		c.events.PublishAudit(audit)
	}
}

// shapePayload builds the downstream payload, forwarding only parameters
// allowed for the category/action pair and converting brightness to the
// hub's 0-255 scale. It returns the audit annotation for the parameters
// that were actually forwarded.
func shapePayload(category models.Category, req models.ControlRequest) (hub.ServicePayload, string, error) {
	payload := hub.ServicePayload{EntityID: req.EntityID}
	annotation := ""

	for _, param := range models.AllowedParams(category, req.Action) {
		switch param {
		case models.ParamRGBColor:
			if req.RGBColor == nil {
				continue
			}
			if len(req.RGBColor) != 3 {
				return payload, "", fmt.Errorf("%w: rgb_color must have 3 components", ErrInvalidParameter)
			}
			for _, v := range req.RGBColor {
				if v < 0 || v > 255 {
					return payload, "", fmt.Errorf("%w: rgb_color component out of range", ErrInvalidParameter)
				}
			}
			payload.RGBColor = req.RGBColor
			annotation += " (color)"

		case models.ParamBrightness:
			if req.Brightness == nil {
				continue
			}
			b := *req.Brightness
			if b < 0 || b > 100 {
				return payload, "", fmt.Errorf("%w: brightness out of range", ErrInvalidParameter)
			}
			scaled := int(math.Round(float64(b) / 100 * 255))
			payload.Brightness = &scaled
			annotation += fmt.Sprintf(" (%d%%)", b)

		case models.ParamPercentage:
			if req.Percentage == nil {
				continue
			}
			p := *req.Percentage
			if p < 0 || p > 100 {
				return payload, "", fmt.Errorf("%w: percentage out of range", ErrInvalidParameter)
			}
			payload.Percentage = &p
			annotation += fmt.Sprintf(" (%d%%)", p)
		}
	}

	return payload, annotation, nil
}

// buildDeviceState merges a whitelist entry with the hub-reported state,
// attaching the category-specific fields.
func buildDeviceState(entry models.WhitelistEntry, st hub.EntityState) models.DeviceState {
	out := models.DeviceState{
		State: st.State,
		Name:  entry.Name,
		Emoji: entry.Emoji,
		Type:  entry.Type,
	}

	switch models.ParseCategory(st.EntityID) {
	case models.CategoryLight:
		if st.Attributes.Brightness != nil {
			pct := int(math.Round(float64(*st.Attributes.Brightness) / 255 * 100))
			out.Brightness = &pct
		}
		out.RGBColor = st.Attributes.RGBColor
		supports := st.Attributes.SupportsColor()
		out.SupportsColor = &supports

	case models.CategoryFan:
		out.Percentage = st.Attributes.Percentage
		out.PresetMode = st.Attributes.PresetMode

	case models.CategoryMediaPlayer:
		out.Title = st.Attributes.MediaTitle
		out.AppName = st.Attributes.AppName
		out.Artist = st.Attributes.MediaArtist
		out.ContentType = st.Attributes.MediaContentType
	}

	return out
}
