// Package hub is the client for the downstream home-automation hub. The
// proxy only ever issues two call shapes: a full state dump and a
// category-scoped service call.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/homectl/control-proxy/internal/models"
)

// EntityState is one entity as reported by the hub's state dump. Only the
// attributes the proxy surfaces are decoded.
type EntityState struct {
	EntityID   string     `json:"entity_id"`
	State      string     `json:"state"`
	Attributes Attributes `json:"attributes"`
}

// Attributes holds the subset of hub-reported attributes the proxy cares
// about across all supported categories.
type Attributes struct {
	FriendlyName        string   `json:"friendly_name"`
	Brightness          *int     `json:"brightness,omitempty"` // hub scale, 0-255
	RGBColor            []int    `json:"rgb_color,omitempty"`
	SupportedColorModes []string `json:"supported_color_modes,omitempty"`
	Percentage          *int     `json:"percentage,omitempty"`
	PresetMode          string   `json:"preset_mode,omitempty"`
	MediaTitle          string   `json:"media_title,omitempty"`
	AppName             string   `json:"app_name,omitempty"`
	MediaArtist         string   `json:"media_artist,omitempty"`
	MediaContentType    string   `json:"media_content_type,omitempty"`
}

// SupportsColor reports whether the entity advertises a color-capable
// color mode.
func (a Attributes) SupportsColor() bool {
	for _, mode := range a.SupportedColorModes {
		switch mode {
		case "hs", "rgb", "rgbw", "rgbww", "xy":
			return true
		}
	}
	return false
}

// ServicePayload is the body of a service call. Nil optional fields are
// omitted from the wire payload.
type ServicePayload struct {
	EntityID   string `json:"entity_id"`
	RGBColor   []int  `json:"rgb_color,omitempty"`
	Brightness *int   `json:"brightness,omitempty"` // hub scale, 0-255
	Percentage *int   `json:"percentage,omitempty"`
}

// Client is a bearer-token REST client for the hub. No retries: a failed
// call is surfaced immediately.
type Client struct {
	http *resty.Client
}

// NewClient creates a hub client for the hub at baseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(token).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: c}
}

// States returns the hub's full entity state dump.
func (c *Client) States(ctx context.Context) ([]EntityState, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/states")
	if err != nil {
		return nil, fmt.Errorf("fetch states: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch states: hub returned status %d", resp.StatusCode())
	}

	var states []EntityState
	if err := json.Unmarshal(resp.Body(), &states); err != nil {
		return nil, fmt.Errorf("decode states: %w", err)
	}
	return states, nil
}

// CallService invokes POST /api/services/{category}/{action} with the
// given payload.
func (c *Client) CallService(ctx context.Context, category models.Category, action models.Action, payload ServicePayload) error {
	path := fmt.Sprintf("/api/services/%s/%s", category, action)
	resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post(path)
	if err != nil {
		return fmt.Errorf("call %s/%s: %w", category, action, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("call %s/%s: hub returned status %d", category, action, resp.StatusCode())
	}
	return nil
}
