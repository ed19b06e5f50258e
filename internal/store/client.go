package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/homectl/control-proxy/internal/models"
)

// Store paths, relative to the database root.
const (
	enabledPath = "/control/enabled.json"
	devicesPath = "/control/devices.json"
	auditPath   = "/control/log.json"
)

// Client talks to the realtime database over its REST surface. It owns no
// caching: the enabled flag and whitelist are fetched on every request so
// an admin edit takes effect immediately.
type Client struct {
	http   *resty.Client
	secret string
}

// NewClient creates a store client for the database at baseURL. secret, if
// non-empty, is sent as the auth query parameter on every request.
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout)
	return &Client{http: c, secret: secret}
}

// Enabled implements Store. Fails closed: anything but the literal JSON
// boolean true (including null, strings and fetch errors) means disabled.
func (c *Client) Enabled(ctx context.Context) bool {
	resp, err := c.request(ctx).Get(enabledPath)
	if err != nil {
		log.Warn().Err(err).Msg("store: enabled flag fetch failed, treating as disabled")
		return false
	}
	if !resp.IsSuccess() {
		log.Warn().Int("status", resp.StatusCode()).Msg("store: enabled flag fetch non-2xx, treating as disabled")
		return false
	}

	var enabled bool
	if err := json.Unmarshal(resp.Body(), &enabled); err != nil {
		return false
	}
	return enabled
}

// Whitelist implements Store. Keys are decoded from store escaping back to
// canonical entity ids and entries with enabled=false are dropped.
func (c *Client) Whitelist(ctx context.Context) (map[string]models.WhitelistEntry, error) {
	out := make(map[string]models.WhitelistEntry)

	resp, err := c.request(ctx).Get(devicesPath)
	if err != nil {
		return out, fmt.Errorf("fetch whitelist: %w", err)
	}
	if !resp.IsSuccess() {
		return out, fmt.Errorf("fetch whitelist: %w: status %d", ErrUnavailable, resp.StatusCode())
	}

	var raw map[string]models.WhitelistEntry
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return out, fmt.Errorf("decode whitelist: %w", err)
	}

	for key, entry := range raw {
		if !entry.Active() {
			continue
		}
		entityID := DecodeKey(key)
		entry.EntityID = entityID
		out[entityID] = entry
	}
	return out, nil
}

// AppendAudit implements Store using the store's push-style append.
func (c *Client) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	resp, err := c.request(ctx).SetBody(entry).Post(auditPath)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("append audit entry: %w: status %d", ErrUnavailable, resp.StatusCode())
	}
	return nil
}

// PutDevice implements Store.
func (c *Client) PutDevice(ctx context.Context, entry models.WhitelistEntry) error {
	resp, err := c.request(ctx).SetBody(entry).Put(devicePath(entry.EntityID))
	if err != nil {
		return fmt.Errorf("put device: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("put device: %w: status %d", ErrUnavailable, resp.StatusCode())
	}
	return nil
}

// DeleteDevice implements Store.
func (c *Client) DeleteDevice(ctx context.Context, entityID string) error {
	resp, err := c.request(ctx).Delete(devicePath(entityID))
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("delete device: %w: status %d", ErrUnavailable, resp.StatusCode())
	}
	return nil
}

// SetEnabled implements Store.
func (c *Client) SetEnabled(ctx context.Context, enabled bool) error {
	// resty only serializes struct, map and slice bodies, so encode the
	// bare boolean ourselves.
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(strconv.FormatBool(enabled)).
		Put(enabledPath)
	if err != nil {
		return fmt.Errorf("set enabled flag: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("set enabled flag: %w: status %d", ErrUnavailable, resp.StatusCode())
	}
	return nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if c.secret != "" {
		r.SetQueryParam("auth", c.secret)
	}
	return r
}

func devicePath(entityID string) string {
	return "/control/devices/" + EncodeKey(entityID) + ".json"
}

// The store forbids "." in keys, so entity ids are stored with "," in its
// place ("light.lamp" -> "light,lamp").

// EncodeKey converts a canonical entity id to its store key.
func EncodeKey(entityID string) string {
	return strings.ReplaceAll(entityID, ".", ",")
}

// DecodeKey converts a store key back to the canonical entity id.
func DecodeKey(key string) string {
	return strings.ReplaceAll(key, ",", ".")
}
