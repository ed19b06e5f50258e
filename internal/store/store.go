package store

import (
	"context"
	"errors"

	"github.com/homectl/control-proxy/internal/models"
)

// Store errors
var (
	ErrUnavailable = errors.New("store unavailable")
	ErrNotFound    = errors.New("not found")
)

// Store is the external realtime key-value store holding the kill switch,
// the device whitelist and the activity log. The proxy reads the first two
// on every request and only ever appends to the log; callers must treat
// every read error as the most restrictive outcome (disabled / empty).
type Store interface {
	// Enabled reads the global kill switch. Only the literal JSON boolean
	// true enables the service; any other payload or error means disabled.
	Enabled(ctx context.Context) bool

	// Whitelist reads the device whitelist keyed by canonical entity id,
	// with entries disabled via enabled=false already filtered out. On any
	// error it returns an empty map alongside the error.
	Whitelist(ctx context.Context) (map[string]models.WhitelistEntry, error)

	// AppendAudit appends one activity-log entry.
	AppendAudit(ctx context.Context, entry models.AuditEntry) error

	// Admin writes.
	PutDevice(ctx context.Context, entry models.WhitelistEntry) error
	DeleteDevice(ctx context.Context, entityID string) error
	SetEnabled(ctx context.Context, enabled bool) error
}
