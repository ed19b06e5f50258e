// Package events mirrors audit entries onto NATS so live activity views
// can subscribe instead of polling the store.
package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/homectl/control-proxy/internal/models"
)

// SubjectAudit is the subject audit entries are published on.
const SubjectAudit = "home.control.audit"

// Publisher publishes audit entries to NATS. A Publisher with a nil
// connection is a no-op, so callers never need to branch on NATS being
// configured.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a Publisher. nc may be nil.
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// PublishAudit publishes one audit entry. Failures are logged and
// swallowed, same policy as audit-append failures.
func (p *Publisher) PublishAudit(entry models.AuditEntry) {
	if p == nil || p.nc == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Msg("events: marshal audit entry failed")
		return
	}

	if err := p.nc.Publish(SubjectAudit, data); err != nil {
		log.Warn().Err(err).Msg("events: publish audit entry failed")
	}
}
