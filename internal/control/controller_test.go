package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homectl/control-proxy/internal/hub"
	"github.com/homectl/control-proxy/internal/models"
)

// fakeStore is an in-memory Store with fault injection.
type fakeStore struct {
	enabled       bool
	whitelist     map[string]models.WhitelistEntry
	whitelistErr  error
	auditErr      error
	audits        []models.AuditEntry
	whitelistHits int
}

func (s *fakeStore) Enabled(ctx context.Context) bool { return s.enabled }

func (s *fakeStore) Whitelist(ctx context.Context) (map[string]models.WhitelistEntry, error) {
	s.whitelistHits++
	if s.whitelistErr != nil {
		return map[string]models.WhitelistEntry{}, s.whitelistErr
	}
	return s.whitelist, nil
}

func (s *fakeStore) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	if s.auditErr != nil {
		return s.auditErr
	}
	s.audits = append(s.audits, entry)
	return nil
}

// fakeHub records service calls.
type fakeHub struct {
	states    []hub.EntityState
	statesErr error
	callErr   error

	calls []serviceCall
}

type serviceCall struct {
	category models.Category
	action   models.Action
	payload  hub.ServicePayload
}

func (h *fakeHub) States(ctx context.Context) ([]hub.EntityState, error) {
	return h.states, h.statesErr
}

func (h *fakeHub) CallService(ctx context.Context, category models.Category, action models.Action, payload hub.ServicePayload) error {
	h.calls = append(h.calls, serviceCall{category, action, payload})
	return h.callErr
}

// fakeLimiter admits everything unless told otherwise.
type fakeLimiter struct{ reject bool }

func (l *fakeLimiter) Allow(key string) bool { return !l.reject }

type fakePublisher struct{ published []models.AuditEntry }

func (p *fakePublisher) PublishAudit(entry models.AuditEntry) {
	p.published = append(p.published, entry)
}

func lamp() map[string]models.WhitelistEntry {
	return map[string]models.WhitelistEntry{
		"light.lamp": {EntityID: "light.lamp", Name: "Desk Lamp", Emoji: "L", Type: "light"},
		"fan.attic":  {EntityID: "fan.attic", Name: "Attic Fan", Emoji: "F", Type: "fan"},
	}
}

func newTestController(st *fakeStore, h *fakeHub, lim *fakeLimiter) (*Controller, *fakePublisher) {
	pub := &fakePublisher{}
	c := New(st, h, lim, pub)
	c.SetClock(func() time.Time { return time.Unix(1700000000, 0).UTC() })
	return c, pub
}

func TestControlRejectedWhenRateLimited(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{reject: true})

	_, err := c.Control(context.Background(), "1.2.3.4", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn,
	})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, h.calls)
	assert.Empty(t, st.audits)
}

func TestControlRejectedWhenDisabled(t *testing.T) {
	// Disabled service wins regardless of every other parameter: no hub
	// call and no audit entry.
	st := &fakeStore{enabled: false, whitelist: lamp()}
	h := &fakeHub{}
	c, pub := newTestController(st, h, &fakeLimiter{})

	_, err := c.Control(context.Background(), "1.2.3.4", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn,
	})
	assert.ErrorIs(t, err, ErrServiceDisabled)
	assert.Empty(t, h.calls)
	assert.Empty(t, st.audits)
	assert.Empty(t, pub.published)
}

func TestControlInvalidActionSkipsWhitelist(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{})

	_, err := c.Control(context.Background(), "1.2.3.4", models.ControlRequest{
		EntityID: "light.lamp", Action: "self_destruct",
	})
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Zero(t, st.whitelistHits, "invalid action must not consult the whitelist")
	assert.Empty(t, h.calls)
}

func TestControlRejectedWhenNotWhitelisted(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{})

	_, err := c.Control(context.Background(), "1.2.3.4", models.ControlRequest{
		EntityID: "light.unknown", Action: models.ActionTurnOn,
	})
	assert.ErrorIs(t, err, ErrDeviceNotAllowed)
	assert.Empty(t, h.calls)
}

func TestControlPreconditionOrdering(t *testing.T) {
	// When several preconditions fail at once the earlier one surfaces:
	// rate limit, then kill switch, then action validity, then whitelist.
	base := models.ControlRequest{EntityID: "light.unknown", Action: "bogus"}

	st := &fakeStore{enabled: false}
	c, _ := newTestController(st, &fakeHub{}, &fakeLimiter{reject: true})
	_, err := c.Control(context.Background(), "ip", base)
	assert.ErrorIs(t, err, ErrRateLimited)

	c, _ = newTestController(st, &fakeHub{}, &fakeLimiter{})
	_, err = c.Control(context.Background(), "ip", base)
	assert.ErrorIs(t, err, ErrServiceDisabled)

	st.enabled = true
	_, err = c.Control(context.Background(), "ip", base)
	assert.ErrorIs(t, err, ErrInvalidAction)

	base.Action = models.ActionTurnOn
	_, err = c.Control(context.Background(), "ip", base)
	assert.ErrorIs(t, err, ErrDeviceNotAllowed)
}

func TestControlFailsClosedOnWhitelistError(t *testing.T) {
	st := &fakeStore{enabled: true, whitelistErr: errors.New("store down")}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{})

	_, err := c.Control(context.Background(), "1.2.3.4", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn,
	})
	assert.ErrorIs(t, err, ErrDeviceNotAllowed)
	assert.Empty(t, h.calls)
}

func TestControlLightColorAndBrightness(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{})

	// Color only: brightness omitted from the forwarded payload.
	_, err := c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn, RGBColor: []int{255, 0, 0},
	})
	require.NoError(t, err)
	require.Len(t, h.calls, 1)
	assert.Equal(t, []int{255, 0, 0}, h.calls[0].payload.RGBColor)
	assert.Nil(t, h.calls[0].payload.Brightness)

	// Brightness 50 converts to the hub's 0-255 scale: round(50/100*255)=128.
	b := 50
	_, err = c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn, Brightness: &b,
	})
	require.NoError(t, err)
	require.Len(t, h.calls, 2)
	require.NotNil(t, h.calls[1].payload.Brightness)
	assert.Equal(t, 128, *h.calls[1].payload.Brightness)
	assert.Nil(t, h.calls[1].payload.RGBColor)
}

func TestControlFanPercentage(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{})

	p := 66
	_, err := c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "fan.attic", Action: models.ActionSetPercentage, Percentage: &p,
	})
	require.NoError(t, err)
	require.Len(t, h.calls, 1)
	assert.Equal(t, models.CategoryFan, h.calls[0].category)
	require.NotNil(t, h.calls[0].payload.Percentage)
	assert.Equal(t, 66, *h.calls[0].payload.Percentage, "percentage is forwarded exactly, not rescaled")
}

func TestControlDropsParamsForeignToCategory(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{})

	// A light turn_on carrying a percentage: the percentage is dropped,
	// never forwarded verbatim.
	p := 66
	_, err := c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn, Percentage: &p,
	})
	require.NoError(t, err)
	require.Len(t, h.calls, 1)
	assert.Nil(t, h.calls[0].payload.Percentage)

	// A fan set_percentage carrying rgb_color: the color is dropped.
	_, err = c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "fan.attic", Action: models.ActionSetPercentage, RGBColor: []int{1, 2, 3},
	})
	require.NoError(t, err)
	require.Len(t, h.calls, 2)
	assert.Nil(t, h.calls[1].payload.RGBColor)
}

func TestControlInvalidParameters(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{})

	_, err := c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn, RGBColor: []int{255, 0},
	})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	bad := 150
	_, err = c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn, Brightness: &bad,
	})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "fan.attic", Action: models.ActionSetPercentage, Percentage: &bad,
	})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Empty(t, h.calls)
}

func TestControlEndToEnd(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{}
	c, pub := newTestController(st, h, &fakeLimiter{})

	result, err := c.Control(context.Background(), "1.2.3.4", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn, RGBColor: []int{0, 128, 255},
	})
	require.NoError(t, err)

	// Downstream RPC
	require.Len(t, h.calls, 1)
	assert.Equal(t, models.CategoryLight, h.calls[0].category)
	assert.Equal(t, models.ActionTurnOn, h.calls[0].action)
	assert.Equal(t, "light.lamp", h.calls[0].payload.EntityID)
	assert.Equal(t, []int{0, 128, 255}, h.calls[0].payload.RGBColor)
	assert.Nil(t, h.calls[0].payload.Brightness)

	// Audit entry
	require.Len(t, st.audits, 1)
	audit := st.audits[0]
	assert.Equal(t, "light.lamp", audit.EntityID)
	assert.Equal(t, "turn_on (color)", audit.Action)
	assert.Equal(t, "turned on", audit.Label)
	assert.Equal(t, "Desk Lamp", audit.DeviceName)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), audit.Timestamp)
	assert.NotEmpty(t, audit.ID)

	// Event feed mirrors the audit entry
	require.Len(t, pub.published, 1)
	assert.Equal(t, audit, pub.published[0])

	// Normalized result
	assert.Equal(t, models.ControlResult{
		Success:  true,
		EntityID: "light.lamp",
		Action:   models.ActionTurnOn,
		Message:  "Desk Lamp updated",
	}, result)
}

func TestControlAuditAnnotations(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{})

	b := 50
	_, err := c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn, Brightness: &b,
	})
	require.NoError(t, err)

	p := 66
	_, err = c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "fan.attic", Action: models.ActionSetPercentage, Percentage: &p,
	})
	require.NoError(t, err)

	_, err = c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "fan.attic", Action: models.ActionTurnOff,
	})
	require.NoError(t, err)

	require.Len(t, st.audits, 3)
	assert.Equal(t, "turn_on (50%)", st.audits[0].Action)
	assert.Equal(t, "set_percentage (66%)", st.audits[1].Action)
	assert.Equal(t, "turn_off", st.audits[2].Action)
}

func TestControlUpstreamFailure(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp()}
	h := &fakeHub{callErr: errors.New("hub is down")}
	c, pub := newTestController(st, h, &fakeLimiter{})

	_, err := c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn,
	})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Empty(t, st.audits, "failed calls are never audited")
	assert.Empty(t, pub.published)
}

func TestControlAuditFailureDoesNotFailRequest(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: lamp(), auditErr: errors.New("log write failed")}
	h := &fakeHub{}
	c, pub := newTestController(st, h, &fakeLimiter{})

	result, err := c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "light.lamp", Action: models.ActionTurnOn,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, pub.published, 1, "the event feed still gets the entry")
}

func TestControlUnknownCategoryRejected(t *testing.T) {
	st := &fakeStore{enabled: true, whitelist: map[string]models.WhitelistEntry{
		"climate.thermostat": {EntityID: "climate.thermostat", Name: "Thermostat"},
	}}
	h := &fakeHub{}
	c, _ := newTestController(st, h, &fakeLimiter{})

	_, err := c.Control(context.Background(), "ip", models.ControlRequest{
		EntityID: "climate.thermostat", Action: models.ActionTurnOn,
	})
	assert.ErrorIs(t, err, ErrDeviceNotAllowed)
	assert.Empty(t, h.calls)
}

func TestDevices(t *testing.T) {
	st := &fakeStore{whitelist: lamp()}
	c, _ := newTestController(st, &fakeHub{}, &fakeLimiter{})

	devices := c.Devices(context.Background())
	require.Len(t, devices, 2)
	assert.Equal(t, models.Device{Name: "Desk Lamp", Emoji: "L", Type: "light"}, devices["light.lamp"])
}

func TestDevicesFailsClosed(t *testing.T) {
	st := &fakeStore{whitelistErr: errors.New("store down")}
	c, _ := newTestController(st, &fakeHub{}, &fakeLimiter{})

	devices := c.Devices(context.Background())
	assert.NotNil(t, devices)
	assert.Empty(t, devices)
}

func TestStatesFiltersToWhitelist(t *testing.T) {
	b := 255
	st := &fakeStore{whitelist: lamp()}
	h := &fakeHub{states: []hub.EntityState{
		{EntityID: "light.lamp", State: "on", Attributes: hub.Attributes{
			Brightness:          &b,
			RGBColor:            []int{255, 255, 0},
			SupportedColorModes: []string{"rgb"},
		}},
		{EntityID: "light.secret", State: "on"},
		{EntityID: "fan.attic", State: "off", Attributes: hub.Attributes{PresetMode: "auto"}},
	}}
	c, _ := newTestController(st, h, &fakeLimiter{})

	states, err := c.States(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)

	_, ok := states["light.secret"]
	assert.False(t, ok, "entities outside the whitelist never surface even if the hub reports them")

	lampState := states["light.lamp"]
	assert.Equal(t, "on", lampState.State)
	assert.Equal(t, "Desk Lamp", lampState.Name)
	require.NotNil(t, lampState.Brightness)
	assert.Equal(t, 100, *lampState.Brightness, "hub 0-255 brightness maps to 0-100")
	require.NotNil(t, lampState.SupportsColor)
	assert.True(t, *lampState.SupportsColor)

	fanState := states["fan.attic"]
	assert.Equal(t, "auto", fanState.PresetMode)
}

func TestStatesEmptyWhitelistSkipsHub(t *testing.T) {
	st := &fakeStore{whitelist: map[string]models.WhitelistEntry{}}
	h := &fakeHub{statesErr: errors.New("must not be called")}
	c, _ := newTestController(st, h, &fakeLimiter{})

	states, err := c.States(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestStatesFailsClosedOnWhitelistError(t *testing.T) {
	st := &fakeStore{whitelistErr: errors.New("store down")}
	h := &fakeHub{states: []hub.EntityState{{EntityID: "light.lamp"}}}
	c, _ := newTestController(st, h, &fakeLimiter{})

	states, err := c.States(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestStatesUpstreamError(t *testing.T) {
	st := &fakeStore{whitelist: lamp()}
	h := &fakeHub{statesErr: errors.New("hub down")}
	c, _ := newTestController(st, h, &fakeLimiter{})

	_, err := c.States(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestStatus(t *testing.T) {
	c, _ := newTestController(&fakeStore{enabled: true}, &fakeHub{}, &fakeLimiter{})
	assert.True(t, c.Status(context.Background()))

	c, _ = newTestController(&fakeStore{enabled: false}, &fakeHub{}, &fakeLimiter{})
	assert.False(t, c.Status(context.Background()))
}
