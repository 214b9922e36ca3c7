package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"slackhooks/core/log"
	"slackhooks/models"
)

// shared is the per-request state every handler copy of a Context points at
type shared struct {
	mu           sync.RWMutex
	installation *models.Installation
}

// Context is what middleware and handlers receive for one request.
// Handlers each get their own copy; Ack, Say and the installation are shared.
type Context struct {
	ctx     context.Context
	Request *models.InboundRequest
	Ack     *Ack
	Say     *Say

	shared *shared
}

func NewContext(ctx context.Context, req *models.InboundRequest, ack *Ack, say *Say) *Context {
	if ack == nil {
		ack = NewAck(log.Ctx(ctx))
	}
	return &Context{
		ctx:     ctx,
		Request: req,
		Ack:     ack,
		Say:     say,
		shared:  &shared{},
	}
}

// Context returns the request-scoped context.Context
func (c *Context) Context() context.Context {
	return c.ctx
}

// WithContext returns a copy of c carrying ctx
func (c *Context) WithContext(ctx context.Context) *Context {
	cp := *c
	cp.ctx = ctx
	return &cp
}

// Logger returns the request logger
func (c *Context) Logger() *zerolog.Logger {
	return log.Ctx(c.ctx)
}

func (c *Context) copy() *Context {
	cp := *c
	return &cp
}

// Installation returns the installation resolved for this request, if any
func (c *Context) Installation() (*models.Installation, bool) {
	c.shared.mu.RLock()
	defer c.shared.mu.RUnlock()
	return c.shared.installation, c.shared.installation != nil
}

func (c *Context) SetInstallation(installation *models.Installation) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()
	c.shared.installation = installation
}

func (c *Context) Event() (*models.EventPayload, bool) {
	p, ok := c.Request.Body.(*models.EventPayload)
	return p, ok
}

func (c *Context) Command() (*models.CommandPayload, bool) {
	p, ok := c.Request.Body.(*models.CommandPayload)
	return p, ok
}

func (c *Context) Interactive() (*models.InteractivePayload, bool) {
	p, ok := c.Request.Body.(*models.InteractivePayload)
	return p, ok
}

// EventsAPIEvent decodes the raw event body with the slack-go event model,
// giving handlers typed access to inner events such as *slackevents.AppMentionEvent.
func (c *Context) EventsAPIEvent() (slackevents.EventsAPIEvent, error) {
	if _, ok := c.Event(); !ok {
		return slackevents.EventsAPIEvent{}, fmt.Errorf("request is not an event")
	}
	return slackevents.ParseEvent(json.RawMessage(c.Request.RawBody), slackevents.OptionNoVerifyToken())
}

// InteractionCallback decodes the interactive payload with the slack-go model
func (c *Context) InteractionCallback() (*slack.InteractionCallback, error) {
	if _, ok := c.Interactive(); !ok {
		return nil, fmt.Errorf("request is not an interactive payload")
	}
	raw := c.Request.RawBody
	if payload, ok := formValue(raw, "payload"); ok {
		raw = payload
	}
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &callback); err != nil {
		return nil, fmt.Errorf("failed to decode interaction callback: %w", err)
	}
	return &callback, nil
}

// TeamID is the workspace the request came from
func (c *Context) TeamID() string {
	switch p := c.Request.Body.(type) {
	case *models.EventPayload:
		return p.TeamID
	case *models.CommandPayload:
		return p.TeamID
	case *models.InteractivePayload:
		return p.Team.ID
	}
	return ""
}

// EnterpriseID is the Enterprise Grid org the request came from, or ""
func (c *Context) EnterpriseID() string {
	switch p := c.Request.Body.(type) {
	case *models.EventPayload:
		return p.EnterpriseID
	case *models.CommandPayload:
		return p.EnterpriseID
	case *models.InteractivePayload:
		return p.EnterpriseID()
	}
	return ""
}

// InstallationKey identifies the installation serving this request
func (c *Context) InstallationKey() models.InstallationKey {
	return models.NewInstallationKey(c.TeamID(), c.EnterpriseID())
}

// ChannelID is the conversation a reply should go to, or ""
func (c *Context) ChannelID() string {
	return ChannelOf(c.Request)
}

// UserID is the user who triggered the request, or ""
func (c *Context) UserID() string {
	switch p := c.Request.Body.(type) {
	case *models.EventPayload:
		return p.InnerEvent().User
	case *models.CommandPayload:
		return p.UserID
	case *models.InteractivePayload:
		return p.User.ID
	}
	return ""
}

// ChannelOf resolves the reply channel of a request
func ChannelOf(req *models.InboundRequest) string {
	if req == nil {
		return ""
	}
	switch p := req.Body.(type) {
	case *models.EventPayload:
		return p.InnerEvent().Channel
	case *models.CommandPayload:
		return p.ChannelID
	case *models.InteractivePayload:
		if p.Channel != nil {
			return p.Channel.ID
		}
	}
	return ""
}

func formValue(body, key string) (string, bool) {
	values, err := url.ParseQuery(body)
	if err != nil || !values.Has(key) {
		return "", false
	}
	return values.Get(key), true
}
