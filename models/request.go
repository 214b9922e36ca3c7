package models

import (
	"encoding/json"
	"net/http"
	"net/url"
)

type RequestKind string

const (
	KindEvent         RequestKind = "event"
	KindCommand       RequestKind = "command"
	KindInteractive   RequestKind = "interactive"
	KindOAuthCallback RequestKind = "oauth_callback"
	KindRaw           RequestKind = "raw"
)

// RequestBody is one of *EventPayload, *CommandPayload, *InteractivePayload,
// *OAuthCallbackPayload or RawBody.
type RequestBody interface {
	Kind() RequestKind
	isRequestBody()
}

// InboundRequest is a transport-neutral view of one HTTP request from Slack
type InboundRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Query   url.Values
	RawBody string
	Body    RequestBody
}

// Kind reports which payload variant the body was classified as
func (r *InboundRequest) Kind() RequestKind {
	if r == nil || r.Body == nil {
		return KindRaw
	}
	return r.Body.Kind()
}

// EventPayload is the Events API outer envelope
type EventPayload struct {
	Token               string          `json:"token"`
	TeamID              string          `json:"team_id"`
	APIAppID            string          `json:"api_app_id"`
	Type                string          `json:"type"`
	Event               json.RawMessage `json:"event,omitempty"`
	EventID             string          `json:"event_id"`
	EventTime           int64           `json:"event_time"`
	Challenge           *string         `json:"challenge,omitempty"`
	EnterpriseID        string          `json:"enterprise_id,omitempty"`
	IsEnterpriseInstall bool            `json:"is_enterprise_install,omitempty"`
}

// InnerEvent is the header shared by the inner events this package inspects
type InnerEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Channel  string `json:"channel,omitempty"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text,omitempty"`
	TS       string `json:"ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
}

func (*EventPayload) Kind() RequestKind { return KindEvent }
func (*EventPayload) isRequestBody()    {}

// InnerEvent decodes the common header of the inner event. A missing or
// non-object event yields the zero value.
func (p *EventPayload) InnerEvent() InnerEvent {
	var inner InnerEvent
	if len(p.Event) == 0 {
		return inner
	}
	_ = json.Unmarshal(p.Event, &inner)
	return inner
}

// EventType is the routing discriminator: the inner event's type
func (p *EventPayload) EventType() string {
	return p.InnerEvent().Type
}

// HasChallenge reports a url_verification handshake
func (p *EventPayload) HasChallenge() bool {
	return p.Challenge != nil && *p.Challenge != ""
}

// CommandPayload is a slash command form post. Absent fields are "".
type CommandPayload struct {
	Token        string `json:"token"`
	TeamID       string `json:"team_id"`
	TeamDomain   string `json:"team_domain"`
	EnterpriseID string `json:"enterprise_id"`
	ChannelID    string `json:"channel_id"`
	ChannelName  string `json:"channel_name"`
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	Command      string `json:"command"`
	Text         string `json:"text"`
	ResponseURL  string `json:"response_url"`
	TriggerID    string `json:"trigger_id"`
	APIAppID     string `json:"api_app_id"`
}

func (*CommandPayload) Kind() RequestKind { return KindCommand }
func (*CommandPayload) isRequestBody()    {}

type TeamRef struct {
	ID           string `json:"id"`
	Domain       string `json:"domain,omitempty"`
	EnterpriseID string `json:"enterprise_id,omitempty"`
}

type UserRef struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
}

type ChannelRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type EnterpriseRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type MessageRef struct {
	Type     string `json:"type,omitempty"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text,omitempty"`
	TS       string `json:"ts,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
}

type ActionPayload struct {
	ActionID string `json:"action_id,omitempty"`
	BlockID  string `json:"block_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
}

// ID returns action_id, falling back to the legacy attachment action name
func (a ActionPayload) ID() string {
	if a.ActionID != "" {
		return a.ActionID
	}
	return a.Name
}

// InteractivePayload is the decoded "payload" form field
type InteractivePayload struct {
	Type        string          `json:"type"`
	Token       string          `json:"token"`
	Team        TeamRef         `json:"team"`
	User        UserRef         `json:"user"`
	Enterprise  *EnterpriseRef  `json:"enterprise,omitempty"`
	Channel     *ChannelRef     `json:"channel,omitempty"`
	Message     *MessageRef     `json:"message,omitempty"`
	Actions     []ActionPayload `json:"actions,omitempty"`
	CallbackID  *string         `json:"callback_id,omitempty"`
	TriggerID   string          `json:"trigger_id,omitempty"`
	ResponseURL string          `json:"response_url,omitempty"`
	View        json.RawMessage `json:"view,omitempty"`
}

func (*InteractivePayload) Kind() RequestKind { return KindInteractive }
func (*InteractivePayload) isRequestBody()    {}

// IsShortcut reports a global or message shortcut invocation
func (p *InteractivePayload) IsShortcut() bool {
	return p.Type == "shortcut" || p.Type == "message_action"
}

// EnterpriseID returns the enterprise id from either the enterprise or team object
func (p *InteractivePayload) EnterpriseID() string {
	if p.Enterprise != nil && p.Enterprise.ID != "" {
		return p.Enterprise.ID
	}
	return p.Team.EnterpriseID
}

// OAuthCallbackPayload is the browser redirect back from the authorize page
type OAuthCallbackPayload struct {
	Code  string
	State string
	Error *string
}

func (*OAuthCallbackPayload) Kind() RequestKind { return KindOAuthCallback }
func (*OAuthCallbackPayload) isRequestBody()    {}

// RawBody is any body not recognized as a Slack payload
type RawBody string

func (RawBody) Kind() RequestKind { return KindRaw }
func (RawBody) isRequestBody()    {}
