package dispatch

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"slackhooks/core"
	"slackhooks/models"
	"slackhooks/utils"
)

// Handler processes one matched request. Returning an error marks this handler
// as failed without stopping the others registered for the same discriminator.
type Handler func(c *Context) error

// Router maps request discriminators to ordered handler lists. Registration
// must finish before Freeze; dispatch only reads the tables afterwards.
type Router struct {
	mu        sync.RWMutex
	frozen    bool
	events    map[string][]Handler
	commands  map[string][]Handler
	actions   map[string][]Handler
	shortcuts map[string][]Handler
	messages  []Handler
}

func NewRouter() *Router {
	return &Router{
		events:    make(map[string][]Handler),
		commands:  make(map[string][]Handler),
		actions:   make(map[string][]Handler),
		shortcuts: make(map[string][]Handler),
	}
}

// Event registers h for an inner event type such as "app_mention"
func (r *Router) Event(eventType string, h Handler) {
	r.register(r.events, "event", eventType, h)
}

// Command registers h for a slash command such as "/hello"
func (r *Router) Command(name string, h Handler) {
	r.register(r.commands, "command", name, h)
}

// Action registers h for an interactive action id
func (r *Router) Action(actionID string, h Handler) {
	r.register(r.actions, "action", actionID, h)
}

// Shortcut registers h for a shortcut, modal or legacy callback id
func (r *Router) Shortcut(callbackID string, h Handler) {
	r.register(r.shortcuts, "shortcut", callbackID, h)
}

// Message registers h for every "message" event
func (r *Router) Message(h Handler) {
	utils.AssertInvariant(h != nil, "message handler cannot be nil")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustNotBeFrozen()
	r.messages = append(r.messages, h)
}

func (r *Router) register(table map[string][]Handler, kind, key string, h Handler) {
	utils.AssertInvariant(key != "", kind+" discriminator cannot be empty")
	utils.AssertInvariant(h != nil, fmt.Sprintf("%s handler for %q cannot be nil", kind, key))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustNotBeFrozen()
	table[key] = append(table[key], h)
}

func (r *Router) mustNotBeFrozen() {
	utils.AssertInvariant(!r.frozen, "handlers cannot be registered after the router is frozen")
}

// Freeze makes the handler tables read-only
func (r *Router) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *Router) IsFrozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Match returns the discriminator and handlers a request would be dispatched to
func (r *Router) Match(req *models.InboundRequest) (string, []Handler) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch p := req.Body.(type) {
	case *models.EventPayload:
		eventType := p.EventType()
		handlers := append([]Handler(nil), r.events[eventType]...)
		if eventType == "message" {
			handlers = append(handlers, r.messages...)
		}
		return eventType, handlers

	case *models.CommandPayload:
		return p.Command, append([]Handler(nil), r.commands[p.Command]...)

	case *models.InteractivePayload:
		if callbackID := callbackIDOf(p); callbackID != "" && (p.IsShortcut() || len(p.Actions) == 0) {
			return callbackID, append([]Handler(nil), r.shortcuts[callbackID]...)
		}
		var handlers []Handler
		for _, action := range p.Actions {
			handlers = append(handlers, r.actions[action.ID()]...)
		}
		return Discriminator(req), handlers
	}
	return "", nil
}

// Route dispatches c to every matching handler in registration order.
//
// A nil response with nil error means nothing matched and the caller should
// reply with an empty 200.
func (r *Router) Route(c *Context) (*models.Response, error) {
	if event, ok := c.Event(); ok && event.HasChallenge() {
		return models.ChallengeResponse(*event.Challenge), nil
	}

	discriminator, handlers := r.Match(c.Request)
	if len(handlers) == 0 {
		c.Logger().Debug().
			Str("kind", string(c.Request.Kind())).
			Str("discriminator", discriminator).
			Msg("No handlers registered, ignoring request")
		return nil, nil
	}

	failed := 0
	for i, h := range handlers {
		if err := c.Context().Err(); err != nil {
			c.Logger().Warn().Err(err).
				Str("discriminator", discriminator).
				Int("skipped", len(handlers)-i).
				Msg("⚠️ Request cancelled, abandoning remaining handlers")
			break
		}
		if err := invoke(h, c.copy()); err != nil {
			failed++
			c.Logger().Error().Err(err).
				Str("kind", string(c.Request.Kind())).
				Str("discriminator", discriminator).
				Int("handler", i).
				Msg("❌ Handler failed")
		}
	}

	if failed == len(handlers) && !c.Ack.IsAcknowledged() {
		return nil, &core.InternalError{Message: fmt.Sprintf("all %d handlers failed for %q", failed, discriminator)}
	}

	if c.Request.Kind() == models.KindEvent {
		if c.Ack.IsAcknowledged() {
			c.Logger().Warn().Str("discriminator", discriminator).
				Msg("⚠️ Event handlers should use Say, not Ack; acknowledgment ignored")
		}
		return models.EmptyResponse(), nil
	}

	if resp := c.Ack.Response(); resp != nil {
		return resp, nil
	}
	return models.EmptyResponse(), nil
}

func invoke(h Handler, c *Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &core.InternalError{Message: fmt.Sprintf("handler panic: %v", rec)}
			c.Logger().Error().Str("stack", string(debug.Stack())).Msg("❌ Handler panicked")
		}
	}()
	return h(c)
}

func callbackIDOf(p *models.InteractivePayload) string {
	if p.CallbackID != nil && *p.CallbackID != "" {
		return *p.CallbackID
	}
	if len(p.View) == 0 {
		return ""
	}
	var view struct {
		CallbackID string `json:"callback_id"`
	}
	if err := json.Unmarshal(p.View, &view); err != nil {
		return ""
	}
	return view.CallbackID
}

// Discriminator describes the routing key of req for logs
func Discriminator(req *models.InboundRequest) string {
	switch p := req.Body.(type) {
	case *models.EventPayload:
		if p.HasChallenge() {
			return p.Type
		}
		return p.EventType()
	case *models.CommandPayload:
		return p.Command
	case *models.InteractivePayload:
		if callbackID := callbackIDOf(p); callbackID != "" && (p.IsShortcut() || len(p.Actions) == 0) {
			return callbackID
		}
		ids := make([]string, 0, len(p.Actions))
		for _, action := range p.Actions {
			ids = append(ids, action.ID())
		}
		return strings.Join(ids, ",")
	}
	return ""
}
