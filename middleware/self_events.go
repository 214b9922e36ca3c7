package middleware

import (
	"slackhooks/dispatch"
	"slackhooks/models"
)

// IgnoreSelfEvents drops message events posted by bots, including this app's own
// bot user, so a handler that replies with Say cannot trigger itself.
func IgnoreSelfEvents() dispatch.Middleware {
	return func(c *dispatch.Context, next dispatch.Next) (*models.Response, error) {
		event, ok := c.Event()
		if !ok || event.HasChallenge() {
			return next(c)
		}

		inner := event.InnerEvent()
		if inner.BotID != "" || inner.Subtype == "bot_message" {
			return models.EmptyResponse(), nil
		}
		if installation, ok := c.Installation(); ok && installation.BotUserID != nil && inner.User != "" && inner.User == *installation.BotUserID {
			return models.EmptyResponse(), nil
		}
		return next(c)
	}
}
