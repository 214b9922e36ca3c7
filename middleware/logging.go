package middleware

import (
	"time"

	"slackhooks/dispatch"
	"slackhooks/models"
)

// RequestLogger writes one access log line per dispatched request
func RequestLogger() dispatch.Middleware {
	return func(c *dispatch.Context, next dispatch.Next) (*models.Response, error) {
		start := time.Now()
		resp, err := next(c)

		status := models.ErrorResponse(err).StatusCode
		if err == nil && resp != nil {
			status = resp.StatusCode
		}

		event := c.Logger().Info()
		if err != nil {
			event = c.Logger().Error().Err(err)
		}
		event.
			Str("kind", string(c.Request.Kind())).
			Str("discriminator", dispatch.Discriminator(c.Request)).
			Str("team_id", c.TeamID()).
			Int("status", status).
			Bool("matched", resp != nil || err != nil).
			Dur("latency", time.Since(start)).
			Msg("📨 Slack request dispatched")
		return resp, err
	}
}
