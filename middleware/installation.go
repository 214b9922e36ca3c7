package middleware

import (
	"fmt"

	"slackhooks/dispatch"
	"slackhooks/models"
	"slackhooks/services"
)

const notInstalledText = "This app is not installed in this workspace yet."

// RequireInstallation resolves the workspace's installation into the Context and
// stops requests from workspaces that never installed the app.
func RequireInstallation(store services.InstallationStore) dispatch.Middleware {
	return func(c *dispatch.Context, next dispatch.Next) (*models.Response, error) {
		if event, ok := c.Event(); ok && event.HasChallenge() {
			return next(c)
		}
		if _, ok := c.Installation(); ok {
			return next(c)
		}

		key := c.InstallationKey()
		if key.TeamID != "" {
			maybeInstallation, err := store.FindByTeam(c.Context(), key.TeamID, key.EnterpriseID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve installation for %s: %w", key, err)
			}
			if installation, ok := maybeInstallation.Get(); ok {
				c.SetInstallation(installation)
				return next(c)
			}
		}

		c.Logger().Warn().Str("team", key.String()).Msg("⚠️ Request from a workspace without an installation")
		if c.Request.Kind() == models.KindEvent {
			return models.EmptyResponse(), nil
		}
		return models.EphemeralResponse(notInstalledText), nil
	}
}
