package services

import (
	"context"
	"time"

	"github.com/samber/mo"

	"slackhooks/models"
)

// InstallationStore persists one Installation per (team, enterprise) key
type InstallationStore interface {
	// Save inserts or replaces the installation under its key
	Save(ctx context.Context, installation *models.Installation) error
	FindByTeam(ctx context.Context, teamID string, enterpriseID *string) (mo.Option[*models.Installation], error)
	Delete(ctx context.Context, teamID string, enterpriseID *string) error
}

// StateStore persists OAuth state tokens between Start and Complete
type StateStore interface {
	Save(ctx context.Context, state *models.OAuthState) error
	Find(ctx context.Context, token string) (mo.Option[*models.OAuthState], error)
	Delete(ctx context.Context, token string) error
	// CleanupExpired removes every state whose expiry is at or before now
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

// StateConsumer is implemented by state stores that can look up and delete in one step.
// The entry is removed whether or not it is still valid; only a valid one is returned.
type StateConsumer interface {
	VerifyAndConsume(ctx context.Context, token string, now time.Time) (mo.Option[*models.OAuthState], error)
}
