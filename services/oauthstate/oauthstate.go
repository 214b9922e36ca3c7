package oauthstate

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/mo"

	"slackhooks/core"
	"slackhooks/core/log"
	"slackhooks/models"
	"slackhooks/services"
)

type Manager struct {
	store services.StateStore
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(store services.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		ttl:   models.OAuthStateTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates and stores a new single-use state token
func (m *Manager) Issue(ctx context.Context, redirectURI *string) (*models.OAuthState, error) {
	token, err := core.NewStateToken()
	if err != nil {
		return nil, &core.InternalError{Message: "failed to generate state token", Err: err}
	}

	state := models.NewOAuthState(token, redirectURI, m.now().UTC(), m.ttl)
	if err := m.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save oauth state: %w", err)
	}

	log.Ctx(ctx).Debug().Time("expires_at", state.ExpiresAt).Msg("📋 Issued OAuth state")
	return state, nil
}

// Consume redeems token at most once. Absent, expired or mismatched tokens
// yield None; an expired token is deleted as a side effect.
func (m *Manager) Consume(ctx context.Context, token string) (mo.Option[*models.OAuthState], error) {
	if token == "" {
		return mo.None[*models.OAuthState](), nil
	}
	now := m.now()

	if consumer, ok := m.store.(services.StateConsumer); ok {
		maybeState, err := consumer.VerifyAndConsume(ctx, token, now)
		if err != nil {
			return mo.None[*models.OAuthState](), fmt.Errorf("failed to consume oauth state: %w", err)
		}
		return maybeState, nil
	}

	maybeState, err := m.store.Find(ctx, token)
	if err != nil {
		return mo.None[*models.OAuthState](), fmt.Errorf("failed to find oauth state: %w", err)
	}
	state, ok := maybeState.Get()
	if !ok {
		return mo.None[*models.OAuthState](), nil
	}

	if err := m.store.Delete(ctx, token); err != nil {
		return mo.None[*models.OAuthState](), fmt.Errorf("failed to delete oauth state: %w", err)
	}

	if !state.IsValid(token, now) {
		log.Ctx(ctx).Info().Msg("⚠️ Rejected expired OAuth state")
		return mo.None[*models.OAuthState](), nil
	}
	return mo.Some(state), nil
}

// CleanupExpired deletes every state past its expiry and reports how many were removed
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	removed, err := m.store.CleanupExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired oauth states: %w", err)
	}
	return removed, nil
}
