package db

import (
	"context"
	"sync"
	"time"

	"github.com/samber/mo"

	"slackhooks/models"
)

// installationMapKey keeps enterprise presence as its own field so no team id
// can alias an enterprise/team pair.
type installationMapKey struct {
	teamID        string
	enterpriseID  string
	hasEnterprise bool
}

func mapKey(teamID string, enterpriseID *string) installationMapKey {
	key := installationMapKey{teamID: teamID}
	if enterpriseID != nil && *enterpriseID != "" {
		key.enterpriseID = *enterpriseID
		key.hasEnterprise = true
	}
	return key
}

// MemoryInstallationsStore keeps installations in process memory. Suitable for
// single-instance deployments and tests.
type MemoryInstallationsStore struct {
	mu            sync.RWMutex
	installations map[installationMapKey]*models.Installation
}

func NewMemoryInstallationsStore() *MemoryInstallationsStore {
	return &MemoryInstallationsStore{installations: make(map[installationMapKey]*models.Installation)}
}

func (s *MemoryInstallationsStore) Save(ctx context.Context, installation *models.Installation) error {
	stored := *installation
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installations[mapKey(installation.TeamID, installation.EnterpriseID)] = &stored
	return nil
}

func (s *MemoryInstallationsStore) FindByTeam(
	ctx context.Context,
	teamID string,
	enterpriseID *string,
) (mo.Option[*models.Installation], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	installation, ok := s.installations[mapKey(teamID, enterpriseID)]
	if !ok {
		return mo.None[*models.Installation](), nil
	}
	found := *installation
	return mo.Some(&found), nil
}

func (s *MemoryInstallationsStore) Delete(ctx context.Context, teamID string, enterpriseID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.installations, mapKey(teamID, enterpriseID))
	return nil
}

// MemoryOAuthStatesStore keeps OAuth states in process memory
type MemoryOAuthStatesStore struct {
	mu     sync.Mutex
	states map[string]*models.OAuthState
}

func NewMemoryOAuthStatesStore() *MemoryOAuthStatesStore {
	return &MemoryOAuthStatesStore{states: make(map[string]*models.OAuthState)}
}

func (s *MemoryOAuthStatesStore) Save(ctx context.Context, state *models.OAuthState) error {
	stored := *state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Token] = &stored
	return nil
}

func (s *MemoryOAuthStatesStore) Find(ctx context.Context, token string) (mo.Option[*models.OAuthState], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[token]
	if !ok {
		return mo.None[*models.OAuthState](), nil
	}
	found := *state
	return mo.Some(&found), nil
}

func (s *MemoryOAuthStatesStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, token)
	return nil
}

func (s *MemoryOAuthStatesStore) VerifyAndConsume(
	ctx context.Context,
	token string,
	now time.Time,
) (mo.Option[*models.OAuthState], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[token]
	if !ok {
		return mo.None[*models.OAuthState](), nil
	}
	delete(s.states, token)
	if !state.IsValid(token, now) {
		return mo.None[*models.OAuthState](), nil
	}
	return mo.Some(state), nil
}

func (s *MemoryOAuthStatesStore) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for token, state := range s.states {
		if state.IsExpired(now) {
			delete(s.states, token)
			removed++
		}
	}
	return removed, nil
}
