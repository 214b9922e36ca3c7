package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/mo"

	"slackhooks/core"
	"slackhooks/models"
)

const oauthStateKeyPrefix = "oauth_state:"

// RedisOAuthStatesStore keeps each state under its own key with a TTL matching its expiry
type RedisOAuthStatesStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisOAuthStatesStore(client *redis.Client) *RedisOAuthStatesStore {
	return &RedisOAuthStatesStore{client: client, now: time.Now}
}

func oauthStateKey(token string) string {
	return oauthStateKeyPrefix + token
}

func (s *RedisOAuthStatesStore) Save(ctx context.Context, state *models.OAuthState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return core.NewStorageError("save oauth state", err)
	}

	ttl := state.ExpiresAt.Sub(s.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, oauthStateKey(state.Token), data, ttl).Err(); err != nil {
		return core.NewStorageError("save oauth state", err)
	}
	return nil
}

func (s *RedisOAuthStatesStore) Find(ctx context.Context, token string) (mo.Option[*models.OAuthState], error) {
	val, err := s.client.Get(ctx, oauthStateKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return mo.None[*models.OAuthState](), nil
	}
	if err != nil {
		return mo.None[*models.OAuthState](), core.NewStorageError("find oauth state", err)
	}
	return decodeOAuthState(val)
}

func (s *RedisOAuthStatesStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, oauthStateKey(token)).Err(); err != nil {
		return core.NewStorageError("delete oauth state", err)
	}
	return nil
}

// VerifyAndConsume uses GETDEL so concurrent callbacks cannot both redeem a token
func (s *RedisOAuthStatesStore) VerifyAndConsume(
	ctx context.Context,
	token string,
	now time.Time,
) (mo.Option[*models.OAuthState], error) {
	val, err := s.client.GetDel(ctx, oauthStateKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return mo.None[*models.OAuthState](), nil
	}
	if err != nil {
		return mo.None[*models.OAuthState](), core.NewStorageError("consume oauth state", err)
	}

	maybeState, err := decodeOAuthState(val)
	if err != nil {
		return mo.None[*models.OAuthState](), err
	}
	state, ok := maybeState.Get()
	if !ok || !state.IsValid(token, now) {
		return mo.None[*models.OAuthState](), nil
	}
	return mo.Some(state), nil
}

// CleanupExpired sweeps states whose stored expiry has passed. Redis TTLs normally
// remove them first; this catches entries written with a skewed clock.
func (s *RedisOAuthStatesStore) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, oauthStateKeyPrefix+"*", 100).Result()
		if err != nil {
			return removed, core.NewStorageError("scan oauth states", err)
		}

		for _, key := range keys {
			val, err := s.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return removed, core.NewStorageError("read oauth state", err)
			}
			maybeState, err := decodeOAuthState(val)
			if err != nil {
				return removed, err
			}
			if state, ok := maybeState.Get(); ok && !state.IsExpired(now) {
				continue
			}
			n, err := s.client.Del(ctx, key).Result()
			if err != nil {
				return removed, core.NewStorageError("delete oauth state", err)
			}
			removed += n
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func decodeOAuthState(val string) (mo.Option[*models.OAuthState], error) {
	var state models.OAuthState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return mo.None[*models.OAuthState](), core.NewStorageError("decode oauth state", fmt.Errorf("invalid stored state: %w", err))
	}
	return mo.Some(&state), nil
}
