package models

import (
	"crypto/subtle"
	"time"
)

// OAuthStateTTL is how long an issued state token stays redeemable
const OAuthStateTTL = 10 * time.Minute

type OAuthState struct {
	Token       string    `db:"token" json:"token"`
	RedirectURI *string   `db:"redirect_uri" json:"redirect_uri,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
}

// NewOAuthState builds a state expiring ttl after now
func NewOAuthState(token string, redirectURI *string, now time.Time, ttl time.Duration) *OAuthState {
	return &OAuthState{
		Token:       token,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// IsExpired is true once now reaches ExpiresAt
func (s *OAuthState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsValid checks token equality in constant time and that the state is unexpired
func (s *OAuthState) IsValid(token string, now time.Time) bool {
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return false
	}
	return !s.IsExpired(now)
}
