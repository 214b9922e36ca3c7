package models

import (
	"time"

	"github.com/lib/pq"
)

// InstallationKey identifies one workspace installation. A nil EnterpriseID
// means the workspace is not part of an Enterprise Grid org.
type InstallationKey struct {
	TeamID       string
	EnterpriseID *string
}

// NewInstallationKey builds a key, treating an empty enterprise id as absent
func NewInstallationKey(teamID, enterpriseID string) InstallationKey {
	key := InstallationKey{TeamID: teamID}
	if enterpriseID != "" {
		key.EnterpriseID = &enterpriseID
	}
	return key
}

// String renders the key for logs. It is not unique and must not be used as a storage key.
func (k InstallationKey) String() string {
	if k.EnterpriseID == nil {
		return k.TeamID
	}
	return *k.EnterpriseID + ":" + k.TeamID
}

type Installation struct {
	TeamID       string         `db:"team_id" json:"team_id"`
	TeamName     string         `db:"team_name" json:"team_name"`
	EnterpriseID *string        `db:"enterprise_id" json:"enterprise_id,omitempty"`
	AppID        string         `db:"app_id" json:"app_id"`
	BotToken     *string        `db:"bot_token" json:"-"`
	BotUserID    *string        `db:"bot_user_id" json:"bot_user_id,omitempty"`
	UserToken    *string        `db:"user_token" json:"-"`
	UserID       *string        `db:"user_id" json:"user_id,omitempty"`
	BotScopes    pq.StringArray `db:"bot_scopes" json:"bot_scopes"`
	UserScopes   pq.StringArray `db:"user_scopes" json:"user_scopes"`
	InstalledAt  time.Time      `db:"installed_at" json:"installed_at"`
	ExpiresAt    *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
}

// Key returns the identity an installation is stored under
func (i *Installation) Key() InstallationKey {
	key := InstallationKey{TeamID: i.TeamID}
	if i.EnterpriseID != nil && *i.EnterpriseID != "" {
		id := *i.EnterpriseID
		key.EnterpriseID = &id
	}
	return key
}

// FindBotToken returns the bot token when one was granted
func (i *Installation) FindBotToken() (string, bool) {
	if i.BotToken == nil || *i.BotToken == "" {
		return "", false
	}
	return *i.BotToken, true
}

// FindUserToken returns the user token when one was granted
func (i *Installation) FindUserToken() (string, bool) {
	if i.UserToken == nil || *i.UserToken == "" {
		return "", false
	}
	return *i.UserToken, true
}

// IsExpired reports whether a rotating token has passed its expiry
func (i *Installation) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}
