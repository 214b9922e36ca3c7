package clients

import (
	"context"
	"encoding/json"
)

// OAuthV2Response carries the fields of oauth.v2.access that an installation needs
type OAuthV2Response struct {
	AppID               string
	TeamID              string
	TeamName            string
	EnterpriseID        string
	IsEnterpriseInstall bool

	// ExpiresIn values are zero unless token rotation is enabled
	BotToken     string
	BotUserID    string
	BotScopes    []string
	BotExpiresIn int

	UserID        string
	UserToken     string
	UserScopes    []string
	UserExpiresIn int
}

// OAuthClient exchanges an authorization code for tokens
type OAuthClient interface {
	ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*OAuthV2Response, error)
}

// MessageParams describes a chat message. Blocks are raw Block Kit JSON objects.
type MessageParams struct {
	Channel  string
	Text     string
	Blocks   []json.RawMessage
	ThreadTS string
}

type PostMessageResponse struct {
	Channel   string
	Timestamp string
}

// ChatClient sends messages through the Web API on behalf of a token
type ChatClient interface {
	PostMessage(ctx context.Context, token string, msg MessageParams) (*PostMessageResponse, error)
	UpdateMessage(ctx context.Context, token, timestamp string, msg MessageParams) (*PostMessageResponse, error)
	DeleteMessage(ctx context.Context, token, channel, timestamp string) error
}
