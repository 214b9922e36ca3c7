package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"slackhooks/clients"
	"slackhooks/core"
)

// SlackClient implements clients.ChatClient and clients.OAuthClient using the slack-go/slack SDK.
// Tokens differ per installation, so an SDK client is built per call.
type SlackClient struct {
	httpClient *http.Client
	apiURL     string
}

type Option func(*SlackClient)

// WithAPIURL points the chat methods at another Web API base URL, e.g. a test server
func WithAPIURL(apiURL string) Option {
	return func(c *SlackClient) {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		c.apiURL = apiURL
	}
}

// WithHTTPClient replaces the HTTP client used for every request
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *SlackClient) {
		c.httpClient = httpClient
	}
}

func NewSlackClient(opts ...Option) *SlackClient {
	c := &SlackClient{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ clients.ChatClient  = (*SlackClient)(nil)
	_ clients.OAuthClient = (*SlackClient)(nil)
)

func (c *SlackClient) api(token string) *slack.Client {
	options := []slack.Option{slack.OptionHTTPClient(c.httpClient)}
	if c.apiURL != "" {
		options = append(options, slack.OptionAPIURL(c.apiURL))
	}
	return slack.New(token, options...)
}

// ExchangeCode calls oauth.v2.access. An ok:false reply becomes a core.OAuthError
// carrying Slack's error code.
func (c *SlackClient) ExchangeCode(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI string,
) (*clients.OAuthV2Response, error) {
	resp, err := slack.GetOAuthV2ResponseContext(ctx, c.httpClient, clientID, clientSecret, code, redirectURI)
	if err != nil {
		var slackErr slack.SlackErrorResponse
		if errors.As(err, &slackErr) {
			return nil, &core.OAuthError{Code: slackErr.Err, Err: err}
		}
		return nil, fmt.Errorf("failed to exchange OAuth code with Slack: %w", err)
	}

	return &clients.OAuthV2Response{
		AppID:               resp.AppID,
		TeamID:              resp.Team.ID,
		TeamName:            resp.Team.Name,
		EnterpriseID:        resp.Enterprise.ID,
		IsEnterpriseInstall: resp.IsEnterpriseInstall,
		BotToken:            resp.AccessToken,
		BotUserID:           resp.BotUserID,
		BotScopes:           splitScopes(resp.Scope),
		BotExpiresIn:        resp.ExpiresIn,
		UserID:              resp.AuthedUser.ID,
		UserToken:           resp.AuthedUser.AccessToken,
		UserScopes:          splitScopes(resp.AuthedUser.Scope),
		UserExpiresIn:       resp.AuthedUser.ExpiresIn,
	}, nil
}

// PostMessage sends a message to a channel, optionally in a thread
func (c *SlackClient) PostMessage(
	ctx context.Context,
	token string,
	msg clients.MessageParams,
) (*clients.PostMessageResponse, error) {
	options, err := messageOptions(msg)
	if err != nil {
		return nil, err
	}

	channel, timestamp, err := c.api(token).PostMessageContext(ctx, msg.Channel, options...)
	if err != nil {
		return nil, wrapAPIError("chat.postMessage", err)
	}
	return &clients.PostMessageResponse{Channel: channel, Timestamp: timestamp}, nil
}

// UpdateMessage replaces the content of the message at timestamp
func (c *SlackClient) UpdateMessage(
	ctx context.Context,
	token, timestamp string,
	msg clients.MessageParams,
) (*clients.PostMessageResponse, error) {
	options, err := messageOptions(msg)
	if err != nil {
		return nil, err
	}

	channel, ts, _, err := c.api(token).UpdateMessageContext(ctx, msg.Channel, timestamp, options...)
	if err != nil {
		return nil, wrapAPIError("chat.update", err)
	}
	return &clients.PostMessageResponse{Channel: channel, Timestamp: ts}, nil
}

// DeleteMessage removes the message at timestamp
func (c *SlackClient) DeleteMessage(ctx context.Context, token, channel, timestamp string) error {
	if _, _, err := c.api(token).DeleteMessageContext(ctx, channel, timestamp); err != nil {
		return wrapAPIError("chat.delete", err)
	}
	return nil
}

func messageOptions(msg clients.MessageParams) ([]slack.MsgOption, error) {
	var options []slack.MsgOption
	if msg.Text != "" {
		options = append(options, slack.MsgOptionText(msg.Text, false))
	}
	if len(msg.Blocks) > 0 {
		raw, err := json.Marshal(msg.Blocks)
		if err != nil {
			return nil, fmt.Errorf("failed to encode blocks: %w", err)
		}
		var blocks slack.Blocks
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return nil, fmt.Errorf("invalid block kit payload: %w", err)
		}
		options = append(options, slack.MsgOptionBlocks(blocks.BlockSet...))
	}
	if msg.ThreadTS != "" {
		options = append(options, slack.MsgOptionTS(msg.ThreadTS))
	}
	return options, nil
}

func wrapAPIError(method string, err error) error {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return &core.SlackAPIError{Code: slackErr.Err, Message: method + " failed"}
	}
	return fmt.Errorf("%s request failed: %w", method, err)
}

func splitScopes(scope string) []string {
	var scopes []string
	for _, s := range strings.Split(scope, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}
