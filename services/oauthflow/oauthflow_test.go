package oauthflow

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackhooks/clients"
	slackclient "slackhooks/clients/slack"
	"slackhooks/core"
	"slackhooks/db"
	"slackhooks/models"
	"slackhooks/services/oauthstate"
)

type fixture struct {
	flow          *Flow
	installations *db.MemoryInstallationsStore
	states        *db.MemoryOAuthStatesStore
	slack         *slackclient.MockSlackClient
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	cfg := Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/slack/oauth_redirect",
		Scopes:       []string{"chat:write", "commands"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f := &fixture{
		installations: db.NewMemoryInstallationsStore(),
		states:        db.NewMemoryOAuthStatesStore(),
		slack:         slackclient.NewMockSlackClient(),
	}
	f.flow = NewFlow(cfg, f.installations, oauthstate.NewManager(f.states), f.slack)
	return f
}

func (f *fixture) issue(t *testing.T) string {
	t.Helper()
	authorizeURL, err := f.flow.Start(context.Background())
	require.NoError(t, err)
	parsed, err := url.Parse(authorizeURL)
	require.NoError(t, err)
	return parsed.Query().Get("state")
}

func stateExists(t *testing.T, f *fixture, token string) bool {
	t.Helper()
	got, err := f.states.Find(context.Background(), token)
	require.NoError(t, err)
	return got.IsPresent()
}

func TestFlow_Start(t *testing.T) {
	t.Run("authorize url carries client, scopes, redirect and state", func(t *testing.T) {
		f := newFixture(t, nil)
		authorizeURL, err := f.flow.Start(context.Background())
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(authorizeURL, AuthorizeURL+"?"))
		parsed, err := url.Parse(authorizeURL)
		require.NoError(t, err)
		query := parsed.Query()
		assert.Equal(t, "client-id", query.Get("client_id"))
		assert.Equal(t, "chat:write,commands", query.Get("scope"))
		assert.Equal(t, "https://app.example.com/slack/oauth_redirect", query.Get("redirect_uri"))
		assert.NotEmpty(t, query.Get("state"))
		assert.False(t, query.Has("user_scope"))
		assert.True(t, stateExists(t, f, query.Get("state")))
	})

	t.Run("user scopes are included when configured", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.UserScopes = []string{"search:read", "users:read"} })
		authorizeURL, err := f.flow.Start(context.Background())
		require.NoError(t, err)

		parsed, err := url.Parse(authorizeURL)
		require.NoError(t, err)
		assert.Equal(t, "search:read,users:read", parsed.Query().Get("user_scope"))
	})

	t.Run("each start issues a fresh state", func(t *testing.T) {
		f := newFixture(t, nil)
		assert.NotEqual(t, f.issue(t), f.issue(t))
	})
}

func TestFlow_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("saves installation keyed by team", func(t *testing.T) {
		f := newFixture(t, nil)
		var gotCode, gotRedirect string
		f.slack.WithExchangeCode(func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*clients.OAuthV2Response, error) {
			gotCode, gotRedirect = code, redirectURI
			return &clients.OAuthV2Response{
				AppID:     "A1",
				TeamID:    "T1",
				TeamName:  "Acme",
				BotToken:  "xoxb-1",
				BotUserID: "UBOT",
			}, nil
		})

		state := f.issue(t)
		installation, err := f.flow.Complete(ctx, "the-code", state)
		require.NoError(t, err)

		assert.Equal(t, "the-code", gotCode)
		assert.Equal(t, "https://app.example.com/slack/oauth_redirect", gotRedirect)
		assert.Nil(t, installation.EnterpriseID)
		assert.Equal(t, []string{"chat:write", "commands"}, []string(installation.BotScopes))
		assert.Nil(t, installation.ExpiresAt)

		saved, err := f.installations.FindByTeam(ctx, "T1", nil)
		require.NoError(t, err)
		require.True(t, saved.IsPresent())
		token, ok := saved.MustGet().FindBotToken()
		assert.True(t, ok)
		assert.Equal(t, "xoxb-1", token)
		assert.Equal(t, "UBOT", *saved.MustGet().BotUserID)
		assert.False(t, stateExists(t, f, state))
	})

	t.Run("enterprise installs are keyed by enterprise and team", func(t *testing.T) {
		f := newFixture(t, nil)
		f.slack.WithExchangeCode(func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*clients.OAuthV2Response, error) {
			return &clients.OAuthV2Response{TeamID: "T1", EnterpriseID: "E1", BotToken: "xoxb-e"}, nil
		})

		_, err := f.flow.Complete(ctx, "code", f.issue(t))
		require.NoError(t, err)

		enterprise := "E1"
		saved, err := f.installations.FindByTeam(ctx, "T1", &enterprise)
		require.NoError(t, err)
		assert.True(t, saved.IsPresent())

		plain, err := f.installations.FindByTeam(ctx, "T1", nil)
		require.NoError(t, err)
		assert.False(t, plain.IsPresent())
	})

	t.Run("user token and rotation expiry", func(t *testing.T) {
		f := newFixture(t, nil)
		now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		f.flow.now = func() time.Time { return now }
		f.slack.WithExchangeCode(func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*clients.OAuthV2Response, error) {
			return &clients.OAuthV2Response{
				TeamID:       "T2",
				BotToken:     "xoxe.xoxb-1",
				BotScopes:    []string{"chat:write"},
				BotExpiresIn: 43200,
				UserID:       "U1",
				UserToken:    "xoxp-1",
				UserScopes:   []string{"search:read"},
			}, nil
		})

		installation, err := f.flow.Complete(ctx, "code", f.issue(t))
		require.NoError(t, err)

		userToken, ok := installation.FindUserToken()
		assert.True(t, ok)
		assert.Equal(t, "xoxp-1", userToken)
		assert.Equal(t, "U1", *installation.UserID)
		assert.Equal(t, []string{"chat:write"}, []string(installation.BotScopes))
		require.NotNil(t, installation.ExpiresAt)
		assert.Equal(t, now.Add(12*time.Hour), *installation.ExpiresAt)
	})

	t.Run("state is single use", func(t *testing.T) {
		f := newFixture(t, nil)
		state := f.issue(t)

		_, err := f.flow.Complete(ctx, "code", state)
		require.NoError(t, err)

		_, err = f.flow.Complete(ctx, "code", state)
		var oauthErr *core.OAuthError
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, "Invalid or expired state", oauthErr.Code)
	})

	t.Run("unknown state never reaches slack", func(t *testing.T) {
		f := newFixture(t, nil)
		f.slack.WithExchangeCode(func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*clients.OAuthV2Response, error) {
			t.Fatal("exchange must not be called")
			return nil, nil
		})

		_, err := f.flow.Complete(ctx, "code", "forged")
		var oauthErr *core.OAuthError
		assert.ErrorAs(t, err, &oauthErr)
	})

	t.Run("failed exchange still consumes the state", func(t *testing.T) {
		f := newFixture(t, nil)
		f.slack.WithExchangeCode(func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*clients.OAuthV2Response, error) {
			return nil, core.NewOAuthError("invalid_code")
		})

		state := f.issue(t)
		_, err := f.flow.Complete(ctx, "bad", state)

		var oauthErr *core.OAuthError
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, "invalid_code", oauthErr.Code)
		assert.False(t, stateExists(t, f, state))

		none, err := f.installations.FindByTeam(ctx, "T123456789", nil)
		require.NoError(t, err)
		assert.False(t, none.IsPresent())
	})

	t.Run("response without team is rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		f.slack.WithExchangeCode(func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*clients.OAuthV2Response, error) {
			return &clients.OAuthV2Response{BotToken: "xoxb"}, nil
		})

		_, err := f.flow.Complete(ctx, "code", f.issue(t))
		var internal *core.InternalError
		assert.ErrorAs(t, err, &internal)
	})
}

func TestFlow_HandleCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("error param returns 400 and leaves state untouched", func(t *testing.T) {
		f := newFixture(t, nil)
		state := f.issue(t)
		denied := "access_denied"

		resp := f.flow.HandleCallback(ctx, &models.OAuthCallbackPayload{State: state, Error: &denied})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.PlainBody("OAuth error: access_denied"), resp.Body)
		assert.True(t, stateExists(t, f, state))
	})

	t.Run("code and state complete the install", func(t *testing.T) {
		f := newFixture(t, nil)
		resp := f.flow.HandleCallback(ctx, &models.OAuthCallbackPayload{Code: "code", State: f.issue(t)})

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, models.PlainBody("Installation successful!"), resp.Body)
	})

	t.Run("success url redirects", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.SuccessURL = "https://app.example.com/installed" })
		resp := f.flow.HandleCallback(ctx, &models.OAuthCallbackPayload{Code: "code", State: f.issue(t)})

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://app.example.com/installed", resp.Headers.Get("Location"))
	})

	t.Run("expired state is a 400", func(t *testing.T) {
		f := newFixture(t, nil)
		expired := models.NewOAuthState("old", nil, time.Now().Add(-time.Hour), 10*time.Minute)
		require.NoError(t, f.states.Save(ctx, expired))

		resp := f.flow.HandleCallback(ctx, &models.OAuthCallbackPayload{Code: "code", State: "old"})

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.PlainBody("OAuth error: Invalid or expired state"), resp.Body)
		assert.False(t, stateExists(t, f, "old"))
	})

	t.Run("no params starts the flow", func(t *testing.T) {
		f := newFixture(t, nil)
		resp := f.flow.HandleCallback(ctx, &models.OAuthCallbackPayload{})

		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.True(t, strings.HasPrefix(resp.Headers.Get("Location"), AuthorizeURL))
	})

	t.Run("partial params are a 400", func(t *testing.T) {
		f := newFixture(t, nil)
		resp := f.flow.HandleCallback(ctx, &models.OAuthCallbackPayload{Code: "code"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("storage failure is a 500 without details", func(t *testing.T) {
		f := newFixture(t, nil)
		f.flow.installations = failingInstallations{f.installations}

		resp := f.flow.HandleCallback(ctx, &models.OAuthCallbackPayload{Code: "code", State: f.issue(t)})

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, models.PlainBody("Internal Server Error"), resp.Body)
	})
}

type failingInstallations struct {
	*db.MemoryInstallationsStore
}

func (failingInstallations) Save(ctx context.Context, installation *models.Installation) error {
	return core.NewStorageError("save installation", errors.New("disk full"))
}
