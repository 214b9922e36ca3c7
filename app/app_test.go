package app

import (
	"context"
	"encoding/json"
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
	"slackhooks/db"
	"slackhooks/dispatch"
	"slackhooks/models"
	"slackhooks/services/oauthflow"
	"slackhooks/services/oauthstate"
	"slackhooks/testutils"
)

const helloForm = "token=t&command=/hello&text=&channel_id=C1&user_id=U1&response_url=R&trigger_id=T1"

func signedRequest(contentType, body string) *models.InboundRequest {
	headers := http.Header{}
	headers.Set("Content-Type", contentType)
	testutils.SignHeaders(headers, testutils.TestSigningSecret, body, time.Now())
	return &models.InboundRequest{
		Method:  http.MethodPost,
		Path:    "/slack/events",
		Headers: headers,
		Query:   url.Values{},
		RawBody: body,
	}
}

func encode(t *testing.T, resp *models.Response) string {
	t.Helper()
	data, _, err := resp.Encode()
	require.NoError(t, err)
	return string(data)
}

func TestApp_HelloCommand(t *testing.T) {
	a := New(testutils.TestSigningSecret)
	a.Command("/hello", func(c *dispatch.Context) error {
		return c.Ack.Text("Hello!")
	})
	a.Freeze()

	resp := a.Handle(context.Background(), signedRequest("application/x-www-form-urlencoded", helloForm))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"text":"Hello!"}`, encode(t, resp))
}

func TestApp_RejectsBadSignature(t *testing.T) {
	a := New(testutils.TestSigningSecret)
	called := false
	a.Command("/hello", func(c *dispatch.Context) error {
		called = true
		return nil
	})

	req := signedRequest("application/x-www-form-urlencoded", helloForm)
	req.RawBody = strings.Replace(req.RawBody, "hello", "hellp", 1)

	resp := a.Handle(context.Background(), req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Nil(t, resp.Body)
	assert.False(t, called)

	unsigned := signedRequest("application/x-www-form-urlencoded", helloForm)
	unsigned.Headers.Del("X-Slack-Signature")
	assert.Equal(t, http.StatusUnauthorized, a.Handle(context.Background(), unsigned).StatusCode)
}

func TestApp_MalformedJSON(t *testing.T) {
	a := New(testutils.TestSigningSecret)
	resp := a.Handle(context.Background(), signedRequest("application/json", `{"type":`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApp_Challenge(t *testing.T) {
	a := New(testutils.TestSigningSecret)
	a.Event("url_verification", func(c *dispatch.Context) error {
		t.Fatal("handler must not run for a challenge")
		return nil
	})

	resp := a.Handle(context.Background(), signedRequest("application/json", `{"type":"url_verification","challenge":"abc123"}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"challenge":"abc123"}`, encode(t, resp))
}

func TestApp_UnmatchedIsEmpty200(t *testing.T) {
	a := New(testutils.TestSigningSecret)
	resp := a.Handle(context.Background(), signedRequest("application/x-www-form-urlencoded", helloForm))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, resp.Body)
}

func TestApp_AllHandlersFail(t *testing.T) {
	a := New(testutils.TestSigningSecret)
	a.Command("/hello", func(c *dispatch.Context) error {
		return errors.New("db password is hunter2")
	})

	resp := a.Handle(context.Background(), signedRequest("application/x-www-form-urlencoded", helloForm))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal Server Error", encode(t, resp))
}

func TestApp_MiddlewareOrder(t *testing.T) {
	a := New(testutils.TestSigningSecret)
	var order []string
	trace := func(name string) dispatch.Middleware {
		return func(c *dispatch.Context, next dispatch.Next) (*models.Response, error) {
			order = append(order, name+">")
			resp, err := next(c)
			order = append(order, "<"+name)
			return resp, err
		}
	}
	a.Use(trace("outer"))
	a.Use(trace("inner"))
	a.Command("/hello", func(c *dispatch.Context) error {
		order = append(order, "handler")
		return c.Ack.Text("Hello!")
	})
	a.Freeze()

	a.Handle(context.Background(), signedRequest("application/x-www-form-urlencoded", helloForm))
	assert.Equal(t, []string{"outer>", "inner>", "handler", "<inner", "<outer"}, order)
	assert.Panics(t, func() { a.Use(trace("late")) })
	assert.Panics(t, func() { a.Command("/late", func(c *dispatch.Context) error { return nil }) })
}

func TestApp_SayTokenResolution(t *testing.T) {
	eventBody := `{"type":"event_callback","team_id":"T1","event":{"type":"app_mention","channel":"C9","user":"U1","text":"hi"}}`

	tests := []struct {
		name      string
		installed bool
		botToken  string
		wantToken string
		wantErr   bool
	}{
		{name: "installation token wins", installed: true, botToken: "xoxb-default", wantToken: "xoxb-installed"},
		{name: "falls back to configured token", botToken: "xoxb-default", wantToken: "xoxb-default"},
		{name: "no token at all", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := db.NewMemoryInstallationsStore()
			if tt.installed {
				token := "xoxb-installed"
				require.NoError(t, store.Save(context.Background(), &models.Installation{TeamID: "T1", BotToken: &token}))
			}

			var gotToken, gotChannel string
			chat := slackclient.NewMockSlackClient().WithPostMessage(
				func(ctx context.Context, token string, msg clients.MessageParams) (*clients.PostMessageResponse, error) {
					gotToken, gotChannel = token, msg.Channel
					return &clients.PostMessageResponse{Channel: msg.Channel, Timestamp: "1.1"}, nil
				})

			a := New(testutils.TestSigningSecret,
				WithInstallationStore(store),
				WithChatClient(chat),
				WithBotToken(tt.botToken),
			)
			var sayErr error
			a.Event("app_mention", func(c *dispatch.Context) error {
				_, sayErr = c.Say.Text(c.Context(), "hello back")
				return nil
			})

			resp := a.Handle(context.Background(), signedRequest("application/json", eventBody))
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			if tt.wantErr {
				assert.Error(t, sayErr)
				return
			}
			require.NoError(t, sayErr)
			assert.Equal(t, tt.wantToken, gotToken)
			assert.Equal(t, "C9", gotChannel)
		})
	}
}

func TestApp_UninstallCleanup(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryInstallationsStore()
	token := "xoxb-1"
	require.NoError(t, store.Save(ctx, &models.Installation{TeamID: "T1", BotToken: &token}))

	a := New(testutils.TestSigningSecret, WithInstallationStore(store))
	a.WithUninstallCleanup()
	a.Freeze()

	resp := a.Handle(ctx, signedRequest("application/json", `{"type":"event_callback","team_id":"T1","event":{"type":"app_uninstalled"}}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	found, err := store.FindByTeam(ctx, "T1", nil)
	require.NoError(t, err)
	assert.False(t, found.IsPresent())

	assert.Panics(t, func() { New(testutils.TestSigningSecret).WithUninstallCleanup() })
}

func newOAuthApp(t *testing.T) (*App, *db.MemoryInstallationsStore) {
	t.Helper()
	installations := db.NewMemoryInstallationsStore()
	flow := oauthflow.NewFlow(oauthflow.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		Scopes:       []string{"commands"},
	}, installations, oauthstate.NewManager(db.NewMemoryOAuthStatesStore()), slackclient.NewMockSlackClient())
	return New(testutils.TestSigningSecret, WithOAuthFlow(flow), WithInstallationStore(installations)), installations
}

func TestApp_OAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("install redirects to slack and the redirect completes", func(t *testing.T) {
		a, installations := newOAuthApp(t)
		install := a.HandleInstall(ctx)
		require.Equal(t, http.StatusFound, install.StatusCode)

		location, err := url.Parse(install.Headers.Get("Location"))
		require.NoError(t, err)
		state := location.Query().Get("state")

		done := a.HandleOAuthRedirect(ctx, url.Values{"code": {"abc"}, "state": {state}})
		assert.Equal(t, http.StatusOK, done.StatusCode)
		assert.Equal(t, "Installation successful!", encode(t, done))

		found, err := installations.FindByTeam(ctx, "T123456789", nil)
		require.NoError(t, err)
		assert.True(t, found.IsPresent())

		replay := a.HandleOAuthRedirect(ctx, url.Values{"code": {"abc"}, "state": {state}})
		assert.Equal(t, http.StatusBadRequest, replay.StatusCode)
	})

	t.Run("redirect with error param", func(t *testing.T) {
		a, _ := newOAuthApp(t)
		resp := a.HandleOAuthRedirect(ctx, url.Values{"error": {"access_denied"}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "OAuth error: access_denied", encode(t, resp))
	})

	t.Run("signed form callback goes to the flow", func(t *testing.T) {
		a, _ := newOAuthApp(t)
		resp := a.Handle(ctx, signedRequest("application/x-www-form-urlencoded", "code=abc&state=nope"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "OAuth error: Invalid or expired state", encode(t, resp))
	})

	t.Run("not configured", func(t *testing.T) {
		a := New(testutils.TestSigningSecret)
		assert.False(t, a.OAuthEnabled())
		assert.Equal(t, http.StatusNotFound, a.HandleInstall(ctx).StatusCode)
	})
}

func TestApp_InteractiveMultipleActions(t *testing.T) {
	a := New(testutils.TestSigningSecret)
	var order []string
	a.Action("approve", func(c *dispatch.Context) error {
		order = append(order, "approve")
		return c.Ack.Ephemeral("approved")
	})
	a.Action("notify", func(c *dispatch.Context) error {
		order = append(order, "notify")
		return c.Ack.Text("ignored")
	})

	payload, err := json.Marshal(map[string]any{
		"type":    "block_actions",
		"team":    map[string]string{"id": "T1"},
		"user":    map[string]string{"id": "U1"},
		"actions": []map[string]string{{"action_id": "approve"}, {"action_id": "notify"}},
	})
	require.NoError(t, err)
	body := url.Values{"payload": {string(payload)}}.Encode()

	resp := a.Handle(context.Background(), signedRequest("application/x-www-form-urlencoded", body))
	assert.Equal(t, []string{"approve", "notify"}, order)
	assert.JSONEq(t, `{"text":"approved","response_type":"ephemeral"}`, encode(t, resp))
}
