package dispatch

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"slackhooks/models"
	"slackhooks/services/classifier"
)

func newFormContext(t *testing.T, form url.Values) *Context {
	t.Helper()
	return newTestContext(t, "application/x-www-form-urlencoded", form.Encode())
}

func newTestContext(t *testing.T, contentType, body string) *Context {
	t.Helper()
	headers := map[string][]string{"Content-Type": {contentType}}
	req, err := classifier.Classify("POST", "/slack/events", headers, nil, body)
	require.NoError(t, err)
	return NewContext(context.Background(), req, nil, nil)
}

func commandContext(t *testing.T, command string) *Context {
	return newFormContext(t, url.Values{
		"command":    {command},
		"team_id":    {"T1"},
		"channel_id": {"C1"},
		"user_id":    {"U1"},
	})
}

func eventContext(t *testing.T, body string) *Context {
	return newTestContext(t, "application/json", body)
}

func requireText(t *testing.T, resp *models.Response, text string) {
	t.Helper()
	require.NotNil(t, resp)
	body, ok := resp.Body.(*models.TextBody)
	require.True(t, ok, "expected text body, got %T", resp.Body)
	require.Equal(t, text, body.Text)
}
