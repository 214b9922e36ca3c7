package dispatch

import (
	"net/url"
	"testing"

	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackhooks/models"
)

func TestContext_RequestAccessors(t *testing.T) {
	t.Run("event", func(t *testing.T) {
		c := eventContext(t, `{"type":"event_callback","team_id":"T1","enterprise_id":"E1","event":{"type":"app_mention","channel":"C9","user":"U7","text":"<@UBOT> hi"}}`)
		assert.Equal(t, "T1", c.TeamID())
		assert.Equal(t, "E1", c.EnterpriseID())
		assert.Equal(t, "C9", c.ChannelID())
		assert.Equal(t, "U7", c.UserID())
		assert.Equal(t, "E1:T1", c.InstallationKey().String())
	})

	t.Run("command", func(t *testing.T) {
		c := commandContext(t, "/hello")
		assert.Equal(t, "T1", c.TeamID())
		assert.Equal(t, "", c.EnterpriseID())
		assert.Equal(t, "C1", c.ChannelID())
		assert.Equal(t, "U1", c.UserID())
		assert.Nil(t, c.InstallationKey().EnterpriseID)
	})

	t.Run("interactive", func(t *testing.T) {
		c := newFormContext(t, url.Values{
			"payload": {`{"type":"block_actions","team":{"id":"T2","enterprise_id":"E2"},"user":{"id":"U2"},"channel":{"id":"C2"}}`},
		})
		assert.Equal(t, "T2", c.TeamID())
		assert.Equal(t, "E2", c.EnterpriseID())
		assert.Equal(t, "C2", c.ChannelID())
		assert.Equal(t, "U2", c.UserID())
	})
}

func TestContext_EventsAPIEvent(t *testing.T) {
	c := eventContext(t, `{"token":"x","team_id":"T1","api_app_id":"A1","type":"event_callback","event_id":"Ev1","event_time":1,"event":{"type":"app_mention","user":"U1","text":"hi","ts":"1.1","channel":"C1","event_ts":"1.1"}}`)

	event, err := c.EventsAPIEvent()
	require.NoError(t, err)
	assert.Equal(t, slackevents.CallbackEvent, event.Type)

	mention, ok := event.InnerEvent.Data.(*slackevents.AppMentionEvent)
	require.True(t, ok)
	assert.Equal(t, "C1", mention.Channel)

	_, err = commandContext(t, "/x").EventsAPIEvent()
	assert.Error(t, err)
}

func TestContext_InteractionCallback(t *testing.T) {
	c := newFormContext(t, url.Values{
		"payload": {`{"type":"block_actions","trigger_id":"123.456","team":{"id":"T1"},"user":{"id":"U1"},"actions":[{"action_id":"approve","block_id":"b1","type":"button","value":"yes"}]}`},
	})

	callback, err := c.InteractionCallback()
	require.NoError(t, err)
	assert.Equal(t, "123.456", callback.TriggerID)
	assert.Equal(t, "U1", callback.User.ID)
	require.Len(t, callback.ActionCallback.BlockActions, 1)
	assert.Equal(t, "approve", callback.ActionCallback.BlockActions[0].ActionID)
}

func TestContext_InstallationIsSharedAcrossCopies(t *testing.T) {
	c := commandContext(t, "/x")
	cp := c.copy()

	_, ok := cp.Installation()
	assert.False(t, ok)

	c.SetInstallation(&models.Installation{TeamID: "T1"})
	inst, ok := cp.Installation()
	require.True(t, ok)
	assert.Equal(t, "T1", inst.TeamID)
}
