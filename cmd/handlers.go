package main

import (
	"fmt"

	"slackhooks/app"
	"slackhooks/dispatch"
	"slackhooks/utils"
)

func registerHandlers(a *app.App) {
	a.Command("/hello", func(c *dispatch.Context) error {
		return c.Ack.Text("Hello!")
	})

	a.Event("app_mention", func(c *dispatch.Context) error {
		event, _ := c.Event()
		inner := event.InnerEvent()
		thread := inner.ThreadTS
		if thread == "" {
			thread = inner.TS
		}
		reply := fmt.Sprintf("Hi <@%s>!", inner.User)
		if text := utils.StripMentions(inner.Text); text != "" {
			reply = fmt.Sprintf("Hi <@%s>, you said: %s", inner.User, text)
		}
		_, err := c.Say.InThread(thread).Text(c.Context(), reply)
		return err
	})
}
