package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"slackhooks/clients"
	"slackhooks/core"
)

// DefaultSayTimeout bounds each outbound chat API call
const DefaultSayTimeout = 3 * time.Second

// TokenSource resolves the bot token used to post on behalf of the current request
type TokenSource func(ctx context.Context) (string, error)

// Say posts asynchronous messages back to the conversation a request came from.
// Unlike Ack it may be used any number of times.
type Say struct {
	client   clients.ChatClient
	token    TokenSource
	channel  string
	threadTS string
	timeout  time.Duration
}

func NewSay(client clients.ChatClient, token TokenSource, channel string, timeout time.Duration) *Say {
	if timeout <= 0 {
		timeout = DefaultSayTimeout
	}
	return &Say{client: client, token: token, channel: channel, timeout: timeout}
}

// Channel is the conversation messages are posted to
func (s *Say) Channel() string {
	return s.channel
}

// To returns a Say that posts to another channel
func (s *Say) To(channel string) *Say {
	cp := *s
	cp.channel = channel
	cp.threadTS = ""
	return &cp
}

// InThread returns a Say that replies in the thread rooted at ts
func (s *Say) InThread(ts string) *Say {
	cp := *s
	cp.threadTS = ts
	return &cp
}

func (s *Say) Text(ctx context.Context, text string) (*clients.PostMessageResponse, error) {
	return s.post(ctx, clients.MessageParams{Text: text})
}

// Blocks posts Block Kit content with a plain-text fallback for notifications
func (s *Say) Blocks(ctx context.Context, blocks []json.RawMessage, fallback string) (*clients.PostMessageResponse, error) {
	return s.post(ctx, clients.MessageParams{Text: fallback, Blocks: blocks})
}

func (s *Say) Update(ctx context.Context, timestamp, text string) (*clients.PostMessageResponse, error) {
	token, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.UpdateMessage(ctx, token, timestamp, clients.MessageParams{Channel: s.channel, Text: text})
}

func (s *Say) Delete(ctx context.Context, timestamp string) error {
	token, err := s.prepare(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.DeleteMessage(ctx, token, s.channel, timestamp)
}

func (s *Say) post(ctx context.Context, msg clients.MessageParams) (*clients.PostMessageResponse, error) {
	token, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}
	msg.Channel = s.channel
	msg.ThreadTS = s.threadTS

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.PostMessage(ctx, token, msg)
}

func (s *Say) prepare(ctx context.Context) (string, error) {
	if s.client == nil {
		return "", &core.InternalError{Message: "say: no chat client configured"}
	}
	if s.channel == "" {
		return "", &core.InternalError{Message: "say: request has no channel to reply to"}
	}
	if s.token == nil {
		return "", &core.InternalError{Message: "say: no bot token available"}
	}
	token, err := s.token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", &core.InternalError{Message: "say: no bot token available"}
	}
	return token, nil
}
