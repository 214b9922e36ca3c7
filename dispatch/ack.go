package dispatch

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"slackhooks/models"
)

// ErrAlreadyAcknowledged is returned by every Ack call after the first
var ErrAlreadyAcknowledged = errors.New("request already acknowledged")

// Ack is the single synchronous reply to a command or interactive request.
// It is shared by every handler invoked for one request; the first write wins.
type Ack struct {
	mu       sync.Mutex
	response *models.Response
	logger   *zerolog.Logger
}

func NewAck(logger *zerolog.Logger) *Ack {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Ack{logger: logger}
}

// Respond stores resp as the reply. A nil resp acknowledges with an empty 200.
func (a *Ack) Respond(resp *models.Response) error {
	if resp == nil {
		resp = models.EmptyResponse()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.response != nil {
		a.logger.Warn().Msg("⚠️ Ack called more than once for the same request, ignoring")
		return ErrAlreadyAcknowledged
	}
	a.response = resp
	return nil
}

// Empty acknowledges with no body
func (a *Ack) Empty() error {
	return a.Respond(models.EmptyResponse())
}

func (a *Ack) Text(text string) error {
	return a.Respond(models.TextResponse(text))
}

// Ephemeral replies visibly only to the invoking user
func (a *Ack) Ephemeral(text string) error {
	return a.Respond(models.EphemeralResponse(text))
}

// InChannel replies visibly to the whole channel
func (a *Ack) InChannel(text string) error {
	return a.Respond(models.InChannelResponse(text))
}

func (a *Ack) Blocks(blocks []json.RawMessage, fallback string) error {
	return a.Respond(models.BlocksResponse(blocks, fallback))
}

// ReplaceOriginal overwrites the message an interactive request came from
func (a *Ack) ReplaceOriginal(text string) error {
	return a.Respond(models.ReplaceOriginalResponse(text))
}

func (a *Ack) ReplaceOriginalBlocks(blocks []json.RawMessage, fallback string) error {
	return a.Respond(models.ReplaceOriginalBlocksResponse(blocks, fallback))
}

// DeleteOriginal removes the message an interactive request came from
func (a *Ack) DeleteOriginal() error {
	return a.Respond(models.DeleteOriginalResponse())
}

func (a *Ack) IsAcknowledged() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.response != nil
}

// Response returns the stored reply, or nil when nothing acknowledged
func (a *Ack) Response() *models.Response {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.response
}
