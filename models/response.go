package models

import (
	"encoding/json"
	"net/http"

	"slackhooks/core"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

type ResponseType string

const (
	ResponseEphemeral ResponseType = "ephemeral"
	ResponseInChannel ResponseType = "in_channel"
)

// ResponseBody is nil (empty), *TextBody, *BlocksBody or *ChallengeBody
type ResponseBody interface {
	isResponseBody()
}

// ReplaceOriginal and DeleteOriginal act on the message an interactive request came from
type TextBody struct {
	Text            string       `json:"text"`
	ResponseType    ResponseType `json:"response_type,omitempty"`
	ReplaceOriginal *bool        `json:"replace_original,omitempty"`
	DeleteOriginal  *bool        `json:"delete_original,omitempty"`
}

type BlocksBody struct {
	Blocks          []json.RawMessage `json:"blocks"`
	Text            string            `json:"text,omitempty"`
	ResponseType    ResponseType      `json:"response_type,omitempty"`
	ReplaceOriginal *bool             `json:"replace_original,omitempty"`
	DeleteOriginal  *bool             `json:"delete_original,omitempty"`
}

type ChallengeBody struct {
	Challenge string `json:"challenge"`
}

// PlainBody is a non-JSON body, used for OAuth and error pages
type PlainBody string

func (*TextBody) isResponseBody()      {}
func (*BlocksBody) isResponseBody()    {}
func (*ChallengeBody) isResponseBody() {}
func (PlainBody) isResponseBody()      {}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       ResponseBody
}

// Encode renders the body and the content type it should be sent with.
// An empty body yields nil and "".
func (r *Response) Encode() ([]byte, string, error) {
	switch body := r.Body.(type) {
	case nil:
		return nil, "", nil
	case PlainBody:
		return []byte(body), ContentTypeText, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
		return data, ContentTypeJSON, nil
	}
}

// EmptyResponse is a bare 200
func EmptyResponse() *Response {
	return &Response{StatusCode: http.StatusOK}
}

func TextResponse(text string) *Response {
	return &Response{StatusCode: http.StatusOK, Body: &TextBody{Text: text}}
}

func EphemeralResponse(text string) *Response {
	return &Response{StatusCode: http.StatusOK, Body: &TextBody{Text: text, ResponseType: ResponseEphemeral}}
}

func InChannelResponse(text string) *Response {
	return &Response{StatusCode: http.StatusOK, Body: &TextBody{Text: text, ResponseType: ResponseInChannel}}
}

func BlocksResponse(blocks []json.RawMessage, fallback string) *Response {
	return &Response{StatusCode: http.StatusOK, Body: &BlocksBody{Blocks: blocks, Text: fallback}}
}

// ReplaceOriginalResponse overwrites the source message of an interactive request with text
func ReplaceOriginalResponse(text string) *Response {
	replace := true
	return &Response{StatusCode: http.StatusOK, Body: &TextBody{Text: text, ReplaceOriginal: &replace}}
}

func ReplaceOriginalBlocksResponse(blocks []json.RawMessage, fallback string) *Response {
	replace := true
	return &Response{StatusCode: http.StatusOK, Body: &BlocksBody{Blocks: blocks, Text: fallback, ReplaceOriginal: &replace}}
}

// DeleteOriginalResponse removes the source message of an interactive request
func DeleteOriginalResponse() *Response {
	remove := true
	return &Response{StatusCode: http.StatusOK, Body: &TextBody{DeleteOriginal: &remove}}
}

func ChallengeResponse(challenge string) *Response {
	return &Response{StatusCode: http.StatusOK, Body: &ChallengeBody{Challenge: challenge}}
}

func PlainResponse(status int, text string) *Response {
	return &Response{StatusCode: status, Body: PlainBody(text)}
}

// RedirectResponse is a 302 with an empty body
func RedirectResponse(location string) *Response {
	headers := http.Header{}
	headers.Set("Location", location)
	return &Response{StatusCode: http.StatusFound, Headers: headers}
}

// ErrorResponse renders err with the status and caller-safe text from the error taxonomy
func ErrorResponse(err error) *Response {
	status := core.StatusCode(err)
	msg := core.PublicMessage(err)
	if msg == "" {
		return &Response{StatusCode: status}
	}
	return PlainResponse(status, msg)
}
