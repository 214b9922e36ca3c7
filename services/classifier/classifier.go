package classifier

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"slackhooks/core"
	"slackhooks/models"
)

const (
	mediaTypeJSON = "application/json"
	mediaTypeForm = "application/x-www-form-urlencoded"
)

// Classify turns a raw request into an InboundRequest with exactly one body variant.
// It is deterministic: the same inputs always give the same variant.
func Classify(method, path string, headers http.Header, query url.Values, body string) (*models.InboundRequest, error) {
	if headers == nil {
		headers = http.Header{}
	}
	if query == nil {
		query = url.Values{}
	}
	req := &models.InboundRequest{
		Method:  method,
		Path:    path,
		Headers: headers,
		Query:   query,
		RawBody: body,
	}

	parsed, err := ClassifyBody(headers.Get("Content-Type"), body)
	if err != nil {
		return nil, err
	}
	req.Body = parsed
	return req, nil
}

// ClassifyBody selects the payload variant from the media type and body contents
func ClassifyBody(contentType, body string) (models.RequestBody, error) {
	mediaType := ""
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			mediaType = mt
		} else {
			mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
		}
	}

	switch mediaType {
	case mediaTypeJSON:
		return parseEvent(body)
	case mediaTypeForm:
		return parseForm(body)
	default:
		return models.RawBody(body), nil
	}
}

// ClassifyOAuthQuery reads an OAuth redirect from a browser GET query string.
// It returns false when the query carries none of code, error or state.
func ClassifyOAuthQuery(query url.Values) (*models.OAuthCallbackPayload, bool) {
	if !query.Has("code") && !query.Has("error") && !query.Has("state") {
		return nil, false
	}
	return oauthCallbackFrom(flatten(query)), true
}

func parseEvent(body string) (*models.EventPayload, error) {
	var payload models.EventPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, &core.MalformedRequestError{Reason: "invalid JSON event body", Err: err}
	}
	return &payload, nil
}

func parseForm(body string) (models.RequestBody, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, &core.MalformedRequestError{Reason: "invalid form encoding", Err: err}
	}
	fields := flatten(values)

	if raw, ok := fields["payload"]; ok {
		var payload models.InteractivePayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, &core.MalformedRequestError{Reason: "invalid interactive payload JSON", Err: err}
		}
		return &payload, nil
	}

	if _, ok := fields["command"]; ok {
		return commandFrom(fields), nil
	}

	_, hasCode := fields["code"]
	_, hasError := fields["error"]
	if hasCode || hasError {
		return oauthCallbackFrom(fields), nil
	}

	return models.RawBody(body), nil
}

// flatten keeps the first value of each repeated key
func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}
	return out
}

func commandFrom(fields map[string]string) *models.CommandPayload {
	return &models.CommandPayload{
		Token:        fields["token"],
		TeamID:       fields["team_id"],
		TeamDomain:   fields["team_domain"],
		EnterpriseID: fields["enterprise_id"],
		ChannelID:    fields["channel_id"],
		ChannelName:  fields["channel_name"],
		UserID:       fields["user_id"],
		UserName:     fields["user_name"],
		Command:      fields["command"],
		Text:         fields["text"],
		ResponseURL:  fields["response_url"],
		TriggerID:    fields["trigger_id"],
		APIAppID:     fields["api_app_id"],
	}
}

func oauthCallbackFrom(fields map[string]string) *models.OAuthCallbackPayload {
	payload := &models.OAuthCallbackPayload{
		Code:  fields["code"],
		State: fields["state"],
	}
	if errParam, ok := fields["error"]; ok {
		payload.Error = &errParam
	}
	return payload
}
