package handlers

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"slackhooks/app"
	"slackhooks/core"
	"slackhooks/core/log"
	"slackhooks/models"
)

// maxBodyBytes caps a Slack payload; real ones are a few kilobytes
const maxBodyBytes = 1 << 20

// SlackHandler adapts the App to net/http
type SlackHandler struct {
	app *app.App
}

// NewSlackHandler freezes a's registrations, so every handler and middleware
// must be registered before it is called.
func NewSlackHandler(a *app.App) *SlackHandler {
	a.Freeze()
	return &SlackHandler{app: a}
}

// HandleSlackRequest serves the signed events, commands and interactivity endpoints
func (h *SlackHandler) HandleSlackRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("❌ Failed to read Slack request body")
		h.writeResponse(w, models.ErrorResponse(&core.MalformedRequestError{Reason: "unreadable body", Err: err}))
		return
	}

	raw := &models.InboundRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header,
		Query:   r.URL.Query(),
		RawBody: string(body),
	}
	h.writeResponse(w, h.app.Handle(r.Context(), raw))
}

// HandleInstall redirects the browser to Slack's authorize page
func (h *SlackHandler) HandleInstall(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.app.HandleInstall(r.Context()))
}

// HandleOAuthRedirect completes an installation when Slack sends the browser back
func (h *SlackHandler) HandleOAuthRedirect(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.app.HandleOAuthRedirect(r.Context(), r.URL.Query()))
}

func (h *SlackHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", models.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		log.Error("❌ Failed to write health check response: %v", err)
	}
}

func (h *SlackHandler) writeResponse(w http.ResponseWriter, resp *models.Response) {
	data, contentType, err := resp.Encode()
	if err != nil {
		log.Error("❌ Failed to encode response: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	for key, values := range resp.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(resp.StatusCode)
	if len(data) == 0 {
		return
	}
	if _, err := w.Write(data); err != nil {
		log.Error("❌ Failed to write response: %v", err)
	}
}

func (h *SlackHandler) SetupEndpoints(router *mux.Router) {
	log.Info("🚀 Registering Slack endpoints")

	router.HandleFunc("/slack/events", h.HandleSlackRequest).Methods("POST")
	router.HandleFunc("/slack/commands", h.HandleSlackRequest).Methods("POST")
	router.HandleFunc("/slack/interactive", h.HandleSlackRequest).Methods("POST")
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")

	if h.app.OAuthEnabled() {
		router.HandleFunc("/slack/install", h.HandleInstall).Methods("GET")
		router.HandleFunc("/slack/oauth_redirect", h.HandleOAuthRedirect).Methods("GET")
		log.Info("✅ OAuth installation endpoints registered")
	}

	log.Info("✅ All Slack endpoints registered successfully")
}
