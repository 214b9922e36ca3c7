package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"slackhooks/clients"
	"slackhooks/core"
	"slackhooks/core/log"
	"slackhooks/dispatch"
	"slackhooks/models"
	"slackhooks/services"
	"slackhooks/services/classifier"
	"slackhooks/services/oauthflow"
	"slackhooks/services/signature"
	"slackhooks/utils"
)

// App owns the handler tables and runs every inbound Slack request through
// verify, classify, middleware and routing.
type App struct {
	router   *dispatch.Router
	chain    *dispatch.Chain
	verifier *signature.Verifier

	flow          *oauthflow.Flow
	installations services.InstallationStore
	chat          clients.ChatClient
	botToken      string
	apiTimeout    time.Duration
}

type Option func(*App)

// WithOAuthFlow enables the install and OAuth redirect endpoints
func WithOAuthFlow(flow *oauthflow.Flow) Option {
	return func(a *App) {
		a.flow = flow
	}
}

// WithInstallationStore lets Say find per-workspace bot tokens
func WithInstallationStore(store services.InstallationStore) Option {
	return func(a *App) {
		a.installations = store
	}
}

func WithChatClient(client clients.ChatClient) Option {
	return func(a *App) {
		a.chat = client
	}
}

// WithBotToken sets the token used when no installation is found,
// which is the whole story for single-workspace apps.
func WithBotToken(token string) Option {
	return func(a *App) {
		a.botToken = token
	}
}

func WithAPITimeout(timeout time.Duration) Option {
	return func(a *App) {
		if timeout > 0 {
			a.apiTimeout = timeout
		}
	}
}

func WithVerifier(verifier *signature.Verifier) Option {
	return func(a *App) {
		a.verifier = verifier
	}
}

func New(signingSecret string, opts ...Option) *App {
	a := &App{
		router:     dispatch.NewRouter(),
		chain:      dispatch.NewChain(),
		verifier:   signature.NewVerifier(signingSecret),
		apiTimeout: dispatch.DefaultSayTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) Event(eventType string, h dispatch.Handler) { a.router.Event(eventType, h) }

func (a *App) Command(name string, h dispatch.Handler) { a.router.Command(name, h) }

func (a *App) Action(actionID string, h dispatch.Handler) { a.router.Action(actionID, h) }

func (a *App) Shortcut(callbackID string, h dispatch.Handler) { a.router.Shortcut(callbackID, h) }

func (a *App) Message(h dispatch.Handler) { a.router.Message(h) }

// Use appends a middleware; the first one registered runs outermost
func (a *App) Use(m dispatch.Middleware) { a.chain.Use(m) }

// Freeze ends registration. It must be called before the app serves traffic.
func (a *App) Freeze() {
	a.router.Freeze()
	a.chain.Freeze()
}

func (a *App) IsFrozen() bool {
	return a.router.IsFrozen()
}

func (a *App) OAuthEnabled() bool {
	return a.flow != nil
}

// WithUninstallCleanup deletes a workspace's installation when the app is
// uninstalled or its tokens are revoked.
func (a *App) WithUninstallCleanup() {
	utils.AssertInvariant(a.installations != nil, "uninstall cleanup requires an installation store")
	cleanup := func(c *dispatch.Context) error {
		key := c.InstallationKey()
		if key.TeamID == "" {
			return &core.InternalError{Message: "uninstall event without team id"}
		}
		if err := a.installations.Delete(c.Context(), key.TeamID, key.EnterpriseID); err != nil {
			return fmt.Errorf("failed to delete installation %s: %w", key, err)
		}
		c.Logger().Info().Str("team", key.String()).Msg("🗑️ Deleted installation after uninstall")
		return nil
	}
	a.router.Event("app_uninstalled", cleanup)
	a.router.Event("tokens_revoked", cleanup)
}

// Handle authenticates, classifies and dispatches one Slack request. raw carries
// the transport fields; its Body is filled in by classification.
func (a *App) Handle(ctx context.Context, raw *models.InboundRequest) *models.Response {
	ctx = log.WithRequestID(ctx, core.NewID("req"))

	if err := a.verifier.VerifyRequest(raw); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("path", raw.Path).Msg("⚠️ Rejected unsigned Slack request")
		return models.ErrorResponse(err)
	}

	req, err := classifier.Classify(raw.Method, raw.Path, raw.Headers, raw.Query, raw.RawBody)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("⚠️ Could not classify Slack request")
		return models.ErrorResponse(err)
	}

	if payload, ok := req.Body.(*models.OAuthCallbackPayload); ok {
		return a.handleCallback(ctx, payload)
	}
	return a.dispatch(ctx, req)
}

func (a *App) dispatch(ctx context.Context, req *models.InboundRequest) *models.Response {
	c := dispatch.NewContext(ctx, req, dispatch.NewAck(log.Ctx(ctx)), nil)
	c.Say = dispatch.NewSay(a.chat, a.tokenSource(c), dispatch.ChannelOf(req), a.apiTimeout)

	resp, err := a.chain.Run(c, a.router.Route)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("kind", string(req.Kind())).Msg("❌ Failed to dispatch Slack request")
		return models.ErrorResponse(err)
	}
	if resp == nil {
		return models.EmptyResponse()
	}
	return resp
}

// tokenSource resolves the bot token for c lazily, so requests that never call Say
// never touch the installation store.
func (a *App) tokenSource(c *dispatch.Context) dispatch.TokenSource {
	return func(ctx context.Context) (string, error) {
		if installation, ok := c.Installation(); ok {
			if token, ok := installation.FindBotToken(); ok {
				return token, nil
			}
		}

		key := c.InstallationKey()
		if a.installations != nil && key.TeamID != "" {
			maybeInstallation, err := a.installations.FindByTeam(ctx, key.TeamID, key.EnterpriseID)
			if err != nil {
				return "", fmt.Errorf("failed to resolve bot token for %s: %w", key, err)
			}
			if installation, ok := maybeInstallation.Get(); ok {
				c.SetInstallation(installation)
				if token, ok := installation.FindBotToken(); ok {
					return token, nil
				}
			}
		}

		if a.botToken != "" {
			return a.botToken, nil
		}
		return "", &core.InternalError{Message: fmt.Sprintf("no bot token for workspace %s", key)}
	}
}

// HandleOAuthRedirect serves the browser redirect back from Slack's authorize page.
// It is not signed by Slack; the state token protects it.
func (a *App) HandleOAuthRedirect(ctx context.Context, query url.Values) *models.Response {
	ctx = log.WithRequestID(ctx, core.NewID("req"))
	payload, ok := classifier.ClassifyOAuthQuery(query)
	if !ok {
		payload = &models.OAuthCallbackPayload{}
	}
	return a.handleCallback(ctx, payload)
}

// HandleInstall starts an installation by redirecting to Slack
func (a *App) HandleInstall(ctx context.Context) *models.Response {
	ctx = log.WithRequestID(ctx, core.NewID("req"))
	return a.handleCallback(ctx, &models.OAuthCallbackPayload{})
}

func (a *App) handleCallback(ctx context.Context, payload *models.OAuthCallbackPayload) *models.Response {
	if a.flow == nil {
		log.Ctx(ctx).Warn().Msg("⚠️ OAuth request received but the installation flow is not configured")
		return models.PlainResponse(http.StatusNotFound, "Not Found")
	}
	return a.flow.HandleCallback(ctx, payload)
}
