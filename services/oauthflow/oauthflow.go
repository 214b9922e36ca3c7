package oauthflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slackhooks/clients"
	"slackhooks/core"
	"slackhooks/core/log"
	"slackhooks/models"
	"slackhooks/services"
	"slackhooks/services/oauthstate"
)

const (
	AuthorizeURL = "https://slack.com/oauth/v2/authorize"

	invalidStateCode   = "Invalid or expired state"
	missingParamsCode  = "Missing code or state"
	installSuccessText = "Installation successful!"
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	UserScopes   []string
	// SuccessURL is where the browser lands after a completed installation.
	// When empty the callback answers with a plain success page.
	SuccessURL string
}

// Flow runs the OAuth v2 installation handshake
type Flow struct {
	config        Config
	installations services.InstallationStore
	states        *oauthstate.Manager
	exchanger     clients.OAuthClient
	now           func() time.Time
}

func NewFlow(
	config Config,
	installations services.InstallationStore,
	states *oauthstate.Manager,
	exchanger clients.OAuthClient,
) *Flow {
	return &Flow{
		config:        config,
		installations: installations,
		states:        states,
		exchanger:     exchanger,
		now:           time.Now,
	}
}

// Start issues a state token and returns the authorize URL to send the browser to
func (f *Flow) Start(ctx context.Context) (string, error) {
	var redirectURI *string
	if f.config.RedirectURI != "" {
		redirectURI = &f.config.RedirectURI
	}
	state, err := f.states.Issue(ctx, redirectURI)
	if err != nil {
		return "", fmt.Errorf("failed to start installation: %w", err)
	}
	return f.authorizeURL(state.Token), nil
}

func (f *Flow) authorizeURL(state string) string {
	query := url.Values{}
	query.Set("client_id", f.config.ClientID)
	query.Set("scope", strings.Join(f.config.Scopes, ","))
	if f.config.RedirectURI != "" {
		query.Set("redirect_uri", f.config.RedirectURI)
	}
	query.Set("state", state)
	if len(f.config.UserScopes) > 0 {
		query.Set("user_scope", strings.Join(f.config.UserScopes, ","))
	}
	return AuthorizeURL + "?" + query.Encode()
}

// Complete redeems state, exchanges code for tokens and saves the installation.
// The state is consumed before the exchange, so a failed exchange cannot be replayed.
func (f *Flow) Complete(ctx context.Context, code, state string) (*models.Installation, error) {
	log.Ctx(ctx).Info().Msg("📋 Starting to complete Slack installation")

	maybeState, err := f.states.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	consumed, ok := maybeState.Get()
	if !ok {
		return nil, core.NewOAuthError(invalidStateCode)
	}

	redirectURI := f.config.RedirectURI
	if consumed.RedirectURI != nil {
		redirectURI = *consumed.RedirectURI
	}
	resp, err := f.exchanger.ExchangeCode(ctx, f.config.ClientID, f.config.ClientSecret, code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange OAuth code with Slack: %w", err)
	}
	if resp.TeamID == "" && resp.EnterpriseID == "" {
		return nil, &core.InternalError{Message: "team id not found in Slack OAuth response"}
	}

	installation := f.buildInstallation(resp)
	if err := f.installations.Save(ctx, installation); err != nil {
		return nil, fmt.Errorf("failed to save installation: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("team", installation.Key().String()).
		Msgf("✅ Completed successfully - installed into %s", installation.TeamName)
	return installation, nil
}

func (f *Flow) buildInstallation(resp *clients.OAuthV2Response) *models.Installation {
	now := f.now().UTC()
	installation := &models.Installation{
		TeamID:      resp.TeamID,
		TeamName:    resp.TeamName,
		AppID:       resp.AppID,
		BotScopes:   resp.BotScopes,
		UserScopes:  resp.UserScopes,
		InstalledAt: now,
	}
	if resp.EnterpriseID != "" {
		installation.EnterpriseID = stringPtr(resp.EnterpriseID)
	}
	if resp.BotToken != "" {
		installation.BotToken = stringPtr(resp.BotToken)
		installation.BotUserID = nonEmpty(resp.BotUserID)
		if len(installation.BotScopes) == 0 {
			installation.BotScopes = f.config.Scopes
		}
	}
	if resp.UserToken != "" {
		installation.UserToken = stringPtr(resp.UserToken)
		installation.UserID = nonEmpty(resp.UserID)
		if len(installation.UserScopes) == 0 {
			installation.UserScopes = f.config.UserScopes
		}
	}

	expiresIn := resp.BotExpiresIn
	if expiresIn == 0 {
		expiresIn = resp.UserExpiresIn
	}
	if expiresIn > 0 {
		expiresAt := now.Add(time.Duration(expiresIn) * time.Second)
		installation.ExpiresAt = &expiresAt
	}
	return installation
}

// HandleCallback turns the browser redirect from Slack into the page shown to the installer.
// Every outcome is terminal; a failed attempt has to start over from the install link.
func (f *Flow) HandleCallback(ctx context.Context, payload *models.OAuthCallbackPayload) *models.Response {
	switch {
	case payload.Error != nil:
		log.Ctx(ctx).Warn().Str("error", *payload.Error).Msg("⚠️ Installation denied or failed at Slack")
		return models.ErrorResponse(core.NewOAuthError(*payload.Error))

	case payload.Code != "" && payload.State != "":
		if _, err := f.Complete(ctx, payload.Code, payload.State); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("❌ Failed to complete installation")
			return models.ErrorResponse(err)
		}
		if f.config.SuccessURL != "" {
			return models.RedirectResponse(f.config.SuccessURL)
		}
		return models.PlainResponse(http.StatusOK, installSuccessText)

	case payload.Code == "" && payload.State == "":
		authorizeURL, err := f.Start(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("❌ Failed to start installation")
			return models.ErrorResponse(err)
		}
		return models.RedirectResponse(authorizeURL)

	default:
		return models.ErrorResponse(core.NewOAuthError(missingParamsCode))
	}
}

func stringPtr(s string) *string {
	return &s
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
